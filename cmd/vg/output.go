package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/matsen/vulngraph/internal/graph"
)

// Human output styles.
var (
	styleTitle  = color.New(color.FgHiGreen, color.Bold)
	styleLabel  = color.New(color.FgCyan)
	styleSubtle = color.New(color.FgHiBlack)
	styleWarn   = color.New(color.FgYellow)
	styleBad    = color.New(color.FgRed)
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "%s %s\n", styleBad.Sprint("error:"), msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WrittenResponse reports a file written by a command.
type WrittenResponse struct {
	Status string        `json:"status"`
	Path   string        `json:"path"`
	Format string        `json:"format"`
	Report *graph.Report `json:"report,omitempty"`
}

// printWritten reports a written file.
func printWritten(resp WrittenResponse) {
	if !humanOutput {
		outputJSON(resp)
		return
	}
	outputHuman("%s %s (%s)\n", styleTitle.Sprint("wrote"), resp.Path, resp.Format)
	if resp.Report != nil {
		printReportHuman(*resp.Report)
	}
}

// printReportHuman prints sanitization counts, warning about anything dropped.
func printReportHuman(r graph.Report) {
	outputHuman("  %d nodes, %d links\n", r.Nodes, r.Links)
	if r.DroppedNodes > 0 {
		styleWarn.Printf("  dropped %d nodes without an id\n", r.DroppedNodes)
	}
	if r.DanglingLinks > 0 {
		styleWarn.Printf("  dropped %d links with a missing endpoint\n", r.DanglingLinks)
	}
}

// printGraphHuman prints a result set grouped by node type.
func printGraphHuman(data graph.GraphData) {
	if data.IsEmpty() {
		styleSubtle.Println("(no results)")
		return
	}

	byLabel := make(map[string][]graph.GraphNode)
	for _, n := range data.Nodes {
		byLabel[n.Label] = append(byLabel[n.Label], n)
	}
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	for _, l := range labels {
		nodes := byLabel[l]
		styleTitle.Printf("%s (%d)\n", l, len(nodes))
		for _, n := range nodes {
			outputHuman("  %-24s %s\n", graph.DisplayText(n), styleSubtle.Sprint(n.ID))
		}
	}

	if len(data.Links) > 0 {
		names := make(map[string]string, len(data.Nodes))
		for _, n := range data.Nodes {
			names[n.ID] = graph.DisplayText(n)
		}
		styleTitle.Printf("Links (%d)\n", len(data.Links))
		for _, l := range data.Links {
			outputHuman("  %s -[%s]-> %s\n", nameOr(names, l.Source), styleLabel.Sprint(l.Type), nameOr(names, l.Target))
		}
	}
}

func nameOr(names map[string]string, id string) string {
	if n, ok := names[id]; ok {
		return n
	}
	return styleSubtle.Sprint(id)
}

// printNodeHuman prints one node with its properties in key order.
func printNodeHuman(n graph.GraphNode) {
	styleTitle.Printf("%s ", graph.DisplayText(n))
	styleLabel.Println(n.Label)
	outputHuman("  %-16s %s\n", "id", n.ID)

	keys := make([]string, 0, len(n.Properties))
	for k := range n.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v, ok := graph.ScalarString(n.Properties[k])
		if !ok {
			b, _ := json.Marshal(n.Properties[k])
			v = string(b)
		}
		outputHuman("  %-16s %s\n", k, truncateString(v, 80))
	}
}

// truncateString shortens s to max runes with an ellipsis.
func truncateString(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
