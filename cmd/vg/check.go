package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/graph"
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check [input]",
	Short: "Verify configuration, backends and result files",
	Long: `Verify that the configuration is valid, that Neo4j and Ollama are reachable,
and that the embedding model is pulled. With an input file, also report nodes
and links that would be dropped when it is displayed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status string        `json:"status"`
	Neo4j  string        `json:"neo4j"`
	Ollama string        `json:"ollama"`
	Input  *graph.Report `json:"input,omitempty"`
	Issues []CheckIssue  `json:"issues"`
}

// CheckIssue represents a single issue found during check.
type CheckIssue struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	result := CheckResult{Status: "ok", Neo4j: "ok", Ollama: "ok", Issues: []CheckIssue{}}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	runner, _, err := connect(ctx, cfg)
	if err != nil {
		result.Neo4j = "unavailable"
		result.Issues = append(result.Issues, CheckIssue{Type: "neo4j", Reason: err.Error()})
	} else {
		runner.Close(context.Background())
	}

	status := newEmbedder(cfg).Status(ctx)
	switch {
	case !status.Available:
		result.Ollama = "unavailable"
		result.Issues = append(result.Issues, CheckIssue{Type: "ollama", Reason: status.Error})
	case !status.HasModel:
		result.Ollama = "model missing"
		result.Issues = append(result.Issues, CheckIssue{
			Type:   "ollama_model",
			Reason: "model " + cfg.Ollama.Model + " not pulled",
		})
	}

	if len(args) == 1 {
		data, err := readGraph(args[0])
		if err != nil {
			result.Issues = append(result.Issues, CheckIssue{Type: "input", Reason: err.Error()})
		} else {
			_, report := graph.Sanitize(data)
			result.Input = &report
			if report.Dropped() > 0 {
				result.Issues = append(result.Issues, CheckIssue{
					Type:   "input_dropped",
					Reason: "some nodes or links will not be displayed",
				})
			}
		}
	}

	if len(result.Issues) > 0 {
		result.Status = "issues"
	}

	if humanOutput {
		printCheckHuman(result)
	} else {
		outputJSON(result)
	}
	for _, issue := range result.Issues {
		if issue.Type != "input" && issue.Type != "input_dropped" {
			os.Exit(ExitConfigError)
		}
	}
	if len(result.Issues) > 0 {
		os.Exit(ExitDataError)
	}
	return nil
}

func printCheckHuman(r CheckResult) {
	mark := func(s string) string {
		if s == "ok" {
			return styleTitle.Sprint(s)
		}
		return styleBad.Sprint(s)
	}
	outputHuman("neo4j:  %s\n", mark(r.Neo4j))
	outputHuman("ollama: %s\n", mark(r.Ollama))
	if r.Input != nil {
		outputHuman("input:\n")
		printReportHuman(*r.Input)
	}
	for _, issue := range r.Issues {
		styleWarn.Printf("  %s: %s\n", issue.Type, issue.Reason)
	}
}
