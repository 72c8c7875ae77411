package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/source"
)

// DefaultQueryTimeout bounds one command's database work.
const DefaultQueryTimeout = 60 * time.Second

var (
	queryOutput string
	queryParams []string
	queryLimit  int
	relatedType string
	relatedTo   string
)

func init() {
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write results to a file (format from extension)")
	queryCmd.Flags().StringArrayVarP(&queryParams, "param", "p", nil, "Query parameter as key=value (repeatable)")

	getCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write results to a file (format from extension)")

	neighborsCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write results to a file (format from extension)")
	neighborsCmd.Flags().IntVar(&queryLimit, "limit", source.DefaultLimit, "Maximum relationships to return")

	relatedCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write results to a file (format from extension)")
	relatedCmd.Flags().StringVar(&relatedType, "rel", "", "Relationship type to follow (required)")
	relatedCmd.Flags().StringVar(&relatedTo, "to", "", "Label of the related nodes (required)")
	relatedCmd.MarkFlagRequired("rel")
	relatedCmd.MarkFlagRequired("to")

	for _, c := range []*cobra.Command{queryCmd, getCmd, neighborsCmd, relatedCmd} {
		addImageFlags(c)
		rootCmd.AddCommand(c)
	}
}

var queryCmd = &cobra.Command{
	Use:   "query <cypher>",
	Short: "Run a Cypher query and print the resulting graph",
	Long: `Run a read-only Cypher query against Neo4j.

Every node, relationship and path in the returned records becomes part of the
result set. Parameters are passed with --param; integers, floats and booleans
are recognized, anything else is a string.

Examples:
  vg query 'MATCH (v:Vulnerability {cveID: $id})-[r]-(m) RETURN v, r, m' -p id=CVE-2021-44228
  vg query 'MATCH p=(:Vendor)-[*1..2]-(:Vulnerability) RETURN p LIMIT 25' -o vendors.svg`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var getCmd = &cobra.Command{
	Use:   "get <label> <key> <value>",
	Short: "Look up nodes by property",
	Example: `  vg get Vulnerability cveID CVE-2021-44228
  vg get Vendor vendorName apache --human`,
	Args: cobra.ExactArgs(3),
	RunE: runGet,
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <label> <key> <value>",
	Short: "Show a node and its relationships in either direction",
	Example: `  vg neighbors Vulnerability cveID CVE-2021-44228 --limit 50 -o log4shell.png`,
	Args:    cobra.ExactArgs(3),
	RunE:    runNeighbors,
}

var relatedCmd = &cobra.Command{
	Use:   "related <label> <key> <value> --rel TYPE --to LABEL",
	Short: "Follow one relationship type from matching nodes",
	Example: `  vg related Vulnerability cveID CVE-2021-44228 --rel EXPLOITS --to Exploit`,
	Args:    cobra.ExactArgs(3),
	RunE:    runRelated,
}

func runQuery(cmd *cobra.Command, args []string) error {
	params, err := parseParams(queryParams)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	return withClient(func(ctx context.Context, client *source.Client) (graph.GraphData, error) {
		return client.Query(ctx, args[0], params)
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *source.Client) (graph.GraphData, error) {
		return client.Lookup(ctx, args[0], args[1], parseValue(args[2]))
	})
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *source.Client) (graph.GraphData, error) {
		return client.Neighborhood(ctx, args[0], args[1], parseValue(args[2]), queryLimit)
	})
}

func runRelated(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *source.Client) (graph.GraphData, error) {
		return client.Related(ctx, args[0], args[1], parseValue(args[2]), relatedType, relatedTo)
	})
}

// withClient connects, runs fn and emits its result set.
func withClient(fn func(context.Context, *source.Client) (graph.GraphData, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultQueryTimeout)
	defer cancel()

	cfg := mustLoadConfig()
	runner, client := mustConnect(ctx, cfg)
	defer runner.Close(context.Background())

	data, err := fn(ctx, client)
	if err != nil {
		exitForQueryError(err)
	}
	emitGraph(data, queryOutput, imageOptionsFromFlags())
	return nil
}

// parseParams turns key=value pairs into query parameters.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", p)
		}
		params[key] = parseValue(value)
	}
	return params, nil
}

// parseValue interprets a command-line value as an int, float or bool
// when it looks like one.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
