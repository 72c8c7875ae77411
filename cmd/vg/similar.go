package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/source"
)

var (
	similarK      int
	similarOutput string
)

func init() {
	similarCmd.Flags().IntVarP(&similarK, "k", "k", 10, "Number of nearest nodes")
	similarCmd.Flags().StringVarP(&similarOutput, "output", "o", "", "Write the matched nodes to a file (format from extension)")
	addImageFlags(similarCmd)
	rootCmd.AddCommand(similarCmd)
}

var similarCmd = &cobra.Command{
	Use:   "similar <text>",
	Short: "Find nodes whose descriptions are similar to text",
	Long: `Embed text with Ollama and query the Neo4j vector index for the nearest
nodes.

Examples:
  vg similar "deserialization of untrusted data in logging library"
  vg similar "buffer overflow in image parser" -k 25 --human`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

// SimilarResponse is the JSON output of similar.
type SimilarResponse struct {
	Query   string          `json:"query"`
	Matches []source.Match  `json:"matches"`
	Graph   graph.GraphData `json:"graph"`
}

func runSimilar(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), DefaultQueryTimeout)
	defer cancel()

	cfg := mustLoadConfig()
	mustValidateOllama(ctx, newEmbedder(cfg))
	runner, client := mustConnect(ctx, cfg)
	defer runner.Close(context.Background())

	data, matches, err := client.Similar(ctx, text, similarK)
	if err != nil {
		exitForQueryError(err)
	}

	if similarOutput != "" {
		emitGraph(data, similarOutput, imageOptionsFromFlags())
		return nil
	}
	if !humanOutput {
		outputJSON(SimilarResponse{Query: text, Matches: matches, Graph: data})
		return nil
	}

	byID := make(map[string]graph.GraphNode, len(data.Nodes))
	for _, n := range data.Nodes {
		byID[n.ID] = n
	}
	for i, m := range matches {
		n := byID[m.ID]
		outputHuman("%2d. [%.3f] %s %s\n", i+1, m.Score, styleTitle.Sprint(graph.DisplayText(n)), styleLabel.Sprint(n.Label))
		if desc, ok := graph.ScalarString(n.Properties["description"]); ok {
			outputHuman("    %s\n", truncateString(desc, 100))
		}
	}
	return nil
}
