package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/source"
)

func init() {
	schemaCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "Write the schema graph to a file (format from extension)")
	addImageFlags(schemaCmd)
	rootCmd.AddCommand(schemaCmd)
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Summarize the database as a graph of node types",
	Long: `Summarize the database as one schema node per label with its node count,
linked by the relationship types observed between labels.

Examples:
  vg schema --human
  vg schema -o schema.svg`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *source.Client) (graph.GraphData, error) {
		return client.SchemaOverview(ctx)
	})
}
