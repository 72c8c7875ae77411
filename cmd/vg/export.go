package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/export"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output path; the extension selects the format (required)")
	exportCmd.MarkFlagRequired("output")
	addImageFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <input>",
	Short: "Convert a result set between formats",
	Long: `Convert a result set between formats.

Readable inputs: .json, .jsonl, .db/.sqlite ("-" reads JSON from stdin).
Outputs: .json, .jsonl, .csv, .db/.sqlite, .png, .svg.

The SQLite snapshot holds nodes and links tables plus a full-text index over
node properties, searchable with 'vg search'.

Examples:
  vg export results.json -o results.db
  vg export results.db -o results.csv
  vg export results.jsonl -o results.svg --width 1200 --height 900`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	if _, err := export.FormatFromPath(exportOutput); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	data := mustReadGraph(args[0])
	emitGraph(data, exportOutput, imageOptionsFromFlags())
	return nil
}
