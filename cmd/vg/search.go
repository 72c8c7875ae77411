package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/config"
	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/storage"
)

// DefaultSearchLimit is the default number of search hits.
const DefaultSearchLimit = 50

var searchLimit int

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", DefaultSearchLimit, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <snapshot.db> <query>",
	Short: "Full-text search over a SQLite snapshot",
	Long: `Search node properties in a snapshot written by 'vg export -o file.db'.
Works offline, without Neo4j.

Examples:
  vg search results.db log4j
  vg search results.db "remote code" --human`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

// SearchResponse is the JSON output of search.
type SearchResponse struct {
	Query string            `json:"query"`
	Nodes []graph.GraphNode `json:"nodes"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	path := config.ExpandPath(args[0])
	if _, err := os.Stat(path); err != nil {
		exitWithError(ExitDataError, "snapshot not found: %s", path)
	}
	db, err := storage.OpenDB(path)
	if err != nil {
		exitWithError(ExitError, "opening snapshot: %v", err)
	}
	defer db.Close()

	nodes, err := db.Search(args[1], searchLimit)
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}
	if nodes == nil {
		nodes = []graph.GraphNode{}
	}

	if !humanOutput {
		outputJSON(SearchResponse{Query: args[1], Nodes: nodes})
		return nil
	}
	if len(nodes) == 0 {
		styleSubtle.Println("(no matches)")
		return nil
	}
	for i, n := range nodes {
		if i > 0 {
			outputHuman("\n")
		}
		printNodeHuman(n)
	}
	return nil
}
