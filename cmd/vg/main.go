// Package main provides the vg CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/config"
	"github.com/matsen/vulngraph/internal/embedding"
	"github.com/matsen/vulngraph/internal/logging"
	"github.com/matsen/vulngraph/internal/source"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool

	logger = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vg",
	Short: "Vulnerability graph console",
	Long: `vg explores a vulnerability-intelligence graph (CVEs, exploits,
weaknesses, products, vendors) stored in Neo4j.

It runs Cypher and similarity queries, lays out the results with a force
simulation, renders them to PNG or SVG, converts result sets between JSON,
JSONL, CSV and SQLite, and serves an interactive browser console.

All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.Version = Version
}

// mustLoadConfig loads the effective configuration, exits on error.
func mustLoadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// newEmbedder creates the Ollama embedding client from cfg.
func newEmbedder(cfg config.Config) *embedding.Ollama {
	return embedding.NewOllama(
		embedding.WithBaseURL(cfg.Ollama.URL),
		embedding.WithModel(cfg.Ollama.Model),
		embedding.WithLogger(logger),
	)
}

// connect opens and verifies the Neo4j connection.
// The caller is responsible for calling Close() on the returned runner.
func connect(ctx context.Context, cfg config.Config) (*source.Neo4jRunner, *source.Client, error) {
	runner, err := source.NewNeo4jRunner(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := runner.Verify(ctx); err != nil {
		runner.Close(ctx)
		return nil, nil, err
	}
	client := source.NewClient(runner,
		source.WithEmbedder(newEmbedder(cfg)),
		source.WithVectorIndex(cfg.VectorIndex),
		source.WithLogger(logger),
	)
	return runner, client, nil
}

// mustConnect connects to Neo4j, exits with a configuration hint on error.
func mustConnect(ctx context.Context, cfg config.Config) (*source.Neo4jRunner, *source.Client) {
	runner, client, err := connect(ctx, cfg)
	if err != nil {
		if humanOutput {
			fmt.Fprintf(os.Stderr, "%v\n\n%s\n", err, config.HelpfulConfigMessage())
			os.Exit(ExitConfigError)
		}
		exitWithError(ExitConfigError, "%v", err)
	}
	return runner, client
}

// mustValidateOllama checks that Ollama is running and serves the configured model.
func mustValidateOllama(ctx context.Context, provider *embedding.Ollama) {
	status := provider.Status(ctx)
	if !status.Available {
		exitWithError(ExitConfigError, "Ollama is not running (%s)\n\nStart Ollama with 'ollama serve' or set ollama.url.", status.Error)
	}
	if !status.HasModel {
		exitWithError(ExitModelNotFound, "embedding model %q not found\n\nRun 'ollama pull %s' to download it.", provider.ModelName(), provider.ModelName())
	}
}

// exitForQueryError maps a query failure to an exit code and exits.
func exitForQueryError(err error) {
	switch {
	case errors.Is(err, source.ErrNotFound):
		exitWithError(ExitNotFound, "%v", err)
	case errors.Is(err, source.ErrInvalidIdentifier):
		exitWithError(ExitDataError, "%v", err)
	default:
		exitWithError(ExitError, "%v", err)
	}
}
