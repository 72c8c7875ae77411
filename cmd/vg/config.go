package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/vulngraph/internal/config"
)

var configShowPath bool

func init() {
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "Print the config file path")
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set configuration values in ~/.config/vg/config.yml.

Usage:
  vg config                               # Show effective config
  vg config neo4j.uri                     # Get specific value
  vg config neo4j.uri bolt://db:7687      # Set value
  vg config --path                        # Show config file location

The effective config layers, from lowest to highest precedence: built-in
defaults, the config file, a .env file in the working directory, and the
NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD, NEO4J_DATABASE and OLLAMA_URL
environment variables.

Keys:
  ` + strings.Join(config.Keys(), "\n  "),
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configShowPath {
		path := config.GlobalConfigPath()
		if humanOutput {
			fmt.Println(path)
		} else {
			outputJSON(map[string]string{"path": path})
		}
		return nil
	}

	// No args: show effective config
	if len(args) == 0 {
		cfg := mustLoadConfig()
		if cfg.Neo4j.Password != "" {
			cfg.Neo4j.Password = "********"
		}
		if humanOutput {
			for _, key := range config.Keys() {
				v, _ := cfg.Get(key)
				fmt.Printf("%-16s %s\n", key+":", v)
			}
		} else {
			outputJSON(cfg)
		}
		return nil
	}

	key := normalizeKey(args[0])

	// One arg: get specific value
	if len(args) == 1 {
		cfg := mustLoadConfig()
		v, err := cfg.Get(key)
		if err != nil {
			exitWithError(ExitError, "%v\n\nValid keys: %s", err, strings.Join(config.Keys(), ", "))
		}
		if humanOutput {
			fmt.Println(v)
		} else {
			outputJSON(map[string]string{key: v})
		}
		return nil
	}

	// Two args: set value in the file, leaving env overrides out of it
	file, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	updated := *file
	if err := updated.Set(key, config.ExpandPath(args[1])); err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			exitWithError(ExitError, "%v\n\nValid keys: %s", err, strings.Join(config.Keys(), ", "))
		}
		exitWithError(ExitError, "%v", err)
	}
	if err := config.Save(&updated); err != nil {
		exitWithError(ExitConfigError, "saving config: %v", err)
	}

	value, _ := updated.Get(key)
	if humanOutput {
		fmt.Printf("Updated %s to %s\n", key, value)
	} else {
		outputJSON(UpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}

// normalizeKey accepts neo4j-uri, NEO4J_URI and neo4j.uri alike for the
// two-part keys.
func normalizeKey(key string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, ".") || key == "vector_index" || key == "vector-index" {
		return strings.ReplaceAll(key, "-", "_")
	}
	for _, sep := range []string{"_", "-"} {
		if prefix, rest, ok := strings.Cut(key, sep); ok {
			return prefix + "." + strings.ReplaceAll(rest, "-", "_")
		}
	}
	return key
}
