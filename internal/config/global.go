package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "vg"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *Config

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/vg/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file as written, without
// defaults or environment overrides.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*Config, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &Config{}, nil
	}

	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	globalConfigCache = cfg
	return cfg, nil
}

// ReadFile parses a config file. A missing file yields an empty config.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Load returns the effective configuration: the global file, then .env in
// the working directory, then environment variables, then defaults.
func Load() (Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	file, err := LoadGlobalConfig()
	if err != nil {
		return Config{}, err
	}
	cfg := *file
	cfg.ApplyEnv(os.LookupEnv)
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to the global config path, creating its directory, and
// refreshes the cache.
func Save(cfg *Config) error {
	path := GlobalConfigPath()
	if path == "" {
		return errors.New("cannot determine config directory")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := WriteFile(path, cfg); err != nil {
		return err
	}
	globalConfigCache = cfg
	return nil
}

// WriteFile writes cfg as YAML. The file holds credentials, so it is
// created owner-readable only.
func WriteFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// HelpfulConfigMessage explains how to point vg at a database.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`Cannot reach the graph database.

Tip: set the connection in %s:
  vg config set neo4j.uri neo4j://host:7687
  vg config set neo4j.user neo4j

or export %s, %s and %s (a .env file in the working directory works too).`,
		configPath, EnvNeo4jURI, EnvNeo4jUser, EnvNeo4jPassword)
}
