// Package config handles vg configuration: a global YAML file, an optional
// .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config represents configuration stored in ~/.config/vg/config.yml.
type Config struct {
	Neo4j       Neo4jConfig    `yaml:"neo4j,omitempty"`
	Ollama      OllamaConfig   `yaml:"ollama,omitempty"`
	VectorIndex string         `yaml:"vector_index,omitempty"`
	Viewport    ViewportConfig `yaml:"viewport,omitempty"`
	Serve       ServeConfig    `yaml:"serve,omitempty"`
}

// Neo4jConfig holds the graph database connection.
type Neo4jConfig struct {
	URI      string `yaml:"uri,omitempty" validate:"omitempty,uri"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

// OllamaConfig holds the embedding backend.
type OllamaConfig struct {
	URL   string `yaml:"url,omitempty" validate:"omitempty,url"`
	Model string `yaml:"model,omitempty"`
}

// ViewportConfig is the canvas size used when no host reports one.
type ViewportConfig struct {
	Width  int `yaml:"width,omitempty" validate:"gte=0,lte=16384"`
	Height int `yaml:"height,omitempty" validate:"gte=0,lte=16384"`
}

// ServeConfig holds console server settings.
type ServeConfig struct {
	Addr string `yaml:"addr,omitempty" validate:"omitempty,hostname_port"`
}

const (
	DefaultNeo4jURI       = "neo4j://localhost:7687"
	DefaultNeo4jUser      = "neo4j"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultOllamaModel    = "nomic-embed-text"
	DefaultVectorIndex    = "vulnerability_embeddings"
	DefaultViewportWidth  = 800
	DefaultViewportHeight = 600
	DefaultServeAddr      = "localhost:8080"
)

// Environment variables that override the config file.
const (
	EnvNeo4jURI      = "NEO4J_URI"
	EnvNeo4jUser     = "NEO4J_USER"
	EnvNeo4jPassword = "NEO4J_PASSWORD"
	EnvNeo4jDatabase = "NEO4J_DATABASE"
	EnvOllamaURL     = "OLLAMA_URL"
)

// ErrUnknownKey is returned by Get and Set for keys not in Keys.
var ErrUnknownKey = errors.New("unknown config key")

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// WithDefaults returns a copy with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Neo4j.URI == "" {
		c.Neo4j.URI = DefaultNeo4jURI
	}
	if c.Neo4j.User == "" {
		c.Neo4j.User = DefaultNeo4jUser
	}
	if c.Ollama.URL == "" {
		c.Ollama.URL = DefaultOllamaURL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = DefaultOllamaModel
	}
	if c.VectorIndex == "" {
		c.VectorIndex = DefaultVectorIndex
	}
	if c.Viewport.Width == 0 {
		c.Viewport.Width = DefaultViewportWidth
	}
	if c.Viewport.Height == 0 {
		c.Viewport.Height = DefaultViewportHeight
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = DefaultServeAddr
	}
	return c
}

// ApplyEnv overrides fields from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		EnvNeo4jURI:      &c.Neo4j.URI,
		EnvNeo4jUser:     &c.Neo4j.User,
		EnvNeo4jPassword: &c.Neo4j.Password,
		EnvNeo4jDatabase: &c.Neo4j.Database,
		EnvOllamaURL:     &c.Ollama.URL,
	} {
		if v, ok := lookup(env); ok && v != "" {
			*field = v
		}
	}
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s fails %q", ErrInvalid, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// fields maps dotted keys to their string or int fields.
func (c *Config) fields() map[string]any {
	return map[string]any{
		"neo4j.uri":       &c.Neo4j.URI,
		"neo4j.user":      &c.Neo4j.User,
		"neo4j.password":  &c.Neo4j.Password,
		"neo4j.database":  &c.Neo4j.Database,
		"ollama.url":      &c.Ollama.URL,
		"ollama.model":    &c.Ollama.Model,
		"vector_index":    &c.VectorIndex,
		"viewport.width":  &c.Viewport.Width,
		"viewport.height": &c.Viewport.Height,
		"serve.addr":      &c.Serve.Addr,
	}
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	var c Config
	keys := make([]string, 0, len(c.fields()))
	for k := range c.fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dotted key as a string.
func (c *Config) Get(key string) (string, error) {
	switch f := c.fields()[key].(type) {
	case *string:
		return *f, nil
	case *int:
		if *f == 0 {
			return "", nil
		}
		return strconv.Itoa(*f), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set assigns a dotted key from its string form.
func (c *Config) Set(key, value string) error {
	switch f := c.fields()[key].(type) {
	case *string:
		*f = strings.TrimSpace(value)
	case *int:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*f = n
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
