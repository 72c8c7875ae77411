package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWithDefaults(t *testing.T) {
	got := Config{Neo4j: Neo4jConfig{User: "analyst"}}.WithDefaults()

	if got.Neo4j.URI != DefaultNeo4jURI {
		t.Errorf("URI = %q", got.Neo4j.URI)
	}
	if got.Neo4j.User != "analyst" {
		t.Errorf("User = %q, set values must survive", got.Neo4j.User)
	}
	if got.VectorIndex != DefaultVectorIndex {
		t.Errorf("VectorIndex = %q", got.VectorIndex)
	}
	if got.Serve.Addr != DefaultServeAddr {
		t.Errorf("Serve.Addr = %q", got.Serve.Addr)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvNeo4jURI:      "bolt://x:7687",
		EnvNeo4jDatabase: "cves",
		EnvOllamaURL:     "http://gpu:11434",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Config{Neo4j: Neo4jConfig{URI: "neo4j://old", User: "kept"}}
	cfg.ApplyEnv(lookup)

	want := Config{
		Neo4j:  Neo4jConfig{URI: "bolt://x:7687", User: "kept", Database: "cves"},
		Ollama: OllamaConfig{URL: "http://gpu:11434"},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("ApplyEnv() = %+v, want %+v", cfg, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty", Config{}, false},
		{"defaults", Config{}.WithDefaults(), false},
		{"bad ollama url", Config{Ollama: OllamaConfig{URL: "localhost 11434"}}, true},
		{"bad neo4j uri", Config{Neo4j: Neo4jConfig{URI: "::"}}, true},
		{"negative width", Config{Viewport: ViewportConfig{Width: -1}}, true},
		{"bad serve addr", Config{Serve: ServeConfig{Addr: "no-port"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestGetSet(t *testing.T) {
	var cfg Config

	if err := cfg.Set("neo4j.uri", " bolt://db:7687 "); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Set("viewport.width", "1024"); err != nil {
		t.Fatal(err)
	}

	if v, _ := cfg.Get("neo4j.uri"); v != "bolt://db:7687" {
		t.Errorf("Get(neo4j.uri) = %q", v)
	}
	if v, _ := cfg.Get("viewport.width"); v != "1024" {
		t.Errorf("Get(viewport.width) = %q", v)
	}
	if v, _ := cfg.Get("viewport.height"); v != "" {
		t.Errorf("unset int = %q, want empty", v)
	}

	if err := cfg.Set("viewport.height", "tall"); err == nil {
		t.Error("Set(viewport.height, tall) should fail")
	}
	if err := cfg.Set("nope", "x"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set(nope) error = %v, want ErrUnknownKey", err)
	}
	if _, err := cfg.Get("nope"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get(nope) error = %v, want ErrUnknownKey", err)
	}
}

func TestKeys_Sorted(t *testing.T) {
	keys := Keys()
	if len(keys) != 10 {
		t.Fatalf("len(Keys()) = %d, want 10", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Errorf("keys not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/abs/graph.json", "/abs/graph.json"},
		{"rel/graph.json", "rel/graph.json"},
		{"~/graphs/a.json", filepath.Join(home, "graphs/a.json")},
	}
	for _, tt := range tests {
		if got := ExpandPath(tt.in); got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
