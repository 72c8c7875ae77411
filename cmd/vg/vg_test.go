package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/viewport"
)

func testGraph() graph.GraphData {
	return graph.GraphData{
		Nodes: []graph.GraphNode{
			{ID: "n1", Label: "Vulnerability", Properties: map[string]any{"cveID": "CVE-2021-44228", "cvss": 10.0}},
			{ID: "n2", Label: "Exploit", Properties: map[string]any{"eid": "E1"}},
			{ID: "n3", Label: "Vendor", Properties: map[string]any{"vendorName": "apache"}},
		},
		Links: []graph.GraphLink{
			{Source: "n2", Target: "n1", Type: "EXPLOITS"},
			{Source: "n1", Target: "n3", Type: "AFFECTS"},
		},
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"9.8", 9.8},
		{"true", true},
		{"false", false},
		{"T", "T"},
		{"inf", "inf"},
		{"CVE-2021-44228", "CVE-2021-44228"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseValue(tt.in); got != tt.want {
			t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.in, got, got, tt.want, tt.want)
		}
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"id=CVE-2021-1", "limit=25", "expr=a=b"})
	if err != nil {
		t.Fatalf("parseParams() error = %v", err)
	}
	want := map[string]any{"id": "CVE-2021-1", "limit": int64(25), "expr": "a=b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseParams() = %v, want %v", got, want)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseParams([]string{bad}); err == nil {
			t.Errorf("parseParams(%q) should fail", bad)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"neo4j.uri", "neo4j.uri"},
		{"neo4j-uri", "neo4j.uri"},
		{"NEO4J_URI", "neo4j.uri"},
		{"viewport-width", "viewport.width"},
		{"vector-index", "vector_index"},
		{"vector_index", "vector_index"},
		{"Serve.Addr", "serve.addr"},
	}
	for _, tt := range tests {
		if got := normalizeKey(tt.in); got != tt.want {
			t.Errorf("normalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"remote code execution", 10, "remote co…"},
		{"line\nbreak", 20, "line break"},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestWriteGraphFile_DataFormats(t *testing.T) {
	dir := t.TempDir()
	opts := imageOptions{Size: viewport.Size{Width: 400, Height: 300}}

	for _, name := range []string{"out.json", "out.jsonl", "out.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, report, err := writeGraphFile(path, testGraph(), opts)
			if err != nil {
				t.Fatalf("writeGraphFile() error = %v", err)
			}
			if f.IsImage() {
				t.Errorf("format %s reported as image", f)
			}
			if report.Nodes != 3 || report.Links != 2 {
				t.Errorf("report = %+v", report)
			}

			got, err := readGraph(path)
			if err != nil {
				t.Fatalf("readGraph() error = %v", err)
			}
			if len(got.Nodes) != 3 || len(got.Links) != 2 {
				t.Errorf("read back %d nodes, %d links", len(got.Nodes), len(got.Links))
			}
		})
	}
}

func TestWriteGraphFile_Images(t *testing.T) {
	dir := t.TempDir()
	opts := imageOptions{Size: viewport.Size{Width: 400, Height: 300}, Ticks: 50, Selected: "n1"}

	tests := []struct {
		name  string
		magic []byte
	}{
		{"graph.png", []byte("\x89PNG")},
		{"graph.svg", []byte("<?xml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			f, report, err := writeGraphFile(path, testGraph(), opts)
			if err != nil {
				t.Fatalf("writeGraphFile() error = %v", err)
			}
			if !f.IsImage() {
				t.Errorf("format %s not reported as image", f)
			}
			if report.Nodes != 3 {
				t.Errorf("report = %+v", report)
			}
			b, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(b, tt.magic) {
				t.Errorf("%s starts with %q", tt.name, b[:min(len(b), 8)])
			}
		})
	}
}

func TestWriteGraphFile_UnknownExtension(t *testing.T) {
	_, _, err := writeGraphFile(filepath.Join(t.TempDir(), "out.xlsx"), testGraph(), imageOptions{})
	if err == nil || !strings.Contains(err.Error(), "xlsx") {
		t.Errorf("writeGraphFile(.xlsx) error = %v", err)
	}
}

func TestSettledScene_SelectsNode(t *testing.T) {
	s, report := settledScene(testGraph(), imageOptions{
		Size:     viewport.Size{Width: 800, Height: 600},
		Selected: "n3",
	})
	if report.Nodes != 3 {
		t.Errorf("report = %+v", report)
	}
	n, ok := s.Selected()
	if !ok || n.ID != "n3" {
		t.Errorf("Selected() = %v, %v; want n3", n.ID, ok)
	}
	if s.Active() {
		t.Error("scene still active after settling")
	}
}
