package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/layout"
	"github.com/matsen/vulngraph/internal/render"
	"github.com/matsen/vulngraph/internal/scene"
	"github.com/matsen/vulngraph/internal/viewport"
)

func testGraph() graph.GraphData {
	return graph.GraphData{
		Nodes: []graph.GraphNode{
			{ID: "n1", Label: "Vulnerability", Properties: map[string]any{"cveID": "CVE-2021-1", "cvss": 9.8}},
			{ID: "n2", Label: "Exploit", Properties: map[string]any{"eid": "E1"}},
		},
		Links: []graph.GraphLink{{Source: "n1", Target: "n2", Type: "EXPLOITS"}},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "json", want: FormatJSON},
		{input: " CSV ", want: FormatCSV},
		{input: "sqlite", want: FormatSQLite},
		{input: "svg", want: FormatSVG},
		{input: "pickle", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.input, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{path: "out.json", want: FormatJSON},
		{path: "out.NDJSON", want: FormatJSONL},
		{path: "/tmp/graph.db", want: FormatSQLite},
		{path: "view.png", want: FormatPNG},
	}
	for _, tt := range tests {
		if got, err := FormatFromPath(tt.path); err != nil || got != tt.want {
			t.Errorf("FormatFromPath(%q) = %q, %v; want %q", tt.path, got, err, tt.want)
		}
	}
	if _, err := FormatFromPath("notes.txt"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("FormatFromPath(notes.txt) error = %v", err)
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, testGraph()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if strings.Join(rows[0], ",") != "kind,id,label,display,source,target,type,properties" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "node" || rows[1][3] != "CVE-2021-1" || rows[1][7] != `{"cveID":"CVE-2021-1","cvss":9.8}` {
		t.Errorf("node row = %v", rows[1])
	}
	if rows[3][0] != "link" || rows[3][4] != "n1" || rows[3][6] != "EXPLOITS" {
		t.Errorf("link row = %v", rows[3])
	}
}

func TestWrite_RejectsFileOnlyFormats(t *testing.T) {
	for _, f := range []Format{FormatSQLite, FormatPNG} {
		if err := Write(&bytes.Buffer{}, f, testGraph()); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("Write(%s) error = %v, want ErrUnknownFormat", f, err)
		}
	}
}

func TestWriteFile_ReadFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"graph.json", "graph.jsonl", "graph.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			f, err := FormatFromPath(path)
			if err != nil {
				t.Fatalf("FormatFromPath() error = %v", err)
			}
			// Writing twice must not accumulate rows.
			for i := 0; i < 2; i++ {
				if err := WriteFile(path, f, testGraph()); err != nil {
					t.Fatalf("WriteFile() error = %v", err)
				}
			}
			got, err := ReadFile(path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if len(got.Nodes) != 2 || len(got.Links) != 1 {
				t.Errorf("got %d nodes, %d links", len(got.Nodes), len(got.Links))
			}
			if got.Nodes[0].Properties["cveID"] != "CVE-2021-1" {
				t.Errorf("properties = %v", got.Nodes[0].Properties)
			}
		})
	}
}

func TestWriteImage(t *testing.T) {
	fonts, err := render.NewFonts()
	if err != nil {
		t.Fatalf("NewFonts() error = %v", err)
	}
	s := scene.New(viewport.Size{Width: 320, Height: 240})
	s.SetData(testGraph())
	s.Settle(layout.DefaultSettleTicks)

	var png bytes.Buffer
	if err := WriteImage(&png, FormatPNG, s, fonts); err != nil {
		t.Fatalf("WriteImage(png) error = %v", err)
	}
	if !bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")) {
		t.Error("PNG output lacks signature")
	}

	var svg bytes.Buffer
	if err := WriteImage(&svg, FormatSVG, s, fonts); err != nil {
		t.Fatalf("WriteImage(svg) error = %v", err)
	}
	if !strings.Contains(svg.String(), `width="320"`) || !strings.Contains(svg.String(), "EXPLOITS") {
		t.Errorf("SVG output missing size or label")
	}

	if err := WriteImage(&bytes.Buffer{}, FormatCSV, s, fonts); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("WriteImage(csv) error = %v", err)
	}
}
