// Package export writes result sets and rendered views to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/render"
	"github.com/matsen/vulngraph/internal/scene"
	"github.com/matsen/vulngraph/internal/storage"
)

// Format is an export file format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatJSONL  Format = "jsonl"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
	FormatPNG    Format = "png"
	FormatSVG    Format = "svg"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatJSONL, FormatCSV, FormatSQLite, FormatPNG, FormatSVG}

// ErrUnknownFormat is returned for unsupported format names or extensions.
var ErrUnknownFormat = errors.New("unknown export format")

var extensions = map[string]Format{
	".json":    FormatJSON,
	".jsonl":   FormatJSONL,
	".ndjson":  FormatJSONL,
	".csv":     FormatCSV,
	".db":      FormatSQLite,
	".sqlite":  FormatSQLite,
	".sqlite3": FormatSQLite,
	".png":     FormatPNG,
	".svg":     FormatSVG,
}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownFormat)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("extension %q: %w", ext, ErrUnknownFormat)
}

// IsImage reports whether f is a rendered view rather than data.
func (f Format) IsImage() bool {
	return f == FormatPNG || f == FormatSVG
}

// Write encodes data to w. SQLite and image formats need a file or a
// scene and are rejected here.
func Write(w io.Writer, f Format, data graph.GraphData) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatJSONL:
		return storage.WriteJSONL(w, data)
	case FormatCSV:
		return writeCSV(w, data)
	default:
		return fmt.Errorf("format %s cannot be streamed: %w", f, ErrUnknownFormat)
	}
}

// WriteFile writes data to path in format f.
func WriteFile(path string, f Format, data graph.GraphData) error {
	if f == FormatSQLite {
		// A snapshot always starts from an empty database.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing old snapshot: %w", err)
		}
		db, err := storage.OpenDB(path)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.WriteGraph(data)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(out, f, data); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ReadFile loads a result set previously written by WriteFile.
func ReadFile(path string) (graph.GraphData, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return graph.GraphData{}, err
	}
	switch f {
	case FormatJSON:
		return graph.ReadFile(path)
	case FormatJSONL:
		in, err := os.Open(path)
		if err != nil {
			return graph.GraphData{}, fmt.Errorf("opening %s: %w", path, err)
		}
		defer in.Close()
		return storage.ReadJSONL(in)
	case FormatSQLite:
		db, err := storage.OpenDB(path)
		if err != nil {
			return graph.GraphData{}, err
		}
		defer db.Close()
		return db.ReadGraph()
	default:
		return graph.GraphData{}, fmt.Errorf("format %s cannot be read back: %w", f, ErrUnknownFormat)
	}
}

// WriteImage renders the scene's current frame to w as PNG or SVG.
func WriteImage(w io.Writer, f Format, s *scene.Scene, fonts *render.Fonts) error {
	size := s.Size()
	width, height := int(size.Width), int(size.Height)
	switch f {
	case FormatPNG:
		c := render.NewPNGCanvas(width, height, fonts)
		s.Draw(c)
		return c.EncodePNG(w)
	case FormatSVG:
		c := render.NewSVGCanvas(w, width, height, fonts)
		s.Draw(c)
		c.End()
		return nil
	default:
		return fmt.Errorf("format %s is not an image: %w", f, ErrUnknownFormat)
	}
}

// csvHeader is the column layout of a CSV export. Nodes and links share
// one table, distinguished by the kind column.
var csvHeader = []string{"kind", "id", "label", "display", "source", "target", "type", "properties"}

func writeCSV(w io.Writer, data graph.GraphData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, n := range data.Nodes {
		props, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("encoding properties for %s: %w", n.ID, err)
		}
		row := []string{storage.KindNode, n.ID, n.Label, graph.DisplayText(n), "", "", "", string(props)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing node %s: %w", n.ID, err)
		}
	}
	for _, l := range data.Links {
		row := []string{storage.KindLink, "", "", "", l.Source, l.Target, l.Type, ""}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing link %s->%s: %w", l.Source, l.Target, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
