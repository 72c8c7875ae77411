// Package storage persists result sets as JSONL streams and SQLite
// snapshots.
package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/matsen/vulngraph/internal/graph"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Record kinds in a JSONL stream.
const (
	KindNode = "node"
	KindLink = "link"
)

// jsonlRecord is one line of a JSONL stream: a node or a link.
type jsonlRecord struct {
	Kind       string         `json:"kind"`
	ID         string         `json:"id,omitempty"`
	Label      string         `json:"label,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Source     string         `json:"source,omitempty"`
	Target     string         `json:"target,omitempty"`
	Type       string         `json:"type,omitempty"`
}

// WriteJSONL writes every node and then every link, one JSON object per line.
func WriteJSONL(w io.Writer, data graph.GraphData) error {
	enc := json.NewEncoder(w)
	for i, n := range data.Nodes {
		rec := jsonlRecord{Kind: KindNode, ID: n.ID, Label: n.Label, Properties: n.Properties}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding node %d: %w", i, err)
		}
	}
	for i, l := range data.Links {
		rec := jsonlRecord{Kind: KindLink, Source: l.Source, Target: l.Target, Type: l.Type}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding link %d: %w", i, err)
		}
	}
	return nil
}

// ReadJSONL reads a stream written by WriteJSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) (graph.GraphData, error) {
	data := graph.GraphData{Nodes: []graph.GraphNode{}, Links: []graph.GraphLink{}}
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec jsonlRecord
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return data, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		graph.NormalizeNumbers(rec.Properties)
		switch rec.Kind {
		case KindNode:
			data.Nodes = append(data.Nodes, graph.GraphNode{ID: rec.ID, Label: rec.Label, Properties: rec.Properties})
		case KindLink:
			data.Links = append(data.Links, graph.GraphLink{Source: rec.Source, Target: rec.Target, Type: rec.Type})
		default:
			return data, fmt.Errorf("line %d: unknown record kind %q", lineNum, rec.Kind)
		}
	}
	if err := scanner.Err(); err != nil {
		return data, fmt.Errorf("reading JSONL: %w", err)
	}
	return data, nil
}
