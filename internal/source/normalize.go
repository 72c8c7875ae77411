package source

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/matsen/vulngraph/internal/graph"
)

// DefaultDropProperties are node properties too large or too opaque to
// carry into the client, such as stored embedding vectors.
var DefaultDropProperties = []string{"embedding"}

// Normalizer converts query records into GraphData.
type Normalizer struct {
	drop map[string]bool
}

// NewNormalizer creates a normalizer that omits the named properties.
func NewNormalizer(dropProperties ...string) *Normalizer {
	drop := make(map[string]bool, len(dropProperties))
	for _, p := range dropProperties {
		drop[p] = true
	}
	return &Normalizer{drop: drop}
}

// Normalize collects every node and relationship found in records,
// including those nested in paths, lists and maps. Each element appears
// once, in first-seen order. Scalar columns are ignored.
func (n *Normalizer) Normalize(records []*neo4j.Record) graph.GraphData {
	c := collector{
		norm:      n,
		seenNodes: make(map[string]bool),
		seenLinks: make(map[string]bool),
		data:      graph.GraphData{Nodes: []graph.GraphNode{}, Links: []graph.GraphLink{}},
	}
	for _, rec := range records {
		for _, v := range rec.Values {
			c.visit(v)
		}
	}
	return c.data
}

// Normalize converts records with the default normalizer.
func Normalize(records []*neo4j.Record) graph.GraphData {
	return NewNormalizer(DefaultDropProperties...).Normalize(records)
}

type collector struct {
	norm      *Normalizer
	seenNodes map[string]bool
	seenLinks map[string]bool
	data      graph.GraphData
}

func (c *collector) visit(v any) {
	switch val := v.(type) {
	case neo4j.Node:
		c.addNode(val)
	case neo4j.Relationship:
		c.addLink(val)
	case neo4j.Path:
		for _, node := range val.Nodes {
			c.addNode(node)
		}
		for _, rel := range val.Relationships {
			c.addLink(rel)
		}
	case []any:
		for _, item := range val {
			c.visit(item)
		}
	case map[string]any:
		for _, item := range val {
			c.visit(item)
		}
	}
}

func (c *collector) addNode(node neo4j.Node) {
	if c.seenNodes[node.ElementId] {
		return
	}
	c.seenNodes[node.ElementId] = true
	c.data.Nodes = append(c.data.Nodes, graph.GraphNode{
		ID:         node.ElementId,
		Label:      primaryLabel(node.Labels),
		Properties: c.norm.properties(node.Props),
	})
}

func (c *collector) addLink(rel neo4j.Relationship) {
	if c.seenLinks[rel.ElementId] {
		return
	}
	c.seenLinks[rel.ElementId] = true
	c.data.Links = append(c.data.Links, graph.GraphLink{
		Source: rel.StartElementId,
		Target: rel.EndElementId,
		Type:   rel.Type,
	})
}

// primaryLabel picks the label that determines a node's display text,
// preferring one with a known display property.
func primaryLabel(labels []string) string {
	for _, l := range labels {
		if _, ok := graph.DisplayProperty(l); ok {
			return l
		}
	}
	if len(labels) > 0 {
		return labels[0]
	}
	return ""
}

type timer interface {
	Time() time.Time
}

func (n *Normalizer) properties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if n.drop[k] {
			continue
		}
		out[k] = plainValue(v)
	}
	return out
}

// plainValue converts driver-specific values into JSON friendly ones.
func plainValue(v any) any {
	switch val := v.(type) {
	case timer:
		return val.Time()
	case neo4j.Duration:
		return val.String()
	case neo4j.Point2D:
		return val.String()
	case neo4j.Point3D:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	default:
		return v
	}
}
