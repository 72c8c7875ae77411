// Package graph defines the node/link result sets shown by the console.
package graph

import "strings"

// SchemaPrefix marks synthetic type-level nodes (e.g. "schema_Vulnerability").
const SchemaPrefix = "schema_"

// GraphData is a complete result set. Order carries no meaning beyond
// iteration determinism.
type GraphData struct {
	Nodes []GraphNode `json:"nodes" validate:"dive"`
	Links []GraphLink `json:"links"`
}

// GraphNode is a single node as returned by the query layer.
type GraphNode struct {
	ID         string         `json:"id" validate:"required"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphLink is a directed relationship between two node ids. Endpoints are
// not validated on decode; Sanitize drops links whose endpoints are empty or
// unknown.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type,omitempty"`
}

// IsEmpty returns true if the graph has no nodes.
func (g *GraphData) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// IsSchema reports whether the node is a type-level meta node.
func (n GraphNode) IsSchema() bool {
	return IsSchemaID(n.ID)
}

// IsSchemaID reports whether id carries the schema marker.
func IsSchemaID(id string) bool {
	return strings.HasPrefix(id, SchemaPrefix)
}

// SchemaID returns the meta node id for a node type.
func SchemaID(nodeType string) string {
	return SchemaPrefix + nodeType
}

// SchemaType strips the schema marker from a meta node id.
func SchemaType(id string) string {
	return strings.TrimPrefix(id, SchemaPrefix)
}
