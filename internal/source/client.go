package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/embedding"
	"github.com/matsen/vulngraph/internal/graph"
)

// DefaultLimit bounds neighborhood queries.
const DefaultLimit = 100

// DefaultVectorIndex is the vector index over vulnerability descriptions.
const DefaultVectorIndex = "vulnerability_embeddings"

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidIdentifier is returned for labels, keys or relationship
	// types that cannot be safely spliced into a query.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrNoEmbedder is returned by Similar when no embedding provider is
	// configured.
	ErrNoEmbedder = errors.New("no embedding provider configured")
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Client runs the console's queries.
type Client struct {
	runner      Runner
	normalizer  *Normalizer
	embedder    embedding.Provider
	vectorIndex string
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEmbedder enables similarity search.
func WithEmbedder(p embedding.Provider) ClientOption {
	return func(c *Client) { c.embedder = p }
}

// WithVectorIndex sets the vector index Similar queries.
func WithVectorIndex(name string) ClientOption {
	return func(c *Client) { c.vectorIndex = name }
}

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *Normalizer) ClientOption {
	return func(c *Client) { c.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client over runner.
func NewClient(runner Runner, opts ...ClientOption) *Client {
	c := &Client{
		runner:      runner,
		normalizer:  NewNormalizer(DefaultDropProperties...),
		vectorIndex: DefaultVectorIndex,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query runs arbitrary Cypher and normalizes every node, relationship and
// path in the result.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) (graph.GraphData, error) {
	start := time.Now()
	result, err := c.runner.Run(ctx, cypher, params)
	if err != nil {
		return graph.GraphData{}, err
	}
	data := c.normalizer.Normalize(result.Records)
	c.logger.Debug("query finished",
		zap.Int("records", len(result.Records)),
		zap.Int("nodes", len(data.Nodes)),
		zap.Int("links", len(data.Links)),
		zap.Duration("elapsed", time.Since(start)))
	return data, nil
}

// Lookup finds nodes of label whose key property equals value.
func (c *Client) Lookup(ctx context.Context, label, key string, value any) (graph.GraphData, error) {
	if err := checkIdentifiers(label, key); err != nil {
		return graph.GraphData{}, err
	}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", label).WithProperties(map[string]interface{}{key: value})).
		Return("n").
		Build()
	if err != nil {
		return graph.GraphData{}, fmt.Errorf("building lookup query: %w", err)
	}
	data, err := c.Query(ctx, query, params)
	if err != nil {
		return graph.GraphData{}, err
	}
	if len(data.Nodes) == 0 {
		return graph.GraphData{}, fmt.Errorf("%s with %s=%v: %w", label, key, value, ErrNotFound)
	}
	return data, nil
}

// Related returns the node of label identified by key=value together with
// its outgoing relType relationships to nodes of targetLabel. An empty
// targetLabel matches any node.
func (c *Client) Related(ctx context.Context, label, key string, value any, relType, targetLabel string) (graph.GraphData, error) {
	if err := checkIdentifiers(label, key, relType); err != nil {
		return graph.GraphData{}, err
	}
	if targetLabel != "" {
		if err := checkIdentifiers(targetLabel); err != nil {
			return graph.GraphData{}, err
		}
	}
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("n", label).WithProperties(map[string]interface{}{key: value})).
		Match(
			gocypher.NRef("n"),
			gocypher.R("r", relType).To(),
			gocypher.N("m", targetLabel),
		).
		Return("n", "r", "m").
		Build()
	if err != nil {
		return graph.GraphData{}, fmt.Errorf("building related query: %w", err)
	}
	data, err := c.Query(ctx, query, params)
	if err != nil {
		return graph.GraphData{}, err
	}
	if len(data.Nodes) == 0 {
		return graph.GraphData{}, fmt.Errorf("%s -[%s]-> from %s=%v: %w", label, relType, key, value, ErrNotFound)
	}
	return data, nil
}

// Neighborhood returns a node and up to limit of its relationships in
// either direction.
func (c *Client) Neighborhood(ctx context.Context, label, key string, value any, limit int) (graph.GraphData, error) {
	if err := checkIdentifiers(label, key); err != nil {
		return graph.GraphData{}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := fmt.Sprintf("MATCH (n:`%s` {`%s`: $value}) OPTIONAL MATCH (n)-[r]-(m) RETURN n, r, m LIMIT $limit", label, key)
	data, err := c.Query(ctx, query, map[string]any{"value": value, "limit": int64(limit)})
	if err != nil {
		return graph.GraphData{}, err
	}
	if len(data.Nodes) == 0 {
		return graph.GraphData{}, fmt.Errorf("%s with %s=%v: %w", label, key, value, ErrNotFound)
	}
	return data, nil
}

const (
	schemaLabelsQuery = "MATCH (n) UNWIND labels(n) AS label RETURN label, count(*) AS count ORDER BY label"
	schemaLinksQuery  = "MATCH (a)-[r]->(b) RETURN labels(a)[0] AS source, type(r) AS type, labels(b)[0] AS target, count(r) AS count"
)

// SchemaOverview summarizes the database as one schema node per label,
// carrying a count property, and one link per observed
// (label, relationship type, label) triple.
func (c *Client) SchemaOverview(ctx context.Context) (graph.GraphData, error) {
	labels, err := c.runner.Run(ctx, schemaLabelsQuery, nil)
	if err != nil {
		return graph.GraphData{}, fmt.Errorf("reading labels: %w", err)
	}
	data := graph.GraphData{Nodes: []graph.GraphNode{}, Links: []graph.GraphLink{}}
	for _, rec := range labels.Records {
		label, _ := recordString(rec, "label")
		if label == "" {
			continue
		}
		count, _ := rec.Get("count")
		data.Nodes = append(data.Nodes, graph.GraphNode{
			ID:         graph.SchemaID(label),
			Label:      label,
			Properties: map[string]any{"count": count},
		})
	}

	links, err := c.runner.Run(ctx, schemaLinksQuery, nil)
	if err != nil {
		return graph.GraphData{}, fmt.Errorf("reading relationship types: %w", err)
	}
	for _, rec := range links.Records {
		source, ok1 := recordString(rec, "source")
		target, ok2 := recordString(rec, "target")
		relType, _ := recordString(rec, "type")
		if !ok1 || !ok2 {
			continue
		}
		data.Links = append(data.Links, graph.GraphLink{
			Source: graph.SchemaID(source),
			Target: graph.SchemaID(target),
			Type:   relType,
		})
	}
	return data, nil
}

// Match is one similarity search hit.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Similar embeds text and returns the k nearest nodes in the vector index
// with their scores, best first.
func (c *Client) Similar(ctx context.Context, text string, k int) (graph.GraphData, []Match, error) {
	if c.embedder == nil {
		return graph.GraphData{}, nil, ErrNoEmbedder
	}
	if k <= 0 {
		k = 10
	}
	emb, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return graph.GraphData{}, nil, fmt.Errorf("embedding search text: %w", err)
	}

	result, err := c.runner.Run(ctx,
		"CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score RETURN node, score ORDER BY score DESC",
		map[string]any{"index": c.vectorIndex, "k": int64(k), "embedding": emb.Float64s()})
	if err != nil {
		return graph.GraphData{}, nil, fmt.Errorf("querying vector index %s: %w", c.vectorIndex, err)
	}

	data := c.normalizer.Normalize(result.Records)
	matches := make([]Match, 0, len(result.Records))
	for _, rec := range result.Records {
		nodeVal, _ := rec.Get("node")
		node, ok := nodeVal.(neo4j.Node)
		if !ok {
			continue
		}
		score, _ := rec.Get("score")
		f, _ := score.(float64)
		matches = append(matches, Match{ID: node.ElementId, Score: f})
	}
	return data, matches, nil
}

func checkIdentifiers(names ...string) error {
	for _, name := range names {
		if !identifierRE.MatchString(name) {
			return fmt.Errorf("%q: %w", name, ErrInvalidIdentifier)
		}
	}
	return nil
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
