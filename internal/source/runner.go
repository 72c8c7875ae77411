// Package source runs graph queries against Neo4j and normalizes the
// results into graph.GraphData.
package source

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Runner executes a Cypher query and returns fully buffered records.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// Neo4jRunner runs queries through the official driver.
type Neo4jRunner struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// NewNeo4jRunner creates a driver for uri with basic authentication.
func NewNeo4jRunner(uri, username, password, database string) (*Neo4jRunner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}
	return &Neo4jRunner{Driver: driver, Database: database}, nil
}

// Verify checks connectivity to the server.
func (r *Neo4jRunner) Verify(ctx context.Context) error {
	if err := r.Driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("connecting to neo4j: %w", err)
	}
	return nil
}

// Close releases the driver's connections.
func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.Driver.Close(ctx)
}

// Run implements Runner.
func (r *Neo4jRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if r.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(r.Database))
	}
	result, err := neo4j.ExecuteQuery(ctx, r.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("executing neo4j query: %w", err)
	}
	return result, nil
}
