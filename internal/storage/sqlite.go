package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/matsen/vulngraph/internal/graph"
)

// DB is a SQLite snapshot of one result set.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a snapshot database at path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			display TEXT NOT NULL,
			properties_json TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS links (
			position INTEGER PRIMARY KEY,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			type TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);
		CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);
		CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);

		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			id,
			label,
			display
		);
	`
	_, err := db.Exec(schema)
	return err
}

// WriteGraph replaces the stored result set with data in one transaction.
func (d *DB) WriteGraph(data graph.GraphData) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "links", "nodes_fts"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s table: %w", table, err)
		}
	}

	nodeStmt, err := tx.Prepare(`
		INSERT INTO nodes (id, position, label, display, properties_json)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing nodes insert: %w", err)
	}
	defer nodeStmt.Close()

	ftsStmt, err := tx.Prepare(`INSERT INTO nodes_fts (id, label, display) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for i, n := range data.Nodes {
		props, err := json.Marshal(n.Properties)
		if err != nil {
			return fmt.Errorf("encoding properties for %s: %w", n.ID, err)
		}
		display := graph.DisplayText(n)
		if _, err := nodeStmt.Exec(n.ID, i, n.Label, display, string(props)); err != nil {
			return fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
		if _, err := ftsStmt.Exec(n.ID, n.Label, display); err != nil {
			return fmt.Errorf("inserting fts for %s: %w", n.ID, err)
		}
	}

	linkStmt, err := tx.Prepare(`
		INSERT INTO links (position, source_id, target_id, type)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing links insert: %w", err)
	}
	defer linkStmt.Close()

	for i, l := range data.Links {
		if _, err := linkStmt.Exec(i, l.Source, l.Target, l.Type); err != nil {
			return fmt.Errorf("inserting link %s->%s: %w", l.Source, l.Target, err)
		}
	}

	return tx.Commit()
}

// ReadGraph returns the stored result set in its original order.
func (d *DB) ReadGraph() (graph.GraphData, error) {
	data := graph.GraphData{Nodes: []graph.GraphNode{}, Links: []graph.GraphLink{}}

	rows, err := d.db.Query(`SELECT id, label, properties_json FROM nodes ORDER BY position`)
	if err != nil {
		return data, fmt.Errorf("querying nodes: %w", err)
	}
	nodes, err := scanNodes(rows)
	if err != nil {
		return data, err
	}
	data.Nodes = nodes

	linkRows, err := d.db.Query(`SELECT source_id, target_id, type FROM links ORDER BY position`)
	if err != nil {
		return data, fmt.Errorf("querying links: %w", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var l graph.GraphLink
		if err := linkRows.Scan(&l.Source, &l.Target, &l.Type); err != nil {
			return data, fmt.Errorf("scanning link: %w", err)
		}
		data.Links = append(data.Links, l)
	}
	return data, linkRows.Err()
}

// Search finds stored nodes whose id, label or display text matches query.
func (d *DB) Search(query string, limit int) ([]graph.GraphNode, error) {
	ftsQuery := prepareFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}
	rows, err := d.db.Query(`
		SELECT id, label, properties_json
		FROM nodes
		WHERE id IN (SELECT id FROM nodes_fts WHERE nodes_fts MATCH ?)
		ORDER BY position
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	return scanNodes(rows)
}

// Count returns the number of stored nodes and links.
func (d *DB) Count() (nodes, links int, err error) {
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&nodes); err != nil {
		return 0, 0, fmt.Errorf("counting nodes: %w", err)
	}
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&links); err != nil {
		return 0, 0, fmt.Errorf("counting links: %w", err)
	}
	return nodes, links, nil
}

func scanNodes(rows *sql.Rows) ([]graph.GraphNode, error) {
	defer rows.Close()
	var nodes []graph.GraphNode
	for rows.Next() {
		var n graph.GraphNode
		var props string
		if err := rows.Scan(&n.ID, &n.Label, &props); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		dec := json.NewDecoder(strings.NewReader(props))
		dec.UseNumber()
		if err := dec.Decode(&n.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties for %s: %w", n.ID, err)
		}
		graph.NormalizeNumbers(n.Properties)
		nodes = append(nodes, n)
	}
	if nodes == nil {
		nodes = []graph.GraphNode{}
	}
	return nodes, rows.Err()
}

// prepareFTSQuery quotes queries containing FTS5 operators so identifiers
// such as CVE-2021-44228 match literally.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}
	if strings.ContainsAny(query, "\"*+-:(){}[]^~.") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}
	return query
}
