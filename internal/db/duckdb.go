// Package db opens the DuckDB records database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	DataDir string // empty for an in-memory database
	DBName  string
}

// schema holds the ecology records the portal widgets list and count.
const schema = `
CREATE TABLE IF NOT EXISTS ecology (
	gid       BIGINT,
	globalid  VARCHAR PRIMARY KEY,
	region    VARCHAR,
	district  VARCHAR,
	mahalla   VARCHAR,
	year      VARCHAR,
	status    VARCHAR,
	tur       VARCHAR,
	maydon    DOUBLE,
	latitude  DOUBLE,
	longitude DOUBLE
)`

// Open opens a DuckDB database and applies the schema.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(context.Background(), conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, conn *sql.DB) error {
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
