package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

// Catalog DDL. _kv_meta holds the single (name, version) row; _kv_stores
// holds one serialized StoreDef per materialized store plus the last key
// handed out by its generator.
const catalogSQL = `
CREATE TABLE IF NOT EXISTS _kv_meta (
    name TEXT PRIMARY KEY,
    version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS _kv_stores (
    name TEXT PRIMARY KEY,
    definition TEXT NOT NULL,
    generator INTEGER NOT NULL DEFAULT 0
);`

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// recordTable holds (k, kj, v): encoded key, key as JSON, record as JSON.
func recordTable(store string) string { return quoteIdent("kv:" + store) }

// indexTable holds one (idx, k, pk) row per index entry of a store.
func indexTable(store string) string { return quoteIdent("kx:" + store) }

func indexTablePKIndex(store string) string { return quoteIdent("kx:" + store + ":pk") }

// loadCatalog reads the persisted version and store definitions. A fresh
// database reports version 0 and no stores.
func loadCatalog(ctx context.Context, q querier) (int, map[string]types.StoreDef, error) {
	var version int
	err := q.QueryRowContext(ctx, `SELECT version FROM _kv_meta LIMIT 1`).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, nil, fmt.Errorf("reading version: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT name, definition FROM _kv_stores`)
	if err != nil {
		return 0, nil, fmt.Errorf("reading stores: %w", err)
	}
	defer rows.Close()

	stores := make(map[string]types.StoreDef)
	for rows.Next() {
		var name, definition string
		if err := rows.Scan(&name, &definition); err != nil {
			return 0, nil, fmt.Errorf("scanning store: %w", err)
		}
		var def types.StoreDef
		if err := json.Unmarshal([]byte(definition), &def); err != nil {
			return 0, nil, fmt.Errorf("decoding store %s: %w", name, err)
		}
		stores[name] = def
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("reading stores: %w", err)
	}
	return version, stores, nil
}

func saveVersion(ctx context.Context, q querier, name string, version int) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM _kv_meta`); err != nil {
		return fmt.Errorf("clearing version: %w", err)
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO _kv_meta (name, version) VALUES (?, ?)`, name, version); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	return nil
}

// createStore materializes a store's tables and registers its definition
// with a fresh key generator.
func createStore(ctx context.Context, q querier, def types.StoreDef) error {
	ddl := fmt.Sprintf(`
CREATE TABLE %s (
    k BLOB PRIMARY KEY,
    kj TEXT NOT NULL,
    v TEXT NOT NULL
) WITHOUT ROWID;
CREATE TABLE %s (
    idx TEXT NOT NULL,
    k BLOB NOT NULL,
    pk BLOB NOT NULL,
    PRIMARY KEY (idx, k, pk)
) WITHOUT ROWID;
CREATE INDEX %s ON %s (pk);`,
		recordTable(def.Name), indexTable(def.Name), indexTablePKIndex(def.Name), indexTable(def.Name))
	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating store %s: %w", def.Name, err)
	}

	definition, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding store %s: %w", def.Name, err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO _kv_stores (name, definition, generator) VALUES (?, ?, 0)
ON CONFLICT(name) DO UPDATE SET definition = excluded.definition, generator = 0`, def.Name, string(definition))
	if err != nil {
		return fmt.Errorf("registering store %s: %w", def.Name, err)
	}
	return nil
}

// dropStore removes a store's tables and catalog entry.
func dropStore(ctx context.Context, q querier, name string) error {
	ddl := fmt.Sprintf(`DROP TABLE IF EXISTS %s; DROP TABLE IF EXISTS %s;`, recordTable(name), indexTable(name))
	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("dropping store %s: %w", name, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM _kv_stores WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregistering store %s: %w", name, err)
	}
	return nil
}
