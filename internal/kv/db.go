package kv

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

// DB is an open database. It is safe for concurrent use; transactions are
// serialized over a single SQLite connection.
type DB struct {
	mu      sync.RWMutex
	conn    *sql.DB
	path    string
	name    string
	version int
	stores  map[string]types.StoreDef
	log     logrus.FieldLogger
}

// Option configures Open.
type Option func(*DB)

// WithLogger sets the logger for migration and transaction events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(db *DB) {
		if l != nil {
			db.log = l
		}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Open opens (creating if needed) the database <dir>/<schema.Name>.db and
// brings it to schema.Version. Version 0 connects at the persisted version
// without migrating. A version below the persisted one fails with
// ErrVersionDowngrade; a higher one runs the migration and fails with an error
// wrapping ErrMigrationFailed if any step fails, leaving the previous version
// in place.
func Open(ctx context.Context, dir string, schema types.Schema, opts ...Option) (*DB, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db := &DB{
		path: filepath.Join(dir, schema.Name+".db"),
		name: schema.Name,
		log:  discardLogger(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.log = db.log.WithField("database", schema.Name)

	conn, err := sql.Open("sqlite", db.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", db.path, err)
	}
	conn.SetMaxOpenConns(1)
	db.conn = conn

	if _, err := conn.ExecContext(ctx, catalogSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	version, stores, err := loadCatalog(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	switch {
	case schema.Version == 0 || schema.Version == version:
		db.version = version
		db.stores = stores
	case schema.Version < version:
		conn.Close()
		return nil, fmt.Errorf("opening %s at version %d, persisted %d: %w",
			schema.Name, schema.Version, version, types.ErrVersionDowngrade)
	default:
		if err := db.migrate(ctx, version, stores, schema); err != nil {
			conn.Close()
			return nil, err
		}
	}

	db.log.WithField("version", db.version).Debug("database open")
	return db, nil
}

// Connect opens an existing database at whatever version it was left.
func Connect(ctx context.Context, dir, name string, opts ...Option) (*DB, error) {
	return Open(ctx, dir, types.Schema{Name: name}, opts...)
}

// Close releases the connection. Further calls are no-ops.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn == nil {
		return nil
	}
	err := db.conn.Close()
	db.conn = nil
	return err
}

// Name returns the database name.
func (db *DB) Name() string { return db.name }

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Version returns the persisted schema version.
func (db *DB) Version() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.version
}

// Schema returns the persisted schema with stores sorted by name.
func (db *DB) Schema() types.Schema {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s := types.Schema{Name: db.name, Version: db.version}
	for _, def := range db.stores {
		s.Stores = append(s.Stores, def)
	}
	sort.Slice(s.Stores, func(i, j int) bool { return s.Stores[i].Name < s.Stores[j].Name })
	return s
}

// StoreNames lists the materialized stores, sorted.
func (db *DB) StoreNames() []string {
	return db.Schema().StoreNames()
}
