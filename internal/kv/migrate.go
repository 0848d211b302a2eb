package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

type storedRecord struct {
	key   json.RawMessage
	value json.RawMessage
}

// migrate brings the database from version `from` to schema.Version inside a
// single SQLite transaction:
//
//  1. stores new in schema are created empty;
//  2. stores present before and after are read, dropped, recreated with the
//     new definition, passed through OnUpgrade and reinserted with add
//     semantics, which rebuilds exactly the declared indices;
//  3. stores absent from schema are dropped;
//  4. the catalog and version are written.
//
// Any failure rolls everything back and the returned error wraps
// ErrMigrationFailed.
func (db *DB) migrate(ctx context.Context, from int, old map[string]types.StoreDef, schema types.Schema) error {
	log := db.log.WithFields(logrus.Fields{"from": from, "to": schema.Version})
	log.Info("migrating schema")

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: beginning: %w", types.ErrMigrationFailed, err)
	}
	defer sqlTx.Rollback()

	scope := make(map[string]types.StoreDef, len(schema.Stores))
	for _, def := range schema.Stores {
		scope[def.Name] = def
	}
	tx := &Tx{db: db, sqlTx: sqlTx, ctx: ctx, mode: ReadWrite, scope: scope}

	for _, def := range schema.Stores {
		if _, existed := old[def.Name]; !existed {
			if err := createStore(ctx, sqlTx, def); err != nil {
				return fmt.Errorf("%w: %w", types.ErrMigrationFailed, err)
			}
			log.WithField("store", def.Name).Info("created store")
			continue
		}

		n, err := tx.rebuild(def)
		if err != nil {
			return fmt.Errorf("%w: store %s: %w", types.ErrMigrationFailed, def.Name, err)
		}
		log.WithFields(logrus.Fields{"store": def.Name, "records": n}).Info("migrated store")
	}

	var dropped []string
	for name := range old {
		if _, kept := scope[name]; !kept {
			dropped = append(dropped, name)
		}
	}
	sort.Strings(dropped)
	for _, name := range dropped {
		if err := dropStore(ctx, sqlTx, name); err != nil {
			return fmt.Errorf("%w: %w", types.ErrMigrationFailed, err)
		}
		log.WithField("store", name).Info("dropped store")
	}

	if err := saveVersion(ctx, sqlTx, schema.Name, schema.Version); err != nil {
		return fmt.Errorf("%w: %w", types.ErrMigrationFailed, err)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %w", types.ErrMigrationFailed, err)
	}

	db.version = schema.Version
	db.stores = scope
	log.Info("schema migrated")
	return nil
}

// rebuild recreates an existing store under def and reinserts its records.
// Out-of-line keys are carried over by position, so an OnUpgrade that
// changes the record count is only allowed when def can generate keys.
func (t *Tx) rebuild(def types.StoreDef) (int, error) {
	records, err := t.readAll(def.Name)
	if err != nil {
		return 0, err
	}
	if err := dropStore(t.ctx, t.sqlTx, def.Name); err != nil {
		return 0, err
	}
	if err := createStore(t.ctx, t.sqlTx, def); err != nil {
		return 0, err
	}

	values := make([]json.RawMessage, len(records))
	for i, r := range records {
		values[i] = r.value
	}
	if def.OnUpgrade != nil {
		if values, err = def.OnUpgrade(values); err != nil {
			return 0, fmt.Errorf("upgrading records: %w", err)
		}
	}

	keepKeys := !def.InLine() && len(values) == len(records)
	if !def.InLine() && !keepKeys && !def.AutoIncrement {
		return 0, fmt.Errorf("upgrade changed the record count of out-of-line store from %d to %d", len(records), len(values))
	}

	for i, v := range values {
		var key any
		if keepKeys {
			if key, err = decodeDocument(records[i].key); err != nil {
				return 0, err
			}
		}
		if _, err := t.write(def, v, key, false); err != nil {
			return 0, fmt.Errorf("reinserting record %d: %w", i, err)
		}
	}
	return len(values), nil
}

func (t *Tx) readAll(store string) ([]storedRecord, error) {
	rows, err := t.sqlTx.QueryContext(t.ctx, `SELECT kj, v FROM `+recordTable(store)+` ORDER BY k`)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", store, err)
	}
	defer rows.Close()

	var out []storedRecord
	for rows.Next() {
		var kj, v string
		if err := rows.Scan(&kj, &v); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", store, err)
		}
		out = append(out, storedRecord{key: json.RawMessage(kj), value: json.RawMessage(v)})
	}
	return out, rows.Err()
}
