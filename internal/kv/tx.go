package kv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

// Mode is the access mode of a transaction.
type Mode int

// Transaction modes.
const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Tx is a transaction over a fixed set of stores. A failed write aborts it;
// after Commit, Abort or a failed write every call returns
// ErrTransactionInactive. A Tx is not safe for concurrent use.
type Tx struct {
	db    *DB
	sqlTx *sql.Tx
	ctx   context.Context
	mode  Mode
	scope map[string]types.StoreDef
	done  bool
}

// Begin starts a transaction scoped to stores. Every store must exist.
func (db *DB) Begin(ctx context.Context, mode Mode, stores ...string) (*Tx, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.conn == nil {
		return nil, types.ErrDatabaseClosed
	}
	scope := make(map[string]types.StoreDef, len(stores))
	for _, name := range stores {
		def, ok := db.stores[name]
		if !ok {
			return nil, fmt.Errorf("store %s: %w", name, types.ErrStoreNotFound)
		}
		scope[name] = def
	}

	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{db: db, sqlTx: sqlTx, ctx: ctx, mode: mode, scope: scope}, nil
}

// Update runs fn in a read-write transaction over stores, committing when fn
// returns nil and aborting otherwise.
func (db *DB) Update(ctx context.Context, stores []string, fn func(tx *Tx) error) error {
	return db.run(ctx, ReadWrite, stores, fn)
}

// View runs fn in a read-only transaction over stores.
func (db *DB) View(ctx context.Context, stores []string, fn func(tx *Tx) error) error {
	return db.run(ctx, ReadOnly, stores, fn)
}

func (db *DB) run(ctx context.Context, mode Mode, stores []string, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx, mode, stores...)
	if err != nil {
		return err
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Mode returns the transaction's access mode.
func (t *Tx) Mode() Mode { return t.mode }

// Commit makes every write of the transaction visible.
func (t *Tx) Commit() error {
	if t.done {
		return types.ErrTransactionInactive
	}
	t.done = true
	if err := t.sqlTx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Abort discards every write of the transaction.
func (t *Tx) Abort() error {
	if t.done {
		return types.ErrTransactionInactive
	}
	t.done = true
	if err := t.sqlTx.Rollback(); err != nil {
		return fmt.Errorf("aborting transaction: %w", err)
	}
	return nil
}

// release rolls back a transaction that was neither committed nor aborted.
func (t *Tx) release() {
	if !t.done {
		t.done = true
		_ = t.sqlTx.Rollback()
	}
}

// fail aborts the transaction after a failed write and returns err.
func (t *Tx) fail(err error) error {
	if !t.done {
		t.db.log.WithError(err).Debug("transaction aborted")
		t.release()
	}
	return err
}

func (t *Tx) store(name string) (types.StoreDef, error) {
	if t.done {
		return types.StoreDef{}, types.ErrTransactionInactive
	}
	def, ok := t.scope[name]
	if !ok {
		return types.StoreDef{}, fmt.Errorf("store %s: %w", name, types.ErrStoreNotInScope)
	}
	return def, nil
}

func (t *Tx) writable(name string) (types.StoreDef, error) {
	def, err := t.store(name)
	if err != nil {
		return def, err
	}
	if t.mode != ReadWrite {
		return def, fmt.Errorf("store %s: %w", name, types.ErrReadOnly)
	}
	return def, nil
}

func (t *Tx) index(store, index string) (types.IndexDef, error) {
	def, err := t.store(store)
	if err != nil {
		return types.IndexDef{}, err
	}
	idx, ok := def.Index(index)
	if !ok {
		return types.IndexDef{}, fmt.Errorf("store %s index %s: %w", store, index, types.ErrIndexNotFound)
	}
	return idx, nil
}

// Get returns the record stored under key, or ErrNotFound.
func (t *Tx) Get(store string, key any) (json.RawMessage, error) {
	if _, err := t.store(store); err != nil {
		return nil, err
	}
	k, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	var v string
	err = t.sqlTx.QueryRowContext(t.ctx, `SELECT v FROM `+recordTable(store)+` WHERE k = ?`, k).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %s key %v: %w", store, key, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting from %s: %w", store, err)
	}
	return json.RawMessage(v), nil
}

// GetAll returns the records whose keys match q, in key order.
func (t *Tx) GetAll(store string, q Query) ([]json.RawMessage, error) {
	if _, err := t.store(store); err != nil {
		return nil, err
	}
	cond, args, err := q.clause("k")
	if err != nil {
		return nil, err
	}
	return t.queryValues(store, `SELECT v FROM `+recordTable(store)+` WHERE `+cond+` ORDER BY k`, args...)
}

// GetByIndex returns the first record whose index key matches q, or
// ErrNotFound.
func (t *Tx) GetByIndex(store, index string, q Query) (json.RawMessage, error) {
	recs, err := t.byIndex(store, index, q, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("store %s index %s: %w", store, index, types.ErrNotFound)
	}
	return recs[0], nil
}

// GetAllByIndex returns every record whose index key matches q, ordered by
// index key and then primary key.
func (t *Tx) GetAllByIndex(store, index string, q Query) ([]json.RawMessage, error) {
	return t.byIndex(store, index, q, 0)
}

func (t *Tx) byIndex(store, index string, q Query, limit int) ([]json.RawMessage, error) {
	if _, err := t.index(store, index); err != nil {
		return nil, err
	}
	cond, args, err := q.clause("x.k")
	if err != nil {
		return nil, err
	}
	query := `SELECT r.v FROM ` + indexTable(store) + ` x JOIN ` + recordTable(store) + ` r ON r.k = x.pk
WHERE x.idx = ? AND ` + cond + ` ORDER BY x.k, x.pk`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return t.queryValues(store, query, append([]any{index}, args...)...)
}

func (t *Tx) queryValues(store, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := t.sqlTx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", store, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", store, err)
		}
		out = append(out, json.RawMessage(v))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying %s: %w", store, err)
	}
	return out, nil
}

// Count returns the number of records whose keys match q.
func (t *Tx) Count(store string, q Query) (int, error) {
	if _, err := t.store(store); err != nil {
		return 0, err
	}
	cond, args, err := q.clause("k")
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.sqlTx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+recordTable(store)+` WHERE `+cond, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", store, err)
	}
	return n, nil
}

// CountByIndex returns the number of index entries matching q.
func (t *Tx) CountByIndex(store, index string, q Query) (int, error) {
	if _, err := t.index(store, index); err != nil {
		return 0, err
	}
	cond, args, err := q.clause("k")
	if err != nil {
		return 0, err
	}
	var n int
	err = t.sqlTx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+indexTable(store)+` WHERE idx = ? AND `+cond,
		append([]any{index}, args...)...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s.%s: %w", store, index, err)
	}
	return n, nil
}

// Add inserts records and returns their keys. It fails with ErrConstraint if a
// key already exists or a unique index would be violated. Records may be any
// JSON-encodable value; json.RawMessage is stored as given.
func (t *Tx) Add(store string, records ...any) ([]any, error) {
	def, err := t.writable(store)
	if err != nil {
		return nil, t.fail(err)
	}
	keys := make([]any, 0, len(records))
	for _, rec := range records {
		k, err := t.write(def, rec, nil, false)
		if err != nil {
			return nil, t.fail(fmt.Errorf("adding to %s: %w", store, err))
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Put inserts or replaces a record and returns its key. key must be nil for
// stores with an in-line key path and may be nil for auto-increment stores.
func (t *Tx) Put(store string, record any, key any) (any, error) {
	def, err := t.writable(store)
	if err != nil {
		return nil, t.fail(err)
	}
	k, err := t.write(def, record, key, true)
	if err != nil {
		return nil, t.fail(fmt.Errorf("putting to %s: %w", store, err))
	}
	return k, nil
}

// Delete removes the record under key. Deleting a missing key is not an
// error.
func (t *Tx) Delete(store string, key any) error {
	if _, err := t.writable(store); err != nil {
		return t.fail(err)
	}
	k, err := encodeKey(key)
	if err != nil {
		return t.fail(err)
	}
	if err := t.remove(store, k); err != nil {
		return t.fail(err)
	}
	return nil
}

// Clear removes every record of a store.
func (t *Tx) Clear(store string) error {
	if _, err := t.writable(store); err != nil {
		return t.fail(err)
	}
	for _, table := range []string{recordTable(store), indexTable(store)} {
		if _, err := t.sqlTx.ExecContext(t.ctx, `DELETE FROM `+table); err != nil {
			return t.fail(fmt.Errorf("clearing %s: %w", store, err))
		}
	}
	return nil
}

func (t *Tx) remove(store string, k []byte) error {
	if _, err := t.sqlTx.ExecContext(t.ctx, `DELETE FROM `+indexTable(store)+` WHERE pk = ?`, k); err != nil {
		return fmt.Errorf("deleting index entries from %s: %w", store, err)
	}
	if _, err := t.sqlTx.ExecContext(t.ctx, `DELETE FROM `+recordTable(store)+` WHERE k = ?`, k); err != nil {
		return fmt.Errorf("deleting from %s: %w", store, err)
	}
	return nil
}

func marshalRecord(rec any) ([]byte, error) {
	switch v := rec.(type) {
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("record is not valid JSON")
		}
		return v, nil
	case []byte:
		if !json.Valid(v) {
			return nil, errors.New("record is not valid JSON")
		}
		return v, nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return b, nil
}

// write stores one record and its index entries. overwrite selects put
// semantics over add semantics.
func (t *Tx) write(def types.StoreDef, record any, key any, overwrite bool) (any, error) {
	raw, err := marshalRecord(record)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}

	var pk any
	generated := false
	if def.InLine() {
		if key != nil {
			return nil, fmt.Errorf("store %s reads keys from records: %w", def.Name, types.ErrInvalidKey)
		}
		v, ok := extractKey(doc, def.KeyPath)
		switch {
		case ok:
			if pk, err = normalizeKey(v); err != nil {
				return nil, err
			}
		case def.AutoIncrement:
			n, err := t.nextKey(def.Name)
			if err != nil {
				return nil, err
			}
			if err := injectKey(doc, def.KeyPath[0], n); err != nil {
				return nil, err
			}
			if raw, err = json.Marshal(doc); err != nil {
				return nil, fmt.Errorf("encoding record: %w", err)
			}
			pk, generated = n, true
		default:
			return nil, fmt.Errorf("record has no %s: %w", def.KeyPath, types.ErrInvalidKey)
		}
	} else {
		switch {
		case key != nil:
			if pk, err = normalizeKey(key); err != nil {
				return nil, err
			}
		case def.AutoIncrement:
			n, err := t.nextKey(def.Name)
			if err != nil {
				return nil, err
			}
			pk, generated = n, true
		default:
			return nil, fmt.Errorf("store %s needs an explicit key: %w", def.Name, types.ErrInvalidKey)
		}
	}
	if f, ok := pk.(float64); ok && def.AutoIncrement && !generated {
		if err := t.bumpKey(def.Name, f); err != nil {
			return nil, err
		}
	}

	k := appendKey(nil, pk)
	kj, err := json.Marshal(pk)
	if err != nil {
		return nil, fmt.Errorf("encoding key: %w", err)
	}

	var exists int
	err = t.sqlTx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+recordTable(def.Name)+` WHERE k = ?`, k).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking key: %w", err)
	}
	if exists > 0 && !overwrite {
		return nil, fmt.Errorf("key %s already exists: %w", kj, types.ErrConstraint)
	}

	entries := indexEntries(def, doc)
	if err := t.checkUnique(def, entries, k); err != nil {
		return nil, err
	}
	if exists > 0 {
		if err := t.remove(def.Name, k); err != nil {
			return nil, err
		}
	}

	_, err = t.sqlTx.ExecContext(t.ctx, `INSERT INTO `+recordTable(def.Name)+` (k, kj, v) VALUES (?, ?, ?)`, k, string(kj), string(raw))
	if err != nil {
		return nil, fmt.Errorf("inserting record: %w", err)
	}
	for _, e := range entries {
		_, err := t.sqlTx.ExecContext(t.ctx, `INSERT INTO `+indexTable(def.Name)+` (idx, k, pk) VALUES (?, ?, ?)`, e.index, e.key, k)
		if err != nil {
			return nil, fmt.Errorf("inserting index entry %s: %w", e.index, err)
		}
	}
	return pk, nil
}

// nextKey advances a store's key generator.
func (t *Tx) nextKey(store string) (float64, error) {
	var last int64
	if err := t.sqlTx.QueryRowContext(t.ctx, `SELECT generator FROM _kv_stores WHERE name = ?`, store).Scan(&last); err != nil {
		return 0, fmt.Errorf("reading key generator: %w", err)
	}
	if last >= maxGeneratedKey {
		return 0, fmt.Errorf("key generator of %s exhausted: %w", store, types.ErrConstraint)
	}
	last++
	if _, err := t.sqlTx.ExecContext(t.ctx, `UPDATE _kv_stores SET generator = ? WHERE name = ?`, last, store); err != nil {
		return 0, fmt.Errorf("advancing key generator: %w", err)
	}
	return float64(last), nil
}

// maxGeneratedKey is the largest integer a float64 key holds exactly.
const maxGeneratedKey = 1 << 53

// bumpKey moves the generator past an explicitly supplied numeric key.
func (t *Tx) bumpKey(store string, k float64) error {
	if k < 1 {
		return nil
	}
	n := int64(maxGeneratedKey)
	if k < maxGeneratedKey {
		n = int64(math.Floor(k))
	}
	_, err := t.sqlTx.ExecContext(t.ctx, `UPDATE _kv_stores SET generator = MAX(generator, ?) WHERE name = ?`, n, store)
	if err != nil {
		return fmt.Errorf("advancing key generator: %w", err)
	}
	return nil
}
