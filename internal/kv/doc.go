// Package kv is a transactional record store with secondary indices and
// versioned schema migration, backed by SQLite.
//
// A database holds named stores. Each store keeps JSON records under a
// primary key that is either read from the record (in-line key path) or
// supplied by the caller (out-of-line), and maintains the secondary indices
// declared for it on every write. All access goes through a Tx scoped to the
// stores it touches; a Tx commits as a whole or leaves no trace.
//
// Open compares the requested schema version against the persisted one and
// migrates inside a single SQLite transaction when it is higher.
package kv
