package types

import "errors"

// Store abstraction errors.
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraint          = errors.New("constraint violation")
	ErrStoreNotFound       = errors.New("store not found")
	ErrIndexNotFound       = errors.New("index not found")
	ErrStoreNotInScope     = errors.New("store not in transaction scope")
	ErrReadOnly            = errors.New("transaction is read-only")
	ErrTransactionInactive = errors.New("transaction is not active")
	ErrInvalidKey          = errors.New("invalid key")
	ErrInvalidSchema       = errors.New("invalid schema")
	ErrDatabaseClosed      = errors.New("database is closed")
)

// Migration errors.
var (
	ErrMigrationFailed  = errors.New("schema migration failed")
	ErrVersionDowngrade = errors.New("requested version is lower than the persisted version")
)

// Domain errors.
var (
	ErrInvalidRelationType  = errors.New("invalid relation type")
	ErrInvalidHierarchyType = errors.New("invalid hierarchy type")
	ErrNotDirectory         = errors.New("node is not a directory")
	ErrCycle                = errors.New("node cannot move into itself or a descendant")
	ErrInvalidMove          = errors.New("invalid move target")
	ErrCrossProject         = errors.New("relation endpoints belong to different projects")
	ErrInvalidName          = errors.New("name must not be empty")
	ErrInvalidSettings      = errors.New("invalid project settings")
	ErrInvalidConfig        = errors.New("invalid config")
)
