// Package wonder is the public entry point to a Wonder library. It opens the
// database, migrating it to the current schema, and hands back the stores
// while keeping their implementation internal.
package wonder

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// Library is an open Wonder library.
type Library = store.Library

// SchemaVersion is the schema version Open migrates to.
const SchemaVersion = store.SchemaVersion

// Open opens the library described by cfg. A nil log discards output.
//
// Example:
//
//	lib, err := wonder.Open(ctx, types.Config{DataDir: dir}, nil)
//	if err != nil {
//	    return err
//	}
//	defer lib.Close()
func Open(ctx context.Context, cfg types.Config, log logrus.FieldLogger) (*Library, error) {
	var opts []store.Option
	if log != nil {
		opts = append(opts, store.WithLogger(log))
	}
	return store.Open(ctx, cfg, opts...)
}

// Schema returns the current schema declaration.
func Schema() types.Schema {
	return store.Schema()
}
