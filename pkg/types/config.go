package types

import (
	"fmt"
	"strings"
)

// DefaultDatabaseName is the database name used when Config leaves it empty.
const DefaultDatabaseName = "WonderWriter"

// Config holds the parameters for opening a Wonder library.
type Config struct {
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	DatabaseName string `json:"database_name" yaml:"database_name"`
}

// Name returns the configured database name or DefaultDatabaseName.
func (c Config) Name() string {
	if c.DatabaseName == "" {
		return DefaultDatabaseName
	}
	return c.DatabaseName
}

// Validate checks that the Config is well-formed. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir must not be empty: %w", ErrInvalidConfig)
	}
	name := c.Name()
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("database name %q is not a file name: %w", name, ErrInvalidConfig)
	}
	return nil
}
