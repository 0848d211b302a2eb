// Package types defines the entity types, schema declarations, configuration
// and standard errors shared by the Wonder storage layers.
//
// Records are plain structs with JSON tags; the tags are the persisted field
// names and the key paths used by store indices refer to them.
package types
