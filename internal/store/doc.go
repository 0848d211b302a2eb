// Package store implements the Wonder data layer on top of kv: projects and
// their settings, the per-project hierarchy tree, the typed documents behind
// tree leaves, the relations between documents, and a join service that
// returns relations with their endpoints resolved.
//
// Every exported operation runs in exactly one kv transaction scoped to the
// stores it touches, so multi-step operations such as deleting a directory
// apply completely or not at all.
package store
