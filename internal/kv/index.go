package kv

import (
	"fmt"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

type indexEntry struct {
	index string
	key   []byte
}

// indexEntries computes the entries a record contributes to each index of
// def. A record whose value at the key path is missing or not a valid key is
// left out of that index. A multi-entry index over an array contributes one
// entry per distinct valid element.
func indexEntries(def types.StoreDef, doc any) []indexEntry {
	var out []indexEntry
	for _, idx := range def.Indices {
		v, ok := extractKey(doc, idx.KeyPath)
		if !ok {
			continue
		}
		if arr, isArr := v.([]any); isArr && idx.MultiEntry {
			seen := make(map[string]bool, len(arr))
			for _, e := range arr {
				k, err := encodeKey(e)
				if err != nil || seen[string(k)] {
					continue
				}
				seen[string(k)] = true
				out = append(out, indexEntry{index: idx.Name, key: k})
			}
			continue
		}
		k, err := encodeKey(v)
		if err != nil {
			continue
		}
		out = append(out, indexEntry{index: idx.Name, key: k})
	}
	return out
}

// checkUnique fails with ErrConstraint when an entry of a unique index is
// already held by a record other than pk.
func (t *Tx) checkUnique(def types.StoreDef, entries []indexEntry, pk []byte) error {
	for _, e := range entries {
		idx, _ := def.Index(e.index)
		if !idx.Unique {
			continue
		}
		var n int
		err := t.sqlTx.QueryRowContext(t.ctx,
			`SELECT COUNT(*) FROM `+indexTable(def.Name)+` WHERE idx = ? AND k = ? AND pk <> ?`, e.index, e.key, pk).Scan(&n)
		if err != nil {
			return fmt.Errorf("checking unique index %s: %w", e.index, err)
		}
		if n > 0 {
			return fmt.Errorf("unique index %s: %w", e.index, types.ErrConstraint)
		}
	}
	return nil
}
