package kv

import (
	"encoding/json"
	"fmt"
)

// Get decodes the record under key into a T.
func Get[T any](tx *Tx, store string, key any) (T, error) {
	var out T
	raw, err := tx.Get(store, key)
	if err != nil {
		return out, err
	}
	return decode[T](store, raw)
}

// GetAll decodes every record matching q.
func GetAll[T any](tx *Tx, store string, q Query) ([]T, error) {
	raws, err := tx.GetAll(store, q)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](store, raws)
}

// GetByIndex decodes the first record whose index key matches q.
func GetByIndex[T any](tx *Tx, store, index string, q Query) (T, error) {
	var out T
	raw, err := tx.GetByIndex(store, index, q)
	if err != nil {
		return out, err
	}
	return decode[T](store, raw)
}

// GetAllByIndex decodes every record whose index key matches q.
func GetAllByIndex[T any](tx *Tx, store, index string, q Query) ([]T, error) {
	raws, err := tx.GetAllByIndex(store, index, q)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](store, raws)
}

func decode[T any](store string, raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding %s record: %w", store, err)
	}
	return out, nil
}

func decodeAll[T any](store string, raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := decode[T](store, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
