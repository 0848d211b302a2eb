package kv

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

// Keys are numbers, strings or arrays of keys. They sort numbers first, then
// strings, then arrays, and are stored in a binary form whose byte order
// matches that ordering so SQLite can range-scan them.
const (
	tagNumber byte = 0x10
	tagString byte = 0x20
	tagArray  byte = 0x30

	maxKeyDepth = 8
)

// terminator ends strings and arrays. A NUL inside a string is written as
// 0x00 0xff so it sorts after the terminator.
var terminator = []byte{0x00, 0x01}

// normalizeKey converts a Go or decoded JSON value into its canonical key
// form: float64, string or []any.
func normalizeKey(k any) (any, error) {
	return normalize(k, 0)
}

func normalize(k any, depth int) (any, error) {
	if depth > maxKeyDepth {
		return nil, fmt.Errorf("key nested deeper than %d: %w", maxKeyDepth, types.ErrInvalidKey)
	}
	switch v := k.(type) {
	case nil:
		return nil, fmt.Errorf("nil key: %w", types.ErrInvalidKey)
	case string:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", v, types.ErrInvalidKey)
		}
		return checkFloat(f)
	case float64:
		return checkFloat(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			n, err := normalize(e, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []byte:
		return nil, fmt.Errorf("binary keys are not supported: %w", types.ErrInvalidKey)
	}

	rv := reflect.ValueOf(k)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return checkFloat(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return checkFloat(float64(rv.Uint()))
	case reflect.Float32:
		return checkFloat(rv.Float())
	case reflect.String:
		return rv.String(), nil
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			n, err := normalize(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return nil, fmt.Errorf("%T is not a key type: %w", k, types.ErrInvalidKey)
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) {
		return nil, fmt.Errorf("NaN key: %w", types.ErrInvalidKey)
	}
	if f == 0 {
		f = 0 // folds -0 into 0
	}
	return f, nil
}

// encodeKey normalizes k and returns its order-preserving binary form.
func encodeKey(k any) ([]byte, error) {
	n, err := normalizeKey(k)
	if err != nil {
		return nil, err
	}
	return appendKey(nil, n), nil
}

// appendKey writes an already normalized key.
func appendKey(buf []byte, k any) []byte {
	switch v := k.(type) {
	case float64:
		bits := math.Float64bits(v)
		if v >= 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		buf = append(buf, tagNumber)
		return binary.BigEndian.AppendUint64(buf, bits)
	case string:
		buf = append(buf, tagString)
		for i := 0; i < len(v); i++ {
			if v[i] == 0x00 {
				buf = append(buf, 0x00, 0xff)
				continue
			}
			buf = append(buf, v[i])
		}
		return append(buf, terminator...)
	case []any:
		buf = append(buf, tagArray)
		for _, e := range v {
			buf = appendKey(buf, e)
		}
		return append(buf, terminator...)
	}
	panic(fmt.Sprintf("kv: appendKey called with unnormalized %T", k))
}

// compareKeys orders two keys the way the store sorts them.
func compareKeys(a, b any) (int, error) {
	ea, err := encodeKey(a)
	if err != nil {
		return 0, err
	}
	eb, err := encodeKey(b)
	if err != nil {
		return 0, err
	}
	return bytes.Compare(ea, eb), nil
}

// decodeDocument parses a record for key path evaluation. Numbers stay
// json.Number so large integers survive.
func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return doc, nil
}

// evalPath follows a dotted path through nested objects.
func evalPath(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// extractKey evaluates a key path against a decoded record. Compound paths
// yield an array and are missing if any member is missing.
func extractKey(doc any, kp types.KeyPath) (any, bool) {
	if !kp.IsCompound() {
		return evalPath(doc, kp[0])
	}
	out := make([]any, len(kp))
	for i, p := range kp {
		v, ok := evalPath(doc, p)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// injectKey writes a generated key into the record at path, creating
// intermediate objects as needed.
func injectKey(doc any, path string, key float64) error {
	m, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("record is not an object: %w", types.ErrInvalidKey)
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs[:len(segs)-1] {
		next, exists := m[seg]
		if !exists {
			child := map[string]any{}
			m[seg] = child
			m = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key path %s crosses a non-object: %w", path, types.ErrInvalidKey)
		}
		m = child
	}
	m[segs[len(segs)-1]] = json.Number(fmt.Sprintf("%d", int64(key)))
	return nil
}
