package payload

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one loosely typed object from an introspection payload: an EXPLAIN
// row, a table description, a column statistic. Accessors take one or more keys
// and read the first key present, so the same record type serves both the
// agent's field names and their generic aliases.
type Record map[string]any

func (r Record) lookup(keys ...string) (string, any, bool) {
	for _, key := range keys {
		if v, ok := r[key]; ok {
			return key, v, true
		}
	}
	if len(keys) == 0 {
		return "", nil, false
	}
	return keys[0], nil, false
}

// Has reports whether any of keys is present with a non-null value.
func (r Record) Has(keys ...string) bool {
	_, v, ok := r.lookup(keys...)
	return ok && !IsNull(v)
}

// String returns the value as a string, or "" when absent.
func (r Record) String(keys ...string) string {
	_, v, _ := r.lookup(keys...)
	return StringValue(v)
}

// RequireString returns the value as a string and fails when it is absent or empty.
func (r Record) RequireString(keys ...string) (string, error) {
	key, v, ok := r.lookup(keys...)
	if !ok || IsNull(v) {
		return "", fmt.Errorf("field %q: %w: missing", key, ErrInvalidValue)
	}
	s := StringValue(v)
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("field %q: %w: empty", key, ErrInvalidValue)
	}
	return s, nil
}

// OptionalString returns nil when the value is absent or null.
func (r Record) OptionalString(keys ...string) *string {
	_, v, ok := r.lookup(keys...)
	if !ok || IsNull(v) {
		return nil
	}
	s := StringValue(v)
	return &s
}

// Int64 returns the value as an int64; absent values are 0.
func (r Record) Int64(keys ...string) (int64, error) {
	key, v, _ := r.lookup(keys...)
	n, err := Int64Value(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

// OptionalInt64 returns nil when the value is absent, null or an empty string.
func (r Record) OptionalInt64(keys ...string) (*int64, error) {
	key, v, ok := r.lookup(keys...)
	if !ok || isBlank(v) {
		return nil, nil
	}
	n, err := Int64Value(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &n, nil
}

// Float64 returns the value as a float64; absent values are 0.
func (r Record) Float64(keys ...string) (float64, error) {
	key, v, _ := r.lookup(keys...)
	f, err := Float64Value(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return f, nil
}

// OptionalFloat64 returns nil when the value is absent, null or an empty string.
func (r Record) OptionalFloat64(keys ...string) (*float64, error) {
	key, v, ok := r.lookup(keys...)
	if !ok || isBlank(v) {
		return nil, nil
	}
	f, err := Float64Value(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &f, nil
}

// Bool returns the value as a bool; absent values are false.
func (r Record) Bool(keys ...string) (bool, error) {
	key, v, _ := r.lookup(keys...)
	b, err := BoolValue(v)
	if err != nil {
		return false, fmt.Errorf("field %q: %w", key, err)
	}
	return b, nil
}

// OptionalBool returns nil when the value is absent, null or an empty string.
func (r Record) OptionalBool(keys ...string) (*bool, error) {
	key, v, ok := r.lookup(keys...)
	if !ok || isBlank(v) {
		return nil, nil
	}
	b, err := BoolValue(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &b, nil
}

// Records returns a nested list of records. Absent or null values give an empty list.
func (r Record) Records(keys ...string) ([]Record, error) {
	key, v, ok := r.lookup(keys...)
	if !ok || IsNull(v) {
		return nil, nil
	}
	out, err := AsRecords(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return out, nil
}

// Raw returns the unconverted value.
func (r Record) Raw(keys ...string) (any, bool) {
	_, v, ok := r.lookup(keys...)
	return v, ok
}

func isBlank(v any) bool {
	if IsNull(v) {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []byte:
		return strings.TrimSpace(string(val)) == ""
	}
	return false
}

// AsRecord converts a decoded object into a Record. It accepts the map shapes
// produced by encoding/json, gopkg.in/yaml.v3 and raw JSON.
func AsRecord(v any) (Record, error) {
	switch val := v.(type) {
	case Record:
		return val, nil
	case map[string]any:
		return Record(val), nil
	case map[any]any:
		rec := make(Record, len(val))
		for k, item := range val {
			rec[fmt.Sprint(k)] = item
		}
		return rec, nil
	case json.RawMessage:
		decoded, err := decodeRaw(val)
		if err != nil {
			return nil, err
		}
		return AsRecord(decoded)
	}
	return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalidValue, v)
}

// AsRecords converts a decoded list of objects into records.
func AsRecords(v any) ([]Record, error) {
	switch val := v.(type) {
	case []Record:
		return val, nil
	case []map[string]any:
		out := make([]Record, len(val))
		for i, m := range val {
			out[i] = Record(m)
		}
		return out, nil
	case []any:
		out := make([]Record, 0, len(val))
		for i, item := range val {
			rec, err := AsRecord(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	case json.RawMessage:
		decoded, err := decodeRaw(val)
		if err != nil {
			return nil, err
		}
		return AsRecords(decoded)
	}
	return nil, fmt.Errorf("%w: expected list, got %T", ErrInvalidValue, v)
}
