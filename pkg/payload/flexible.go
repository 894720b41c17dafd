// Package payload converts loosely typed introspection output (JSON documents,
// YAML snapshots, database/sql rows) into Go values. Conversion is lenient in the
// same way the agent's bench commands are: numbers may arrive as strings, text
// columns may arrive as []byte, booleans may be YES/NO.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// ErrInvalidValue is returned when a value cannot be converted to the requested type.
var ErrInvalidValue = errors.New("invalid value")

// IsNull reports whether v carries no value (nil, JSON null, or an empty raw message).
func IsNull(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case json.RawMessage:
		trimmed := bytes.TrimSpace(val)
		return len(trimmed) == 0 || string(trimmed) == "null"
	}
	return false
}

// StringValue converts v to a string. Numbers and booleans are formatted, null
// becomes the empty string.
func StringValue(v any) string {
	if IsNull(v) {
		return ""
	}
	if raw, ok := v.(json.RawMessage); ok {
		return flexibleStringValue(raw)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

// flexibleStringValue handles raw JSON where a string was expected but a number
// or boolean was sent instead.
func flexibleStringValue(raw json.RawMessage) string {
	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal json.Number
	if err := json.Unmarshal(raw, &numVal); err == nil {
		return numVal.String()
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return strconv.FormatBool(boolVal)
	}

	return string(raw)
}

// decodeRaw unmarshals a raw JSON value keeping numbers as json.Number.
func decodeRaw(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return out, nil
}

// textual returns the text of values that arrive as strings from drivers and
// decoders.
func textual(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case []byte:
		return string(val), true
	case json.Number:
		return val.String(), true
	}
	return "", false
}

// Int64Value converts v to an int64. Strings are parsed leniently: empty is 0,
// the fractional part is dropped and thousands separators are removed
// ("1,234.9" is 1234). Floats are truncated.
func Int64Value(v any) (int64, error) {
	if IsNull(v) {
		return 0, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		decoded, err := decodeRaw(raw)
		if err != nil {
			return 0, err
		}
		return Int64Value(decoded)
	}
	if s, ok := textual(v); ok {
		v = integerText(s)
	}

	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return n, nil
}

// integerText reduces "1,234.9" to "1234". Leading zeros are stripped so the
// text is never read as an octal literal.
func integerText(s string) string {
	s = strings.TrimSpace(s)
	s, _, _ = strings.Cut(s, ".")
	s = strings.ReplaceAll(s, ",", "")

	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		sign, s = s[:1], s[1:]
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	if sign == "-" {
		return sign + s
	}
	return s
}

// Float64Value converts v to a float64. Empty strings and null are 0.
func Float64Value(v any) (float64, error) {
	if IsNull(v) {
		return 0, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		decoded, err := decodeRaw(raw)
		if err != nil {
			return 0, err
		}
		return Float64Value(decoded)
	}
	if s, ok := textual(v); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return f, nil
}

// BoolValue converts v to a bool. Accepts YES/NO and Y/N on top of the usual
// TRUE/FALSE, T/F and 1/0; numeric values are true when non-zero.
func BoolValue(v any) (bool, error) {
	if IsNull(v) {
		return false, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		decoded, err := decodeRaw(raw)
		if err != nil {
			return false, err
		}
		return BoolValue(decoded)
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		n, err := Float64Value(v)
		if err != nil {
			return false, fmt.Errorf("%w: cannot convert %T to bool", ErrInvalidValue, v)
		}
		return n != 0, nil
	}

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return true, nil
	case "no", "n", "":
		return false, nil
	}
	b, err := cast.ToBoolE(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, s)
	}
	return b, nil
}
