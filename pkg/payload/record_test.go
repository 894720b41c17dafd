package payload

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_AliasLookup(t *testing.T) {
	rec := Record{"type": "ALL", "scan_type": "REF"}

	assert.Equal(t, "ALL", rec.String("type", "scan_type"), "first present key wins")
	assert.Equal(t, "REF", rec.String("missing", "scan_type"))
	assert.Equal(t, "", rec.String("missing"))
}

func TestRecord_Optionals(t *testing.T) {
	rec := Record{
		"key":         nil,
		"key_len":     "",
		"cardinality": "120",
		"nulls_ratio": 0.5,
		"unique":      "1",
	}

	assert.Nil(t, rec.OptionalString("key"))
	assert.Nil(t, rec.OptionalString("absent"))

	keyLen, err := rec.OptionalInt64("key_len")
	require.NoError(t, err)
	assert.Nil(t, keyLen)

	card, err := rec.OptionalInt64("cardinality")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, int64(120), *card)

	ratio, err := rec.OptionalFloat64("nulls_ratio")
	require.NoError(t, err)
	require.NotNil(t, ratio)
	assert.Equal(t, 0.5, *ratio)

	unique, err := rec.OptionalBool("unique")
	require.NoError(t, err)
	require.NotNil(t, unique)
	assert.True(t, *unique)
}

func TestRecord_RequireString(t *testing.T) {
	rec := Record{"table": "tabUser", "blank": "  "}

	name, err := rec.RequireString("table")
	require.NoError(t, err)
	assert.Equal(t, "tabUser", name)

	_, err = rec.RequireString("blank")
	assert.True(t, errors.Is(err, ErrInvalidValue))

	_, err = rec.RequireString("table_name", "name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"table_name"`)
}

func TestRecord_ErrorNamesField(t *testing.T) {
	rec := Record{"rows": "many"}

	_, err := rec.Int64("rows")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "rows"`)
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestRecord_Records(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"schema":[{"column":"owner"},{"column":"name"}],"indexes":null}`), &decoded))
	rec := Record(decoded)

	schema, err := rec.Records("schema")
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, "owner", schema[0].String("column"))

	indexes, err := rec.Records("indexes")
	require.NoError(t, err)
	assert.Empty(t, indexes)

	_, err = Record{"schema": "nope"}.Records("schema")
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestAsRecord(t *testing.T) {
	rec, err := AsRecord(map[any]any{"name": "x", 1: "one"})
	require.NoError(t, err)
	assert.Equal(t, "x", rec.String("name"))
	assert.Equal(t, "one", rec.String("1"))

	rec, err = AsRecord(json.RawMessage(`{"rows": 10}`))
	require.NoError(t, err)
	rows, err := rec.Int64("rows")
	require.NoError(t, err)
	assert.Equal(t, int64(10), rows)

	_, err = AsRecord("text")
	assert.Error(t, err)
}
