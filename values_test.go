package csvmigrate

import (
	"maps"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"
)

func TestRecordOrder(t *testing.T) {
	rec := NewRecord()
	rec.Set("b", IntValue(1))
	rec.Set("a", IntValue(2))
	rec.Set("c", IntValue(3))
	rec.Set("a", IntValue(4))

	require.Equal(t, []string{"b", "a", "c"}, rec.Keys())
	require.Equal(t, 3, rec.Len())

	v, ok := rec.Get("a")
	require.True(t, ok)
	require.Equal(t, IntValue(4), v)

	_, ok = rec.Get("missing")
	require.False(t, ok)
	require.True(t, rec.GetOrAbsent("missing").IsAbsent())
}

func TestRecordClone(t *testing.T) {
	rec := NewRecord()
	rec.Set("x", StringValue("one"))
	rec.Set("y", StringValue("two"))

	clone := rec.Clone()
	clone.Set("x", StringValue("changed"))

	require.Equal(t, StringValue("one"), rec.GetOrAbsent("x"))
	require.Equal(t, StringValue("changed"), clone.GetOrAbsent("x"))
	assert.DeepEqual(t, rec.Keys(), clone.Keys())
}

func TestRecordInsert(t *testing.T) {
	src := NewRecord()
	src.Set("a", IntValue(1))
	src.Set("b", IntValue(2))

	dst := NewRecord()
	dst.Set("c", IntValue(3))
	dst.Insert(src.All)

	require.Equal(t, []string{"c", "a", "b"}, dst.Keys())
}

func TestRecordAll(t *testing.T) {
	rec := NewRecord()
	rec.Set("a", IntValue(1))
	rec.Set("b", StringValue("x"))

	got := maps.Collect(rec.All)
	assert.DeepEqual(t, map[string]Value{"a": IntValue(1), "b": StringValue("x")}, got)
}

func TestValuesGet(t *testing.T) {
	rec := NewRecord()
	rec.Set("n", IntValue(42))
	rec.Set("s", StringValue("x"))
	rec.Set("absent", Absent)

	n, exists, isType := ValuesGet[int64](rec, "n")
	require.True(t, exists)
	require.True(t, isType)
	require.Equal(t, int64(42), n)

	_, exists, isType = ValuesGet[int64](rec, "s")
	require.True(t, exists)
	require.False(t, isType)

	_, exists, isType = ValuesGet[int64](rec, "absent")
	require.True(t, exists)
	require.False(t, isType)

	_, exists, _ = ValuesGet[int64](rec, "missing")
	require.False(t, exists)
}

func TestNormalizeFieldKey(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{"Name", "name"},
		{"First Name", "first_name"},
		{"  Zip / Postal Code  ", "zip_postal_code"},
		{"e-mail", "e_mail"},
		{"ALL CAPS!!", "all_caps"},
		{"already_key", "already_key"},
		{"123", "123"},
	}
	for _, test := range tests {
		require.Equal(t, test.expected, NormalizeFieldKey(test.header), "header %q", test.header)
	}
}
