package csvmigrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilterLiterals(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: "M", Value: "male"},
		{Key: "F", Value: "female"},
		{Key: "X", Value: nil},
	})
	require.NoError(t, err)

	require.Equal(t, StringValue("male"), f.Apply(StringValue("M")))
	require.Equal(t, StringValue("female"), f.Apply(StringValue("F")))
	require.True(t, f.Apply(StringValue("X")).IsAbsent())
	require.Equal(t, StringValue("other"), f.Apply(StringValue("other")))
	require.True(t, f.Apply(Absent).IsAbsent())
}

func TestFilterLiteralMatchesFormattedValue(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: "42", Value: "answer"},
	})
	require.NoError(t, err)

	require.Equal(t, StringValue("answer"), f.Apply(IntValue(42)))
}

func TestFilterRegex(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: `/^(\d+) units$/`, Value: "$1"},
		{Key: `/^unknown/i`, Value: nil},
	})
	require.NoError(t, err)

	require.Equal(t, StringValue("12"), f.Apply(StringValue("12 units")))
	require.True(t, f.Apply(StringValue("UNKNOWN value")).IsAbsent())
	require.Equal(t, StringValue("plain"), f.Apply(StringValue("plain")))
}

func TestFilterRegexOrder(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: `/a/`, Value: "first"},
		{Key: `/ab/`, Value: "second"},
	})
	require.NoError(t, err)

	require.Equal(t, StringValue("first"), f.Apply(StringValue("ab")))
}

func TestFilterRegexEmptyReplacementIsAbsent(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: `/^ignore-.*$/`, Value: ""},
	})
	require.NoError(t, err)

	require.True(t, f.Apply(StringValue("ignore-this")).IsAbsent())
}

func TestFilterRegexNonStringValue(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: `/^n\/a$/i`, Value: nil},
		{Key: `/^\d+%$/`, Value: true},
	})
	require.NoError(t, err)

	require.True(t, f.Apply(StringValue("N/A")).IsAbsent())
	require.Equal(t, BoolValue(true), f.Apply(StringValue("50%")))
}

func TestFilterCatchAll(t *testing.T) {
	f, err := NewFilter(FilterSpec{
		{Key: "keep", Value: "keep"},
		{Key: `/.*/`, Value: nil},
	})
	require.NoError(t, err)

	require.Equal(t, StringValue("keep"), f.Apply(StringValue("keep")))
	require.True(t, f.Apply(StringValue("anything else")).IsAbsent())
}

func TestFilterBlock(t *testing.T) {
	f, err := NewFilter(nil, WithFilterBlock(func(v Value) Value {
		s, ok := v.AsString()
		if !ok {
			return v
		}
		return StringValue(strings.ToUpper(s))
	}))
	require.NoError(t, err)

	require.Equal(t, StringValue("ABC"), f.Apply(StringValue("abc")))
}

func TestFilterErrors(t *testing.T) {
	_, err := NewFilter(nil)
	require.ErrorIs(t, err, ConfigError)

	_, err = NewFilter(FilterSpec{{Key: `/x/g`, Value: "y"}})
	require.ErrorIs(t, err, ConfigError)

	_, err = NewFilter(FilterSpec{{Key: `/(/`, Value: "y"}})
	require.ErrorIs(t, err, ConfigError)

	_, err = NewFilter(FilterSpec{{Key: 12, Value: "y"}})
	require.ErrorIs(t, err, ConfigError)
}

func TestBoolFilterDefaultParse(t *testing.T) {
	f, err := NewBoolFilter(nil)
	require.NoError(t, err)

	require.Equal(t, BoolValue(true), f.Apply(StringValue("yes")))
	require.Equal(t, BoolValue(false), f.Apply(StringValue("No")))
	require.Equal(t, BoolValue(true), f.Apply(StringValue("1")))
	require.True(t, f.Apply(StringValue("maybe")).IsAbsent())
	require.True(t, f.Apply(Absent).IsAbsent())
}

func TestBoolFilterStringRulesFirst(t *testing.T) {
	f, err := NewBoolFilter(FilterSpec{
		{Key: "employed", Value: "yes"},
		{Key: "retired", Value: "no"},
	})
	require.NoError(t, err)

	require.Equal(t, BoolValue(true), f.Apply(StringValue("employed")))
	require.Equal(t, BoolValue(false), f.Apply(StringValue("retired")))
	require.Equal(t, BoolValue(true), f.Apply(StringValue("true")))
}

func TestBoolFilterBoolRules(t *testing.T) {
	f, err := NewBoolFilter(FilterSpec{
		{Key: true, Value: "Y"},
		{Key: false, Value: nil},
	})
	require.NoError(t, err)

	require.Equal(t, StringValue("Y"), f.Apply(StringValue("yes")))
	require.True(t, f.Apply(StringValue("no")).IsAbsent())
	require.Equal(t, StringValue("Y"), f.Apply(BoolValue(true)))
}

func TestFilterSpecFromPairs(t *testing.T) {
	spec := FilterSpecFromPairs("a", "b", "c", "~")
	require.Len(t, spec, 2)
	require.Equal(t, FilterRule{Key: "a", Value: "b"}, spec[0])
	require.Equal(t, FilterRule{Key: "c", Value: nil}, spec[1])
}
