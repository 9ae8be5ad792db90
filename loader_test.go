package csvmigrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"gotest.tools/v3/assert"
)

func TestLoadConfig(t *testing.T) {
	provider := NewStringFileProvider([]string{
		`fields:
  First Name: name
  Date of Birth: birthday
  Street: Parent.household.address.street1, Household.address.street1
  Ignored:
defaults:
  employed: true
  Address.state: "WA"
filters:
  employed:
    employed: "yes"
    retired: "no"
    true: true
`,
	})

	cfg, err := LoadConfig(provider)
	require.NoError(t, err)

	assert.DeepEqual(t, FieldsSpec{
		{Path: "name", Header: "First Name"},
		{Path: "birthday", Header: "Date of Birth"},
		{Path: "Parent.household.address.street1", Header: "Street"},
		{Path: "Household.address.street1", Header: "Street"},
	}, cfg.Fields)

	assert.DeepEqual(t, DefaultsSpec{
		{Path: "employed", Value: true},
		{Path: "Address.state", Value: "WA"},
	}, cfg.Defaults)

	require.Len(t, cfg.Filters, 1)
	require.Equal(t, "employed", cfg.Filters[0].Path)
	assert.DeepEqual(t, FilterSpec{
		{Key: "employed", Value: "yes"},
		{Key: "retired", Value: "no"},
		{Key: true, Value: true},
	}, cfg.Filters[0].Spec)
}

func TestLoadConfigMergesFiles(t *testing.T) {
	provider := NewStringFileProvider([]string{
		"fields:\n  A: x\n",
		"fields:\n  B: y\ndefaults:\n  x: 1\n",
	})

	cfg, err := LoadConfig(provider)
	require.NoError(t, err)

	assert.DeepEqual(t, FieldsSpec{
		{Path: "x", Header: "A"},
		{Path: "y", Header: "B"},
	}, cfg.Fields)
	assert.DeepEqual(t, DefaultsSpec{
		{Path: "x", Value: int64(1)},
	}, cfg.Defaults)
}

func TestLoadConfigFS(t *testing.T) {
	fsys := fstest.MapFS{
		"20-extra.mig.yaml": &fstest.MapFile{
			Data: []byte("fields:\n  B: y\n"),
		},
		"10-base.mig.yaml": &fstest.MapFile{
			Data: []byte("fields:\n  A: x\n"),
		},
		"notes.txt": &fstest.MapFile{
			Data: []byte("not config"),
		},
		"sub/30-more.mig.yaml": &fstest.MapFile{
			Data: []byte("fields:\n  C: z\n"),
		},
	}

	cfg, err := LoadConfigFS(fsys)
	require.NoError(t, err)

	// files sorted by name, directories after files
	assert.DeepEqual(t, FieldsSpec{
		{Path: "x", Header: "A"},
		{Path: "y", Header: "B"},
		{Path: "z", Header: "C"},
	}, cfg.Fields)
}

func TestLoadConfigNullDefault(t *testing.T) {
	provider := NewStringFileProvider([]string{
		"defaults:\n  spouse: ~\n",
	})

	cfg, err := LoadConfig(provider)
	require.NoError(t, err)
	assert.DeepEqual(t, DefaultsSpec{
		{Path: "spouse", Value: nil},
	}, cfg.Defaults)
}

func TestLoadConfigFilterNullValue(t *testing.T) {
	provider := NewStringFileProvider([]string{
		"filters:\n  gender:\n    U: ~\n    M: male\n",
	})

	cfg, err := LoadConfig(provider)
	require.NoError(t, err)
	require.Len(t, cfg.Filters, 1)
	assert.DeepEqual(t, FilterSpec{
		{Key: "U", Value: nil},
		{Key: "M", Value: "male"},
	}, cfg.Filters[0].Spec)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown section", "nope:\n  a: b\n"},
		{"fields not a mapping", "fields: hello\n"},
		{"field paths not scalar", "fields:\n  A:\n    - x\n"},
		{"filters not a mapping", "filters:\n  x: hello\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := LoadConfig(NewStringFileProvider([]string{test.data}))
			require.ErrorIs(t, err, ConfigError)
		})
	}
}
