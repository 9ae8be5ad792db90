package csvmigrate

import (
	"testing"

	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/stretchr/testify/require"
)

func parseNode(t *testing.T, data string) ast.Node {
	t.Helper()
	f, err := parser.ParseBytes([]byte(data), 0)
	require.NoError(t, err)
	require.Len(t, f.Docs, 1)
	return f.Docs[0].Body
}

func mappingValue(t *testing.T, data string) *ast.MappingValueNode {
	t.Helper()
	node := parseNode(t, data)
	mv, ok := node.(*ast.MappingValueNode)
	require.True(t, ok, "expected a mapping value, got %T", node)
	return mv
}

func TestGetStringNode(t *testing.T) {
	mv := mappingValue(t, "key: value")

	s, err := getStringNode(mv.Key)
	require.NoError(t, err)
	require.Equal(t, "key", s)

	mv = mappingValue(t, "key: 12")
	_, err = getStringNode(mv.Value)
	require.ErrorIs(t, err, ConfigError)
}

func TestGetScalarNode(t *testing.T) {
	tests := []struct {
		data     string
		expected any
	}{
		{"key: hello", "hello"},
		{"key: 42", int64(42)},
		{"key: 1.5", 1.5},
		{"key: true", true},
		{"key: ~", nil},
		{"key: null", nil},
		{"key: \"7\"", "7"},
	}
	for _, test := range tests {
		t.Run(test.data, func(t *testing.T) {
			mv := mappingValue(t, test.data)
			got, err := getScalarNode(mv.Value)
			require.NoError(t, err)
			require.Equal(t, test.expected, got)
		})
	}

	mv := mappingValue(t, "key:\n  - a")
	_, err := getScalarNode(mv.Value)
	require.ErrorIs(t, err, ConfigError)
}

func TestGetKeyNode(t *testing.T) {
	mv := mappingValue(t, "name: x")
	k, err := getKeyNode(mv.Key)
	require.NoError(t, err)
	require.Equal(t, "name", k)

	mv = mappingValue(t, "true: x")
	k, err = getKeyNode(mv.Key)
	require.NoError(t, err)
	require.Equal(t, true, k)

	mv = mappingValue(t, "12: x")
	_, err = getKeyNode(mv.Key)
	require.ErrorIs(t, err, ConfigError)
}
