package csvmigrate

import (
	"github.com/goccy/go-yaml/ast"
)

// getStringNode gets the string value of a string node, or an error if not a
// string node.
func getStringNode(node ast.Node) (string, error) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, nil
	default:
		return "", NewConfigErrorf("node at '%s' is not a string", node.GetPath())
	}
}

// getScalarNode gets the native value of a scalar node: string, int64,
// float64, bool, or nil for a null node.
func getScalarNode(node ast.Node) (any, error) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, nil
	case *ast.IntegerNode:
		switch v := n.Value.(type) {
		case int64:
			return v, nil
		case uint64:
			return int64(v), nil
		case int:
			return int64(v), nil
		}
		return nil, NewConfigErrorf("unsupported integer at '%s'", node.GetPath())
	case *ast.FloatNode:
		return n.Value, nil
	case *ast.BoolNode:
		return n.Value, nil
	case *ast.NullNode:
		return nil, nil
	default:
		return nil, NewConfigErrorf("node at '%s' is not a scalar", node.GetPath())
	}
}

// getKeyNode gets a mapping key as a native value: string or bool.
func getKeyNode(node ast.Node) (any, error) {
	switch n := node.(type) {
	case *ast.StringNode:
		return n.Value, nil
	case *ast.BoolNode:
		return n.Value, nil
	default:
		return nil, NewConfigErrorf("mapping key at '%s' is not a string or bool", node.GetPath())
	}
}
