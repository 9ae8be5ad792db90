package csvmigrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// familyModel builds the model used across tests: an abstract Person with
// Parent and Child subclasses, households and addresses.
//
//	Person (abstract): name string
//	Parent extends Person: employed bool, spouse Independent->Parent,
//	    household Dependent->Household
//	Child extends Person: birthday date, parents OwnerCollection->Parent
//	Household: address Dependent->Address
//	Address: street1, city, state strings
func familyModel() *StaticModel {
	m := NewStaticModel()
	m.Class("Person").SetAbstract().
		Attr("name", KindString)
	m.Class("Parent").Extends("Person").
		Attr("employed", KindBool).
		Independent("spouse", "Parent").
		Dependent("household", "Household")
	m.Class("Child").Extends("Person").
		Attr("birthday", KindDate).
		OwnerCollection("parents", "Parent")
	m.Class("Household").
		Dependent("address", "Address")
	m.Class("Address").
		Attr("street1", KindString).
		Attr("city", KindString).
		Attr("state", KindString)
	return m
}

func mustClass(t *testing.T, mm Metamodel, name string) Class {
	t.Helper()
	c, ok := mm.ClassByName(name)
	require.True(t, ok, "class %q not found", name)
	return c
}

// getPath walks a dotted property path from an instance and returns the
// terminal value.
func getPath(t *testing.T, obj Instance, path string) any {
	t.Helper()
	cur := obj
	parts := strings.Split(path, ".")
	for i, part := range parts {
		prop, ok := cur.Class().Property(part)
		require.True(t, ok, "property %q not found on %q", part, cur.Class().Name())
		v, err := prop.Get(cur)
		require.NoError(t, err)
		if i == len(parts)-1 {
			return v
		}
		next, ok := v.(Instance)
		require.True(t, ok, "property %q of %q is not an instance", part, cur.Class().Name())
		cur = next
	}
	return nil
}

func sourceFromCSV(t *testing.T, data string, options ...SourceOption) *Source {
	t.Helper()
	src, err := NewSource(strings.NewReader(data), options...)
	require.NoError(t, err)
	return src
}
