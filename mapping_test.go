package csvmigrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func compileMapping(t *testing.T, mm Metamodel, targetName string, src *Source,
	fields FieldsSpec, defaults DefaultsSpec, filters FiltersSpec, options ...MappingOption) *Mapping {
	t.Helper()
	mapping, err := CompileMapping(mm, mustClass(t, mm, targetName), src.Accessor, fields, defaults, filters, options...)
	require.NoError(t, err)
	return mapping
}

func classNames(classes []Class) []string {
	var ret []string
	for _, c := range classes {
		ret = append(ret, c.Name())
	}
	return ret
}

func TestCompileMapping(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name,Born,Parent Name\n")

	mapping := compileMapping(t, mm, "Child", src, FieldsSpec{
		{Path: "name", Header: "Name"},
		{Path: "birthday", Header: "Born"},
		{Path: "Parent.name", Header: "Parent Name"},
	}, nil, nil)

	require.Equal(t, "Child", mapping.Target().Name())
	// owners are created before their dependents
	require.Equal(t, []string{"Parent", "Child"}, classNames(mapping.Creatable()))

	child := mustClass(t, mm, "Child")
	paths := mapping.PathsOf(child)
	require.Len(t, paths, 2)
	require.Equal(t, "name", paths[0].Field)
	require.Equal(t, "born", paths[1].Field)
}

func TestCompileMappingSkipsBlankHeaders(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name\n")

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "name", Header: "Name"},
		{Path: "employed", Header: ""},
	}, nil, nil)

	require.Len(t, mapping.PathsOf(mustClass(t, mm, "Parent")), 1)
}

func TestCompileMappingMergesSuperclasses(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name,Employed\n")

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "Person.name", Header: "Name"},
		{Path: "Parent.employed", Header: "Employed"},
	}, nil, nil)

	require.Equal(t, []string{"Parent"}, classNames(mapping.Creatable()))

	paths := mapping.PathsOf(mustClass(t, mm, "Parent"))
	require.Len(t, paths, 2)
	require.Equal(t, "employed", paths[0].Path.Terminal().Name())
	require.Equal(t, "name", paths[1].Path.Terminal().Name())
}

func TestCompileMappingAbstractTarget(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name\n")

	_, err := CompileMapping(mm, mustClass(t, mm, "Person"), src.Accessor, FieldsSpec{
		{Path: "Person.name", Header: "Name"},
	}, nil, nil)
	require.ErrorIs(t, err, ConfigError)
}

func TestCompileMappingOwnerClosure(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name,Street\n")

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "name", Header: "Name"},
		{Path: "Address.street1", Header: "Street"},
	}, nil, nil)

	require.Equal(t, []string{"Parent", "Household", "Address"}, classNames(mapping.Creatable()))
	require.True(t, mapping.InClosure(mustClass(t, mm, "Household")))
	require.False(t, mapping.InClosure(mustClass(t, mm, "Parent")))
	require.False(t, mapping.InClosure(mustClass(t, mm, "Address")))
	require.Empty(t, mapping.PathsOf(mustClass(t, mm, "Household")))
}

func TestCompileMappingBoolTransform(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name,Employed\n")
	parent := mustClass(t, mm, "Parent")

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "name", Header: "Name"},
		{Path: "employed", Header: "Employed"},
	}, nil, nil)

	employed, ok := parent.Property("employed")
	require.True(t, ok)

	// boolean attributes parse even without a configured filter
	transform, ok := mapping.Transform(parent, employed)
	require.True(t, ok)
	v, err := transform(nil, StringValue("yes"), nil)
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v)

	name, ok := parent.Property("name")
	require.True(t, ok)
	_, ok = mapping.Transform(parent, name)
	require.False(t, ok)
}

func TestCompileMappingFilterAttachment(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name,Employed\n")
	parent := mustClass(t, mm, "Parent")

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "name", Header: "Name"},
		{Path: "employed", Header: "Employed"},
	}, nil, FiltersSpec{
		{Path: "employed", Spec: FilterSpec{
			{Key: "working", Value: "yes"},
		}},
		{Path: "name", Spec: FilterSpec{
			{Key: "unknown", Value: nil},
		}},
	})

	employed, _ := parent.Property("employed")
	transform, ok := mapping.Transform(parent, employed)
	require.True(t, ok)
	v, err := transform(nil, StringValue("working"), nil)
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v)

	name, _ := parent.Property("name")
	transform, ok = mapping.Transform(parent, name)
	require.True(t, ok)
	v, err = transform(nil, StringValue("unknown"), nil)
	require.NoError(t, err)
	require.True(t, v.IsAbsent())
	v, err = transform(nil, StringValue("alice"), nil)
	require.NoError(t, err)
	require.Equal(t, StringValue("alice"), v)
}

func TestCompileMappingShimTransform(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name\n")
	parent := mustClass(t, mm, "Parent")

	shims := NewShims().RegisterAttr(parent, "name", func(obj Instance, v Value, rec *Record) (Value, error) {
		return StringValue("shimmed"), nil
	})

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "name", Header: "Name"},
	}, nil, nil, WithMappingShims(shims))

	name, _ := parent.Property("name")
	transform, ok := mapping.Transform(parent, name)
	require.True(t, ok)
	v, err := transform(nil, StringValue("alice"), nil)
	require.NoError(t, err)
	require.Equal(t, StringValue("shimmed"), v)
}

func TestCompileMappingDefaults(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name\n")

	mapping := compileMapping(t, mm, "Parent", src, FieldsSpec{
		{Path: "name", Header: "Name"},
	}, DefaultsSpec{
		{Path: "employed", Value: true},
	}, nil)

	defaults := mapping.DefaultsOf(mustClass(t, mm, "Parent"))
	require.Len(t, defaults, 1)
	require.Equal(t, "employed", defaults[0].Path.Terminal().Name())
	require.Equal(t, BoolValue(true), defaults[0].Value)
}

func TestCompileMappingErrors(t *testing.T) {
	mm := familyModel()
	src := sourceFromCSV(t, "Name\n")
	parent := mustClass(t, mm, "Parent")

	_, err := CompileMapping(mm, nil, src.Accessor, FieldsSpec{{Path: "name", Header: "Name"}}, nil, nil)
	require.ErrorIs(t, err, ConfigError)

	_, err = CompileMapping(mm, parent, src.Accessor, nil, nil, nil)
	require.ErrorIs(t, err, ConfigError)

	_, err = CompileMapping(mm, parent, src.Accessor, FieldsSpec{{Path: "name", Header: "Nope"}}, nil, nil)
	require.ErrorIs(t, err, ConfigError)

	_, err = CompileMapping(mm, parent, src.Accessor, FieldsSpec{{Path: "bad path", Header: "Name"}}, nil, nil)
	require.ErrorIs(t, err, ConfigError)

	_, err = CompileMapping(mm, parent, src.Accessor, FieldsSpec{{Path: "name", Header: "Name"}}, nil, FiltersSpec{
		{Path: "name", Spec: FilterSpec{{Key: "/x/g", Value: "y"}}},
	})
	require.ErrorIs(t, err, ConfigError)
}
