package csvmigrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newInstance(t *testing.T, mm Metamodel, className string) Instance {
	t.Helper()
	obj, err := mustClass(t, mm, className).New()
	require.NoError(t, err)
	return obj
}

func TestArena(t *testing.T) {
	mm := familyModel()
	parent := newInstance(t, mm, "Parent")
	child := newInstance(t, mm, "Child")

	arena := NewArena()
	require.Equal(t, 0, arena.Len())
	require.False(t, arena.Contains(parent))

	arena.Add(parent)
	arena.Add(child)
	arena.Add(parent)
	require.Equal(t, 2, arena.Len())
	require.True(t, arena.Contains(parent))

	instances := arena.Instances()
	require.Len(t, instances, 2)
	require.Equal(t, parent.ID(), instances[0].ID())
	require.Equal(t, child.ID(), instances[1].ID())

	arena.Remove(parent)
	require.Equal(t, 1, arena.Len())
	require.False(t, arena.Contains(parent))
	arena.Remove(parent)
	require.Equal(t, 1, arena.Len())
}

func TestArenaWalk(t *testing.T) {
	mm := familyModel()
	arena := NewArena()
	arena.Add(newInstance(t, mm, "Parent"))
	arena.Add(newInstance(t, mm, "Child"))
	arena.Add(newInstance(t, mm, "Household"))

	var count int
	arena.Walk(func(Instance) bool {
		count++
		return count < 2
	})
	require.Equal(t, 2, count)
}

func TestArenaCandidatesOf(t *testing.T) {
	mm := familyModel()
	person := mustClass(t, mm, "Person")
	parentClass := mustClass(t, mm, "Parent")
	household := mustClass(t, mm, "Household")

	parent := newInstance(t, mm, "Parent")
	child := newInstance(t, mm, "Child")

	arena := NewArena()
	arena.Add(parent)
	arena.Add(child)

	// subclass instances match their superclass
	require.Len(t, arena.CandidatesOf(person), 2)
	require.Len(t, arena.CandidatesOf(parentClass), 1)
	require.Empty(t, arena.CandidatesOf(household))

	obj, ok := arena.InstanceOf(parentClass)
	require.True(t, ok)
	require.Equal(t, parent.ID(), obj.ID())

	_, ok = arena.InstanceOf(person)
	require.False(t, ok)
	_, ok = arena.InstanceOf(household)
	require.False(t, ok)
}
