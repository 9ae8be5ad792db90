package csvmigrate

import (
	"fmt"

	"github.com/google/uuid"
)

// Role classifies how a property relates its owning class to its value.
type Role int

const (
	RoleAttribute   Role = iota // plain value attribute
	RoleOwner                   // reference to the instance's owner
	RoleDependent               // reference to a dependent instance
	RoleIndependent             // reference to an unrelated instance
)

func (r Role) String() string {
	switch r {
	case RoleAttribute:
		return "attribute"
	case RoleOwner:
		return "owner"
	case RoleDependent:
		return "dependent"
	case RoleIndependent:
		return "independent"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Type is the declared type of a property: either a primitive kind or a
// domain class.
type Type struct {
	Primitive Kind
	Class     Class
}

func (t Type) IsClass() bool {
	return t.Class != nil
}

func (t Type) String() string {
	if t.Class != nil {
		return t.Class.Name()
	}
	return t.Primitive.String()
}

// Property describes one attribute of a domain class.
type Property interface {
	Name() string
	Class() Class // owning class
	Type() Type
	Collection() bool
	Role() Role
	Get(obj Instance) (any, error)
	Set(obj Instance, value any) error
	Append(obj Instance, value any) error // collections only
}

// Class describes one domain class. The engine depends only on this
// interface, never on concrete domain types.
type Class interface {
	Name() string
	Abstract() bool
	New() (Instance, error)
	Property(name string) (Property, bool)
	Properties() []Property
	Owners() []Class
	Dependents() []Class
	DependsOn(other Class) bool
	SuperclassOf(other Class) bool
}

// Metamodel is the namespace lookup over the domain classes.
type Metamodel interface {
	ClassByName(name string) (Class, bool)
}

// Instance is one domain object.
type Instance interface {
	Class() Class
	ID() uuid.UUID
}

// classAssignable reports whether an instance of class c can be used where
// type t is expected.
func classAssignable(t Class, c Class) bool {
	if c == nil || t == nil {
		return false
	}
	return t.Name() == c.Name() || t.SuperclassOf(c)
}

// propertiesByRole returns the class properties with the given role.
func propertiesByRole(c Class, role Role) []Property {
	var ret []Property
	for _, p := range c.Properties() {
		if p.Role() == role {
			ret = append(ret, p)
		}
	}
	return ret
}

// classDependsOn reports whether a transitively depends on b, following the
// metamodel owner relation.
func classDependsOn(a, b Class) bool {
	seen := map[string]bool{}
	var walk func(c Class) bool
	walk = func(c Class) bool {
		if seen[c.Name()] {
			return false
		}
		seen[c.Name()] = true
		for _, owner := range c.Owners() {
			if classAssignable(owner, b) || classAssignable(b, owner) || walk(owner) {
				return true
			}
		}
		return false
	}
	return walk(a)
}
