package csvmigrate

import (
	"github.com/google/uuid"
)

// Arena holds the instances created while migrating one record. It is
// discarded after the record's target has been emitted.
type Arena struct {
	order     []uuid.UUID
	instances map[uuid.UUID]Instance
}

// NewArena creates an empty Arena.
func NewArena() *Arena {
	return &Arena{
		instances: make(map[uuid.UUID]Instance),
	}
}

// Add registers an instance. Re-adding the same instance is a no-op.
func (a *Arena) Add(obj Instance) {
	id := obj.ID()
	if _, ok := a.instances[id]; ok {
		return
	}
	a.order = append(a.order, id)
	a.instances[id] = obj
}

// Remove unregisters an instance.
func (a *Arena) Remove(obj Instance) {
	id := obj.ID()
	if _, ok := a.instances[id]; !ok {
		return
	}
	delete(a.instances, id)
	for i, oid := range a.order {
		if oid == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether the instance is registered.
func (a *Arena) Contains(obj Instance) bool {
	_, ok := a.instances[obj.ID()]
	return ok
}

// Len returns the number of registered instances.
func (a *Arena) Len() int {
	return len(a.order)
}

// Instances returns the registered instances in insertion order.
func (a *Arena) Instances() []Instance {
	ret := make([]Instance, 0, len(a.order))
	for _, id := range a.order {
		ret = append(ret, a.instances[id])
	}
	return ret
}

// Walk calls the callback for each instance in insertion order, until the
// callback returns false.
func (a *Arena) Walk(f func(Instance) bool) {
	for _, id := range a.order {
		obj, ok := a.instances[id]
		if !ok {
			continue
		}
		if !f(obj) {
			return
		}
	}
}

// CandidatesOf returns the instances assignable to the class, in insertion
// order.
func (a *Arena) CandidatesOf(c Class) []Instance {
	var ret []Instance
	for _, id := range a.order {
		obj := a.instances[id]
		if classAssignable(c, obj.Class()) {
			ret = append(ret, obj)
		}
	}
	return ret
}

// InstanceOf returns the single instance assignable to the class. It reports
// false when there is none or more than one.
func (a *Arena) InstanceOf(c Class) (Instance, bool) {
	candidates := a.CandidatesOf(c)
	if len(candidates) != 1 {
		return nil, false
	}
	return candidates[0], true
}
