package csvmigrate

import (
	"strings"

	"github.com/google/uuid"
)

// rowMigrator turns one source record into an object graph and selects the
// target instance. All state built for a record is discarded afterwards.
type rowMigrator struct {
	mapping  *Mapping
	shims    *Shims
	uniquify bool
}

func newRowMigrator(mapping *Mapping, shims *Shims, uniquify bool) *rowMigrator {
	return &rowMigrator{
		mapping:  mapping,
		shims:    shims,
		uniquify: uniquify,
	}
}

// migrateRow runs the full per-record pipeline: instantiate the creatable
// classes, assign mapped values and defaults, run the per-instance hooks,
// resolve references, prune invalid subgraphs and select the target. A nil
// instance with nil error means the record produced no target.
func (m *rowMigrator) migrateRow(rec *Record) (Instance, error) {
	arena := NewArena()
	slots := make([]Instance, 0, len(m.mapping.Creatable()))

	// instantiate
	for _, c := range m.mapping.Creatable() {
		obj, err := c.New()
		if err != nil {
			return nil, err
		}
		arena.Add(obj)
		slots = append(slots, obj)
	}

	// mapped values
	for i, c := range m.mapping.Creatable() {
		obj := slots[i]
		for _, mp := range m.mapping.PathsOf(c) {
			value := rec.GetOrAbsent(mp.Field)
			if value.IsAbsent() {
				continue
			}
			if s, ok := value.AsString(); ok {
				value = StringValue(strings.TrimRight(s, " \t"))
			}

			parent, err := m.walkParents(obj, mp.Path, rec, arena)
			if err != nil {
				return nil, err
			}

			term := mp.Path.Terminal()
			if transform, ok := m.mapping.Transform(c, term); ok {
				value, err = transform(obj, value, rec)
				if err != nil {
					return nil, err
				}
			}
			if value.IsAbsent() {
				continue
			}
			if err := term.Set(parent, value.Native()); err != nil {
				return nil, err
			}
		}
	}

	// defaults, merge only
	for i, c := range m.mapping.Creatable() {
		obj := slots[i]
		for _, md := range m.mapping.DefaultsOf(c) {
			parent, err := m.walkParents(obj, md.Path, rec, arena)
			if err != nil {
				return nil, err
			}
			term := md.Path.Terminal()
			cur, err := term.Get(parent)
			if err != nil {
				return nil, err
			}
			if cur != nil {
				continue
			}
			if err := term.Set(parent, md.Value.Native()); err != nil {
				return nil, err
			}
		}
	}

	// uniquify
	if m.uniquify {
		for _, obj := range slots {
			if err := uniquifyInstance(m.shims, obj); err != nil {
				return nil, err
			}
		}
	}

	// per-instance hooks
	for _, obj := range arena.Instances() {
		if err := finalizeInstance(m.shims, obj, rec, arena); err != nil {
			return nil, err
		}
	}

	valid, err := m.resolveReferences(rec, arena)
	if err != nil {
		return nil, err
	}

	// select target
	var targets []Instance
	for _, obj := range valid.ordered() {
		if classAssignable(m.mapping.Target(), obj.Class()) {
			targets = append(targets, obj)
		}
	}
	switch len(targets) {
	case 0:
		return nil, nil
	case 1:
		return targets[0], nil
	default:
		return nil, NewRowErrorf("record produced %d instances of target class '%s', want one",
			len(targets), m.mapping.Target().Name())
	}
}

// walkParents walks the non-terminal path properties from the root instance,
// instantiating missing intermediates, and returns the instance holding the
// terminal property.
func (m *rowMigrator) walkParents(root Instance, path Path, rec *Record, arena *Arena) (Instance, error) {
	cur := root
	for _, prop := range path.Parents() {
		got, err := prop.Get(cur)
		if err != nil {
			return nil, err
		}
		if inst, ok := got.(Instance); ok && inst != nil {
			cur = inst
			continue
		}
		child, err := prop.Type().Class.New()
		if err != nil {
			return nil, err
		}
		if err := finalizeInstance(m.shims, child, rec, NewArena()); err != nil {
			return nil, err
		}
		if err := prop.Set(cur, child); err != nil {
			return nil, err
		}
		arena.Add(child)
		cur = child
	}
	return cur, nil
}

// validSet tracks the surviving instances of one record in a stable order.
type validSet struct {
	order []Instance
	valid map[uuid.UUID]bool
}

func newValidSet(objs []Instance) *validSet {
	ret := &validSet{
		order: objs,
		valid: make(map[uuid.UUID]bool, len(objs)),
	}
	for _, obj := range objs {
		ret.valid[obj.ID()] = true
	}
	return ret
}

func (s *validSet) isValid(obj Instance) bool {
	return s.valid[obj.ID()]
}

func (s *validSet) invalidate(obj Instance) {
	s.valid[obj.ID()] = false
}

func (s *validSet) ordered() []Instance {
	var ret []Instance
	for _, obj := range s.order {
		if s.valid[obj.ID()] {
			ret = append(ret, obj)
		}
	}
	return ret
}

// resolveReferences is the validation and reference resolution pass: it
// partitions the instances by validity, wires owner and non-owner
// references, and prunes instances left without valid owners or dependents.
func (m *rowMigrator) resolveReferences(rec *Record, arena *Arena) (*validSet, error) {
	all := arena.Instances()
	ownersFirst := ownersFirstOrder(all)
	dependentsFirst := reversed(ownersFirst)

	// partition by validity, dependents before owners
	valid := newValidSet(ownersFirst)
	for _, obj := range dependentsFirst {
		if instanceValid(m.shims, obj) {
			continue
		}
		valid.invalidate(obj)
		if err := clearReferences(obj, RoleOwner); err != nil {
			return nil, err
		}
	}

	// owner references
	for _, obj := range dependentsFirst {
		if !valid.isValid(obj) {
			continue
		}
		if err := m.resolveOwner(obj, arena); err != nil {
			return nil, err
		}
	}

	// independent and unidirectional dependent references
	for _, obj := range dependentsFirst {
		if !valid.isValid(obj) {
			continue
		}
		if err := m.resolveNonOwner(obj, rec, arena); err != nil {
			return nil, err
		}
	}

	// drop instances whose only possible owners are invalid
	for _, obj := range ownersFirst {
		if !valid.isValid(obj) {
			continue
		}
		orphaned, err := m.orphaned(obj, arena, valid)
		if err != nil {
			return nil, err
		}
		if orphaned {
			valid.invalidate(obj)
			if err := clearReferences(obj, RoleOwner); err != nil {
				return nil, err
			}
		}
	}

	// drop owner-closure instances left without valid dependents
	for _, obj := range dependentsFirst {
		if !valid.isValid(obj) || !m.mapping.InClosure(obj.Class()) {
			continue
		}
		hosting, err := m.hasValidDependent(obj, arena, valid)
		if err != nil {
			return nil, err
		}
		if !hosting {
			if err := clearReferences(obj, RoleOwner, RoleDependent, RoleIndependent); err != nil {
				return nil, err
			}
			valid.invalidate(obj)
		}
	}

	return valid, nil
}

// resolveOwner selects and assigns the owner reference of one instance. With
// several candidate owner properties, one whose candidate is the target
// class wins, then the instance's own preference, then none.
func (m *rowMigrator) resolveOwner(obj Instance, arena *Arena) error {
	type ownerChoice struct {
		prop      Property
		candidate Instance
	}
	var choices []ownerChoice
	for _, prop := range propertiesByRole(obj.Class(), RoleOwner) {
		cur, err := prop.Get(obj)
		if err != nil {
			return err
		}
		if prop.Collection() {
			if list, ok := cur.([]Instance); ok && len(list) > 0 {
				continue
			}
		} else if cur != nil {
			continue
		}
		candidate, ok := uniqueCandidate(arena, prop.Type().Class, obj)
		if !ok {
			continue
		}
		choices = append(choices, ownerChoice{prop: prop, candidate: candidate})
	}

	if len(choices) == 0 {
		return nil
	}
	if len(choices) > 1 {
		var preferred []ownerChoice
		for _, ch := range choices {
			if classAssignable(m.mapping.Target(), ch.candidate.Class()) {
				preferred = append(preferred, ch)
			}
		}
		if len(preferred) == 1 {
			choices = preferred
		} else {
			candidates := make([]Instance, len(choices))
			for i, ch := range choices {
				candidates[i] = ch.candidate
			}
			chosen, decided := chooseOwner(m.shims, obj, candidates)
			if !decided || chosen == nil {
				return nil
			}
			var match *ownerChoice
			for i := range choices {
				if choices[i].candidate.ID() == chosen.ID() {
					match = &choices[i]
					break
				}
			}
			if match == nil {
				return nil
			}
			choices = []ownerChoice{*match}
		}
	}

	if choices[0].prop.Collection() {
		return choices[0].prop.Append(obj, choices[0].candidate)
	}
	return choices[0].prop.Set(obj, choices[0].candidate)
}

// resolveNonOwner assigns independent single valued references and
// unidirectional dependent references from unique arena candidates.
func (m *rowMigrator) resolveNonOwner(obj Instance, rec *Record, arena *Arena) error {
	for _, prop := range obj.Class().Properties() {
		switch prop.Role() {
		case RoleIndependent:
			if prop.Collection() {
				continue
			}
		case RoleDependent:
			if bidirectional(obj.Class(), prop) {
				continue
			}
		default:
			continue
		}

		candidate, ok := uniqueCandidate(arena, prop.Type().Class, obj)
		if !ok {
			continue
		}
		if transform, found := m.shims.RefTransform(obj.Class(), prop.Name()); found {
			ret, err := transform(obj, candidate, rec)
			if err != nil {
				return err
			}
			if ret == nil {
				continue
			}
			candidate = ret
		}

		if prop.Collection() {
			if err := prop.Append(obj, candidate); err != nil {
				return err
			}
			continue
		}
		cur, err := prop.Get(obj)
		if err != nil {
			return err
		}
		if cur != nil {
			continue
		}
		if err := prop.Set(obj, candidate); err != nil {
			return err
		}
	}
	return nil
}

// orphaned reports whether every arena candidate for some owner property of
// the instance is invalid.
func (m *rowMigrator) orphaned(obj Instance, arena *Arena, valid *validSet) (bool, error) {
	for _, prop := range propertiesByRole(obj.Class(), RoleOwner) {
		candidates := candidatesExcept(arena, prop.Type().Class, obj)
		if len(candidates) == 0 {
			continue
		}
		anyValid := false
		for _, cand := range candidates {
			if valid.isValid(cand) {
				anyValid = true
				break
			}
		}
		if !anyValid {
			return true, nil
		}
	}
	return false, nil
}

// hasValidDependent reports whether any arena candidate for a dependent
// property of the instance is still valid.
func (m *rowMigrator) hasValidDependent(obj Instance, arena *Arena, valid *validSet) (bool, error) {
	for _, prop := range propertiesByRole(obj.Class(), RoleDependent) {
		for _, cand := range candidatesExcept(arena, prop.Type().Class, obj) {
			if valid.isValid(cand) {
				return true, nil
			}
		}
	}
	return false, nil
}

// bidirectional reports whether the dependent property's class points back
// at the owning class with an owner property.
func bidirectional(owner Class, prop Property) bool {
	dep := prop.Type().Class
	if dep == nil {
		return false
	}
	for _, back := range propertiesByRole(dep, RoleOwner) {
		if classAssignable(back.Type().Class, owner) || classAssignable(owner, back.Type().Class) {
			return true
		}
	}
	return false
}

func clearReferences(obj Instance, roles ...Role) error {
	for _, role := range roles {
		for _, prop := range propertiesByRole(obj.Class(), role) {
			if prop.Collection() {
				continue
			}
			if err := prop.Set(obj, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// uniqueCandidate returns the single arena instance assignable to the class,
// not counting self.
func uniqueCandidate(arena *Arena, c Class, self Instance) (Instance, bool) {
	candidates := candidatesExcept(arena, c, self)
	if len(candidates) != 1 {
		return nil, false
	}
	return candidates[0], true
}

func candidatesExcept(arena *Arena, c Class, self Instance) []Instance {
	if c == nil {
		return nil
	}
	var ret []Instance
	for _, cand := range arena.CandidatesOf(c) {
		if cand.ID() == self.ID() {
			continue
		}
		ret = append(ret, cand)
	}
	return ret
}

// ownersFirstOrder orders instances so owners come before their dependents,
// keeping creation order inside each layer.
func ownersFirstOrder(objs []Instance) []Instance {
	remaining := append([]Instance(nil), objs...)
	var ret []Instance
	for len(remaining) > 0 {
		var layer, next []Instance
		for _, obj := range remaining {
			depends := false
			for _, other := range remaining {
				if other.ID() == obj.ID() {
					continue
				}
				if obj.Class().DependsOn(other.Class()) && !other.Class().DependsOn(obj.Class()) {
					depends = true
					break
				}
			}
			if depends {
				next = append(next, obj)
			} else {
				layer = append(layer, obj)
			}
		}
		if len(layer) == 0 {
			ret = append(ret, next...)
			break
		}
		ret = append(ret, layer...)
		remaining = next
	}
	return ret
}

func reversed(objs []Instance) []Instance {
	ret := make([]Instance, len(objs))
	for i, obj := range objs {
		ret[len(objs)-1-i] = obj
	}
	return ret
}
