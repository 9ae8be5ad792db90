package csvmigrate

import (
	"github.com/google/uuid"
)

// StaticModel is a map-backed Metamodel for callers without a reflective
// domain model, and for tests. Classes are declared with the builder methods
// on StaticClass; cross-class references are by name and may be declared in
// any order.
type StaticModel struct {
	classes map[string]*StaticClass
	order   []string
}

var _ Metamodel = (*StaticModel)(nil)

func NewStaticModel() *StaticModel {
	return &StaticModel{
		classes: make(map[string]*StaticClass),
	}
}

func (m *StaticModel) ClassByName(name string) (Class, bool) {
	c, ok := m.classes[name]
	if !ok {
		return nil, false
	}
	return c, true
}

// Class declares a class, returning the existing one if already declared.
func (m *StaticModel) Class(name string) *StaticClass {
	if c, ok := m.classes[name]; ok {
		return c
	}
	c := &StaticClass{
		model:      m,
		name:       name,
		propByName: make(map[string]*staticProperty),
	}
	m.classes[name] = c
	m.order = append(m.order, name)
	return c
}

// StaticClass is the Class implementation of StaticModel.
type StaticClass struct {
	model      *StaticModel
	name       string
	abstract   bool
	superName  string
	props      []*staticProperty
	propByName map[string]*staticProperty

	validFn       func(Instance) bool
	migrateFn     func(Instance, *Record, *Arena) error
	extractFn     func(Instance, *Sink) error
	preferOwnerFn func(Instance, []Instance) (Instance, bool)
	uniquifyFn    func(Instance) error
}

var _ Class = (*StaticClass)(nil)

// SetAbstract marks the class abstract. Abstract classes cannot be instantiated.
func (c *StaticClass) SetAbstract() *StaticClass {
	c.abstract = true
	return c
}

// Extends declares the superclass by name.
func (c *StaticClass) Extends(superName string) *StaticClass {
	c.superName = superName
	return c
}

// Attr declares a primitive single-valued attribute.
func (c *StaticClass) Attr(name string, kind Kind) *StaticClass {
	return c.addProperty(name, Type{Primitive: kind}, "", RoleAttribute, false)
}

// Owner declares a single-valued owner reference to the named class.
func (c *StaticClass) Owner(name string, className string) *StaticClass {
	return c.addProperty(name, Type{}, className, RoleOwner, false)
}

// OwnerCollection declares a collection owner reference to the named class.
func (c *StaticClass) OwnerCollection(name string, className string) *StaticClass {
	return c.addProperty(name, Type{}, className, RoleOwner, true)
}

// Dependent declares a single-valued dependent reference to the named class.
func (c *StaticClass) Dependent(name string, className string) *StaticClass {
	return c.addProperty(name, Type{}, className, RoleDependent, false)
}

// DependentCollection declares a collection dependent reference.
func (c *StaticClass) DependentCollection(name string, className string) *StaticClass {
	return c.addProperty(name, Type{}, className, RoleDependent, true)
}

// Independent declares a single-valued independent reference.
func (c *StaticClass) Independent(name string, className string) *StaticClass {
	return c.addProperty(name, Type{}, className, RoleIndependent, false)
}

// OnValid sets the migration validity predicate for instances of this class.
func (c *StaticClass) OnValid(f func(Instance) bool) *StaticClass {
	c.validFn = f
	return c
}

// OnMigrate sets the per-instance finalization hook.
func (c *StaticClass) OnMigrate(f func(Instance, *Record, *Arena) error) *StaticClass {
	c.migrateFn = f
	return c
}

// OnExtract sets the extract serializer hook.
func (c *StaticClass) OnExtract(f func(Instance, *Sink) error) *StaticClass {
	c.extractFn = f
	return c
}

// OnPreferOwner sets the owner disambiguation hook.
func (c *StaticClass) OnPreferOwner(f func(Instance, []Instance) (Instance, bool)) *StaticClass {
	c.preferOwnerFn = f
	return c
}

// OnUniquify sets the secondary key uniquifier hook.
func (c *StaticClass) OnUniquify(f func(Instance) error) *StaticClass {
	c.uniquifyFn = f
	return c
}

func (c *StaticClass) addProperty(name string, typ Type, className string, role Role, collection bool) *StaticClass {
	p := &staticProperty{
		class:      c,
		name:       name,
		typ:        typ,
		className:  className,
		role:       role,
		collection: collection,
	}
	c.props = append(c.props, p)
	c.propByName[name] = p
	return c
}

func (c *StaticClass) Name() string {
	return c.name
}

func (c *StaticClass) Abstract() bool {
	return c.abstract
}

func (c *StaticClass) super() *StaticClass {
	if c.superName == "" {
		return nil
	}
	return c.model.classes[c.superName]
}

func (c *StaticClass) New() (Instance, error) {
	if c.abstract {
		return nil, NewRowErrorf("cannot instantiate abstract class '%s'", c.name)
	}
	return &staticInstance{
		class:  c,
		id:     uuid.New(),
		fields: make(map[string]any),
	}, nil
}

func (c *StaticClass) Property(name string) (Property, bool) {
	for cur := c; cur != nil; cur = cur.super() {
		if p, ok := cur.propByName[name]; ok {
			return p, true
		}
	}
	return nil, false
}

func (c *StaticClass) Properties() []Property {
	var ret []Property
	seen := map[string]bool{}
	for cur := c; cur != nil; cur = cur.super() {
		for _, p := range cur.props {
			if seen[p.name] {
				continue
			}
			seen[p.name] = true
			ret = append(ret, p)
		}
	}
	return ret
}

// Owners derives the owner classes: targets of this class's owner references,
// plus any class holding a dependent reference to this class.
func (c *StaticClass) Owners() []Class {
	var ret []Class
	seen := map[string]bool{}
	for _, p := range c.Properties() {
		if p.Role() == RoleOwner && p.Type().IsClass() && !seen[p.Type().Class.Name()] {
			seen[p.Type().Class.Name()] = true
			ret = append(ret, p.Type().Class)
		}
	}
	for _, name := range c.model.order {
		other := c.model.classes[name]
		if seen[other.name] {
			continue
		}
		for _, p := range other.props {
			if p.role == RoleDependent && classAssignable(p.resolveType().Class, c) {
				seen[other.name] = true
				ret = append(ret, other)
				break
			}
		}
	}
	return ret
}

// Dependents derives the dependent classes, the inverse of Owners.
func (c *StaticClass) Dependents() []Class {
	var ret []Class
	seen := map[string]bool{}
	for _, p := range c.Properties() {
		if p.Role() == RoleDependent && p.Type().IsClass() && !seen[p.Type().Class.Name()] {
			seen[p.Type().Class.Name()] = true
			ret = append(ret, p.Type().Class)
		}
	}
	for _, name := range c.model.order {
		other := c.model.classes[name]
		if seen[other.name] {
			continue
		}
		for _, p := range other.props {
			if p.role == RoleOwner && classAssignable(p.resolveType().Class, c) {
				seen[other.name] = true
				ret = append(ret, other)
				break
			}
		}
	}
	return ret
}

func (c *StaticClass) DependsOn(other Class) bool {
	return classDependsOn(c, other)
}

func (c *StaticClass) SuperclassOf(other Class) bool {
	oc, ok := other.(*StaticClass)
	if !ok {
		return false
	}
	for cur := oc.super(); cur != nil; cur = cur.super() {
		if cur == c {
			return true
		}
	}
	return false
}

type staticProperty struct {
	class      *StaticClass
	name       string
	typ        Type
	className  string
	role       Role
	collection bool
}

var _ Property = (*staticProperty)(nil)

func (p *staticProperty) Name() string {
	return p.name
}

func (p *staticProperty) Class() Class {
	return p.class
}

func (p *staticProperty) resolveType() Type {
	if p.className != "" {
		return Type{Class: p.class.model.classes[p.className]}
	}
	return p.typ
}

func (p *staticProperty) Type() Type {
	return p.resolveType()
}

func (p *staticProperty) Collection() bool {
	return p.collection
}

func (p *staticProperty) Role() Role {
	return p.role
}

func (p *staticProperty) Get(obj Instance) (any, error) {
	inst, err := p.instanceOf(obj)
	if err != nil {
		return nil, err
	}
	return inst.fields[p.name], nil
}

func (p *staticProperty) Set(obj Instance, value any) error {
	if p.collection {
		return NewRowErrorf("property '%s.%s' is a collection, use Append", p.class.name, p.name)
	}
	inst, err := p.instanceOf(obj)
	if err != nil {
		return err
	}
	if err := p.checkValue(value); err != nil {
		return err
	}
	if value == nil {
		delete(inst.fields, p.name)
		return nil
	}
	inst.fields[p.name] = value
	return nil
}

func (p *staticProperty) Append(obj Instance, value any) error {
	if !p.collection {
		return NewRowErrorf("property '%s.%s' is not a collection", p.class.name, p.name)
	}
	inst, err := p.instanceOf(obj)
	if err != nil {
		return err
	}
	if err := p.checkValue(value); err != nil {
		return err
	}
	cur, _ := inst.fields[p.name].([]Instance)
	inst.fields[p.name] = append(cur, value.(Instance))
	return nil
}

func (p *staticProperty) instanceOf(obj Instance) (*staticInstance, error) {
	inst, ok := obj.(*staticInstance)
	if !ok {
		return nil, NewRowErrorf("instance type %T is not from a StaticModel", obj)
	}
	if !classAssignable(p.class, obj.Class()) {
		return nil, NewRowErrorf("property '%s.%s' not valid for class '%s'", p.class.name, p.name, obj.Class().Name())
	}
	return inst, nil
}

func (p *staticProperty) checkValue(value any) error {
	if value == nil {
		return nil
	}
	typ := p.resolveType()
	if typ.IsClass() {
		inst, ok := value.(Instance)
		if !ok || !classAssignable(typ.Class, inst.Class()) {
			return NewRowErrorf("property '%s.%s' expects an instance of '%s'", p.class.name, p.name, typ.Class.Name())
		}
		return nil
	}
	ok := false
	switch value.(type) {
	case string:
		ok = typ.Primitive == KindString
	case int64:
		ok = typ.Primitive == KindInt
	case float64:
		ok = typ.Primitive == KindFloat
	case bool:
		ok = typ.Primitive == KindBool
	default:
		_, isTime := value.(interface{ Unix() int64 })
		ok = isTime && typ.Primitive == KindDate
	}
	if !ok {
		return NewRowErrorf("property '%s.%s' expects a %s value, got %T", p.class.name, p.name, typ.Primitive, value)
	}
	return nil
}

type staticInstance struct {
	class  *StaticClass
	id     uuid.UUID
	fields map[string]any
}

var _ Instance = (*staticInstance)(nil)

func (i *staticInstance) Class() Class {
	return i.class
}

func (i *staticInstance) ID() uuid.UUID {
	return i.id
}

// hookClass walks the class chain for the first class declaring hooks.
func (i *staticInstance) hookClass(f func(*StaticClass) bool) {
	for cur := i.class; cur != nil; cur = cur.super() {
		if f(cur) {
			return
		}
	}
}

func (i *staticInstance) MigrationValid() bool {
	ret := true
	i.hookClass(func(c *StaticClass) bool {
		if c.validFn != nil {
			ret = c.validFn(i)
			return true
		}
		return false
	})
	return ret
}

func (i *staticInstance) MigrateRow(rec *Record, migrated *Arena) error {
	var ret error
	i.hookClass(func(c *StaticClass) bool {
		if c.migrateFn != nil {
			ret = c.migrateFn(i, rec, migrated)
			return true
		}
		return false
	})
	return ret
}

func (i *staticInstance) Extract(sink *Sink) error {
	found := false
	var ret error
	i.hookClass(func(c *StaticClass) bool {
		if c.extractFn != nil {
			found = true
			ret = c.extractFn(i, sink)
			return true
		}
		return false
	})
	if !found {
		return NewRowErrorf("class '%s' has no extract hook", i.class.name)
	}
	return ret
}

func (i *staticInstance) PreferOwner(candidates []Instance) (Instance, bool) {
	var ret Instance
	ok := false
	i.hookClass(func(c *StaticClass) bool {
		if c.preferOwnerFn != nil {
			ret, ok = c.preferOwnerFn(i, candidates)
			return true
		}
		return false
	})
	return ret, ok
}

func (i *staticInstance) Uniquify() error {
	var ret error
	i.hookClass(func(c *StaticClass) bool {
		if c.uniquifyFn != nil {
			ret = c.uniquifyFn(i)
			return true
		}
		return false
	})
	return ret
}
