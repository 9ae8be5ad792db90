package csvmigrate

import (
	"github.com/rrgmc/csvmigrate/internal/depgraph"
)

// FieldSpec maps one property path expression to a source header name.
type FieldSpec struct {
	Path   string
	Header string
}

// FieldsSpec is an ordered field mapping specification.
type FieldsSpec []FieldSpec

// DefaultSpec supplies a constant for a property path when the record left
// it unset.
type DefaultSpec struct {
	Path  string
	Value any
}

// DefaultsSpec is an ordered defaults specification.
type DefaultsSpec []DefaultSpec

// FilterAttachment attaches a filter specification to an attribute path.
type FilterAttachment struct {
	Path string
	Spec FilterSpec
}

// FiltersSpec is an ordered filter attachment specification.
type FiltersSpec []FilterAttachment

// MappedPath is a compiled field mapping: the property path and the field
// key of the source column feeding it.
type MappedPath struct {
	Path  Path
	Field string
}

// MappedDefault is a compiled default: the property path and the constant.
type MappedDefault struct {
	Path  Path
	Value Value
}

type classEntry struct {
	class    Class
	paths    []MappedPath
	defaults []MappedDefault
}

// Mapping is a compiled, immutable field mapping: which classes are created
// per record, in which order, which source fields feed which properties, and
// the per-attribute transform chain.
type Mapping struct {
	target     Class
	entries    map[string]*classEntry
	order      []Class
	closure    map[string]bool
	transforms map[string]map[string]AttrTransform
}

type mappingOptions struct {
	shims *Shims
}

type MappingOption func(*mappingOptions)

// WithMappingShims composes registered attribute transforms into the
// compiled transform chain.
func WithMappingShims(shims *Shims) MappingOption {
	return func(o *mappingOptions) {
		o.shims = shims
	}
}

type compiledFilter struct {
	class Class
	prop  string
	spec  FilterSpec
}

// CompileMapping compiles field, defaults and filter specifications against
// the metamodel into an immutable Mapping. The accessor resolves source
// header names to field keys, normally [Source.Accessor].
func CompileMapping(mm Metamodel, target Class, accessor func(string) (string, bool),
	fields FieldsSpec, defaults DefaultsSpec, filters FiltersSpec, options ...MappingOption) (*Mapping, error) {
	var optns mappingOptions
	for _, opt := range options {
		opt(&optns)
	}

	if target == nil {
		return nil, NewConfigError("mapping requires a target class")
	}
	if len(fields) == 0 {
		return nil, NewConfigError("mapping requires at least one field entry")
	}

	ret := &Mapping{
		target:     target,
		entries:    make(map[string]*classEntry),
		closure:    make(map[string]bool),
		transforms: make(map[string]map[string]AttrTransform),
	}
	var entryOrder []string

	entryOf := func(c Class) *classEntry {
		e, ok := ret.entries[c.Name()]
		if !ok {
			e = &classEntry{class: c}
			ret.entries[c.Name()] = e
			entryOrder = append(entryOrder, c.Name())
		}
		return e
	}

	// field entries
	for _, field := range fields {
		if field.Header == "" {
			continue
		}
		root, path, err := ParsePath(mm, target, field.Path)
		if err != nil {
			return nil, err
		}
		key, ok := accessor(field.Header)
		if !ok {
			return nil, NewConfigErrorf("unknown source header '%s' for path '%s'", field.Header, field.Path)
		}
		e := entryOf(root)
		e.paths = append(e.paths, MappedPath{Path: path, Field: key})
	}

	// defaults
	for _, def := range defaults {
		root, path, err := ParsePath(mm, target, def.Path)
		if err != nil {
			return nil, err
		}
		value, err := ValueOf(def.Value)
		if err != nil {
			return nil, err
		}
		e := entryOf(root)
		e.defaults = append(e.defaults, MappedDefault{Path: path, Value: value})
	}

	// filter attachments
	var compiledFilters []compiledFilter
	for _, attach := range filters {
		_, path, err := ParsePath(mm, target, attach.Path)
		if err != nil {
			return nil, err
		}
		term := path.Terminal()
		compiledFilters = append(compiledFilters, compiledFilter{
			class: term.Class(),
			prop:  term.Name(),
			spec:  attach.Spec,
		})
	}

	if err := ret.mergeSuperclasses(&entryOrder); err != nil {
		return nil, err
	}

	for _, name := range entryOrder {
		if ret.entries[name].class.Abstract() {
			return nil, NewConfigErrorf("cannot create instances of abstract class '%s'", name)
		}
	}

	ret.closeOwners(mm, entryOf, &entryOrder)

	if err := ret.sortCreatable(entryOrder); err != nil {
		return nil, err
	}

	if err := ret.buildTransforms(compiledFilters, optns.shims); err != nil {
		return nil, err
	}

	return ret, nil
}

// mergeSuperclasses folds configured superclasses into their configured
// strict subclasses, subclass entries winning on path collisions, and drops
// the superclass from the creatable set.
func (m *Mapping) mergeSuperclasses(entryOrder *[]string) error {
	var removed []string
	for _, superName := range *entryOrder {
		superEntry := m.entries[superName]
		var subs []*classEntry
		for _, subName := range *entryOrder {
			if subName == superName {
				continue
			}
			subEntry := m.entries[subName]
			if superEntry.class.SuperclassOf(subEntry.class) {
				subs = append(subs, subEntry)
			}
		}
		if len(subs) == 0 {
			continue
		}
		for _, sub := range subs {
			for _, mp := range superEntry.paths {
				if !hasPath(sub.paths, mp.Path) {
					sub.paths = append(sub.paths, mp)
				}
			}
			for _, md := range superEntry.defaults {
				if !hasDefault(sub.defaults, md.Path) {
					sub.defaults = append(sub.defaults, md)
				}
			}
		}
		removed = append(removed, superName)
	}
	for _, name := range removed {
		delete(m.entries, name)
	}
	if len(removed) > 0 {
		var kept []string
		for _, name := range *entryOrder {
			if _, ok := m.entries[name]; ok {
				kept = append(kept, name)
			}
		}
		*entryOrder = kept
	}
	return nil
}

func hasPath(paths []MappedPath, p Path) bool {
	s := p.String()
	for _, mp := range paths {
		if mp.Path.String() == s {
			return true
		}
	}
	return false
}

func hasDefault(defaults []MappedDefault, p Path) bool {
	s := p.String()
	for _, md := range defaults {
		if md.Path.String() == s {
			return true
		}
	}
	return false
}

// closeOwners extends the creatable set until every creatable class with
// owners has a creatable owner, picking the first concrete owner whose own
// owner chain reaches an already creatable class. Added classes carry no
// field paths and are recorded for post-migration pruning.
func (m *Mapping) closeOwners(mm Metamodel, entryOf func(Class) *classEntry, entryOrder *[]string) {
	isCreatable := func(c Class) bool {
		for _, name := range *entryOrder {
			if classAssignable(c, m.entries[name].class) {
				return true
			}
		}
		return false
	}

	var chainTouches func(c Class, seen map[string]bool) bool
	chainTouches = func(c Class, seen map[string]bool) bool {
		if seen[c.Name()] {
			return false
		}
		seen[c.Name()] = true
		if isCreatable(c) {
			return true
		}
		for _, owner := range c.Owners() {
			if chainTouches(owner, seen) {
				return true
			}
		}
		return false
	}

	for {
		changed := false
		names := append([]string(nil), *entryOrder...)
		for _, name := range names {
			c := m.entries[name].class
			owners := c.Owners()
			if len(owners) == 0 {
				continue
			}
			found := false
			for _, owner := range owners {
				if isCreatable(owner) {
					found = true
					break
				}
			}
			if found {
				continue
			}
			for _, owner := range owners {
				if owner.Abstract() {
					continue
				}
				if !chainTouches(owner, map[string]bool{c.Name(): true}) {
					continue
				}
				entryOf(owner)
				m.closure[owner.Name()] = true
				changed = true
				break
			}
		}
		if !changed {
			return
		}
	}
}

// sortCreatable orders the creatable classes so owners precede dependents,
// ties kept in configuration order.
func (m *Mapping) sortCreatable(entryOrder []string) error {
	depg := depgraph.New()
	for _, name := range entryOrder {
		if err := depg.DependOn(name, ""); err != nil {
			return NewConfigErrorf("error ordering creatable classes: %w", err)
		}
	}
	for _, name := range entryOrder {
		c := m.entries[name].class
		for _, other := range entryOrder {
			if other == name {
				continue
			}
			if c.DependsOn(m.entries[other].class) {
				if err := depg.DependOn(name, other); err != nil {
					return NewConfigErrorf("error ordering creatable classes: %w", err)
				}
			}
		}
	}
	var order []string
	for _, layer := range depg.TopoSortedLayers() {
		order = append(order, layer...)
	}
	if len(order) != len(entryOrder) {
		return NewConfigErrorf("internal error: expected %d creatable classes in order, got %d", len(entryOrder), len(order))
	}
	for _, name := range order {
		m.order = append(m.order, m.entries[name].class)
	}
	return nil
}

// buildTransforms composes, per creatable class and mapped terminal
// attribute, the configured filter and the registered transform. Boolean
// typed attributes always get the boolean parsing filter.
func (m *Mapping) buildTransforms(filters []compiledFilter, shims *Shims) error {
	findSpec := func(c Class, term Property) (FilterSpec, bool) {
		for _, f := range filters {
			if f.prop != term.Name() {
				continue
			}
			if classAssignable(f.class, term.Class()) || classAssignable(f.class, c) {
				return f.spec, true
			}
		}
		return nil, false
	}

	for _, c := range m.order {
		e := m.entries[c.Name()]
		for _, mp := range e.paths {
			term := mp.Path.Terminal()
			if term.Type().IsClass() {
				continue
			}

			spec, hasSpec := findSpec(c, term)
			var filter ValueFilter
			if term.Type().Primitive == KindBool {
				bf, err := NewBoolFilter(spec)
				if err != nil {
					return err
				}
				filter = bf
			} else if hasSpec {
				f, err := NewFilter(spec)
				if err != nil {
					return err
				}
				filter = f
			}

			var shim AttrTransform
			if shims != nil {
				if f, ok := shims.AttrTransform(c, term.Name()); ok {
					shim = f
				}
			}

			if filter == nil && shim == nil {
				continue
			}
			bound := bindTransform(filter, shim)
			tm, ok := m.transforms[c.Name()]
			if !ok {
				tm = make(map[string]AttrTransform)
				m.transforms[c.Name()] = tm
			}
			if _, ok := tm[term.Name()]; !ok {
				tm[term.Name()] = bound
			}
		}
	}
	return nil
}

func bindTransform(filter ValueFilter, shim AttrTransform) AttrTransform {
	return func(obj Instance, v Value, rec *Record) (Value, error) {
		if filter != nil {
			v = filter.Apply(v)
		}
		if shim != nil {
			return shim(obj, v, rec)
		}
		return v, nil
	}
}

// Target returns the target class.
func (m *Mapping) Target() Class {
	return m.target
}

// Creatable returns the creatable classes in construction order.
func (m *Mapping) Creatable() []Class {
	return m.order
}

// InClosure reports whether the class was added by the owner closure rather
// than configured directly.
func (m *Mapping) InClosure(c Class) bool {
	return m.closure[c.Name()]
}

// PathsOf returns the compiled field mappings of a creatable class.
func (m *Mapping) PathsOf(c Class) []MappedPath {
	e, ok := m.entries[c.Name()]
	if !ok {
		return nil
	}
	return e.paths
}

// DefaultsOf returns the compiled defaults of a creatable class.
func (m *Mapping) DefaultsOf(c Class) []MappedDefault {
	e, ok := m.entries[c.Name()]
	if !ok {
		return nil
	}
	return e.defaults
}

// Transform returns the composed transform for an attribute of a creatable
// class.
func (m *Mapping) Transform(c Class, prop Property) (AttrTransform, bool) {
	tm, ok := m.transforms[c.Name()]
	if !ok {
		return nil, false
	}
	f, ok := tm[prop.Name()]
	return f, ok
}
