package csvmigrate

// Optional behavior interfaces implemented by domain instances. The engine
// checks for them at runtime with type assertions; instances that don't
// implement one get the default behavior.

// RowMigrator finalizes an instance after the record's mapped values and
// defaults were applied, before references are resolved. It may inspect and
// modify the other instances created for the record. Intermediate instances
// created to fill a path run it as soon as they are created, with an empty
// Arena.
type RowMigrator interface {
	MigrateRow(rec *Record, migrated *Arena) error
}

// Validatable reports whether an instance holds enough state to survive
// migration. Instances without it are always valid.
type Validatable interface {
	MigrationValid() bool
}

// Extractable serializes an instance to an extract sink.
type Extractable interface {
	Extract(sink *Sink) error
}

// OwnerChooser disambiguates between multiple owner candidates. Returning
// false falls back to the default candidate selection.
type OwnerChooser interface {
	PreferOwner(candidates []Instance) (Instance, bool)
}

// Uniquifier rewrites an instance's natural key to avoid collisions with
// previously emitted instances.
type Uniquifier interface {
	Uniquify() error
}

// AttrTransform rewrites an attribute value before it is set, after the
// configured filter ran. The record gives access to the other source fields.
type AttrTransform func(obj Instance, v Value, rec *Record) (Value, error)

// RefTransform rewrites a resolved reference before it is set.
type RefTransform func(obj Instance, ref Instance, rec *Record) (Instance, error)

// Finalizer is the registry form of [RowMigrator].
type Finalizer func(obj Instance, rec *Record, migrated *Arena) error

// Validator is the registry form of [Validatable].
type Validator func(obj Instance) bool

// Extractor is the registry form of [Extractable].
type Extractor func(obj Instance, sink *Sink) error

// OwnerPreference is the registry form of [OwnerChooser].
type OwnerPreference func(obj Instance, candidates []Instance) (Instance, bool)

// UniquifyFunc is the registry form of [Uniquifier].
type UniquifyFunc func(obj Instance) error

type shimEntry[T any] struct {
	class Class
	fn    T
}

type propShim[T any] struct {
	class Class
	prop  string
	fn    T
}

func findPropShim[T any](entries []propShim[T], c Class, prop string) (T, bool) {
	for _, e := range entries {
		if e.prop == prop && e.class.Name() == c.Name() {
			return e.fn, true
		}
	}
	for _, e := range entries {
		if e.prop == prop && e.class.SuperclassOf(c) {
			return e.fn, true
		}
	}
	var zero T
	return zero, false
}

func findShim[T any](entries []shimEntry[T], c Class) (T, bool) {
	for _, e := range entries {
		if e.class.Name() == c.Name() {
			return e.fn, true
		}
	}
	for _, e := range entries {
		if e.class.SuperclassOf(c) {
			return e.fn, true
		}
	}
	var zero T
	return zero, false
}

// Shims registers per-class behavior overrides without touching the domain
// types. A registered entry wins over the matching interface when an instance
// has both. Entries registered for a superclass apply to its subclasses; an
// exact class entry wins over a superclass one.
type Shims struct {
	attrs       []propShim[AttrTransform]
	refs        []propShim[RefTransform]
	finalizers  []shimEntry[Finalizer]
	validators  []shimEntry[Validator]
	extractors  []shimEntry[Extractor]
	ownerPrefs  []shimEntry[OwnerPreference]
	uniquifiers []shimEntry[UniquifyFunc]
}

// NewShims creates an empty registry.
func NewShims() *Shims {
	return &Shims{}
}

// RegisterAttr registers a transform for one attribute of a class. Transforms
// for properties the mapping never sets are ignored.
func (s *Shims) RegisterAttr(class Class, attr string, f AttrTransform) *Shims {
	s.attrs = append(s.attrs, propShim[AttrTransform]{class, attr, f})
	return s
}

// RegisterRef registers a transform for one reference property of a class.
func (s *Shims) RegisterRef(class Class, ref string, f RefTransform) *Shims {
	s.refs = append(s.refs, propShim[RefTransform]{class, ref, f})
	return s
}

// RegisterFinalizer registers a per-record finalization hook for a class.
func (s *Shims) RegisterFinalizer(class Class, f Finalizer) *Shims {
	s.finalizers = append(s.finalizers, shimEntry[Finalizer]{class, f})
	return s
}

// RegisterValidator registers a validity predicate for a class.
func (s *Shims) RegisterValidator(class Class, f Validator) *Shims {
	s.validators = append(s.validators, shimEntry[Validator]{class, f})
	return s
}

// RegisterExtractor registers an extract serializer for a class.
func (s *Shims) RegisterExtractor(class Class, f Extractor) *Shims {
	s.extractors = append(s.extractors, shimEntry[Extractor]{class, f})
	return s
}

// RegisterPreferOwner registers an owner disambiguation hook for a class.
func (s *Shims) RegisterPreferOwner(class Class, f OwnerPreference) *Shims {
	s.ownerPrefs = append(s.ownerPrefs, shimEntry[OwnerPreference]{class, f})
	return s
}

// RegisterUniquifier registers a natural key uniquifier for a class.
func (s *Shims) RegisterUniquifier(class Class, f UniquifyFunc) *Shims {
	s.uniquifiers = append(s.uniquifiers, shimEntry[UniquifyFunc]{class, f})
	return s
}

// AttrTransform returns the transform registered for a class attribute.
func (s *Shims) AttrTransform(class Class, attr string) (AttrTransform, bool) {
	if s == nil {
		return nil, false
	}
	return findPropShim(s.attrs, class, attr)
}

// RefTransform returns the transform registered for a class reference.
func (s *Shims) RefTransform(class Class, ref string) (RefTransform, bool) {
	if s == nil {
		return nil, false
	}
	return findPropShim(s.refs, class, ref)
}

// instanceValid applies the registered validator or the instance's own
// [Validatable]. Instances with neither are valid.
func instanceValid(shims *Shims, obj Instance) bool {
	if shims != nil {
		if f, ok := findShim(shims.validators, obj.Class()); ok {
			return f(obj)
		}
	}
	if v, ok := obj.(Validatable); ok {
		return v.MigrationValid()
	}
	return true
}

// finalizeInstance applies the registered finalizer or the instance's own
// [RowMigrator].
func finalizeInstance(shims *Shims, obj Instance, rec *Record, migrated *Arena) error {
	if shims != nil {
		if f, ok := findShim(shims.finalizers, obj.Class()); ok {
			return f(obj, rec, migrated)
		}
	}
	if m, ok := obj.(RowMigrator); ok {
		return m.MigrateRow(rec, migrated)
	}
	return nil
}

// extractInstance applies the registered extractor or the instance's own
// [Extractable]. Having neither is an error, extraction was asked for.
func extractInstance(shims *Shims, obj Instance, sink *Sink) error {
	if shims != nil {
		if f, ok := findShim(shims.extractors, obj.Class()); ok {
			return f(obj, sink)
		}
	}
	if e, ok := obj.(Extractable); ok {
		return e.Extract(sink)
	}
	return NewRowErrorf("class '%s' has no extractor", obj.Class().Name())
}

// chooseOwner applies the registered owner preference or the instance's own
// [OwnerChooser]. It reports false when neither decides.
func chooseOwner(shims *Shims, obj Instance, candidates []Instance) (Instance, bool) {
	if shims != nil {
		if f, ok := findShim(shims.ownerPrefs, obj.Class()); ok {
			if ret, decided := f(obj, candidates); decided {
				return ret, true
			}
			return nil, false
		}
	}
	if c, ok := obj.(OwnerChooser); ok {
		return c.PreferOwner(candidates)
	}
	return nil, false
}

// uniquifyInstance applies the registered uniquifier or the instance's own
// [Uniquifier].
func uniquifyInstance(shims *Shims, obj Instance) error {
	if shims != nil {
		if f, ok := findShim(shims.uniquifiers, obj.Class()); ok {
			return f(obj)
		}
	}
	if u, ok := obj.(Uniquifier); ok {
		return u.Uniquify()
	}
	return nil
}
