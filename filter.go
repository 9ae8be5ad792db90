package csvmigrate

import (
	"regexp"
)

// FilterRule is one entry of a filter specification. Key is a literal (string
// or bool) or a regex written as "/pattern/flags"; Value is the replacement,
// nil meaning absent, or a template with $n back-references for regex keys.
type FilterRule struct {
	Key   any
	Value any
}

// FilterSpec is an ordered filter specification. Order matters for regex
// entries, which are tried in insertion order.
type FilterSpec []FilterRule

// Filter is a compiled value transformer.
type Filter struct {
	block    func(Value) Value
	literals map[string]Value
	regexes  []filterRegex
	catchAll *Value
}

type filterRegex struct {
	re       *regexp.Regexp
	template string
	// non-string replacements are returned as-is on match.
	value    Value
	isString bool
}

type FilterOption func(*Filter)

// WithFilterBlock sets a transform applied to the input before any rule.
func WithFilterBlock(block func(Value) Value) FilterOption {
	return func(f *Filter) {
		f.block = block
	}
}

var regexKeyPattern = regexp.MustCompile(`^/(.*)/([a-zA-Z]*)$`)

// NewFilter compiles a filter specification. At least one of a non-empty spec
// or a block is required.
func NewFilter(spec FilterSpec, options ...FilterOption) (*Filter, error) {
	ret := &Filter{
		literals: make(map[string]Value),
	}
	for _, opt := range options {
		opt(ret)
	}
	if len(spec) == 0 && ret.block == nil {
		return nil, NewConfigError("filter requires a spec or a block")
	}

	for _, rule := range spec {
		key, ok := rule.Key.(string)
		if !ok {
			return nil, NewConfigErrorf("filter key must be a string, got %T", rule.Key)
		}

		value, err := ValueOf(rule.Value)
		if err != nil {
			return nil, err
		}

		m := regexKeyPattern.FindStringSubmatch(key)
		if m == nil {
			ret.literals[key] = value
			continue
		}

		pattern, flags := m[1], m[2]
		if flags != "" && flags != "i" {
			return nil, NewConfigErrorf("unsupported regex flags '%s' in filter key '%s'", flags, key)
		}
		if pattern == ".*" {
			v := value
			ret.catchAll = &v
			continue
		}
		if flags == "i" {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, NewConfigErrorf("invalid regex in filter key '%s': %v", key, err)
		}
		template, isString := rule.Value.(string)
		ret.regexes = append(ret.regexes, filterRegex{
			re:       re,
			template: template,
			value:    value,
			isString: isString,
		})
	}

	return ret, nil
}

// Apply transforms a value. Literals are matched first, then regexes in
// insertion order (replacing each match with the template, substituting $n
// captures; an empty result is absent), then the catch-all. An unmatched
// value is returned unchanged.
func (f *Filter) Apply(v Value) Value {
	if f.block != nil {
		v = f.block(v)
	}
	if v.IsAbsent() {
		return Absent
	}

	s := v.Format()
	if rv, ok := f.literals[s]; ok {
		return rv
	}

	for _, fr := range f.regexes {
		if !fr.re.MatchString(s) {
			continue
		}
		if !fr.isString {
			return fr.value
		}
		result := fr.re.ReplaceAllString(s, fr.template)
		if result == "" {
			return Absent
		}
		return StringValue(result)
	}

	if f.catchAll != nil {
		return *f.catchAll
	}
	return v
}

// BoolFilter is the filter synthesized for boolean-typed attributes. The
// string-keyed rules run first; the surviving value is parsed as boolean and
// mapped through the boolean-keyed rules.
type BoolFilter struct {
	str   *Filter
	bools map[bool]Value
}

// NewBoolFilter compiles a filter for a boolean-typed attribute, splitting
// the spec into string-keyed and boolean-keyed sub-filters. An empty spec is
// valid and yields the plain string-to-boolean parse.
func NewBoolFilter(spec FilterSpec, options ...FilterOption) (*BoolFilter, error) {
	var strSpec FilterSpec
	bools := make(map[bool]Value)
	for _, rule := range spec {
		if bkey, ok := rule.Key.(bool); ok {
			value, err := ValueOf(rule.Value)
			if err != nil {
				return nil, err
			}
			bools[bkey] = value
			continue
		}
		strSpec = append(strSpec, rule)
	}

	ret := &BoolFilter{
		bools: bools,
	}
	if len(strSpec) > 0 || len(options) > 0 {
		str, err := NewFilter(strSpec, options...)
		if err != nil {
			return nil, err
		}
		ret.str = str
	}
	return ret, nil
}

// Apply transforms a value into a boolean (or whatever the boolean-keyed
// rules map it to). Values that survive the string rules but don't parse as
// boolean become absent.
func (f *BoolFilter) Apply(v Value) Value {
	if f.str != nil {
		v = f.str.Apply(v)
	}
	if v.IsAbsent() {
		return Absent
	}

	var b bool
	if bv, ok := v.AsBool(); ok {
		b = bv
	} else {
		pv, ok := ParseBool(v.Format())
		if !ok {
			return Absent
		}
		b = pv
	}

	if rv, ok := f.bools[b]; ok {
		return rv
	}
	return BoolValue(b)
}

// ValueFilter is the common interface of Filter and BoolFilter.
type ValueFilter interface {
	Apply(Value) Value
}

var (
	_ ValueFilter = (*Filter)(nil)
	_ ValueFilter = (*BoolFilter)(nil)
)

// FilterSpecFromPairs is a convenience for building specs in code and tests:
// keys and values are strings, "~" meaning absent.
func FilterSpecFromPairs(pairs ...string) FilterSpec {
	var ret FilterSpec
	for i := 0; i+1 < len(pairs); i += 2 {
		var value any
		if pairs[i+1] != "~" {
			value = pairs[i+1]
		}
		ret = append(ret, FilterRule{Key: pairs[i], Value: value})
	}
	return ret
}
