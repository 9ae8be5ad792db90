package csvmigrate

import (
	"iter"
	"regexp"
	"strings"
)

// Values represents a read-only view of the field values of one record.
type Values interface {
	Get(fieldKey string) (val Value, exists bool) // gets the value of a field, returning whether the field exists.
	GetOrAbsent(fieldKey string) Value            // gets the value of a field, or Absent if the field don't exist.
	All(yield func(string, Value) bool)           // iterator of all the field values, in field order.
	Len() int                                     // returns the amount of field values.
}

// Record is a mutable Values keeping the field insertion order, which for
// records read from a CSV source is the header order.
type Record struct {
	keys   []string
	values map[string]Value
}

var _ Values = (*Record)(nil)

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{
		values: make(map[string]Value),
	}
}

func (r *Record) Get(fieldKey string) (Value, bool) {
	val, exists := r.values[fieldKey]
	return val, exists
}

func (r *Record) GetOrAbsent(fieldKey string) Value {
	return r.values[fieldKey]
}

func (r *Record) Len() int {
	return len(r.keys)
}

// Keys returns the field keys in insertion order.
func (r *Record) Keys() []string {
	return r.keys
}

func (r *Record) All(yield func(string, Value) bool) {
	for _, key := range r.keys {
		if !yield(key, r.values[key]) {
			return
		}
	}
}

// Set sets a field value. A new field is appended after the existing ones.
func (r *Record) Set(fieldKey string, val Value) {
	if _, ok := r.values[fieldKey]; !ok {
		r.keys = append(r.keys, fieldKey)
	}
	r.values[fieldKey] = val
}

// Insert sets a list of field values.
func (r *Record) Insert(seq iter.Seq2[string, Value]) {
	for key, val := range seq {
		r.Set(key, val)
	}
}

func (r *Record) Clone() *Record {
	ret := NewRecord()
	for key, val := range r.All {
		ret.Set(key, val)
	}
	return ret
}

// ValuesGet gets a native value from values casting to the T type.
func ValuesGet[T any](values Values, fieldKey string) (val T, exists bool, isType bool) {
	v, ok := values.Get(fieldKey)
	if !ok || v.IsAbsent() {
		var ret T
		return ret, ok, false
	}
	vt, ok := v.Native().(T)
	return vt, true, ok
}

var fieldKeyInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeFieldKey derives the field key for a source header: lowercased,
// with runs of non-alphanumeric characters collapsed to a single underscore.
func NormalizeFieldKey(header string) string {
	key := fieldKeyInvalid.ReplaceAllString(strings.ToLower(header), "_")
	return strings.Trim(key, "_")
}
