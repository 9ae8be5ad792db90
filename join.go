package csvmigrate

import (
	"errors"
	"io"
	"os"
	"slices"
	"strings"
)

type joinOptions struct {
	fields    []string
	transform func(*Record) (*Record, bool)
}

type JoinOption func(*joinOptions)

// WithJoinFields restricts the source-only columns included in the output.
// Included columns keep their source header order. Common columns are always
// included.
func WithJoinFields(names ...string) JoinOption {
	return func(o *joinOptions) {
		o.fields = names
	}
}

// WithJoinTransform sets a transform applied to each output record before it
// is written. Returning false drops the record.
func WithJoinTransform(f func(*Record) (*Record, bool)) JoinOption {
	return func(o *joinOptions) {
		o.transform = f
	}
}

// JoinFiles runs Join over file paths. An empty target path reads stdin, an
// empty output path writes stdout.
func JoinFiles(sourcePath, targetPath, outPath string, options ...JoinOption) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return NewJoinErrorf("error opening source '%s': %w", sourcePath, err)
	}
	defer source.Close()

	var target io.Reader = os.Stdin
	if targetPath != "" {
		tf, err := os.Open(targetPath)
		if err != nil {
			return NewJoinErrorf("error opening target '%s': %w", targetPath, err)
		}
		defer tf.Close()
		target = tf
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		of, err := os.Create(outPath)
		if err != nil {
			return NewJoinErrorf("error creating output '%s': %w", outPath, err)
		}
		defer of.Close()
		out = of
	}

	return Join(source, target, out, options...)
}

// Join merges two CSV streams sorted by their common columns into an outer
// join. Rows matching on the common column tuple are merged; unmatched rows
// are emitted with the other side's columns empty. The output header is the
// common columns in source order, then the remaining source columns, then
// the remaining target columns.
func Join(source, target io.Reader, out io.Writer, options ...JoinOption) error {
	var optns joinOptions
	for _, opt := range options {
		opt(&optns)
	}

	src, err := NewSource(source)
	if err != nil {
		return err
	}
	tgt, err := NewSource(target)
	if err != nil {
		return err
	}

	common, srcOnly, tgtOnly, headers := joinColumns(src, tgt, optns.fields)
	if len(common) == 0 {
		return NewJoinErrorf("source and target share no columns")
	}

	sink, err := NewSink(out, headers)
	if err != nil {
		return err
	}

	emit := func(rec *Record) error {
		if optns.transform != nil {
			ret, ok := optns.transform(rec)
			if !ok {
				return nil
			}
			rec = ret
		}
		return sink.Append(rec)
	}

	left, err := newJoinSide(src, common)
	if err != nil {
		return err
	}
	right, err := newJoinSide(tgt, common)
	if err != nil {
		return err
	}

	for !left.eof || !right.eof {
		var cmp int
		switch {
		case left.eof:
			cmp = 1
		case right.eof:
			cmp = -1
		default:
			cmp = compareKeys(left.key, right.key)
		}

		switch {
		case cmp < 0:
			if err := emit(mergeRecords(left.cur, nil, common, srcOnly, tgtOnly)); err != nil {
				return err
			}
			if err := left.advance(); err != nil {
				return err
			}
		case cmp > 0:
			if err := emit(mergeRecords(nil, right.cur, common, srcOnly, tgtOnly)); err != nil {
				return err
			}
			if err := right.advance(); err != nil {
				return err
			}
		default:
			if err := emit(mergeRecords(left.cur, right.cur, common, srcOnly, tgtOnly)); err != nil {
				return err
			}
			leftDup := left.nextMatchesCurrent()
			rightDup := right.nextMatchesCurrent()
			switch {
			case leftDup && !rightDup:
				if err := left.advance(); err != nil {
					return err
				}
			case rightDup && !leftDup:
				if err := right.advance(); err != nil {
					return err
				}
			default:
				if err := left.advance(); err != nil {
					return err
				}
				if err := right.advance(); err != nil {
					return err
				}
			}
		}
	}

	return sink.Close()
}

// joinColumns partitions the columns of both sides and builds the output
// header order. Column identity is the normalized field key; output headers
// keep the original names.
func joinColumns(src, tgt *Source, fields []string) (common, srcOnly, tgtOnly []string, headers []string) {
	tgtKeys := tgt.Accessors()

	var include func(name string) bool
	if len(fields) > 0 {
		include = func(name string) bool {
			return slices.Contains(fields, name)
		}
	} else {
		include = func(string) bool { return true }
	}

	for i, key := range src.Accessors() {
		name := src.FieldNames()[i]
		if slices.Contains(tgtKeys, key) {
			common = append(common, key)
			headers = append(headers, name)
		} else if include(name) {
			srcOnly = append(srcOnly, key)
		}
	}
	for i, key := range src.Accessors() {
		if slices.Contains(srcOnly, key) {
			headers = append(headers, src.FieldNames()[i])
		}
	}
	for i, key := range tgtKeys {
		if !slices.Contains(common, key) {
			tgtOnly = append(tgtOnly, key)
			headers = append(headers, tgt.FieldNames()[i])
		}
	}
	return common, srcOnly, tgtOnly, headers
}

func mergeRecords(left, right *Record, common, srcOnly, tgtOnly []string) *Record {
	ret := NewRecord()
	for _, key := range common {
		if left != nil {
			ret.Set(key, left.GetOrAbsent(key))
		} else {
			ret.Set(key, right.GetOrAbsent(key))
		}
	}
	for _, key := range srcOnly {
		if left != nil {
			ret.Set(key, left.GetOrAbsent(key))
		} else {
			ret.Set(key, Absent)
		}
	}
	for _, key := range tgtOnly {
		if right != nil {
			ret.Set(key, right.GetOrAbsent(key))
		} else {
			ret.Set(key, Absent)
		}
	}
	return ret
}

type joinSide struct {
	src     *Source
	common  []string
	cur     *Record
	key     []Value
	next    *Record
	nextKey []Value
	eof     bool
}

func newJoinSide(src *Source, common []string) (*joinSide, error) {
	ret := &joinSide{
		src:    src,
		common: common,
	}
	// fill current and lookahead
	if err := ret.advance(); err != nil {
		return nil, err
	}
	if err := ret.advance(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *joinSide) advance() error {
	s.cur, s.key = s.next, s.nextKey
	rec, err := s.src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.next, s.nextKey = nil, nil
			if s.cur == nil {
				s.eof = true
			}
			return nil
		}
		return err
	}
	s.next = rec
	s.nextKey = recordKey(rec, s.common)
	return nil
}

func (s *joinSide) nextMatchesCurrent() bool {
	if s.next == nil {
		return false
	}
	return compareKeys(s.key, s.nextKey) == 0
}

func recordKey(rec *Record, common []string) []Value {
	ret := make([]Value, len(common))
	for i, key := range common {
		ret[i] = rec.GetOrAbsent(key)
	}
	return ret
}

// compareKeys orders key tuples column by column, absent sorting before any
// value.
func compareKeys(a, b []Value) int {
	for i := range a {
		av, bv := a[i], b[i]
		switch {
		case av.IsAbsent() && bv.IsAbsent():
			continue
		case av.IsAbsent():
			return -1
		case bv.IsAbsent():
			return 1
		}
		if c := strings.Compare(av.Format(), bv.Format()); c != 0 {
			return c
		}
	}
	return 0
}
