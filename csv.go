package csvmigrate

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// Source reads records from a CSV input. The first row is the header; each
// following row is exposed as a Record keyed by the normalized field keys,
// with cell values coerced by Coerce.
type Source struct {
	r          *csv.Reader
	closer     io.Closer
	conv       Converter
	fieldNames []string
	accessors  []string
	accessorOf map[string]string
	raw        []string
	record     int
}

type SourceOption func(*Source)

// WithSourceConverter sets a converter tried before the default cell coercion.
func WithSourceConverter(conv Converter) SourceOption {
	return func(s *Source) {
		s.conv = conv
	}
}

// OpenSource opens a CSV file and reads its header row.
func OpenSource(path string, options ...SourceOption) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening source '%s': %w", path, err)
	}
	ret, err := NewSource(f, options...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	ret.closer = f
	return ret, nil
}

// NewSource reads the header row from a CSV stream.
func NewSource(r io.Reader, options ...SourceOption) (*Source, error) {
	ret := &Source{
		r:          csv.NewReader(r),
		accessorOf: make(map[string]string),
	}
	for _, opt := range options {
		opt(ret)
	}

	header, err := ret.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, NewConfigError("source has no header row")
		}
		return nil, fmt.Errorf("error reading source header: %w", err)
	}

	for _, name := range header {
		key := NormalizeFieldKey(name)
		ret.fieldNames = append(ret.fieldNames, name)
		ret.accessors = append(ret.accessors, key)
		ret.accessorOf[name] = key
	}

	return ret, nil
}

// FieldNames returns the original header strings in order.
func (s *Source) FieldNames() []string {
	return s.fieldNames
}

// Accessors returns the normalized field keys in header order.
func (s *Source) Accessors() []string {
	return s.accessors
}

// Accessor returns the field key for a source header name.
func (s *Source) Accessor(header string) (string, bool) {
	key, ok := s.accessorOf[header]
	return key, ok
}

// Next reads the next record. It returns io.EOF after the last one.
func (s *Source) Next() (*Record, error) {
	raw, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("error reading source record %d: %w", s.record+1, err)
	}
	s.raw = raw
	s.record++

	ret := NewRecord()
	for i, key := range s.accessors {
		var cell string
		if i < len(raw) {
			cell = raw[i]
		}
		ret.Set(key, Coerce(cell, s.conv))
	}
	return ret, nil
}

// All iterates all remaining records. Iteration stops at the end of the input
// or at the first read error; All does not report that error.
func (s *Source) All(yield func(int, *Record) bool) {
	for {
		rec, err := s.Next()
		if err != nil {
			return
		}
		if !yield(s.record, rec) {
			return
		}
	}
}

// Raw returns the unparsed cells of the last record read.
func (s *Source) Raw() []string {
	return s.raw
}

// RecordNumber returns the 1-based number of the last record read.
func (s *Source) RecordNumber() int {
	return s.record
}

func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// Sink is an append-only record output, flushed after every append. With
// headers it writes CSV with the header row first; without, it writes plain
// lines.
type Sink struct {
	w       *csv.Writer
	plain   *bufio.Writer
	closer  io.Closer
	headers []string
}

// OpenSink creates a CSV file sink with the given header order.
func OpenSink(path string, headers []string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating sink '%s': %w", path, err)
	}
	ret, err := NewSink(f, headers)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	ret.closer = f
	return ret, nil
}

// NewSink creates a CSV sink with the given header order on a stream.
func NewSink(w io.Writer, headers []string) (*Sink, error) {
	ret := &Sink{
		w:       csv.NewWriter(w),
		headers: headers,
	}
	if err := ret.AppendRaw(headers); err != nil {
		return nil, err
	}
	return ret, nil
}

// OpenLineSink creates a plain line-appending file sink.
func OpenLineSink(path string) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("error creating sink '%s': %w", path, err)
	}
	ret := NewLineSink(f)
	ret.closer = f
	return ret, nil
}

// NewLineSink creates a plain line-appending sink on a stream.
func NewLineSink(w io.Writer) *Sink {
	return &Sink{
		plain: bufio.NewWriter(w),
	}
}

// Headers returns the sink header order, or nil for a line sink.
func (s *Sink) Headers() []string {
	return s.headers
}

// Append writes one record, selecting fields by the sink's header order.
func (s *Sink) Append(rec Values) error {
	if s.w == nil {
		return NewConfigError("sink has no headers, use AppendLine")
	}
	fields := make([]string, len(s.headers))
	for i, header := range s.headers {
		fields[i] = rec.GetOrAbsent(NormalizeFieldKey(header)).Format()
	}
	return s.AppendRaw(fields)
}

// AppendRaw writes one row of unprocessed cells.
func (s *Sink) AppendRaw(fields []string) error {
	if s.w == nil {
		return NewConfigError("sink has no headers, use AppendLine")
	}
	if err := s.w.Write(fields); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// AppendLine writes one plain text line.
func (s *Sink) AppendLine(line string) error {
	if s.plain == nil {
		return NewConfigError("sink has headers, use Append or AppendRaw")
	}
	if _, err := s.plain.WriteString(line + "\n"); err != nil {
		return err
	}
	return s.plain.Flush()
}

func (s *Sink) Close() error {
	var err error
	if s.w != nil {
		s.w.Flush()
		err = s.w.Error()
	}
	if s.plain != nil {
		err = s.plain.Flush()
	}
	if s.closer != nil {
		cerr := s.closer.Close()
		if err == nil {
			err = cerr
		}
	}
	return err
}
