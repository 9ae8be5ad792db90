package csvmigrate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the possible types of a cell value.
type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindInt
	KindFloat
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a tagged cell value. The zero value is the absent value.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	t    time.Time
	b    bool
}

// Absent is the absent cell value.
var Absent = Value{}

func StringValue(s string) Value {
	return Value{kind: KindString, s: s}
}

func IntValue(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func FloatValue(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

func DateValue(t time.Time) Value {
	return Value{kind: KindDate, t: t}
}

func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) AsFloat() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) AsDate() (time.Time, bool) {
	return v.t, v.kind == KindDate
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Native returns the underlying Go value, or nil if absent.
func (v Value) Native() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindDate:
		return v.t
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// Format returns the textual form of the value, suitable for CSV output.
// Absent formats as the empty string.
func (v Value) Format() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindDate:
		return v.t.Format("2006-01-02")
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindDate:
		return v.t.Equal(other.t)
	default:
		return v == other
	}
}

func (v Value) String() string {
	if v.kind == KindAbsent {
		return "<absent>"
	}
	return v.Format()
}

// ValueOf converts a native Go value to a Value. nil converts to Absent.
func ValueOf(val any) (Value, error) {
	switch vv := val.(type) {
	case nil:
		return Absent, nil
	case Value:
		return vv, nil
	case string:
		return StringValue(vv), nil
	case int:
		return IntValue(int64(vv)), nil
	case int64:
		return IntValue(vv), nil
	case uint64:
		return IntValue(int64(vv)), nil
	case float64:
		return FloatValue(vv), nil
	case time.Time:
		return DateValue(vv), nil
	case bool:
		return BoolValue(vv), nil
	default:
		return Absent, NewConfigErrorf("unsupported value type %T", val)
	}
}

// Converter allows callers to override the default cell coercion. Returning
// ok=false falls back to the built-in rules.
type Converter func(raw string) (Value, bool)

var (
	intPattern    = regexp.MustCompile(`^[1-9]\d*$`)
	floatPattern  = regexp.MustCompile(`^(\d+\.\d*|\d*\.\d+)$`)
	dateMonthName = regexp.MustCompile(`^([A-Za-z]{3})[a-z]*\.?,?\s+(\d{1,2}),?\s+(\d{4})$`)
	dateDayMonth  = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{2}|\d{4})$`)
	dateYMD       = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	dateDMY       = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
)

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Coerce converts a raw cell string into a typed Value. Empty or blank cells
// become Absent. A non-nil converter is tried first; an integer match next
// (leading zeros stay strings), then the recognized date patterns, then
// float, and finally the trimmed string itself.
func Coerce(raw string, conv Converter) Value {
	if conv != nil {
		if v, ok := conv(raw); ok {
			return v
		}
	}

	s := strings.TrimSpace(raw)
	if s == "" {
		return Absent
	}

	if intPattern.MatchString(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntValue(i)
		}
		return StringValue(s)
	}

	if t, ok := coerceDate(s); ok {
		return DateValue(t)
	}

	if floatPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatValue(f)
		}
	}

	return StringValue(s)
}

func coerceDate(s string) (time.Time, bool) {
	if m := dateMonthName.FindStringSubmatch(s); m != nil {
		month, ok := monthNumbers[strings.ToLower(m[1])]
		if !ok {
			return time.Time{}, false
		}
		return makeDate(m[3], month, m[2])
	}
	if m := dateDayMonth.FindStringSubmatch(s); m != nil {
		month, ok := monthNumbers[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}
		return makeDate(expandYear(m[3]), month, m[1])
	}
	if m := dateYMD.FindStringSubmatch(s); m != nil {
		month, ok := monthNumber(m[2])
		if !ok {
			return time.Time{}, false
		}
		return makeDate(m[1], month, m[3])
	}
	if m := dateDMY.FindStringSubmatch(s); m != nil {
		month, ok := monthNumber(m[2])
		if !ok {
			return time.Time{}, false
		}
		return makeDate(m[3], month, m[1])
	}
	return time.Time{}, false
}

func monthNumber(s string) (time.Month, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return time.Month(n), true
}

// expandYear widens a 2-digit year, pivoting at 70 (70..99 -> 19xx, else 20xx).
func expandYear(s string) string {
	if len(s) == 4 {
		return s
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	if n >= 70 {
		return strconv.Itoa(1900 + n)
	}
	return strconv.Itoa(2000 + n)
}

func makeDate(year string, month time.Month, day string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, month, d, 0, 0, 0, 0, time.UTC), true
}

// ParseBool parses the usual textual boolean forms, case-insensitively.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}
