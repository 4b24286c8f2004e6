package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Field identifies one position of a 6-field NCRONTAB expression.
type Field uint8

const (
	FieldSecond Field = iota
	FieldMinute
	FieldHour
	FieldDay
	FieldMonth
	FieldDayOfWeek
)

type fieldBounds struct {
	name     string
	min, max int
	names    []string // optional symbolic values, indexed from min
}

var fieldTable = [...]fieldBounds{
	FieldSecond:    {name: "Second", min: 0, max: 59},
	FieldMinute:    {name: "Minute", min: 0, max: 59},
	FieldHour:      {name: "Hour", min: 0, max: 23},
	FieldDay:       {name: "Day", min: 1, max: 31},
	FieldMonth:     {name: "Month", min: 1, max: 12, names: []string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}},
	FieldDayOfWeek: {name: "DayOfWeek", min: 0, max: 6, names: []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}},
}

func (f Field) String() string { return fieldTable[f].name }

// Min and Max return the inclusive domain of the field.
func (f Field) Min() int { return fieldTable[f].min }
func (f Field) Max() int { return fieldTable[f].max }

// FieldErrorKind classifies why a cron field was rejected.
type FieldErrorKind uint8

const (
	ErrBelowMinimum FieldErrorKind = iota
	ErrAboveMaximum
	ErrNotNumeric
	ErrMalformed
	ErrBadStep
)

// FieldError reports an invalid term in one cron field.
type FieldError struct {
	Field Field
	Kind  FieldErrorKind
	Value string
}

func (e *FieldError) Error() string {
	b := fieldTable[e.Field]
	switch e.Kind {
	case ErrBelowMinimum:
		return fmt.Sprintf("'%s' is lower than the minimum allowable value for the [%s] field. Value must be between %d and %d (all inclusive).", e.Value, b.name, b.min, b.max)
	case ErrAboveMaximum:
		return fmt.Sprintf("'%s' is higher than the maximum allowable value for the [%s] field. Value must be between %d and %d (all inclusive).", e.Value, b.name, b.min, b.max)
	case ErrNotNumeric:
		return fmt.Sprintf("'%s' is not a valid [%s] crontab field value. It must be a numeric value between %d and %d (all inclusive).", e.Value, b.name, b.min, b.max)
	case ErrBadStep:
		return fmt.Sprintf("'%s' is not a valid step for the [%s] field. Steps must be positive whole numbers.", e.Value, b.name)
	default:
		return fmt.Sprintf("'%s' is not a valid [%s] crontab field expression.", e.Value, b.name)
	}
}

// FieldCountError reports an expression that does not have 6 fields after
// normalization.
type FieldCountError struct {
	Expression string
	Count      int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("'%s' is an invalid crontab expression. It must contain 6 components of a schedule in the sequence of seconds, minutes, hours, days, months, and days of week.", e.Expression)
}

// starBit makes robfig/cron match day-of-month and day-of-week
// conjunctively, which is how NCRONTAB evaluates them.
const starBit = 1 << 63

func parseCron(normalized string, loc *time.Location) (*CronSchedule, error) {
	fields := strings.Fields(normalized)
	if len(fields) != 6 {
		return nil, &FieldCountError{Expression: strings.TrimSpace(normalized), Count: len(fields)}
	}

	var bits [6]uint64
	for i, raw := range fields {
		b, err := parseField(Field(i), raw)
		if err != nil {
			return nil, err
		}
		bits[i] = b
	}

	if loc == nil {
		loc = time.Local
	}
	spec := &cron.SpecSchedule{
		Second:   bits[FieldSecond],
		Minute:   bits[FieldMinute],
		Hour:     bits[FieldHour],
		Dom:      bits[FieldDay] | starBit,
		Month:    bits[FieldMonth],
		Dow:      bits[FieldDayOfWeek],
		Location: loc,
	}
	return &CronSchedule{Expression: strings.Join(fields, " "), spec: spec}, nil
}

// parseField parses a comma-separated list of terms into a bitset.
func parseField(f Field, raw string) (uint64, error) {
	var out uint64
	for _, term := range strings.Split(raw, ",") {
		b, err := parseTerm(f, term)
		if err != nil {
			return 0, err
		}
		out |= b
	}
	return out, nil
}

// parseTerm parses one of: *, */s, v, v/s, a-b, a-b/s.
func parseTerm(f Field, term string) (uint64, error) {
	if term == "" {
		return 0, &FieldError{Field: f, Kind: ErrMalformed, Value: term}
	}
	bounds := fieldTable[f]

	rangePart, stepPart, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepPart)
		if err != nil || n <= 0 {
			return 0, &FieldError{Field: f, Kind: ErrBadStep, Value: stepPart}
		}
		// Every field spans fewer than 64 values, so larger steps behave the same.
		step = min(n, 64)
	}

	var start, end int
	switch {
	case rangePart == "*":
		start, end = bounds.min, bounds.max
	case strings.Contains(rangePart, "-"):
		lo, hi, _ := strings.Cut(rangePart, "-")
		var err error
		if start, err = parseValue(f, lo); err != nil {
			return 0, err
		}
		if end, err = parseValue(f, hi); err != nil {
			return 0, err
		}
		if start > end {
			return 0, &FieldError{Field: f, Kind: ErrMalformed, Value: term}
		}
	default:
		v, err := parseValue(f, rangePart)
		if err != nil {
			return 0, err
		}
		start, end = v, v
		// "v/s" runs from v to the end of the field.
		if hasStep {
			end = bounds.max
		}
	}

	var out uint64
	for v := start; v <= end; v += step {
		out |= 1 << uint(v)
	}
	return out, nil
}

// parseValue parses a number or, for month and day-of-week, a name matched on
// its first three letters.
func parseValue(f Field, s string) (int, error) {
	bounds := fieldTable[f]
	if s == "" {
		return 0, &FieldError{Field: f, Kind: ErrMalformed, Value: s}
	}
	if isLetter(s[0]) {
		if len(bounds.names) > 0 && len(s) >= 3 {
			prefix := strings.ToLower(s[:3])
			for i, name := range bounds.names {
				if name == prefix {
					return bounds.min + i, nil
				}
			}
		}
		return 0, &FieldError{Field: f, Kind: ErrNotNumeric, Value: s}
	}

	if !isDigits(s) {
		return 0, &FieldError{Field: f, Kind: ErrNotNumeric, Value: s}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		// Too many digits to fit an int is still just too large.
		return 0, &FieldError{Field: f, Kind: ErrAboveMaximum, Value: s}
	}
	if v < bounds.min {
		return 0, &FieldError{Field: f, Kind: ErrBelowMinimum, Value: s}
	}
	if v > bounds.max {
		return 0, &FieldError{Field: f, Kind: ErrAboveMaximum, Value: s}
	}
	return v, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
