package schedule

import (
	"strings"
	"time"

	logx "timerlint/pkg/logx"
)

// OutcomeKind is the verdict for one raw expression.
type OutcomeKind uint8

const (
	// Suppressed: blank input or an app-setting placeholder; nothing to report.
	Suppressed OutcomeKind = iota
	// Valid: parsed; Description holds the hint text when one could be produced.
	Valid
	// Invalid: parse failed; Message is the parser's message verbatim.
	Invalid
)

func (k OutcomeKind) String() string {
	switch k {
	case Suppressed:
		return "suppressed"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Outcome is the result of classifying one expression.
type Outcome struct {
	Kind        OutcomeKind
	Description string
	Message     string

	// Schedule is set for Valid outcomes.
	Schedule Schedule
	// Err is the parse error behind an Invalid outcome.
	Err error
}

// Option configures a Validator.
type Option func(*options)

type options struct {
	loc    *time.Location
	use24h bool
	log    logx.Logger
}

// WithLocation sets the timezone cron schedules fire in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// With24HourTime renders times in descriptions as 14:00 instead of 02:00 PM.
func With24HourTime(enabled bool) Option {
	return func(o *options) { o.use24h = enabled }
}

func WithLogger(log logx.Logger) Option {
	return func(o *options) { o.log = log }
}

// Validator parses, describes and classifies schedule expressions.
// It is immutable after New and safe for concurrent use.
type Validator struct {
	loc  *time.Location
	desc *describer
}

func New(opts ...Option) (*Validator, error) {
	o := options{loc: time.Local}
	for _, fn := range opts {
		fn(&o)
	}
	if o.log.IsZero() {
		o.log = logx.Nop()
	}
	d, err := newDescriber(o.use24h, o.log)
	if err != nil {
		return nil, err
	}
	return &Validator{loc: o.loc, desc: d}, nil
}

// Location returns the timezone cron schedules are evaluated in.
func (v *Validator) Location() *time.Location { return v.loc }

// Parse parses expr as a TimeSpan interval when it contains ':' and as an
// NCRONTAB expression otherwise. Errors are *TimeSpanError, *FieldError or
// *FieldCountError.
func (v *Validator) Parse(expr string) (Schedule, error) {
	return parse(expr, v.loc)
}

// Describe renders s as English. Interval schedules always describe; cron
// schedules report false when the description engine can't handle them.
func (v *Validator) Describe(s Schedule) (string, bool) {
	return v.desc.describe(s)
}

// Classify runs the full pipeline for one raw expression.
func (v *Validator) Classify(raw string) Outcome {
	if skip, ok := precheck(raw); ok {
		return skip
	}
	s, err := v.Parse(raw)
	if err != nil {
		return classify(raw, nil, err, "")
	}
	desc, _ := v.Describe(s)
	return classify(raw, s, nil, desc)
}

// precheck short-circuits inputs that are never evaluated.
func precheck(raw string) (Outcome, bool) {
	if IsPlaceholder(raw) || strings.TrimSpace(raw) == "" {
		return Outcome{Kind: Suppressed}, true
	}
	return Outcome{}, false
}

// classify maps a parse result and optional description onto an Outcome.
func classify(raw string, s Schedule, parseErr error, description string) Outcome {
	if out, ok := precheck(raw); ok {
		return out
	}
	if parseErr != nil {
		return Outcome{Kind: Invalid, Message: parseErr.Error(), Err: parseErr}
	}
	return Outcome{Kind: Valid, Description: description, Schedule: s}
}
