package schedule

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind tells the two schedule grammars apart.
type Kind uint8

const (
	KindCron Kind = iota
	KindDuration
)

func (k Kind) String() string {
	switch k {
	case KindCron:
		return "cron"
	case KindDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// Schedule is a successfully parsed expression: either a *CronSchedule or a
// *DurationSchedule.
type Schedule interface {
	cron.Schedule

	Kind() Kind
	String() string

	sealed()
}

// CronSchedule is a parsed 6-field NCRONTAB expression.
type CronSchedule struct {
	// Expression is the normalized expression, fields joined by single spaces.
	Expression string

	spec *cron.SpecSchedule
}

func (*CronSchedule) Kind() Kind { return KindCron }
func (s *CronSchedule) String() string { return s.Expression }
func (*CronSchedule) sealed() {}
func (s *CronSchedule) Fields() []string { return strings.Fields(s.Expression) }

// Next returns the first activation strictly after t, or the zero time when
// the expression can never fire (e.g. February 31st).
func (s *CronSchedule) Next(t time.Time) time.Time { return s.spec.Next(t) }

// DurationSchedule runs every Interval.
type DurationSchedule struct {
	Interval time.Duration
}

func (*DurationSchedule) Kind() Kind { return KindDuration }
func (s *DurationSchedule) String() string { return s.Interval.String() }
func (*DurationSchedule) sealed() {}

// Next returns t plus the interval. robfig/cron rounds the interval down to
// whole seconds with a one second floor.
func (s *DurationSchedule) Next(t time.Time) time.Time {
	return cron.Every(s.Interval).Next(t)
}

// Parse parses expr using the local timezone for cron schedules.
// See Validator.Parse.
func Parse(expr string) (Schedule, error) {
	return parse(expr, time.Local)
}

func parse(expr string, loc *time.Location) (Schedule, error) {
	// TimeSpan intervals always carry a colon; cron fields never do.
	if strings.Contains(expr, ":") {
		d, err := parseTimeSpan(expr)
		if err != nil {
			return nil, err
		}
		return &DurationSchedule{Interval: d}, nil
	}
	return parseCron(Normalize(expr), loc)
}

// Upcoming returns up to n activation times after from. It stops early when
// the schedule has no further activations.
func Upcoming(s Schedule, from time.Time, n int) []time.Time {
	if s == nil || n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	t := from
	for len(out) < n {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}
