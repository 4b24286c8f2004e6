package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	crondesc "github.com/lnquy/cron"

	logx "timerlint/pkg/logx"
)

// describer turns cron expressions into English sentences. Descriptions are a
// convenience: any failure of the underlying engine is reported as "no
// description" and never as a validation error.
type describer struct {
	desc *crondesc.ExpressionDescriptor
	log  logx.Logger
}

func newDescriber(use24h bool, log logx.Logger) (*describer, error) {
	d, err := crondesc.NewDescriptor(
		crondesc.Use24HourTimeFormat(use24h),
		crondesc.DayOfWeekStartsAtOne(false),
		crondesc.Verbose(false),
		crondesc.SetLocales(crondesc.Locale_en),
	)
	if err != nil {
		return nil, fmt.Errorf("cron descriptor: %w", err)
	}
	return &describer{desc: d, log: log}, nil
}

func (d *describer) describe(s Schedule) (string, bool) {
	switch v := s.(type) {
	case *DurationSchedule:
		return "Every " + FriendlyDuration(v.Interval), true
	case *CronSchedule:
		text, err := d.describeCron(v.Expression)
		if err != nil {
			d.log.Debug("cron description unavailable", logx.String("expr", v.Expression), logx.Err(err))
			return "", false
		}
		text = strings.TrimSpace(text)
		return text, text != ""
	default:
		return "", false
	}
}

func (d *describer) describeCron(expr string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Debug("cron descriptor panicked", logx.String("expr", expr), logx.Stack(logx.StackTrace(3, 8)))
			text, err = "", fmt.Errorf("cron descriptor panic: %v", r)
		}
	}()
	if d == nil || d.desc == nil {
		return "", errors.New("cron descriptor not configured")
	}
	return d.desc.ToDescription(expr, crondesc.Locale_en)
}

// FriendlyDuration renders d as "1 day 2 hours 30 minutes", omitting zero
// components. Sub-millisecond remainders are dropped.
func FriendlyDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
		{time.Millisecond, "millisecond"},
	}

	parts := make([]string, 0, len(units))
	for _, u := range units {
		n := d / u.size
		if n == 0 {
			continue
		}
		d -= n * u.size
		parts = append(parts, plural(int64(n), u.name))
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	s := strconv.FormatInt(n, 10) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}
