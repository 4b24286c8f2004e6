package schedule

import (
	"fmt"
	"strings"
	"time"
)

// maxTimeSpanDays is the largest day count a .NET TimeSpan can hold.
const maxTimeSpanDays = 10675199

// TimeSpanError reports a malformed or out-of-range interval schedule.
type TimeSpanError struct {
	Input string
	// Overflow is set when the format is right but a component is out of range.
	Overflow bool
	// Negative is set for well-formed intervals below zero.
	Negative bool
}

func (e *TimeSpanError) Error() string {
	switch {
	case e.Negative:
		return fmt.Sprintf("The TimeSpan string '%s' describes a negative interval, which can not be used as a schedule.", e.Input)
	case e.Overflow:
		return fmt.Sprintf("The TimeSpan string '%s' could not be parsed because at least one of the numeric components is out of range or contains too many digits.", e.Input)
	default:
		return fmt.Sprintf("String '%s' was not recognized as a valid TimeSpan.", e.Input)
	}
}

// parseTimeSpan accepts the invariant TimeSpan forms that contain a colon:
//
//	[-][d.]hh:mm
//	[-][d.]hh:mm:ss[.fffffff]
//	[-]d:hh:mm:ss[.fffffff]
//
// Leading and trailing whitespace is ignored.
func parseTimeSpan(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	formatErr := &TimeSpanError{Input: raw}
	overflowErr := &TimeSpanError{Input: raw, Overflow: true}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	parts := strings.Split(s, ":")
	var days, hours, minutes, seconds, frac string
	switch len(parts) {
	case 2:
		days, hours = splitDays(parts[0])
		minutes = parts[1]
	case 3:
		days, hours = splitDays(parts[0])
		minutes = parts[1]
		seconds, frac = splitFraction(parts[2])
	case 4:
		days, hours, minutes = parts[0], parts[1], parts[2]
		seconds, frac = splitFraction(parts[3])
	default:
		return 0, formatErr
	}

	type component struct {
		text     string
		optional bool
		max      int64
		unit     time.Duration
	}
	comps := []component{
		{text: days, optional: len(parts) != 4, max: maxTimeSpanDays, unit: 24 * time.Hour},
		{text: hours, max: 23, unit: time.Hour},
		{text: minutes, max: 59, unit: time.Minute},
		{text: seconds, optional: len(parts) == 2, max: 59, unit: time.Second},
	}

	var total time.Duration
	overflow := false
	for _, c := range comps {
		if c.text == "" {
			if c.optional {
				continue
			}
			return 0, formatErr
		}
		if !isDigits(c.text) {
			return 0, formatErr
		}
		v, ok := atoiBounded(c.text, c.max)
		if !ok {
			overflow = true
			continue
		}
		total += time.Duration(v) * c.unit
	}

	if frac != "" {
		if !isDigits(frac) {
			return 0, formatErr
		}
		if len(frac) > 7 {
			overflow = true
		} else {
			// Seven fractional digits are 100ns ticks.
			ticks, _ := atoiBounded(frac+strings.Repeat("0", 7-len(frac)), 9999999)
			total += time.Duration(ticks) * 100 * time.Nanosecond
		}
	}

	if overflow {
		return 0, overflowErr
	}
	if negative && total > 0 {
		return 0, &TimeSpanError{Input: raw, Negative: true}
	}
	return total, nil
}

// splitDays splits "d.hh" into its day and hour parts.
func splitDays(s string) (days, hours string) {
	if d, h, ok := strings.Cut(s, "."); ok {
		if d == "" {
			// ".hh" is malformed; keep the dot so digit validation fails.
			return "", s
		}
		return d, h
	}
	return "", s
}

// splitFraction splits "ss.fffffff" into seconds and fractional digits.
func splitFraction(s string) (seconds, frac string) {
	if sec, f, ok := strings.Cut(s, "."); ok {
		if f == "" {
			return s, ""
		}
		return sec, f
	}
	return s, ""
}

// atoiBounded parses a run of ASCII digits, reporting false when the value
// exceeds max.
func atoiBounded(s string, max int64) (int64, bool) {
	var v int64
	for i := 0; i < len(s); i++ {
		v = v*10 + int64(s[i]-'0')
		if v > max {
			return 0, false
		}
	}
	return v, true
}
