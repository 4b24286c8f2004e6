package schedule

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeSpan(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "01:30:00", want: 90 * time.Minute},
		{raw: "00:05", want: 5 * time.Minute},
		{raw: "  00:00:30  ", want: 30 * time.Second},
		{raw: "1.02:00:00", want: 26 * time.Hour},
		{raw: "2:03:04:05", want: 2*24*time.Hour + 3*time.Hour + 4*time.Minute + 5*time.Second},
		{raw: "00:00:01.5", want: 1500 * time.Millisecond},
		{raw: "00:00:00.0000001", want: 100 * time.Nanosecond},
		{raw: "3.00:00", want: 72 * time.Hour},
		{raw: "00:00:00", want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			s, err := Parse(tt.raw)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			ds, ok := s.(*DurationSchedule)
			if !ok {
				t.Fatalf("Parse(%q) = %T, want *DurationSchedule", tt.raw, s)
			}
			if ds.Interval != tt.want {
				t.Fatalf("Interval = %v, want %v", ds.Interval, tt.want)
			}
		})
	}
}

func TestParseTimeSpanInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw      string
		overflow bool
		negative bool
	}{
		{raw: "aa:bb"},
		{raw: "01:30:"},
		{raw: "1:2:3:4:5"},
		{raw: ":30:00"},
		{raw: "01:30:00."},
		{raw: ".01:30"},
		{raw: "01:3x:00"},
		{raw: "25:00:00", overflow: true},
		{raw: "00:60:00", overflow: true},
		{raw: "00:00:61", overflow: true},
		{raw: "00:00:00.12345678", overflow: true},
		{raw: "10675200.00:00:00", overflow: true},
		{raw: "-01:00:00", negative: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.raw)
			var te *TimeSpanError
			if !errors.As(err, &te) {
				t.Fatalf("Parse(%q) error = %v, want *TimeSpanError", tt.raw, err)
			}
			if te.Overflow != tt.overflow || te.Negative != tt.negative {
				t.Fatalf("TimeSpanError = %+v, want overflow=%v negative=%v", te, tt.overflow, tt.negative)
			}
			if te.Input != tt.raw {
				t.Fatalf("Input = %q, want %q", te.Input, tt.raw)
			}
		})
	}
}

func TestTimeSpanErrorMessages(t *testing.T) {
	t.Parallel()
	_, err := Parse("aa:bb")
	if got, want := err.Error(), "String 'aa:bb' was not recognized as a valid TimeSpan."; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
	_, err = Parse("25:00:00")
	if got, want := err.Error(), "The TimeSpan string '25:00:00' could not be parsed because at least one of the numeric components is out of range or contains too many digits."; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestDurationNext(t *testing.T) {
	t.Parallel()
	s := &DurationSchedule{Interval: 90 * time.Minute}
	from := time.Date(2026, time.May, 1, 8, 0, 0, 0, time.UTC)
	if got, want := s.Next(from), from.Add(90*time.Minute); !got.Equal(want) {
		t.Fatalf("Next = %v, want %v", got, want)
	}
}
