package schedule

import (
	"strings"
	"testing"
	"time"
)

func TestFriendlyDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 5 * time.Minute, want: "5 minutes"},
		{d: 90 * time.Minute, want: "1 hour 30 minutes"},
		{d: time.Hour, want: "1 hour"},
		{d: 26*time.Hour + time.Second, want: "1 day 2 hours 1 second"},
		{d: 48 * time.Hour, want: "2 days"},
		{d: 1500 * time.Millisecond, want: "1 second 500 milliseconds"},
		{d: 0, want: "0 seconds"},
	}
	for _, tt := range tests {
		if got := FriendlyDuration(tt.d); got != tt.want {
			t.Fatalf("FriendlyDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDescribeDurationNeverFails(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)
	for _, d := range []time.Duration{0, time.Second, 90 * time.Minute, 400 * 24 * time.Hour} {
		got, ok := v.Describe(&DurationSchedule{Interval: d})
		if !ok || !strings.HasPrefix(got, "Every ") {
			t.Fatalf("Describe(%v) = %q, %v", d, got, ok)
		}
	}
}

func TestDescribeCron(t *testing.T) {
	t.Parallel()
	v := newTestValidator(t)
	s, err := v.Parse("0 */5 * * * *")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, ok := v.Describe(s)
	if !ok {
		t.Fatal("expected a description")
	}
	if !strings.Contains(strings.ToLower(got), "5 minutes") {
		t.Fatalf("Describe = %q, want it to mention 5 minutes", got)
	}
}

func TestDescribeNilDescriberReportsNoDescription(t *testing.T) {
	t.Parallel()
	d := &describer{} // zero logger is a no-op
	if _, ok := d.describe(&CronSchedule{Expression: "0 * * * * *"}); ok {
		t.Fatal("expected no description without a descriptor engine")
	}
}
