package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"timerlint/internal/scan"
	"timerlint/internal/schedule"
)

func newValidator(t *testing.T) *schedule.Validator {
	t.Helper()
	v, err := schedule.New(schedule.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("schedule.New: %v", err)
	}
	return v
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]Format{"": FormatText, "TEXT": FormatText, " json ": FormatJSON}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("ParseFormat(xml) expected error")
	}
}

func TestCheckUpcoming(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	from := time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)
	r := Check(v, "0 */5 * * * *", 3, from)
	want := []time.Time{
		time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 10, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC),
	}
	if len(r.Upcoming) != len(want) {
		t.Fatalf("Upcoming len = %d, want %d", len(r.Upcoming), len(want))
	}
	for i := range want {
		if !r.Upcoming[i].Equal(want[i]) {
			t.Fatalf("Upcoming[%d] = %v, want %v", i, r.Upcoming[i], want[i])
		}
	}

	if r := Check(v, "61 * * * * *", 3, from); len(r.Upcoming) != 0 {
		t.Fatalf("invalid expression should have no upcoming times")
	}
}

func TestWriteResultsText(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	results := []Result{
		Check(v, "01:30:00", 0, from),
		Check(v, "61 * * * * *", 0, from),
		Check(v, "%MyTimerSchedule%", 0, from),
	}
	var buf bytes.Buffer
	if err := WriteResults(&buf, FormatText, results); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[0] != "01:30:00: Every 1 hour 30 minutes" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "61 * * * * *: error: ") || !strings.Contains(lines[1], "[Second]") {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if lines[2] != `"%MyTimerSchedule%": suppressed` {
		t.Fatalf("line 2 = %q", lines[2])
	}
}

func TestWriteResultsJSON(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	if err := WriteResults(&buf, FormatJSON, []Result{Check(v, "*/5 * * * *", 1, from)}); err != nil {
		t.Fatalf("WriteResults: %v", err)
	}
	var got []ResultJSON
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	r := got[0]
	if r.Outcome != "valid" || r.Kind != "cron" || r.Description != "Every 5 minutes" {
		t.Fatalf("result = %+v", r)
	}
	if len(r.Next) != 1 || r.Next[0] != "2026-03-01T00:05:00Z" {
		t.Fatalf("next = %v", r.Next)
	}
}

func TestWriteFindingsText(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	findings := scan.Check(v, []scan.Candidate{
		{Path: "Jobs.cs", Line: 4, Column: 38, Expression: "0 */5 * * * *"},
		{Path: "Jobs.cs", Line: 9, Column: 38, Expression: "%Setting%"},
		{Path: "Jobs.cs", Line: 12, Column: 20, Expression: "61 * * * * *"},
	})
	var buf bytes.Buffer
	if err := WriteFindings(&buf, FormatText, findings); err != nil {
		t.Fatalf("WriteFindings: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Jobs.cs:4:38: hint: Every 5 minutes" {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Jobs.cs:12:20: error: '61'") {
		t.Fatalf("line 1 = %q", lines[1])
	}

	if got, want := Summary(findings), "1 error, 1 hint in 3 schedules"; got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
}

func TestWriteFindingsJSON(t *testing.T) {
	t.Parallel()

	v := newValidator(t)
	findings := scan.Check(v, []scan.Candidate{
		{Path: "fn/function.json", Line: 7, Column: 19, Source: scan.SourceFunctionJSON, Expression: "01:30:00"},
	})
	var buf bytes.Buffer
	if err := WriteFindings(&buf, FormatJSON, findings); err != nil {
		t.Fatalf("WriteFindings: %v", err)
	}
	var got []FindingJSON
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := FindingJSON{
		Path: "fn/function.json", Line: 7, Column: 19, Source: "function.json",
		Expression: "01:30:00", Severity: "hint", Text: "Every 1 hour 30 minutes",
	}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
