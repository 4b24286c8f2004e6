// Package report renders validation results for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"timerlint/internal/scan"
	"timerlint/internal/schedule"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" and "json" in any case. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text or json)", s)
	}
}

// Result is the outcome of checking one expression, with optional upcoming
// occurrences.
type Result struct {
	Expression string
	Outcome    schedule.Outcome
	Upcoming   []time.Time
}

// Check classifies expr and, for valid schedules, computes up to next
// occurrences after from.
func Check(v *schedule.Validator, expr string, next int, from time.Time) Result {
	r := Result{Expression: expr, Outcome: v.Classify(expr)}
	if next > 0 && r.Outcome.Kind == schedule.Valid && r.Outcome.Schedule != nil {
		r.Upcoming = schedule.Upcoming(r.Outcome.Schedule, from.In(v.Location()), next)
	}
	return r
}

// ResultJSON is the wire form of a Result.
type ResultJSON struct {
	Expression  string   `json:"expression"`
	Outcome     string   `json:"outcome"`
	Kind        string   `json:"kind,omitempty"`
	Description string   `json:"description,omitempty"`
	Message     string   `json:"message,omitempty"`
	Next        []string `json:"next,omitempty"`
}

func (r Result) JSON() ResultJSON {
	out := ResultJSON{
		Expression:  r.Expression,
		Outcome:     r.Outcome.Kind.String(),
		Description: r.Outcome.Description,
		Message:     r.Outcome.Message,
	}
	if r.Outcome.Schedule != nil {
		out.Kind = r.Outcome.Schedule.Kind().String()
	}
	for _, t := range r.Upcoming {
		out.Next = append(out.Next, t.Format(time.RFC3339))
	}
	return out
}

// FindingJSON is the wire form of a scan.Finding.
type FindingJSON struct {
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Source     string `json:"source"`
	Expression string `json:"expression"`
	Severity   string `json:"severity"`
	Text       string `json:"text,omitempty"`
}

func NewFindingJSON(f scan.Finding) FindingJSON {
	return FindingJSON{
		Path:       f.Path,
		Line:       f.Line,
		Column:     f.Column,
		Source:     string(f.Source),
		Expression: f.Expression,
		Severity:   string(f.Severity),
		Text:       f.Text(),
	}
}

// WriteResults renders check results.
func WriteResults(w io.Writer, format Format, results []Result) error {
	if format == FormatJSON {
		out := make([]ResultJSON, 0, len(results))
		for _, r := range results {
			out = append(out, r.JSON())
		}
		return encodeJSON(w, out)
	}

	for _, r := range results {
		var line string
		switch r.Outcome.Kind {
		case schedule.Invalid:
			line = fmt.Sprintf("%s: error: %s", r.Expression, r.Outcome.Message)
		case schedule.Valid:
			desc := r.Outcome.Description
			if desc == "" {
				desc = "valid"
			}
			line = fmt.Sprintf("%s: %s", r.Expression, desc)
		default:
			line = fmt.Sprintf("%q: suppressed", r.Expression)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		for _, t := range r.Upcoming {
			if _, err := fmt.Fprintf(w, "  next: %s\n", t.Format(time.RFC3339)); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteFindings renders scan findings. Text output skips suppressed findings
// and hints without a description.
func WriteFindings(w io.Writer, format Format, findings []scan.Finding) error {
	if format == FormatJSON {
		out := make([]FindingJSON, 0, len(findings))
		for _, f := range findings {
			out = append(out, NewFindingJSON(f))
		}
		return encodeJSON(w, out)
	}

	for _, f := range findings {
		text := f.Text()
		if f.Severity == scan.SeverityNone || text == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", f.Path, f.Line, f.Column, f.Severity, text); err != nil {
			return err
		}
	}
	return nil
}

// Summary is the one-line tally printed after text findings.
func Summary(findings []scan.Finding) string {
	c := scan.Counts(findings)
	return fmt.Sprintf("%s, %s in %s",
		count(c[scan.SeverityError], "error"),
		count(c[scan.SeverityHint], "hint"),
		count(len(findings), "schedule"))
}

func count(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
