package scan

import (
	"fmt"

	"timerlint/internal/schedule"
)

// Source names the file format a candidate came from.
type Source string

const (
	SourceCSharp       Source = "csharp"
	SourceFSharp       Source = "fsharp"
	SourceCSharpScript Source = "csx"
	SourceFunctionJSON Source = "function.json"
)

// Candidate is a schedule string found in a file. Line and Column are 1-based
// and point at the opening quote of the literal.
type Candidate struct {
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Source     Source `json:"source"`
	Expression string `json:"expression"`
}

// Severity is how a finding should be rendered.
type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityHint  Severity = "hint"
	SeverityError Severity = "error"
)

// Finding is a candidate together with its validation outcome.
type Finding struct {
	Candidate
	Outcome  schedule.Outcome `json:"-"`
	Severity Severity         `json:"severity"`
}

// Key identifies a finding across scans.
func (f Finding) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s", f.Path, f.Line, f.Column, f.Expression)
}

// Text is the hint or error text, empty for suppressed findings.
func (f Finding) Text() string {
	switch f.Severity {
	case SeverityError:
		return f.Outcome.Message
	case SeverityHint:
		return f.Outcome.Description
	default:
		return ""
	}
}

func severityOf(o schedule.Outcome) Severity {
	switch o.Kind {
	case schedule.Invalid:
		return SeverityError
	case schedule.Valid:
		// Valid but undescribable still renders as a (blank) hint.
		return SeverityHint
	default:
		return SeverityNone
	}
}

// Check classifies every candidate.
func Check(v *schedule.Validator, cands []Candidate) []Finding {
	out := make([]Finding, 0, len(cands))
	for _, c := range cands {
		o := v.Classify(c.Expression)
		out = append(out, Finding{Candidate: c, Outcome: o, Severity: severityOf(o)})
	}
	return out
}

// Counts tallies findings by severity.
func Counts(findings []Finding) map[Severity]int {
	m := map[Severity]int{SeverityNone: 0, SeverityHint: 0, SeverityError: 0}
	for _, f := range findings {
		m[f.Severity]++
	}
	return m
}
