package storage

import (
	"errors"
	"fmt"
	"time"

	"timerlint/internal/scan"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Finding is the stored form of a scan.Finding.
type Finding struct {
	Path       string `json:"path"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	Source     string `json:"source"`
	Expression string `json:"expression"`
	Severity   string `json:"severity"`
	Text       string `json:"text,omitempty"`
}

// Key matches scan.Finding.Key.
func (f Finding) Key() string {
	return fmt.Sprintf("%s:%d:%d:%s", f.Path, f.Line, f.Column, f.Expression)
}

// FromScan converts findings for storage. Suppressed findings are dropped.
func FromScan(in []scan.Finding) []Finding {
	out := make([]Finding, 0, len(in))
	for _, f := range in {
		if f.Severity == scan.SeverityNone {
			continue
		}
		out = append(out, Finding{
			Path:       f.Path,
			Line:       f.Line,
			Column:     f.Column,
			Source:     string(f.Source),
			Expression: f.Expression,
			Severity:   string(f.Severity),
			Text:       f.Text(),
		})
	}
	return out
}

// Run is one completed scan.
type Run struct {
	At       time.Time `json:"at"`
	Roots    []string  `json:"roots"`
	TookMS   int64     `json:"took_ms"`
	Findings []Finding `json:"findings"`
}

// Errors counts error findings in the run.
func (r Run) Errors() int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == string(scan.SeverityError) {
			n++
		}
	}
	return n
}

// Diff compares two runs by finding key. Findings whose text changed count as
// both resolved and added.
func Diff(prev, cur []Finding) (added, resolved []Finding) {
	old := make(map[string]Finding, len(prev))
	for _, f := range prev {
		old[f.Key()] = f
	}
	now := make(map[string]Finding, len(cur))
	for _, f := range cur {
		now[f.Key()] = f
		if p, ok := old[f.Key()]; !ok || p.Severity != f.Severity || p.Text != f.Text {
			added = append(added, f)
		}
	}
	for _, f := range prev {
		if c, ok := now[f.Key()]; !ok || c.Severity != f.Severity || c.Text != f.Text {
			resolved = append(resolved, f)
		}
	}
	return added, resolved
}
