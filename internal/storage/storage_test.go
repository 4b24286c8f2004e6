package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "timerlint/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v, want nil, nil", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for file driver without path")
	}
}

func sampleRun(at time.Time, exprs ...string) Run {
	r := Run{At: at, Roots: []string{"src"}, TookMS: 12}
	for i, e := range exprs {
		r.Findings = append(r.Findings, Finding{
			Path: "Jobs.cs", Line: i + 1, Column: 5, Source: "csharp",
			Expression: e, Severity: "error", Text: "bad " + e,
		})
	}
	return r
}

func TestFileStoreRoundTripAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state", "timerlint.db")}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok, err := st.LastRun(ctx); err != nil || ok {
		t.Fatalf("LastRun on empty store = ok %v, err %v", ok, err)
	}

	t0 := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := st.SaveRun(ctx, sampleRun(t0, "a")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := st.SaveRun(ctx, sampleRun(t0.Add(time.Minute), "a", "b")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	r, ok, err := st.LastRun(ctx)
	if err != nil || !ok {
		t.Fatalf("LastRun = ok %v, err %v", ok, err)
	}
	if !r.At.Equal(t0.Add(time.Minute)) || len(r.Findings) != 2 || r.Errors() != 2 {
		t.Fatalf("LastRun = %+v", r)
	}
}

func TestFileStoreClosed(t *testing.T) {
	t.Parallel()

	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "s.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = st.Close()
	if err := st.SaveRun(context.Background(), Run{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("SaveRun after Close = %v, want ErrDisabled", err)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	prev := sampleRun(time.Time{}, "a", "b").Findings
	cur := sampleRun(time.Time{}, "a", "c").Findings
	// Same key, new text.
	cur[0].Text = "changed"

	added, resolved := Diff(prev, cur)
	if len(added) != 2 || added[0].Expression != "a" || added[1].Expression != "c" {
		t.Fatalf("added = %+v", added)
	}
	if len(resolved) != 2 || resolved[0].Expression != "a" || resolved[1].Expression != "b" {
		t.Fatalf("resolved = %+v", resolved)
	}

	added, resolved = Diff(prev, prev)
	if len(added) != 0 || len(resolved) != 0 {
		t.Fatalf("Diff of identical runs = %v, %v", added, resolved)
	}
}
