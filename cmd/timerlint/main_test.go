package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCheckValid(t *testing.T) {
	out, _, err := execute(t, "", "check", "0 */5 * * * *", "01:30:00")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "0 */5 * * * *: Every 5 minutes") {
		t.Fatalf("output = %q, want cron description", out)
	}
	if !strings.Contains(out, "01:30:00: Every 1 hour 30 minutes") {
		t.Fatalf("output = %q, want interval description", out)
	}
}

func TestCheckInvalidExitsWithProblems(t *testing.T) {
	out, _, err := execute(t, "", "check", "61 * * * * *")
	if !errors.Is(err, errProblems) {
		t.Fatalf("err = %v, want errProblems", err)
	}
	if !strings.Contains(out, "error:") || !strings.Contains(out, "[Second]") {
		t.Fatalf("output = %q, want seconds field error", out)
	}
}

func TestCheckReadsStdin(t *testing.T) {
	out, _, err := execute(t, "*/5 * * * *\n\n%MyTimerSchedule%\n", "check", "--format", "json", "--tz", "UTC", "--next", "2")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	var got []struct {
		Expression string   `json:"expression"`
		Outcome    string   `json:"outcome"`
		Next       []string `json:"next"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 2 {
		t.Fatalf("results = %d, want 2", len(got))
	}
	if got[0].Outcome != "valid" || len(got[0].Next) != 2 {
		t.Fatalf("first = %+v, want valid with 2 occurrences", got[0])
	}
	if got[1].Outcome != "suppressed" {
		t.Fatalf("second outcome = %q, want suppressed", got[1].Outcome)
	}
}

func TestCheckRejectsUnknownFormat(t *testing.T) {
	_, _, err := execute(t, "", "check", "--format", "xml", "0 * * * * *")
	if err == nil || errors.Is(err, errProblems) {
		t.Fatalf("err = %v, want format error", err)
	}
}

func TestScanReportsErrors(t *testing.T) {
	dir := t.TempDir()
	src := `public static class Jobs
{
    [FunctionName("Good")]
    public static void Good([TimerTrigger("0 */5 * * * *")] TimerInfo t) {}

    [FunctionName("Bad")]
    public static void Bad([TimerTrigger("0 0 25 * * *")] TimerInfo t) {}
}
`
	if err := os.WriteFile(filepath.Join(dir, "Jobs.cs"), []byte(src), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, errOut, err := execute(t, "", "scan", dir)
	if !errors.Is(err, errProblems) {
		t.Fatalf("err = %v, want errProblems", err)
	}
	if !strings.Contains(out, "Jobs.cs:7:") || !strings.Contains(out, ": error: ") {
		t.Fatalf("output = %q, want error on line 7", out)
	}
	if !strings.Contains(out, "Jobs.cs:4:") || !strings.Contains(out, ": hint: ") {
		t.Fatalf("output = %q, want hint on line 4", out)
	}
	if !strings.Contains(errOut, "1 error") {
		t.Fatalf("summary = %q, want error count", errOut)
	}
}

func TestScanCleanTree(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "Cleanup")
	if err := os.MkdirAll(fn, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	body := `{"bindings":[{"type":"timerTrigger","name":"t","schedule":"%CleanupSchedule%"}]}`
	if err := os.WriteFile(filepath.Join(fn, "function.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, _, err := execute(t, "", "scan", "-q", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out != "" {
		t.Fatalf("output = %q, want nothing for placeholder schedule", out)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "timerlint dev") {
		t.Fatalf("version = %q", out)
	}
}
