package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"timerlint/internal/report"
	"timerlint/internal/scan"
	"timerlint/internal/schedule"
)

var fixedNow = time.Date(2026, 3, 1, 10, 2, 0, 0, time.UTC)

type staticFindings struct {
	findings []scan.Finding
	at       time.Time
}

func (s staticFindings) Findings() ([]scan.Finding, time.Time) { return s.findings, s.at }

func newTestServer(t *testing.T, findings FindingsSource) *Server {
	t.Helper()
	v, err := schedule.New(schedule.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("schedule.New: %v", err)
	}
	s, err := New(Config{
		Validator: func() *schedule.Validator { return v },
		Findings:  findings,
		Status:    func() any { return map[string]string{"state": "running"} },
		Now:       func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestNewRequiresValidator(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without validator")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestServer(t, nil), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "ok" {
		t.Errorf("healthz = %d %q", rr.Code, rr.Body.String())
	}
}

func TestValidateQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	tests := []struct {
		name    string
		target  string
		code    int
		outcome string
		desc    string
		next    int
	}{
		{"cron", "/v1/validate?expr=0+*/5+*+*+*+*&next=2", http.StatusOK, "valid", "Every 5 minutes", 2},
		{"timespan", "/v1/validate?expr=01:30:00", http.StatusOK, "valid", "Every 1 hour 30 minutes", 0},
		{"invalid", "/v1/validate?expr=61+*+*+*+*+*", http.StatusOK, "invalid", "", 0},
		{"placeholder", "/v1/validate?expr=%25MyTimerSchedule%25", http.StatusOK, "suppressed", "", 0},
		{"empty", "/v1/validate?expr=", http.StatusOK, "suppressed", "", 0},
		{"missing", "/v1/validate", http.StatusBadRequest, "", "", 0},
		{"bad next", "/v1/validate?expr=01:00&next=1000", http.StatusBadRequest, "", "", 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := do(t, s, http.MethodGet, tt.target, "")
			if rr.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.code, rr.Body.String())
			}
			if tt.code != http.StatusOK {
				return
			}
			var got report.ResultJSON
			if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Outcome != tt.outcome || got.Description != tt.desc || len(got.Next) != tt.next {
				t.Fatalf("result = %+v", got)
			}
			if tt.outcome == "invalid" && !strings.Contains(got.Message, "[Second]") {
				t.Fatalf("message = %q, want it to name the seconds field", got.Message)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	rr := do(t, s, http.MethodPost, "/v1/validate", `{"expressions": ["*/5 * * * *", "bogus", ""], "next": 1}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var got []report.ResultJSON
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].Outcome != "valid" || len(got[0].Next) != 1 || got[0].Next[0] != "2026-03-01T10:05:00Z" {
		t.Errorf("result 0 = %+v", got[0])
	}
	if got[1].Outcome != "invalid" || got[2].Outcome != "suppressed" {
		t.Errorf("results = %+v", got)
	}

	if rr := do(t, s, http.MethodPost, "/v1/validate", `{"expr": "x"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", rr.Code)
	}
}

func TestFindings(t *testing.T) {
	t.Parallel()

	v, err := schedule.New()
	if err != nil {
		t.Fatalf("schedule.New: %v", err)
	}
	findings := scan.Check(v, []scan.Candidate{
		{Path: "a.cs", Line: 1, Column: 2, Expression: "0 0 * * * *"},
		{Path: "a.cs", Line: 5, Column: 2, Expression: "99 * * * * *"},
		{Path: "a.cs", Line: 9, Column: 2, Expression: "%X%"},
	})
	s := newTestServer(t, staticFindings{findings: findings, at: fixedNow})

	rr := do(t, s, http.MethodGet, "/v1/findings", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp FindingsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Findings) != 2 || resp.Counts["error"] != 1 || resp.Counts["none"] != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.ScannedAt == nil || !resp.ScannedAt.Equal(fixedNow) {
		t.Fatalf("scanned_at = %v", resp.ScannedAt)
	}

	rr = do(t, s, http.MethodGet, "/v1/findings?severity=error", "")
	resp = FindingsResponse{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Findings) != 1 || resp.Findings[0].Line != 5 {
		t.Fatalf("filtered findings = %+v", resp.Findings)
	}
}

func TestFindingsNotMountedWithoutSource(t *testing.T) {
	t.Parallel()

	if rr := do(t, newTestServer(t, nil), http.MethodGet, "/v1/findings", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestMetricsExposeValidations(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/v1/validate?expr=61+*+*+*+*+*", "")
	s.cfg.Metrics.ObserveScan(150*time.Millisecond, nil)

	rr := do(t, s, http.MethodGet, "/metrics", "")
	body := rr.Body.String()
	for _, want := range []string{
		`timerlint_validations_total{kind="invalid"} 1`,
		"timerlint_scan_duration_seconds_count 1",
		`timerlint_findings{severity="error"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	rr := do(t, newTestServer(t, nil), http.MethodGet, "/v1/status", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"running"`) {
		t.Errorf("status = %d %q", rr.Code, rr.Body.String())
	}
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	t.Parallel()

	v, err := schedule.New(schedule.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("schedule.New: %v", err)
	}
	for _, enabled := range []bool{false, true} {
		s, err := New(Config{Validator: func() *schedule.Validator { return v }, Pprof: enabled})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
		want := http.StatusNotFound
		if enabled {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Fatalf("pprof=%v: status = %d, want %d", enabled, rec.Code, want)
		}
	}
}
