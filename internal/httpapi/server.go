// Package httpapi serves schedule validation and scan results over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"timerlint/internal/report"
	"timerlint/internal/scan"
	"timerlint/internal/schedule"
	logx "timerlint/pkg/logx"
)

const (
	maxBodyBytes   = 1 << 20
	maxExpressions = 1000
	maxNext        = 100
)

// FindingsSource returns the findings of the latest scan.
type FindingsSource interface {
	Findings() ([]scan.Finding, time.Time)
}

// Config wires the server to the rest of the process. Validator is called per
// request so config reloads take effect. Findings and Status may be nil.
type Config struct {
	Validator func() *schedule.Validator
	Findings  FindingsSource
	Status    func() any
	Metrics   *Metrics
	Log       logx.Logger
	// Pprof mounts the runtime profiler under /debug.
	Pprof bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	cfg     Config
	handler http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Validator == nil {
		return nil, errors.New("httpapi: validator is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	if cfg.Log.IsZero() {
		cfg.Log = logx.Nop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Server{cfg: cfg}
	s.handler = s.buildRouter()
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// buildRouter constructs the chi mux with all routes wired.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth())
	r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/validate", s.handleValidateQuery())
		r.Post("/validate", s.handleValidateBatch())
		if s.cfg.Findings != nil {
			r.Get("/findings", s.handleFindings())
		}
		if s.cfg.Status != nil {
			r.Get("/status", s.handleStatus())
		}
	})
	if s.cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.cfg.Log.Info("http api listening", logx.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

func parseNext(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxNext {
		return 0, errors.New("next must be an integer between 0 and " + strconv.Itoa(maxNext))
	}
	return n, nil
}

func (s *Server) check(expr string, next int) report.ResultJSON {
	r := report.Check(s.cfg.Validator(), expr, next, s.cfg.Now())
	s.cfg.Metrics.ObserveValidation(r.Outcome.Kind)
	return r.JSON()
}

// handleValidateQuery serves GET /v1/validate?expr=...&next=N.
func (s *Server) handleValidateQuery() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has("expr") {
			writeError(w, http.StatusBadRequest, "missing expr parameter")
			return
		}
		next, err := parseNext(q.Get("next"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.check(q.Get("expr"), next))
	}
}

// ValidateRequest is the body of POST /v1/validate.
type ValidateRequest struct {
	Expressions []string `json:"expressions"`
	Next        int      `json:"next,omitempty"`
}

func (s *Server) handleValidateBatch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req ValidateRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if len(req.Expressions) > maxExpressions {
			writeError(w, http.StatusRequestEntityTooLarge, "too many expressions (max "+strconv.Itoa(maxExpressions)+")")
			return
		}
		if req.Next < 0 || req.Next > maxNext {
			writeError(w, http.StatusBadRequest, "next must be between 0 and "+strconv.Itoa(maxNext))
			return
		}
		out := make([]report.ResultJSON, 0, len(req.Expressions))
		for _, expr := range req.Expressions {
			out = append(out, s.check(expr, req.Next))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// FindingsResponse is the body of GET /v1/findings.
type FindingsResponse struct {
	ScannedAt *time.Time           `json:"scanned_at,omitempty"`
	Counts    map[string]int       `json:"counts"`
	Findings  []report.FindingJSON `json:"findings"`
}

func (s *Server) handleFindings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		findings, at := s.cfg.Findings.Findings()
		severity := r.URL.Query().Get("severity")

		resp := FindingsResponse{Counts: map[string]int{}, Findings: []report.FindingJSON{}}
		if !at.IsZero() {
			resp.ScannedAt = &at
		}
		for sev, n := range scan.Counts(findings) {
			resp.Counts[string(sev)] = n
		}
		for _, f := range findings {
			if f.Severity == scan.SeverityNone {
				continue
			}
			if severity != "" && string(f.Severity) != severity {
				continue
			}
			resp.Findings = append(resp.Findings, report.NewFindingJSON(f))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.cfg.Status())
	}
}
