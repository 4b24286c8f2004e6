//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	logx "timerlint/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// keepRuns is how many runs survive pruning.
const keepRuns = 50

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 20}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveRun(ctx context.Context, r Run) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	roots, err := json.Marshal(r.Roots)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(at, roots, took_ms) VALUES(?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), string(roots), r.TookMS,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO findings(run_id, path, line, col, source, expression, severity, text)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, f := range r.Findings {
		if _, err := stmt.ExecContext(ctx, id, f.Path, f.Line, f.Column, f.Source, f.Expression, f.Severity, nullStr(f.Text)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		if err := s.pruneOld(pctx); err != nil {
			s.log.Debug("storage prune failed", logx.Err(err))
		}
		cancel()
	}
	return nil
}

func (s *sqliteStore) LastRun(ctx context.Context) (Run, bool, error) {
	if s == nil || s.db == nil {
		return Run{}, false, ErrDisabled
	}
	var (
		id    int64
		at    string
		roots string
		r     Run
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, at, roots, took_ms FROM runs ORDER BY id DESC LIMIT 1`,
	).Scan(&id, &at, &roots, &r.TookMS)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	if r.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return Run{}, false, fmt.Errorf("run %d: bad timestamp: %w", id, err)
	}
	if err := json.Unmarshal([]byte(roots), &r.Roots); err != nil {
		return Run{}, false, fmt.Errorf("run %d: bad roots: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT path, line, col, source, expression, severity, COALESCE(text, '')
		 FROM findings WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return Run{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.Path, &f.Line, &f.Column, &f.Source, &f.Expression, &f.Severity, &f.Text); err != nil {
			return Run{}, false, err
		}
		r.Findings = append(r.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

func (s *sqliteStore) pruneOld(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keepRuns)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
