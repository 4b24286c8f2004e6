package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "timerlint/pkg/logx"
)

// historyLimit bounds the run journal; it is compacted into the snapshot and
// truncated once this many runs have been appended.
const historyLimit = 200

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.last.json   (snapshot of the latest run)
//   - <prefix>.runs.jsonl  (append-only journal of runs)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File

	last    Run
	hasLast bool
	writes  int
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".last.json"
	journalPath := prefix + ".runs.jsonl"

	st := &fileStore{log: log, snapshotPath: snapPath}

	// The journal tail is newer than the snapshot when a compaction was interrupted.
	if r, err := loadSnapshot(snapPath); err == nil {
		st.last, st.hasLast = r, true
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn("storage snapshot unreadable", logx.String("path", snapPath), logx.Err(err))
	}
	n, err := replayJournal(journalPath, func(r Run) {
		if !st.hasLast || !r.At.Before(st.last.At) {
			st.last, st.hasLast = r, true
		}
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("storage journal unreadable", logx.String("path", journalPath), logx.Err(err))
	}
	st.writes = n

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	st.journalFile = jf
	return st, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) SaveRun(ctx context.Context, r Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrDisabled
	}
	if err := json.NewEncoder(s.journalFile).Encode(r); err != nil {
		return err
	}
	s.last, s.hasLast = r, true
	s.writes++
	if err := s.writeSnapshotLocked(); err != nil {
		s.log.Debug("storage snapshot failed", logx.Err(err))
	}
	if s.writes >= historyLimit {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("storage compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) LastRun(ctx context.Context) (Run, bool, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return Run{}, false, ErrDisabled
	}
	return s.last, s.hasLast, nil
}

func (s *fileStore) writeSnapshotLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.last); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshotPath)
}

// compactLocked drops the journal history. The snapshot already holds the
// latest run.
func (s *fileStore) compactLocked() error {
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	if _, err := s.journalFile.Seek(0, 2); err != nil {
		return err
	}
	s.writes = 0
	return nil
}

func loadSnapshot(path string) (Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return Run{}, err
	}
	defer f.Close()
	var r Run
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return Run{}, err
	}
	return r, nil
}

func replayJournal(path string, fn func(Run)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	n := 0
	for sc.Scan() {
		var r Run
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		n++
		fn(r)
	}
	return n, sc.Err()
}
