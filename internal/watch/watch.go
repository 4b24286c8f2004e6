// Package watch rescans source trees for timer schedules as they change and
// reports diagnostics that appeared or went away.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"timerlint/internal/scan"
	"timerlint/internal/schedule"
	"timerlint/internal/storage"
	logx "timerlint/pkg/logx"
	"timerlint/pkg/systemd"
)

// Settings is the part of the watcher that config reloads may replace.
type Settings struct {
	Roots       []string
	Scanner     *scan.Scanner
	Validator   *schedule.Validator
	Debounce    time.Duration
	MinInterval time.Duration
}

// Observer receives the result of every completed scan.
type Observer interface {
	ObserveScan(took time.Duration, findings []scan.Finding)
}

// Watcher owns the scan loop. It is safe for concurrent use.
type Watcher struct {
	log    logx.Logger
	store  storage.Store // nil when persistence is off
	notify systemd.Notifier
	obs    Observer

	mu       sync.RWMutex
	settings Settings
	limiter  *rate.Limiter
	prev     []storage.Finding
	findings []scan.Finding
	lastAt   time.Time

	trigger chan struct{}
}

type Option func(*Watcher)

func WithStore(st storage.Store) Option { return func(w *Watcher) { w.store = st } }

func WithNotifier(n systemd.Notifier) Option { return func(w *Watcher) { w.notify = n } }

func WithObserver(o Observer) Option { return func(w *Watcher) { w.obs = o } }

func WithLogger(log logx.Logger) Option { return func(w *Watcher) { w.log = log } }

func New(s Settings, opts ...Option) (*Watcher, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	w := &Watcher{
		log:     logx.Nop(),
		notify:  systemd.Nop{},
		trigger: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(w)
	}
	if w.log.IsZero() {
		w.log = logx.Nop()
	}
	w.settings = s
	w.limiter = newLimiter(s.MinInterval)
	return w, nil
}

func (s Settings) check() error {
	switch {
	case len(s.Roots) == 0:
		return errors.New("watch: no roots")
	case s.Scanner == nil:
		return errors.New("watch: nil scanner")
	case s.Validator == nil:
		return errors.New("watch: nil validator")
	}
	return nil
}

// newLimiter allows one rescan per interval. A zero interval disables limiting.
func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Apply swaps the settings and schedules a rescan.
func (w *Watcher) Apply(s Settings) error {
	if err := s.check(); err != nil {
		return err
	}
	w.mu.Lock()
	w.settings = s
	w.limiter.SetLimit(newLimiter(s.MinInterval).Limit())
	w.mu.Unlock()
	w.Trigger()
	return nil
}

// Trigger requests a rescan; requests coalesce.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) current() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings
}

// Findings returns the findings of the last completed scan and its time.
func (w *Watcher) Findings() ([]scan.Finding, time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.findings, w.lastAt
}

// Run scans once, signals readiness, then rescans on file changes until ctx
// is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.store != nil {
		prev, ok, err := w.store.LastRun(ctx)
		switch {
		case err != nil:
			w.log.Warn("previous run unavailable", logx.Err(err))
		case ok:
			w.prev = prev.Findings
			w.log.Debug("previous run loaded", logx.Time("at", prev.At), logx.Int("findings", len(prev.Findings)))
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if _, err := w.Rescan(ctx); err != nil {
		return err
	}
	w.addTrees(fw)
	if err := systemd.Ready(w.notify); err != nil {
		w.log.Debug("sd_notify failed", logx.Err(err))
	}
	defer func() {
		if err := systemd.Stopping(w.notify); err != nil {
			w.log.Debug("sd_notify failed", logx.Err(err))
		}
	}()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("watch: events channel closed")
			}
			if !w.relevant(fw, ev) {
				continue
			}
			debounce = time.After(w.current().Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watch: errors channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.log.Warn("watch overflow; forcing rescan", logx.Err(err))
				w.Trigger()
				continue
			}
			w.log.Warn("watch error", logx.Err(err))
		case <-w.trigger:
			debounce = time.After(w.current().Debounce)
		case <-debounce:
			debounce = nil
			w.mu.RLock()
			lim := w.limiter
			w.mu.RUnlock()
			if err := lim.Wait(ctx); err != nil {
				return nil
			}
			if _, err := w.Rescan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.log.Error("rescan failed", logx.Err(err))
				continue
			}
			// Roots may have changed, and new directories need watches.
			w.addTrees(fw)
		}
	}
}

// relevant reports whether ev should cause a rescan. New directories are
// added to the watch as a side effect.
func (w *Watcher) relevant(fw *fsnotify.Watcher, ev fsnotify.Event) bool {
	s := w.current()
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addTree(fw, s.Scanner, ev.Name)
			return true
		}
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	// Removed or renamed directories can't be stat'ed; rescan to be safe.
	return s.Scanner.Matches(ev.Name) || ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0
}

func (w *Watcher) addTrees(fw *fsnotify.Watcher) {
	s := w.current()
	for _, root := range s.Roots {
		w.addTree(fw, s.Scanner, root)
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, sc *scan.Scanner, root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && sc.Excluded(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.log.Debug("watch add failed", logx.String("path", path), logx.Err(err))
		}
		return nil
	})
	if err != nil {
		w.log.Warn("watch walk failed", logx.String("root", root), logx.Err(err))
	}
}

// Rescan scans all roots, logs the difference from the previous run and
// persists the new run.
func (w *Watcher) Rescan(ctx context.Context) (storage.Run, error) {
	s := w.current()
	start := time.Now()
	cands, err := s.Scanner.ScanTree(ctx, s.Roots)
	if err != nil {
		return storage.Run{}, err
	}
	findings := scan.Check(s.Validator, cands)
	took := time.Since(start)

	run := storage.Run{
		At:       start,
		Roots:    s.Roots,
		TookMS:   took.Milliseconds(),
		Findings: storage.FromScan(findings),
	}

	w.mu.Lock()
	prev := w.prev
	w.prev = run.Findings
	w.findings = findings
	w.lastAt = start
	w.mu.Unlock()

	added, resolved := storage.Diff(prev, run.Findings)
	for _, f := range added {
		fields := []logx.Field{
			logx.String("path", f.Path),
			logx.Int("line", f.Line),
			logx.Int("column", f.Column),
			logx.String("expr", f.Expression),
			logx.String("text", f.Text),
		}
		if f.Severity == string(scan.SeverityError) {
			w.log.Warn("schedule error", fields...)
		} else {
			w.log.Debug("schedule hint", fields...)
		}
	}
	for _, f := range resolved {
		if f.Severity == string(scan.SeverityError) {
			w.log.Info("schedule error resolved", logx.String("path", f.Path), logx.Int("line", f.Line), logx.String("expr", f.Expression))
		}
	}

	w.log.Info("scan complete",
		logx.Int("schedules", len(findings)),
		logx.Int("errors", run.Errors()),
		logx.Int("added", len(added)),
		logx.Int("resolved", len(resolved)),
		logx.Duration("took", took),
	)
	if err := systemd.Status(w.notify, "%d schedules, %d errors", len(findings), run.Errors()); err != nil {
		w.log.Debug("sd_notify failed", logx.Err(err))
	}
	if w.obs != nil {
		w.obs.ObserveScan(took, findings)
	}
	if w.store != nil {
		if err := w.store.SaveRun(ctx, run); err != nil {
			w.log.Warn("save run failed", logx.Err(err))
		}
	}
	return run, nil
}
