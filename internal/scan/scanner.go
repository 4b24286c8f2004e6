package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	logx "timerlint/pkg/logx"
)

// DefaultInclude lists the file patterns scanned when Options.Include is empty.
var DefaultInclude = []string{"*.cs", "*.fs", "*.csx", "function.json"}

// DefaultExclude lists directory names skipped when Options.Exclude is empty.
var DefaultExclude = []string{"bin", "obj", ".git", ".vs", ".idea", "node_modules"}

// Options controls which files a Scanner visits.
//
// Include patterns match file base names (filepath.Match syntax).
// Exclude patterns match directory base names and prune the whole subtree.
type Options struct {
	Include []string
	Exclude []string
	// Workers bounds concurrent file reads. 0 means GOMAXPROCS.
	Workers int
}

// Scanner extracts schedule candidates from files.
type Scanner struct {
	include []string
	exclude []string
	workers int
	log     logx.Logger
}

func New(opts Options, log logx.Logger) *Scanner {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scanner{
		include: opts.Include,
		exclude: opts.Exclude,
		workers: opts.Workers,
		log:     log,
	}
	if len(s.include) == 0 {
		s.include = DefaultInclude
	}
	if len(s.exclude) == 0 {
		s.exclude = DefaultExclude
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// attrPattern matches the first string argument of a TimerTrigger attribute.
// Groups: 1 triple-quoted (F#), 2 verbatim (C#), 3 regular.
var attrPattern = regexp.MustCompile(
	`\bTimerTrigger(?:Attribute)?\s*\(\s*(?:schedule\s*[:=]\s*)?` +
		`(?:"""((?s:.*?))"""|@"((?:[^"]|"")*)"|"((?:[^"\\\r\n]|\\.)*)")`,
)

// scheduleKeyPattern locates "schedule" values in function.json so findings
// get a line number.
var scheduleKeyPattern = regexp.MustCompile(`"schedule"\s*:\s*"`)

// Matches reports whether path should be scanned.
func (s *Scanner) Matches(path string) bool {
	base := filepath.Base(path)
	for _, pat := range s.include {
		if ok, _ := filepath.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// Excluded reports whether a directory with this base name is skipped.
func (s *Scanner) Excluded(dirName string) bool {
	for _, pat := range s.exclude {
		if ok, _ := filepath.Match(pat, dirName); ok {
			return true
		}
	}
	return false
}

// ScanFile reads and scans one file.
func (s *Scanner) ScanFile(path string) ([]Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ScanBytes(path, data)
}

// ScanBytes scans file content. The format is picked from the file name.
func ScanBytes(path string, data []byte) ([]Candidate, error) {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case base == "function.json":
		return scanFunctionJSON(path, data)
	case strings.HasSuffix(base, ".fs") || strings.HasSuffix(base, ".fsx"):
		return scanAttributes(path, data, SourceFSharp), nil
	case strings.HasSuffix(base, ".csx"):
		return scanAttributes(path, data, SourceCSharpScript), nil
	case strings.HasSuffix(base, ".cs"):
		return scanAttributes(path, data, SourceCSharp), nil
	default:
		return nil, nil
	}
}

func scanAttributes(path string, data []byte, src Source) []Candidate {
	idx := newLineIndex(data)
	var out []Candidate
	for _, m := range attrPattern.FindAllSubmatchIndex(data, -1) {
		var (
			start int
			expr  string
		)
		switch {
		case m[2] >= 0:
			start = m[2] - 3
			expr = string(data[m[2]:m[3]])
		case m[4] >= 0:
			start = m[4] - 2
			expr = strings.ReplaceAll(string(data[m[4]:m[5]]), `""`, `"`)
		case m[6] >= 0:
			start = m[6] - 1
			expr = unescape(string(data[m[6]:m[7]]))
		default:
			continue
		}
		line, col := idx.position(start)
		out = append(out, Candidate{Path: path, Line: line, Column: col, Source: src, Expression: expr})
	}
	return out
}

// unescape resolves C#/F# backslash escapes, falling back to the raw text.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

type functionJSON struct {
	Bindings []struct {
		Type     string  `json:"type"`
		Schedule *string `json:"schedule"`
	} `json:"bindings"`
}

func scanFunctionJSON(path string, data []byte) ([]Candidate, error) {
	var doc functionJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	idx := newLineIndex(data)
	keys := scheduleKeyPattern.FindAllIndex(data, -1)
	var out []Candidate
	seen := 0
	for _, b := range doc.Bindings {
		if b.Schedule == nil {
			continue
		}
		// Schedules appear in document order, so the n-th key is the n-th binding with one.
		line, col := 0, 0
		if seen < len(keys) {
			line, col = idx.position(keys[seen][1] - 1)
		}
		seen++
		if !strings.EqualFold(b.Type, "timerTrigger") {
			continue
		}
		out = append(out, Candidate{Path: path, Line: line, Column: col, Source: SourceFunctionJSON, Expression: *b.Schedule})
	}
	return out, nil
}

// ScanTree walks roots and scans every matching file. Results are sorted by
// path and position. Unreadable files are logged and skipped.
func (s *Scanner) ScanTree(ctx context.Context, roots []string) ([]Candidate, error) {
	paths, err := s.collect(ctx, roots)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out []Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cands, err := s.ScanFile(p)
			if err != nil {
				s.log.Warn("scan file failed", logx.String("path", p), logx.Err(err))
				return nil
			}
			if len(cands) == 0 {
				return nil
			}
			mu.Lock()
			out = append(out, cands...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	s.log.Debug("scan complete", logx.Int("files", len(paths)), logx.Int("candidates", len(out)))
	return out, nil
}

func (s *Scanner) collect(ctx context.Context, roots []string) ([]string, error) {
	var paths []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			// Explicit files are scanned regardless of Include.
			paths = append(paths, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrPermission) {
					s.log.Warn("scan skipped unreadable path", logx.String("path", path))
					return nil
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if path != root && s.Excluded(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if s.Matches(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// lineIndex maps byte offsets to 1-based line and column numbers.
type lineIndex []int

func newLineIndex(data []byte) lineIndex {
	idx := lineIndex{0}
	for i, c := range data {
		if c == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (idx lineIndex) position(offset int) (line, col int) {
	i := sort.Search(len(idx), func(i int) bool { return idx[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - idx[i] + 1
}
