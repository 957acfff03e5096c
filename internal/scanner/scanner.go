// Package scanner walks a project directory and extracts the structural signals
// used by the classifiers: extension histogram, marker files, directory and file
// counts, and a bounded readme excerpt.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cserrors "github.com/codeshelf/codeshelf/internal/errors"
)

// NoExtension is the histogram bucket for files without an extension. Every
// counted file lands in exactly one bucket, so histogram totals match TotalFiles.
const NoExtension = "(none)"

// ScanResult is an immutable snapshot of one directory scan.
type ScanResult struct {
	ID            string         `json:"scan_id"`
	Path          string         `json:"path"`
	TotalFiles    int            `json:"total_files"`
	TotalDirs     int            `json:"total_directories"`
	TotalBytes    int64          `json:"total_bytes"`
	Extensions    map[string]int `json:"file_extensions"`
	Markers       []string       `json:"marker_files"`
	ReadmeExcerpt string         `json:"readme_excerpt,omitempty"`
	Partial       bool           `json:"partial"`
	ScannedAt     time.Time      `json:"scanned_at"`
	DurationMS    int64          `json:"scan_duration_ms"`
}

// TopExtensions returns up to n histogram entries ordered by descending count,
// ties broken alphabetically.
func (r *ScanResult) TopExtensions(n int) []ExtensionCount {
	out := make([]ExtensionCount, 0, len(r.Extensions))
	for ext, count := range r.Extensions {
		out = append(out, ExtensionCount{Ext: ext, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ext < out[j].Ext
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ExtensionCount is one histogram entry.
type ExtensionCount struct {
	Ext   string
	Count int
}

// Config bounds a scanner's traversal work.
type Config struct {
	MaxFiles         int // ceiling; past it the scan stops and is flagged partial
	Workers          int // subtree walkers running concurrently
	ReadmeExcerptLen int
}

// DefaultConfig returns the traversal bounds used in production.
func DefaultConfig() Config {
	return Config{MaxFiles: 10000, Workers: 4, ReadmeExcerptLen: 1000}
}

// Scanner walks directories. Safe for concurrent use; each Scan is independent.
type Scanner struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a Scanner with the given bounds.
func New(cfg Config, logger zerolog.Logger) *Scanner {
	if cfg.MaxFiles < 1 {
		cfg.MaxFiles = DefaultConfig().MaxFiles
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ReadmeExcerptLen < 1 {
		cfg.ReadmeExcerptLen = DefaultConfig().ReadmeExcerptLen
	}
	return &Scanner{cfg: cfg, logger: logger.With().Str("component", "scanner").Logger()}
}

// accumulator collects per-worker partial results, merged after all walkers stop.
type accumulator struct {
	files      int
	dirs       int
	bytes      int64
	extensions map[string]int
	markers    map[string]struct{}

	readmePath  string
	readmeDepth int
}

func newAccumulator() *accumulator {
	return &accumulator{
		extensions:  make(map[string]int),
		markers:     make(map[string]struct{}),
		readmeDepth: -1,
	}
}

func (a *accumulator) merge(b *accumulator) {
	a.files += b.files
	a.dirs += b.dirs
	a.bytes += b.bytes
	for ext, n := range b.extensions {
		a.extensions[ext] += n
	}
	for m := range b.markers {
		a.markers[m] = struct{}{}
	}
	if b.readmePath != "" && (a.readmeDepth < 0 || b.readmeDepth < a.readmeDepth) {
		a.readmePath = b.readmePath
		a.readmeDepth = b.readmeDepth
	}
}

// Scan walks root and returns its structural snapshot. It is read-only.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	start := time.Now()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, cserrors.NewPathError("scan", root, err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return nil, cserrors.NewPathError("scan", abs, cserrors.ErrNotADirectory)
	case os.IsNotExist(err):
		return nil, cserrors.NewPathError("scan", abs, cserrors.ErrPathNotFound)
	case os.IsPermission(err):
		return nil, cserrors.NewPathError("scan", abs, cserrors.ErrPermissionDenied)
	case err != nil:
		return nil, cserrors.NewPathError("scan", abs, err)
	}

	w := &walk{
		scanner: s,
		visited: make(map[string]struct{}),
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		w.visited[real] = struct{}{}
	}

	// Root entries are listed inline; subtrees are handed to a bounded worker
	// pool, each walker keeping its own accumulator.
	rootAcc := newAccumulator()
	subdirs, err := w.scanDir(ctx, abs, 0, rootAcc)
	if err != nil {
		return nil, err
	}

	workerAccs := make([]*accumulator, s.cfg.Workers)
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		workerAccs[i] = newAccumulator()
		wg.Add(1)
		go func(acc *accumulator) {
			defer wg.Done()
			for dir := range jobs {
				w.walkSubtree(ctx, dir, 1, acc)
			}
		}(workerAccs[i])
	}
	for _, d := range subdirs {
		jobs <- d
	}
	close(jobs)
	wg.Wait()

	for _, acc := range workerAccs {
		rootAcc.merge(acc)
	}

	result := &ScanResult{
		ID:         uuid.NewString(),
		Path:       abs,
		TotalFiles: rootAcc.files,
		TotalDirs:  rootAcc.dirs,
		TotalBytes: rootAcc.bytes,
		Extensions: rootAcc.extensions,
		Partial:    w.partial.Load(),
		ScannedAt:  start,
	}
	for m := range rootAcc.markers {
		result.Markers = append(result.Markers, m)
	}
	sort.Strings(result.Markers)

	if rootAcc.readmePath != "" {
		result.ReadmeExcerpt = s.readmeExcerpt(rootAcc.readmePath)
	}
	result.DurationMS = time.Since(start).Milliseconds()

	s.logger.Info().
		Str("scan_id", result.ID).
		Str("path", abs).
		Int("files", result.TotalFiles).
		Int("dirs", result.TotalDirs).
		Bool("partial", result.Partial).
		Int64("duration_ms", result.DurationMS).
		Msg("scan complete")

	return result, nil
}

// walk holds the shared state of one traversal.
type walk struct {
	scanner *Scanner
	counted atomic.Int64
	partial atomic.Bool

	mu      sync.Mutex
	visited map[string]struct{} // real paths of entered directories, guards symlink cycles
}

// enter records a directory's real path, refusing directories already entered.
func (w *walk) enter(dir string) bool {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		real = dir
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, seen := w.visited[real]; seen {
		return false
	}
	w.visited[real] = struct{}{}
	return true
}

// countFile reserves one slot under the ceiling. Once the ceiling is hit the
// scan is flagged partial and further files are not recorded.
func (w *walk) countFile() bool {
	if w.counted.Add(1) > int64(w.scanner.cfg.MaxFiles) {
		w.partial.Store(true)
		return false
	}
	return true
}

// walkSubtree recursively walks dir, accumulating into acc. Errors on single
// entries are skipped; the snapshot is best-effort past the root.
func (w *walk) walkSubtree(ctx context.Context, dir string, depth int, acc *accumulator) {
	if ctx.Err() != nil || w.partial.Load() {
		return
	}
	subdirs, err := w.scanDir(ctx, dir, depth, acc)
	if err != nil {
		return
	}
	for _, sub := range subdirs {
		w.walkSubtree(ctx, sub, depth+1, acc)
	}
}

// scanDir records dir's file entries into acc and returns child directories to
// descend into. The returned error is non-nil only for the scan root.
func (w *walk) scanDir(ctx context.Context, dir string, depth int, acc *accumulator) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if depth == 0 {
			if os.IsPermission(err) {
				return nil, cserrors.NewPathError("scan", dir, cserrors.ErrPermissionDenied)
			}
			return nil, cserrors.NewPathError("scan", dir, err)
		}
		return nil, err
	}

	var subdirs []string
	for _, entry := range entries {
		if ctx.Err() != nil {
			return subdirs, nil
		}
		name := entry.Name()
		path := filepath.Join(dir, name)

		isDir := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				isDir = true
			}
		}

		if isDir {
			if _, skip := skipDirs[name]; skip {
				continue
			}
			acc.dirs++
			if w.enter(path) {
				subdirs = append(subdirs, path)
			}
			continue
		}

		if !w.countFile() {
			return subdirs, nil
		}
		acc.files++

		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" {
			ext = NoExtension
		}
		acc.extensions[ext]++

		if _, ok := markerHints[name]; ok {
			acc.markers[name] = struct{}{}
		}

		if strings.HasPrefix(strings.ToLower(name), "readme") {
			if acc.readmeDepth < 0 || depth < acc.readmeDepth {
				acc.readmePath = path
				acc.readmeDepth = depth
			}
		}

		if info, err := entry.Info(); err == nil {
			acc.bytes += info.Size()
		}
	}
	return subdirs, nil
}

// readmeExcerpt reads at most the configured number of characters from path.
func (s *Scanner) readmeExcerpt(path string) string {
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("could not read readme")
		return ""
	}
	defer f.Close()

	buf := make([]byte, s.cfg.ReadmeExcerptLen)
	n, _ := f.Read(buf)
	return strings.TrimSpace(string(buf[:n]))
}
