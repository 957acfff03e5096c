package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codeshelf/codeshelf/internal/classify"
	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/scanner"
)

// Warning thresholds: big trees make the move slow, not unsafe.
const (
	warnBytes = 1 << 30 // 1 GiB
	warnFiles = 10_000
)

// Options tune a single preview.
type Options struct {
	// CategoryOverride replaces the classification's category when non-empty.
	CategoryOverride string
	// Strategy resolves naming conflicts; defaults to rename.
	Strategy ConflictStrategy
	// CreateBackup adds a copy-to-backup operation before the move.
	CreateBackup bool
	// CustomName overrides the resolved project name when non-empty.
	CustomName string
}

// Generator computes organization plans. It only reads the filesystem for
// existence checks and never mutates it.
type Generator struct {
	taxonomy *classify.Taxonomy
	logger   zerolog.Logger

	now func() time.Time
}

// NewGenerator creates a plan generator over the taxonomy.
func NewGenerator(taxonomy *classify.Taxonomy, logger zerolog.Logger) *Generator {
	return &Generator{
		taxonomy: taxonomy,
		logger:   logger.With().Str("component", "plan_generator").Logger(),
		now:      time.Now,
	}
}

// Generate computes the destination under targetRoot for the scanned project
// and produces the ordered operation list moving it there.
func (g *Generator) Generate(scan *scanner.ScanResult, c classify.Classification, targetRoot string, opts Options) (*OrganizationPlan, error) {
	root, err := g.validateRoot(targetRoot)
	if err != nil {
		return nil, err
	}
	if err := g.validateSource(scan.Path, root); err != nil {
		return nil, err
	}

	category := c.Category
	if opts.CategoryOverride != "" {
		category = opts.CategoryOverride
	}
	if !g.taxonomy.Contains(category) {
		return nil, fmt.Errorf("%w: %q", cserrors.ErrCategoryNotRecognized, category)
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = ResolveRename
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: unknown conflict strategy %q", cserrors.ErrInvalidTargetRoot, opts.Strategy)
	}

	name := opts.CustomName
	if name == "" {
		name = c.SuggestedName
	}
	if name == "" {
		name = filepath.Base(scan.Path)
	}
	name = SanitizeName(name)

	categoryDir := filepath.Join(root, filepath.FromSlash(category))
	target := filepath.Join(categoryDir, name)

	var warnings []string
	conflicts, resolvedTarget := g.resolveConflicts(target, strategy)
	if len(conflicts) > 0 && strategy == ResolveOverwrite {
		warnings = append(warnings, fmt.Sprintf("overwrite strategy will replace existing target %s", target))
	}

	ops := g.buildOperations(scan, root, categoryDir, resolvedTarget, conflicts, strategy, opts.CreateBackup)

	if scan.TotalBytes > warnBytes {
		warnings = append(warnings, "large project (>1GB), the move may take a while")
	}
	if scan.TotalFiles > warnFiles {
		warnings = append(warnings, "many files (>10k), the move may take a while")
	}
	if scan.Partial {
		warnings = append(warnings, "scan was partial; file and size totals are lower bounds")
	}

	conflictsFound := 0
	if len(conflicts) > 0 {
		conflictsFound = 1
	}

	p := &OrganizationPlan{
		ID:               uuid.NewString(),
		ScanID:           scan.ID,
		Category:         category,
		SourcePath:       scan.Path,
		TargetPath:       resolvedTarget,
		Operations:       ops,
		ConflictsFound:   conflictsFound,
		SafetyWarnings:   warnings,
		TotalFiles:       scan.TotalFiles,
		TotalBytes:       scan.TotalBytes,
		EstimatedSeconds: EstimateSeconds(scan.TotalFiles, scan.TotalBytes),
		CreatedAt:        g.now(),
	}

	g.logger.Info().
		Str("plan_id", p.ID).
		Str("scan_id", scan.ID).
		Str("target", resolvedTarget).
		Int("operations", len(ops)).
		Int("conflicts", conflictsFound).
		Msg("plan generated")

	return p, nil
}

func (g *Generator) validateRoot(targetRoot string) (string, error) {
	if targetRoot == "" {
		return "", fmt.Errorf("%w: empty target root", cserrors.ErrInvalidTargetRoot)
	}
	abs, err := filepath.Abs(targetRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", cserrors.ErrInvalidTargetRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", cserrors.ErrInvalidTargetRoot, abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", cserrors.ErrInvalidTargetRoot, abs)
	}
	return abs, nil
}

// validateSource confirms the scanned directory is still present and readable,
// and rejects a root at or below it. Moving a tree into itself would copy
// without end.
func (g *Generator) validateSource(source, root string) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return fmt.Errorf("%w: %v", cserrors.ErrPathNotFound, err)
	}
	f, err := os.Open(src)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return fmt.Errorf("%w: %s", cserrors.ErrPathNotFound, src)
		case os.IsPermission(err):
			return fmt.Errorf("%w: %s", cserrors.ErrPermissionDenied, src)
		default:
			return err
		}
	}
	f.Close()

	rel, err := filepath.Rel(src, root)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is inside the source directory", cserrors.ErrInvalidTargetRoot, root)
	}
	return nil
}

// resolveConflicts checks the target for an existing entry and applies the
// strategy. Rename probes numeric suffixes until a free name is found.
func (g *Generator) resolveConflicts(target string, strategy ConflictStrategy) ([]string, string) {
	if _, err := os.Stat(target); err != nil {
		return nil, target
	}

	conflicts := []string{fmt.Sprintf("target already exists: %s", target)}
	switch strategy {
	case ResolveRename:
		resolved := target
		for i := 1; ; i++ {
			resolved = fmt.Sprintf("%s-%d", target, i)
			if _, err := os.Stat(resolved); err != nil {
				break
			}
		}
		conflicts = append(conflicts, fmt.Sprintf("will rename to %s", filepath.Base(resolved)))
		return conflicts, resolved
	case ResolveSkip:
		conflicts = append(conflicts, "operation will be skipped")
		return conflicts, target
	default: // overwrite
		conflicts = append(conflicts, "existing target will be overwritten")
		return conflicts, target
	}
}

// buildOperations synthesizes directory creation for every missing segment
// between root and the category directory, then the optional backup copy, then
// the move itself.
func (g *Generator) buildOperations(scan *scanner.ScanResult, root, categoryDir, target string, conflicts []string, strategy ConflictStrategy, backup bool) []Operation {
	var ops []Operation

	rel, err := filepath.Rel(root, categoryDir)
	if err == nil && rel != "." {
		segment := root
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			segment = filepath.Join(segment, part)
			if _, statErr := os.Stat(segment); statErr == nil {
				continue
			}
			ops = append(ops, Operation{
				ID:         uuid.NewString(),
				Type:       OpCreateDirectory,
				Target:     segment,
				Resolution: strategy,
			})
		}
	}

	if backup {
		ops = append(ops, Operation{
			ID:         uuid.NewString(),
			Type:       OpCopyDirectory,
			Source:     scan.Path,
			Target:     BackupPath(scan.Path, g.now()),
			FileCount:  scan.TotalFiles,
			Bytes:      scan.TotalBytes,
			Resolution: strategy,
		})
	}

	ops = append(ops, Operation{
		ID:         uuid.NewString(),
		Type:       OpMoveDirectory,
		Source:     scan.Path,
		Target:     target,
		FileCount:  scan.TotalFiles,
		Bytes:      scan.TotalBytes,
		Conflicts:  conflicts,
		Resolution: strategy,
	})
	return ops
}

// BackupPath places a timestamped sibling next to the source directory.
func BackupPath(source string, now time.Time) string {
	stamp := now.Format("20060102_150405")
	return filepath.Join(filepath.Dir(source), fmt.Sprintf("%s_backup_%s", filepath.Base(source), stamp))
}

var (
	unsafeChars   = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedScore = regexp.MustCompile(`_+`)
)

// maxNameLen keeps resolved names comfortably inside filesystem limits.
const maxNameLen = 100

// SanitizeName strips path-unsafe characters and trims length so the resolved
// project name is a valid single path segment everywhere.
func SanitizeName(name string) string {
	cleaned := unsafeChars.ReplaceAllString(name, "_")
	cleaned = repeatedScore.ReplaceAllString(cleaned, "_")
	cleaned = strings.Trim(cleaned, "._ ")
	if len(cleaned) > maxNameLen {
		cleaned = cleaned[:maxNameLen]
	}
	if cleaned == "" {
		return "unnamed_project"
	}
	return cleaned
}
