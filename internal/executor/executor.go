// Package executor runs organization plans with a copy-verify-delete protocol:
// every copy is verified before any source is removed, so a failure mid-run
// never leaves the project half-moved.
package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/plan"
)

// RecordStatus tracks an operation through the execution state machine.
type RecordStatus string

const (
	StatusPending       RecordStatus = "pending"
	StatusDone          RecordStatus = "done"
	StatusCopied        RecordStatus = "copied"
	StatusVerified      RecordStatus = "verified"
	StatusSourceDeleted RecordStatus = "source-deleted"
	StatusDeleteFailed  RecordStatus = "delete-failed"
	StatusSkipped       RecordStatus = "skipped"
	StatusFailed        RecordStatus = "failed"
	StatusRolledBack    RecordStatus = "rolled-back"
)

// ManifestStatus is the overall outcome of a run.
type ManifestStatus string

const (
	RunCompleted    ManifestStatus = "completed"
	RunWithWarnings ManifestStatus = "completed-with-warnings"
	RunFailed       ManifestStatus = "failed"
)

// Record is the append-only audit trail entry for one operation.
type Record struct {
	OperationID string             `json:"operation_id"`
	Type        plan.OperationType `json:"type"`
	Source      string             `json:"source_path,omitempty"`
	Target      string             `json:"target_path"`
	Status      RecordStatus       `json:"status"`
	Error       string             `json:"error,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Manifest is the durable result of one execution attempt.
type Manifest struct {
	ID         string         `json:"manifest_id"`
	PlanID     string         `json:"plan_id"`
	Status     ManifestStatus `json:"status"`
	Records    []Record       `json:"records"`
	Warnings   []string       `json:"warnings,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Executor runs plans. It is safe for concurrent use; per-plan exclusivity is
// enforced by the plan's own execution claim.
type Executor struct {
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an executor.
func New(logger zerolog.Logger) *Executor {
	return &Executor{
		logger: logger.With().Str("component", "executor").Logger(),
		now:    time.Now,
	}
}

// Execute runs the plan once. A second call for the same plan returns
// ErrPlanAlreadyExecuted. The returned manifest is non-nil whenever at least
// one operation was attempted, including failed runs.
func (e *Executor) Execute(ctx context.Context, p *plan.OrganizationPlan) (*Manifest, error) {
	if !p.ClaimExecution() {
		return nil, fmt.Errorf("%w: plan %s", cserrors.ErrPlanAlreadyExecuted, p.ID)
	}

	if _, err := os.Stat(p.SourcePath); err != nil {
		// Nothing ran; the plan stays executable after the caller fixes the source.
		p.ReleaseExecution()
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", cserrors.ErrPathNotFound, p.SourcePath)
		}
		return nil, &cserrors.PathError{Op: "execute", Path: p.SourcePath, Err: err}
	}

	m := &Manifest{
		ID:        uuid.NewString(),
		PlanID:    p.ID,
		Status:    RunCompleted,
		StartedAt: e.now(),
	}

	e.logger.Info().
		Str("plan_id", p.ID).
		Str("manifest_id", m.ID).
		Int("operations", len(p.Operations)).
		Msg("execution started")

	if err := e.copyPhase(ctx, p, m); err != nil {
		e.rollback(p, m)
		m.Status = RunFailed
		m.FinishedAt = e.now()
		e.logger.Error().Err(err).Str("plan_id", p.ID).Msg("execution failed, rolled back")
		return m, err
	}

	e.deletePhase(p, m)

	m.FinishedAt = e.now()
	e.logger.Info().
		Str("plan_id", p.ID).
		Str("status", string(m.Status)).
		Dur("elapsed", m.FinishedAt.Sub(m.StartedAt)).
		Msg("execution finished")
	return m, nil
}

// copyPhase materializes every target. No source is touched here.
func (e *Executor) copyPhase(ctx context.Context, p *plan.OrganizationPlan, m *Manifest) error {
	for i := range p.Operations {
		op := &p.Operations[i]
		if err := ctx.Err(); err != nil {
			e.record(m, op, StatusFailed, err)
			return err
		}
		if op.Skipped() {
			e.record(m, op, StatusSkipped, nil)
			continue
		}

		switch op.Type {
		case plan.OpCreateDirectory:
			if err := os.MkdirAll(op.Target, 0o755); err != nil {
				e.record(m, op, StatusFailed, err)
				return &cserrors.PathError{Op: "mkdir", Path: op.Target, Err: err}
			}
			e.record(m, op, StatusDone, nil)

		case plan.OpMoveDirectory, plan.OpCopyDirectory:
			if op.Resolution == plan.ResolveOverwrite {
				if err := os.RemoveAll(op.Target); err != nil {
					e.record(m, op, StatusFailed, err)
					return &cserrors.PathError{Op: "overwrite", Path: op.Target, Err: err}
				}
			}
			files, bytes, err := copyTree(op.Source, op.Target)
			if err != nil {
				e.record(m, op, StatusFailed, err)
				return &cserrors.PathError{Op: "copy", Path: op.Source, Err: err}
			}
			e.record(m, op, StatusCopied, nil)
			if err := verifyCopy(op.Source, files, bytes); err != nil {
				e.record(m, op, StatusFailed, err)
				return err
			}
			e.record(m, op, StatusVerified, nil)

		case plan.OpMoveFile:
			if err := copyFile(op.Source, op.Target); err != nil {
				e.record(m, op, StatusFailed, err)
				return &cserrors.PathError{Op: "copy", Path: op.Source, Err: err}
			}
			e.record(m, op, StatusCopied, nil)
			if err := verifyFile(op.Source, op.Target); err != nil {
				e.record(m, op, StatusFailed, err)
				return err
			}
			e.record(m, op, StatusVerified, nil)

		default:
			err := fmt.Errorf("unknown operation type %q", op.Type)
			e.record(m, op, StatusFailed, err)
			return err
		}
	}
	return nil
}

// deletePhase removes sources for move operations after every copy verified.
// A failed delete leaves the verified copy in place and is reported as a
// warning rather than an error.
func (e *Executor) deletePhase(p *plan.OrganizationPlan, m *Manifest) {
	for i := range p.Operations {
		op := &p.Operations[i]
		if op.Skipped() {
			continue
		}
		if op.Type != plan.OpMoveDirectory && op.Type != plan.OpMoveFile {
			continue
		}
		if err := os.RemoveAll(op.Source); err != nil {
			e.record(m, op, StatusDeleteFailed, err)
			m.Warnings = append(m.Warnings, fmt.Sprintf("source not removed, copy is intact at %s: %v", op.Target, err))
			m.Status = RunWithWarnings
			continue
		}
		e.record(m, op, StatusSourceDeleted, nil)
	}
}

// rollback removes copy targets in reverse order. Sources were never touched
// in the copy phase, so deleting the partial targets restores the original
// state. Directories created for category segments are left in place.
func (e *Executor) rollback(p *plan.OrganizationPlan, m *Manifest) {
	for i := len(p.Operations) - 1; i >= 0; i-- {
		op := &p.Operations[i]
		if op.Type != plan.OpMoveDirectory && op.Type != plan.OpMoveFile && op.Type != plan.OpCopyDirectory {
			continue
		}
		if !e.touched(m, op.ID) {
			continue
		}
		if err := os.RemoveAll(op.Target); err != nil {
			m.Warnings = append(m.Warnings, fmt.Sprintf("rollback could not remove %s: %v", op.Target, err))
			continue
		}
		e.record(m, op, StatusRolledBack, nil)
	}
}

// touched reports whether the operation's copy target was at least partially
// written during this run.
func (e *Executor) touched(m *Manifest, opID string) bool {
	for i := len(m.Records) - 1; i >= 0; i-- {
		if m.Records[i].OperationID != opID {
			continue
		}
		switch m.Records[i].Status {
		case StatusCopied, StatusVerified, StatusFailed:
			return true
		}
	}
	return false
}

func (e *Executor) record(m *Manifest, op *plan.Operation, status RecordStatus, err error) {
	r := Record{
		OperationID: op.ID,
		Type:        op.Type,
		Source:      op.Source,
		Target:      op.Target,
		Status:      status,
		UpdatedAt:   e.now(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	m.Records = append(m.Records, r)
}

// copyTree copies src recursively to dst and returns the file count and byte
// total written, which verifyCopy checks against the source.
func copyTree(src, dst string) (int, int64, error) {
	var files int
	var bytes int64
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		if !info.Mode().IsRegular() {
			// Symlinks and other specials are not followed during scans and
			// are not copied either.
			return nil
		}
		n, err := copyFileBytes(path, target, info.Mode().Perm())
		if err != nil {
			return err
		}
		files++
		bytes += n
		return nil
	})
	return files, bytes, err
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	_, err = copyFileBytes(src, dst, info.Mode().Perm())
	return err
}

func copyFileBytes(src, dst string, perm os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return n, err
	}
	return n, out.Close()
}

// verifyCopy recounts the source tree and compares it with what copyTree wrote.
func verifyCopy(src string, copiedFiles int, copiedBytes int64) error {
	var files int
	var bytes int64
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		files++
		bytes += info.Size()
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: source recount failed: %v", cserrors.ErrCopyVerificationFailed, err)
	}
	if files != copiedFiles || bytes != copiedBytes {
		return fmt.Errorf("%w: source has %d files/%d bytes, copy wrote %d files/%d bytes",
			cserrors.ErrCopyVerificationFailed, files, bytes, copiedFiles, copiedBytes)
	}
	return nil
}

func verifyFile(src, dst string) error {
	si, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: %v", cserrors.ErrCopyVerificationFailed, err)
	}
	di, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", cserrors.ErrCopyVerificationFailed, err)
	}
	if si.Size() != di.Size() {
		return fmt.Errorf("%w: source %d bytes, copy %d bytes", cserrors.ErrCopyVerificationFailed, si.Size(), di.Size())
	}
	return nil
}
