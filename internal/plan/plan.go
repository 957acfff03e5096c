// Package plan turns a final classification into an ordered, inspectable list of
// file operations — a dry run with no side effects beyond existence checks.
package plan

import (
	"sync/atomic"
	"time"
)

// OperationType distinguishes the units of file movement a plan contains.
type OperationType string

const (
	OpCreateDirectory OperationType = "create-directory"
	OpMoveDirectory   OperationType = "move-directory"
	OpMoveFile        OperationType = "move-file"
	// OpCopyDirectory is emitted for pre-move backups; the source survives.
	OpCopyDirectory OperationType = "copy-directory"
)

// ConflictStrategy selects how a naming collision at the target is resolved.
type ConflictStrategy string

const (
	ResolveRename    ConflictStrategy = "rename"
	ResolveSkip      ConflictStrategy = "skip"
	ResolveOverwrite ConflictStrategy = "overwrite"
)

// Valid reports whether s is a known strategy.
func (s ConflictStrategy) Valid() bool {
	switch s {
	case ResolveRename, ResolveSkip, ResolveOverwrite:
		return true
	}
	return false
}

// Operation is one unit of file movement, produced in dependency order:
// directories are created before anything moves into them.
type Operation struct {
	ID         string           `json:"operation_id"`
	Type       OperationType    `json:"type"`
	Source     string           `json:"source_path,omitempty"`
	Target     string           `json:"target_path"`
	FileCount  int              `json:"file_count"`
	Bytes      int64            `json:"total_size_bytes"`
	Conflicts  []string         `json:"conflicts,omitempty"`
	Resolution ConflictStrategy `json:"resolution"`
}

// Skipped reports whether the operation is listed for visibility only and must
// not touch the filesystem.
func (o *Operation) Skipped() bool {
	return o.Resolution == ResolveSkip && len(o.Conflicts) > 0
}

// OrganizationPlan is an immutable dry-run result. A plan executes at most
// once; the one-shot flag is claimed atomically by the executor.
type OrganizationPlan struct {
	ID               string      `json:"plan_id"`
	ScanID           string      `json:"scan_id"`
	Category         string      `json:"category"`
	SourcePath       string      `json:"source_path"`
	TargetPath       string      `json:"target_path"`
	Operations       []Operation `json:"operations"`
	ConflictsFound   int         `json:"conflicts_found"`
	SafetyWarnings   []string    `json:"safety_warnings,omitempty"`
	TotalFiles       int         `json:"total_files"`
	TotalBytes       int64       `json:"total_size_bytes"`
	EstimatedSeconds float64     `json:"estimated_seconds"`
	CreatedAt        time.Time   `json:"created_at"`

	executed atomic.Bool
}

// ClaimExecution atomically marks the plan executed. It returns false when the
// plan was already claimed; callers must not run a plan they failed to claim.
func (p *OrganizationPlan) ClaimExecution() bool {
	return p.executed.CompareAndSwap(false, true)
}

// ReleaseExecution returns the claim after a run that never started its first
// operation (for example, a failed precondition check).
func (p *OrganizationPlan) ReleaseExecution() {
	p.executed.Store(false)
}

// Executed reports whether the plan has been claimed for execution.
func (p *OrganizationPlan) Executed() bool {
	return p.executed.Load()
}

// EstimateSeconds predicts execution time from scan aggregates: a small per-file
// overhead plus transfer time at an assumed 100 MB/s, with a 20% buffer.
func EstimateSeconds(fileCount int, totalBytes int64) float64 {
	base := float64(fileCount) * 0.01
	transfer := float64(totalBytes) / (100 * 1024 * 1024)
	est := (base + transfer) * 1.2
	if est < 0.1 {
		est = 0.1
	}
	return est
}
