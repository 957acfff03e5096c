package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/plan"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func movePlan(source, target string) *plan.OrganizationPlan {
	return &plan.OrganizationPlan{
		ID:         "plan-1",
		SourcePath: source,
		TargetPath: target,
		Operations: []plan.Operation{
			{ID: "op-mkdir", Type: plan.OpCreateDirectory, Target: filepath.Dir(target), Resolution: plan.ResolveRename},
			{ID: "op-move", Type: plan.OpMoveDirectory, Source: source, Target: target, Resolution: plan.ResolveRename},
		},
	}
}

func TestExecuteMovesProject(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"main.py":        "print('hi')\n",
		"pkg/util.py":    "x = 1\n",
		"pkg/deep/a.txt": "data",
	})
	target := filepath.Join(t.TempDir(), "SystemUtilities", "Python", "proj")

	ex := New(zerolog.Nop())
	m, err := ex.Execute(context.Background(), movePlan(src, target))
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, m.Status)
	assert.Empty(t, m.Warnings)

	// Source is gone, copy is complete.
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	got, err := os.ReadFile(filepath.Join(target, "pkg", "deep", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	statuses := make(map[string][]RecordStatus)
	for _, r := range m.Records {
		statuses[r.OperationID] = append(statuses[r.OperationID], r.Status)
	}
	assert.Equal(t, []RecordStatus{StatusDone}, statuses["op-mkdir"])
	assert.Equal(t, []RecordStatus{StatusCopied, StatusVerified, StatusSourceDeleted}, statuses["op-move"])
}

func TestExecuteIsOneShot(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})
	p := movePlan(src, filepath.Join(t.TempDir(), "Misc", "proj"))

	ex := New(zerolog.Nop())
	_, err := ex.Execute(context.Background(), p)
	require.NoError(t, err)

	_, err = ex.Execute(context.Background(), p)
	assert.ErrorIs(t, err, cserrors.ErrPlanAlreadyExecuted)
}

func TestExecuteMissingSourceKeepsPlanExecutable(t *testing.T) {
	src := filepath.Join(t.TempDir(), "gone")
	p := movePlan(src, filepath.Join(t.TempDir(), "Misc", "proj"))

	ex := New(zerolog.Nop())
	_, err := ex.Execute(context.Background(), p)
	assert.ErrorIs(t, err, cserrors.ErrPathNotFound)
	assert.False(t, p.Executed())

	// After the source appears the same plan can run.
	require.NoError(t, os.MkdirAll(src, 0o755))
	writeTree(t, src, map[string]string{"f.txt": "x"})
	_, err = ex.Execute(context.Background(), p)
	assert.NoError(t, err)
}

func TestExecuteRollbackOnFailure(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"keep.txt": "original"})
	targetRoot := t.TempDir()
	goodTarget := filepath.Join(targetRoot, "good")

	p := &plan.OrganizationPlan{
		ID:         "plan-fail",
		SourcePath: src,
		Operations: []plan.Operation{
			{ID: "op-good", Type: plan.OpMoveDirectory, Source: src, Target: goodTarget, Resolution: plan.ResolveRename},
			{ID: "op-bad", Type: plan.OpMoveFile, Source: filepath.Join(src, "missing.txt"), Target: filepath.Join(targetRoot, "bad.txt"), Resolution: plan.ResolveRename},
		},
	}

	ex := New(zerolog.Nop())
	m, err := ex.Execute(context.Background(), p)
	require.Error(t, err)
	require.NotNil(t, m)
	assert.Equal(t, RunFailed, m.Status)

	// Source untouched, partial copy rolled back.
	got, readErr := os.ReadFile(filepath.Join(src, "keep.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "original", string(got))
	_, statErr := os.Stat(goodTarget)
	assert.True(t, os.IsNotExist(statErr))

	var rolledBack bool
	for _, r := range m.Records {
		if r.OperationID == "op-good" && r.Status == StatusRolledBack {
			rolledBack = true
		}
	}
	assert.True(t, rolledBack)
}

func TestExecuteSkippedOperation(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})
	target := filepath.Join(t.TempDir(), "proj")

	p := &plan.OrganizationPlan{
		ID:         "plan-skip",
		SourcePath: src,
		Operations: []plan.Operation{
			{
				ID:         "op-skip",
				Type:       plan.OpMoveDirectory,
				Source:     src,
				Target:     target,
				Conflicts:  []string{"target already exists"},
				Resolution: plan.ResolveSkip,
			},
		},
	}

	ex := New(zerolog.Nop())
	m, err := ex.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, RunCompleted, m.Status)
	require.Len(t, m.Records, 1)
	assert.Equal(t, StatusSkipped, m.Records[0].Status)

	// Nothing moved.
	_, err = os.Stat(filepath.Join(src, "f.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteBackupThenMove(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "payload"})
	backup := filepath.Join(t.TempDir(), "backup")
	target := filepath.Join(t.TempDir(), "proj")

	p := &plan.OrganizationPlan{
		ID:         "plan-backup",
		SourcePath: src,
		Operations: []plan.Operation{
			{ID: "op-backup", Type: plan.OpCopyDirectory, Source: src, Target: backup, Resolution: plan.ResolveRename},
			{ID: "op-move", Type: plan.OpMoveDirectory, Source: src, Target: target, Resolution: plan.ResolveRename},
		},
	}

	ex := New(zerolog.Nop())
	m, err := ex.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, m.Status)

	// Backup and moved copy both survive; the original source does not.
	for _, path := range []string{backup, target} {
		got, readErr := os.ReadFile(filepath.Join(path, "f.txt"))
		require.NoError(t, readErr)
		assert.Equal(t, "payload", string(got))
	}
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestExecuteDeleteFailureKeepsCopy(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not restrict root")
	}

	parent := t.TempDir()
	src := filepath.Join(parent, "proj")
	require.NoError(t, os.MkdirAll(src, 0o755))
	writeTree(t, src, map[string]string{"f.txt": "x"})
	target := filepath.Join(t.TempDir(), "moved")

	p := movePlan(src, target)

	// Read-only parent blocks source removal but not reading.
	require.NoError(t, os.Chmod(parent, 0o555))
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	ex := New(zerolog.Nop())
	m, err := ex.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, RunWithWarnings, m.Status)
	require.NotEmpty(t, m.Warnings)
	assert.Contains(t, m.Warnings[0], "copy is intact")

	// The verified copy is in place even though the source remains.
	_, err = os.Stat(filepath.Join(target, "f.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(src, "f.txt"))
	assert.NoError(t, err)
}

func TestExecuteCancelledContext(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})
	p := movePlan(src, filepath.Join(t.TempDir(), "proj"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := New(zerolog.Nop())
	m, err := ex.Execute(ctx, p)
	require.Error(t, err)
	assert.Equal(t, RunFailed, m.Status)

	// Source untouched.
	_, err = os.Stat(filepath.Join(src, "f.txt"))
	assert.NoError(t, err)
}
