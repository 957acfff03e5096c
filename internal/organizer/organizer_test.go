package organizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeshelf/codeshelf/internal/classify"
	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/executor"
	"github.com/codeshelf/codeshelf/internal/inference"
	"github.com/codeshelf/codeshelf/internal/plan"
	"github.com/codeshelf/codeshelf/internal/retry"
	"github.com/codeshelf/codeshelf/internal/scanner"
	"github.com/codeshelf/codeshelf/internal/store"
)

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (g *stubGenerator) Generate(ctx context.Context, prompt, model string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func newTestService(t *testing.T, gen *stubGenerator) *Service {
	t.Helper()
	logger := zerolog.Nop()
	taxonomy := classify.DefaultTaxonomy()

	st, err := store.New(filepath.Join(t.TempDir(), "audit.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	deps := Deps{
		Scanner:   scanner.New(scanner.DefaultConfig(), logger),
		Heuristic: classify.NewHeuristicClassifier(taxonomy),
		Generator: plan.NewGenerator(taxonomy, logger),
		Executor:  executor.New(logger),
		Store:     st,
	}
	if gen != nil {
		deps.Model = classify.NewModelClassifier(gen, taxonomy, logger)
	}

	return New(deps, Config{
		DefaultModel: "llama3",
		Retry:        retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}, logger)
}

func pythonProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("requests\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("print('hi')\n"), 0o644))
	return dir
}

func TestScanUsesModelWhenConfident(t *testing.T) {
	gen := &stubGenerator{response: fmt.Sprintf(
		`{"category": %q, "confidence": 0.92, "reasoning": "requirements plus scripts", "suggested_name": "scraper"}`,
		"SystemUtilities/Python",
	)}
	svc := newTestService(t, gen)

	report, err := svc.Scan(context.Background(), pythonProject(t), "", true)
	require.NoError(t, err)

	assert.Equal(t, classify.MethodModel, report.Classification.Method)
	assert.Equal(t, "SystemUtilities/Python", report.Classification.Category)
	assert.InDelta(t, 0.92, report.Classification.Confidence, 1e-9)
	assert.Equal(t, 1, gen.calls)
}

func TestScanFallsBackWhenModelFails(t *testing.T) {
	gen := &stubGenerator{err: cserrors.ErrInferenceUnavailable}
	svc := newTestService(t, gen)

	report, err := svc.Scan(context.Background(), pythonProject(t), "", true)
	require.NoError(t, err)

	// Scan still succeeds; the heuristic result carries the day.
	assert.Equal(t, classify.MethodHeuristic, report.Classification.Method)
	assert.NotEmpty(t, report.Classification.Category)
}

func TestScanSkipsModelWhenDisabled(t *testing.T) {
	gen := &stubGenerator{response: `{"category": "Misc", "confidence": 0.9, "reasoning": "x"}`}
	svc := newTestService(t, gen)

	report, err := svc.Scan(context.Background(), pythonProject(t), "", false)
	require.NoError(t, err)
	assert.Equal(t, classify.MethodHeuristic, report.Classification.Method)
	assert.Equal(t, 0, gen.calls)
}

// tagsServer serves an installed-model list the way the backend's tags
// endpoint does.
func tagsServer(t *testing.T, names ...string) *httptest.Server {
	t.Helper()
	models := make([]map[string]string, 0, len(names))
	for _, n := range names {
		models = append(models, map[string]string{"name": n})
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"models": models})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScanFallsBackWhenModelNotInstalled(t *testing.T) {
	srv := tagsServer(t, "llama3")

	gen := &stubGenerator{response: `{"category": "Misc", "confidence": 0.95, "reasoning": "x"}`}
	svc := newTestService(t, gen)
	svc.inference = inference.New(zerolog.Nop(), inference.WithBaseURL(srv.URL))

	report, err := svc.Scan(context.Background(), pythonProject(t), "mistral", true)
	require.NoError(t, err)

	// The unknown model is rejected before any inference call is made.
	assert.Equal(t, classify.MethodHeuristic, report.Classification.Method)
	assert.Equal(t, 0, gen.calls)
}

func TestScanRunsInstalledModel(t *testing.T) {
	srv := tagsServer(t, "llama3", "mistral")

	gen := &stubGenerator{response: fmt.Sprintf(
		`{"category": %q, "confidence": 0.9, "reasoning": "markers"}`,
		"SystemUtilities/Python",
	)}
	svc := newTestService(t, gen)
	svc.inference = inference.New(zerolog.Nop(), inference.WithBaseURL(srv.URL))

	report, err := svc.Scan(context.Background(), pythonProject(t), "mistral", true)
	require.NoError(t, err)

	assert.Equal(t, classify.MethodModel, report.Classification.Method)
	assert.Equal(t, 1, gen.calls)
}

func TestScanWithoutModelClassifier(t *testing.T) {
	svc := newTestService(t, nil)

	report, err := svc.Scan(context.Background(), pythonProject(t), "", true)
	require.NoError(t, err)
	assert.Equal(t, classify.MethodHeuristic, report.Classification.Method)
}

func TestScanPropagatesPathErrors(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"), "", true)
	assert.ErrorIs(t, err, cserrors.ErrPathNotFound)
}

func TestPreviewExecuteRoundTrip(t *testing.T) {
	svc := newTestService(t, nil)
	src := pythonProject(t)
	root := t.TempDir()

	report, err := svc.Scan(context.Background(), src, "", true)
	require.NoError(t, err)

	p, err := svc.Preview(context.Background(), PreviewRequest{
		ScanID:     report.Scan.ID,
		TargetRoot: root,
	})
	require.NoError(t, err)
	assert.Equal(t, report.Scan.ID, p.ScanID)

	m, err := svc.Execute(context.Background(), p.ID, true)
	require.NoError(t, err)
	assert.Equal(t, executor.RunCompleted, m.Status)

	// Source moved under the category tree.
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p.TargetPath)
	assert.NoError(t, err)

	// Audit trail is persisted.
	rec, err := svc.PlanRecord(p.ID)
	require.NoError(t, err)
	assert.True(t, rec.Executed)
	assert.Equal(t, m.ID, rec.ManifestID)

	stored, err := svc.Manifest(m.ID)
	require.NoError(t, err)
	assert.Equal(t, executor.RunCompleted, stored.Status)

	// One-shot execution.
	_, err = svc.Execute(context.Background(), p.ID, true)
	assert.ErrorIs(t, err, cserrors.ErrPlanAlreadyExecuted)
}

func TestExecuteRequiresConfirm(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Execute(context.Background(), "whatever", false)
	assert.ErrorIs(t, err, cserrors.ErrConfirmRequired)
}

func TestPreviewUnknownScan(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Preview(context.Background(), PreviewRequest{ScanID: "nope", TargetRoot: t.TempDir()})
	assert.ErrorIs(t, err, cserrors.ErrScanNotFound)
}

func TestExecuteUnknownPlan(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Execute(context.Background(), "nope", true)
	assert.ErrorIs(t, err, cserrors.ErrPlanNotFound)
}

func TestExecutedPlanRejectedAcrossRestart(t *testing.T) {
	logger := zerolog.Nop()
	taxonomy := classify.DefaultTaxonomy()
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	st, err := store.New(dbPath, logger)
	require.NoError(t, err)

	deps := Deps{
		Scanner:   scanner.New(scanner.DefaultConfig(), logger),
		Heuristic: classify.NewHeuristicClassifier(taxonomy),
		Generator: plan.NewGenerator(taxonomy, logger),
		Executor:  executor.New(logger),
		Store:     st,
	}
	svc := New(deps, Config{}, logger)

	src := pythonProject(t)
	report, err := svc.Scan(context.Background(), src, "", true)
	require.NoError(t, err)
	p, err := svc.Preview(context.Background(), PreviewRequest{ScanID: report.Scan.ID, TargetRoot: t.TempDir()})
	require.NoError(t, err)
	_, err = svc.Execute(context.Background(), p.ID, true)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// A fresh service over the same database refuses to run the plan again.
	st2, err := store.New(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { st2.Close() })
	deps.Store = st2
	svc2 := New(deps, Config{}, logger)

	_, err = svc2.Execute(context.Background(), p.ID, true)
	assert.ErrorIs(t, err, cserrors.ErrPlanAlreadyExecuted)
}
