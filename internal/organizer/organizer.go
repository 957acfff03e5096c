// Package organizer coordinates the pipeline: scan a directory, classify it,
// preview a plan and execute it, persisting every step to the audit store.
package organizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeshelf/codeshelf/internal/classify"
	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/executor"
	"github.com/codeshelf/codeshelf/internal/inference"
	"github.com/codeshelf/codeshelf/internal/metrics"
	"github.com/codeshelf/codeshelf/internal/plan"
	"github.com/codeshelf/codeshelf/internal/retry"
	"github.com/codeshelf/codeshelf/internal/scanner"
	"github.com/codeshelf/codeshelf/internal/store"
	"github.com/codeshelf/codeshelf/lru"
)

// scanCacheTTL bounds how long an idle scan report stays in memory; evicted
// reports are rehydrated from the store on demand.
const scanCacheTTL = time.Hour

// Config holds service-level tuning.
type Config struct {
	DefaultModel        string
	ConfidenceThreshold float64
	OrganizeRoot        string
	ScanCacheSize       int
	Retry               retry.Config
}

// ScanReport pairs a scan with its final classification.
type ScanReport struct {
	Scan           *scanner.ScanResult     `json:"scan"`
	Classification classify.Classification `json:"classification"`
}

// Service is the pipeline orchestrator.
type Service struct {
	scanner   *scanner.Scanner
	heuristic *classify.HeuristicClassifier
	model     *classify.ModelClassifier
	inference *inference.Client
	generator *plan.Generator
	executor  *executor.Executor
	store     *store.Store
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cfg       Config

	scans *lru.Cache[string, *ScanReport]

	mu    sync.RWMutex
	plans map[string]*plan.OrganizationPlan
}

// Deps bundles the service's collaborators.
type Deps struct {
	Scanner   *scanner.Scanner
	Heuristic *classify.HeuristicClassifier
	Model     *classify.ModelClassifier
	Inference *inference.Client
	Generator *plan.Generator
	Executor  *executor.Executor
	Store     *store.Store
	Metrics   *metrics.Metrics
}

// New creates the organizer service.
func New(d Deps, cfg Config, logger zerolog.Logger) *Service {
	if cfg.ScanCacheSize < 1 {
		cfg.ScanCacheSize = 64
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = classify.DefaultAcceptThreshold
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Service{
		scanner:   d.Scanner,
		heuristic: d.Heuristic,
		model:     d.Model,
		inference: d.Inference,
		generator: d.Generator,
		executor:  d.Executor,
		store:     d.Store,
		metrics:   d.Metrics,
		logger:    logger.With().Str("component", "organizer").Logger(),
		cfg:       cfg,
		scans:     lru.New[string, *ScanReport](cfg.ScanCacheSize, lru.WithTTL[string, *ScanReport](scanCacheTTL)),
		plans:     make(map[string]*plan.OrganizationPlan),
	}
}

// Scan walks the directory and classifies it. The heuristic always runs; the
// model runs concurrently when requested and available, and any model failure
// degrades the result to the heuristic classification instead of failing the
// scan.
func (s *Service) Scan(ctx context.Context, path, model string, useModel bool) (*ScanReport, error) {
	start := time.Now()
	result, err := s.scanner.Scan(ctx, path)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordScan("error", time.Since(start).Seconds())
		}
		return nil, err
	}

	if model == "" {
		model = s.cfg.DefaultModel
	}

	var modelResult *classify.Classification
	done := make(chan struct{})
	if useModel && s.model != nil && model != "" {
		go func() {
			defer close(done)
			modelResult = s.classifyWithModel(ctx, result, model)
		}()
	} else {
		close(done)
	}

	heuristic := s.heuristic.Classify(result)
	<-done

	final := classify.Arbitrate(heuristic, modelResult, s.cfg.ConfidenceThreshold)
	report := &ScanReport{Scan: result, Classification: final}
	s.scans.Put(result.ID, report)

	if s.store != nil {
		if err := s.store.SaveScan(result); err != nil {
			s.logger.Warn().Err(err).Str("scan_id", result.ID).Msg("scan not persisted")
		}
	}
	if s.metrics != nil {
		s.metrics.RecordScan("ok", time.Since(start).Seconds())
		s.metrics.RecordClassification(string(final.Method), final.Category)
	}

	s.logger.Info().
		Str("scan_id", result.ID).
		Str("category", final.Category).
		Float64("confidence", final.Confidence).
		Str("method", string(final.Method)).
		Int("files", result.TotalFiles).
		Msg("scan classified")

	return report, nil
}

// classifyWithModel runs the model classifier with retries. It returns nil on
// any failure; the caller falls back to the heuristic result.
func (s *Service) classifyWithModel(ctx context.Context, scan *scanner.ScanResult, model string) *classify.Classification {
	if !s.modelInstalled(ctx, model) {
		if s.metrics != nil {
			s.metrics.RecordError("inference", "unknown_model")
		}
		s.logger.Warn().Str("model", model).Msg("requested model not installed, using heuristic")
		return nil
	}

	start := time.Now()
	var c *classify.Classification
	err := retry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		var inner error
		c, inner = s.model.Classify(ctx, scan, model)
		return inner
	})
	if s.metrics != nil {
		s.metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordError("inference", errType(err))
		}
		s.logger.Warn().Err(err).Str("model", model).Msg("model classification unavailable, using heuristic")
		return nil
	}
	return c
}

// modelInstalled checks the requested model against the backend's installed
// list before spending an inference call on it. A failed listing does not
// block the attempt; inference reports its own errors.
func (s *Service) modelInstalled(ctx context.Context, model string) bool {
	if s.inference == nil {
		return true
	}
	models, err := s.inference.ListModels(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("model list unavailable, attempting inference anyway")
		return true
	}
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}

func errType(err error) string {
	switch {
	case cserrors.IsRetryable(err):
		return "transient"
	case cserrors.IsTransient(err):
		return "invalid_response"
	default:
		return "other"
	}
}

// PreviewRequest selects the scan and shapes the plan.
type PreviewRequest struct {
	ScanID           string
	TargetRoot       string
	CategoryOverride string
	Strategy         plan.ConflictStrategy
	CustomName       string
	CreateBackup     bool
}

// Preview generates a dry-run plan for a prior scan.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*plan.OrganizationPlan, error) {
	report, err := s.lookupScan(req.ScanID)
	if err != nil {
		return nil, err
	}

	targetRoot := req.TargetRoot
	if targetRoot == "" {
		targetRoot = s.cfg.OrganizeRoot
	}

	p, err := s.generator.Generate(report.Scan, report.Classification, targetRoot, plan.Options{
		CategoryOverride: req.CategoryOverride,
		Strategy:         req.Strategy,
		CustomName:       req.CustomName,
		CreateBackup:     req.CreateBackup,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.plans[p.ID] = p
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SavePlan(p); err != nil {
			s.logger.Warn().Err(err).Str("plan_id", p.ID).Msg("plan not persisted")
		}
	}
	return p, nil
}

// lookupScan prefers the in-memory report; scans evicted from the cache are
// rehydrated from the store and reclassified heuristically.
func (s *Service) lookupScan(scanID string) (*ScanReport, error) {
	if report, ok := s.scans.Get(scanID); ok {
		return report, nil
	}
	if s.store != nil {
		scan, err := s.store.GetScan(scanID)
		if err != nil {
			return nil, err
		}
		if scan != nil {
			report := &ScanReport{Scan: scan, Classification: s.heuristic.Classify(scan)}
			s.scans.Put(scanID, report)
			return report, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", cserrors.ErrScanNotFound, scanID)
}

// Execute runs a previously previewed plan. Confirm must be explicitly set.
func (s *Service) Execute(ctx context.Context, planID string, confirm bool) (*executor.Manifest, error) {
	if !confirm {
		return nil, cserrors.ErrConfirmRequired
	}

	p, err := s.lookupPlan(planID)
	if err != nil {
		return nil, err
	}

	m, execErr := s.executor.Execute(ctx, p)
	if m != nil {
		if s.store != nil {
			if err := s.store.SaveManifest(m); err != nil {
				s.logger.Error().Err(err).Str("manifest_id", m.ID).Msg("manifest not persisted")
			}
			if execErr == nil {
				if err := s.store.MarkPlanExecuted(p.ID, m.ID); err != nil {
					s.logger.Error().Err(err).Str("plan_id", p.ID).Msg("plan not marked executed")
				}
			}
		}
		if s.metrics != nil {
			moved := int64(0)
			if m.Status != executor.RunFailed {
				moved = p.TotalBytes
			}
			s.metrics.RecordExecution(string(m.Status), moved)
		}
	}
	return m, execErr
}

func (s *Service) lookupPlan(planID string) (*plan.OrganizationPlan, error) {
	s.mu.RLock()
	p, ok := s.plans[planID]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	if s.store != nil {
		rec, err := s.store.GetPlan(planID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			if rec.Executed {
				return nil, fmt.Errorf("%w: plan %s", cserrors.ErrPlanAlreadyExecuted, planID)
			}
			s.mu.Lock()
			// Another request may have rehydrated it already; keep the first
			// copy so the execution claim stays singular.
			if existing, ok := s.plans[planID]; ok {
				p = existing
			} else {
				p = rec.Plan
				s.plans[planID] = p
			}
			s.mu.Unlock()
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", cserrors.ErrPlanNotFound, planID)
}

// Models lists installed model names from the inference backend.
func (s *Service) Models(ctx context.Context) ([]string, error) {
	if s.inference == nil {
		return nil, cserrors.ErrInferenceUnavailable
	}
	return s.inference.ListModels(ctx)
}

// PlanRecord returns the audit record for a plan, or ErrPlanNotFound.
func (s *Service) PlanRecord(planID string) (*store.PlanRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", cserrors.ErrPlanNotFound, planID)
	}
	rec, err := s.store.GetPlan(planID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", cserrors.ErrPlanNotFound, planID)
	}
	return rec, nil
}

// Manifest returns a stored execution manifest, or ErrPlanNotFound when no
// manifest exists under the ID.
func (s *Service) Manifest(manifestID string) (*executor.Manifest, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: %s", cserrors.ErrPlanNotFound, manifestID)
	}
	m, err := s.store.GetManifest(manifestID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", cserrors.ErrPlanNotFound, manifestID)
	}
	return m, nil
}
