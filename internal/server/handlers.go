package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/health"
	"github.com/codeshelf/codeshelf/internal/organizer"
	"github.com/codeshelf/codeshelf/internal/plan"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	svc       *organizer.Service
	checker   *health.Checker
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *organizer.Service, checker *health.Checker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		svc:       svc,
		checker:   checker,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// Scan handles POST /api/v1/scan.
func (h *Handlers) Scan(c *fiber.Ctx) error {
	var req ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.Path == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_path", "Bad Request",
			"Scan path is required")
	}

	useModel := req.UseModel == nil || *req.UseModel

	report, err := h.svc.Scan(c.Context(), req.Path, req.Model, useModel)
	if err != nil {
		return h.domainError(c, err)
	}

	return c.JSON(ScanResponse{Report: report})
}

// Preview handles POST /api/v1/preview.
func (h *Handlers) Preview(c *fiber.Ctx) error {
	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.ScanID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_scan_id", "Bad Request",
			"scan_id is required")
	}

	strategy := plan.ConflictStrategy(req.Strategy)
	if req.Strategy != "" && !strategy.Valid() {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_strategy", "Bad Request",
			"Unknown conflict strategy: "+req.Strategy)
	}

	p, err := h.svc.Preview(c.Context(), organizer.PreviewRequest{
		ScanID:           req.ScanID,
		TargetRoot:       req.TargetRoot,
		CategoryOverride: req.CategoryOverride,
		Strategy:         strategy,
		CustomName:       req.CustomName,
		CreateBackup:     req.CreateBackup,
	})
	if err != nil {
		return h.domainError(c, err)
	}

	return c.JSON(PreviewResponse{Plan: p})
}

// Execute handles POST /api/v1/execute.
func (h *Handlers) Execute(c *fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request",
			"Invalid request body: "+err.Error())
	}

	if req.PlanID == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"missing_plan_id", "Bad Request",
			"plan_id is required")
	}

	m, err := h.svc.Execute(c.Context(), req.PlanID, req.Confirm)
	if err != nil {
		// A failed run still produced a manifest worth returning.
		if m != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(ExecuteResponse{Manifest: m})
		}
		return h.domainError(c, err)
	}

	return c.JSON(ExecuteResponse{Manifest: m})
}

// Models handles GET /api/v1/models.
func (h *Handlers) Models(c *fiber.Ctx) error {
	models, err := h.svc.Models(c.Context())
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(ModelsResponse{Models: models})
}

// GetPlan handles GET /api/v1/plans/:id.
func (h *Handlers) GetPlan(c *fiber.Ctx) error {
	rec, err := h.svc.PlanRecord(c.Params("id"))
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(PlanAuditResponse{
		Plan:       rec.Plan,
		Executed:   rec.Executed,
		ManifestID: rec.ManifestID,
	})
}

// GetManifest handles GET /api/v1/manifests/:id.
func (h *Handlers) GetManifest(c *fiber.Ctx) error {
	m, err := h.svc.Manifest(c.Params("id"))
	if err != nil {
		return h.domainError(c, err)
	}
	return c.JSON(ExecuteResponse{Manifest: m})
}

// CreateProject handles POST /api/v1/projects. Scaffolding from templates is
// not implemented yet.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	return problemResponse(c, fiber.StatusNotImplemented,
		"not_implemented", "Not Implemented",
		"Project scaffolding is not available")
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "uptime": time.Since(h.startTime).String()})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())

	ready := true
	for _, s := range results {
		if s == health.StatusDown {
			ready = false
			break
		}
	}

	status := fiber.StatusOK
	state := "ready"
	if !ready {
		status = fiber.StatusServiceUnavailable
		state = "not_ready"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": results})
}

// domainError maps pipeline errors onto problem-detail responses.
func (h *Handlers) domainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, cserrors.ErrPathNotFound),
		errors.Is(err, cserrors.ErrScanNotFound),
		errors.Is(err, cserrors.ErrPlanNotFound):
		return problemResponse(c, fiber.StatusNotFound,
			"not_found", "Not Found", err.Error())

	case errors.Is(err, cserrors.ErrNotADirectory),
		errors.Is(err, cserrors.ErrPermissionDenied),
		errors.Is(err, cserrors.ErrInvalidTargetRoot),
		errors.Is(err, cserrors.ErrCategoryNotRecognized),
		errors.Is(err, cserrors.ErrConfirmRequired):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_request", "Bad Request", err.Error())

	case errors.Is(err, cserrors.ErrPlanAlreadyExecuted):
		return problemResponse(c, fiber.StatusConflict,
			"plan_already_executed", "Conflict", err.Error())

	case errors.Is(err, cserrors.ErrInferenceUnavailable),
		errors.Is(err, cserrors.ErrInferenceTimeout):
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"inference_unavailable", "Service Unavailable", err.Error())
	}

	h.logger.Error().Err(err).Str("path", c.Path()).Msg("unhandled pipeline error")
	return problemResponse(c, fiber.StatusInternalServerError,
		"internal_error", "Internal Server Error", "An internal error occurred")
}
