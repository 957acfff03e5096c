package server

import (
	"github.com/codeshelf/codeshelf/internal/executor"
	"github.com/codeshelf/codeshelf/internal/organizer"
	"github.com/codeshelf/codeshelf/internal/plan"
)

// ScanRequest is the body for POST /api/v1/scan. UseModel defaults to true
// when omitted.
type ScanRequest struct {
	Path     string `json:"path"`
	Model    string `json:"model,omitempty"`
	UseModel *bool  `json:"use_model,omitempty"`
}

// ScanResponse wraps the scan report.
type ScanResponse struct {
	Report *organizer.ScanReport `json:"report"`
}

// PreviewRequest is the body for POST /api/v1/preview.
type PreviewRequest struct {
	ScanID           string `json:"scan_id"`
	TargetRoot       string `json:"target_root,omitempty"`
	CategoryOverride string `json:"category_override,omitempty"`
	Strategy         string `json:"conflict_strategy,omitempty"`
	CustomName       string `json:"custom_name,omitempty"`
	CreateBackup     bool   `json:"create_backup,omitempty"`
}

// PreviewResponse wraps the generated plan.
type PreviewResponse struct {
	Plan *plan.OrganizationPlan `json:"plan"`
}

// ExecuteRequest is the body for POST /api/v1/execute.
type ExecuteRequest struct {
	PlanID  string `json:"plan_id"`
	Confirm bool   `json:"confirm"`
}

// ExecuteResponse wraps the execution manifest.
type ExecuteResponse struct {
	Manifest *executor.Manifest `json:"manifest"`
}

// ModelsResponse lists installed model names.
type ModelsResponse struct {
	Models []string `json:"models"`
}

// PlanAuditResponse is the stored audit view of a plan.
type PlanAuditResponse struct {
	Plan       *plan.OrganizationPlan `json:"plan"`
	Executed   bool                   `json:"executed"`
	ManifestID string                 `json:"manifest_id,omitempty"`
}

// ProblemDetail is an RFC 7807 error payload.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
