package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeshelf/codeshelf/internal/plan"
)

// PlanRecord is a persisted plan plus its execution bookkeeping.
type PlanRecord struct {
	Plan       *plan.OrganizationPlan
	Executed   bool
	ManifestID string
	CreatedAt  int64 // unix ms
}

// SavePlan inserts or updates a plan
func (s *Store) SavePlan(p *plan.OrganizationPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO plans (
		id, scan_id, category, source_path, target_path, executed, manifest_id, payload, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		p.ID, p.ScanID, p.Category, p.SourcePath, p.TargetPath,
		boolInt(p.Executed()),
		sql.NullString{},
		string(payload),
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// MarkPlanExecuted flags the plan and links the manifest that ran it.
func (s *Store) MarkPlanExecuted(planID, manifestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE plans SET executed = 1, manifest_id = ? WHERE id = ?",
		manifestID, planID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark plan executed: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by ID. Returns nil when not found.
func (s *Store) GetPlan(id string) (*PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	var executed int
	var manifestID sql.NullString
	rec := &PlanRecord{}

	query := "SELECT payload, executed, manifest_id, created_at FROM plans WHERE id = ?"
	err := s.db.QueryRow(query, id).Scan(&payload, &executed, &manifestID, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	p := &plan.OrganizationPlan{}
	if err := json.Unmarshal([]byte(payload), p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	rec.Plan = p
	rec.Executed = executed != 0
	if manifestID.Valid {
		rec.ManifestID = manifestID.String
	}
	return rec, nil
}

// ListPlans returns the most recent plans, newest first.
func (s *Store) ListPlans(limit int) ([]*PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		"SELECT payload, executed, manifest_id, created_at FROM plans ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var records []*PlanRecord
	for rows.Next() {
		var payload string
		var executed int
		var manifestID sql.NullString
		rec := &PlanRecord{}
		if err := rows.Scan(&payload, &executed, &manifestID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		p := &plan.OrganizationPlan{}
		if err := json.Unmarshal([]byte(payload), p); err != nil {
			return nil, fmt.Errorf("failed to decode plan: %w", err)
		}
		rec.Plan = p
		rec.Executed = executed != 0
		if manifestID.Valid {
			rec.ManifestID = manifestID.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
