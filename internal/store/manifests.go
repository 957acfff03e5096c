package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codeshelf/codeshelf/internal/executor"
)

// SaveManifest inserts an execution manifest. Manifests are append-only.
func (s *Store) SaveManifest(m *executor.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	query := `
	INSERT INTO manifests (id, plan_id, status, payload, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		m.ID, m.PlanID, string(m.Status), string(payload),
		m.StartedAt.UnixMilli(), m.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save manifest: %w", err)
	}
	return nil
}

// GetManifest retrieves a manifest by ID. Returns nil when not found.
func (s *Store) GetManifest(id string) (*executor.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow("SELECT payload FROM manifests WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}

	m := &executor.Manifest{}
	if err := json.Unmarshal([]byte(payload), m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}

// ListManifestsForPlan returns every manifest recorded for a plan.
func (s *Store) ListManifestsForPlan(planID string) ([]*executor.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT payload FROM manifests WHERE plan_id = ? ORDER BY started_at",
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}
	defer rows.Close()

	var manifests []*executor.Manifest
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan manifest row: %w", err)
		}
		m := &executor.Manifest{}
		if err := json.Unmarshal([]byte(payload), m); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
		manifests = append(manifests, m)
	}
	return manifests, rows.Err()
}
