package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codeshelf/codeshelf/internal/scanner"
)

// SaveScan inserts or updates a scan summary.
func (s *Store) SaveScan(sc *scanner.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode scan: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO scans (id, path, total_files, total_bytes, partial, payload, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		sc.ID, sc.Path, sc.TotalFiles, sc.TotalBytes,
		boolInt(sc.Partial), string(payload), sc.ScannedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}

// GetScan retrieves a scan by ID. Returns nil when not found.
func (s *Store) GetScan(id string) (*scanner.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow("SELECT payload FROM scans WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	sc := &scanner.ScanResult{}
	if err := json.Unmarshal([]byte(payload), sc); err != nil {
		return nil, fmt.Errorf("failed to decode scan: %w", err)
	}
	return sc, nil
}
