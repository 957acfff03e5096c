package store

import (
	"context"
	"fmt"
	"time"
)

// RunRetention cleans up old audit rows according to retention policies
func (s *Store) RunRetention(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	// Scans older than 7 days
	sevenDaysAgo := now - (7 * 24 * 60 * 60 * 1000)
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM scans WHERE created_at < ?",
		sevenDaysAgo,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old scans: %w", err)
	}

	// Unexecuted plans older than 24 hours; executed plans stay for audit.
	oneDayAgo := now - (24 * 60 * 60 * 1000)
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM plans WHERE executed = 0 AND created_at < ?",
		oneDayAgo,
	)
	if err != nil {
		return fmt.Errorf("failed to delete stale plans: %w", err)
	}

	// Manifests older than 30 days
	thirtyDaysAgo := now - (30 * 24 * 60 * 60 * 1000)
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM manifests WHERE finished_at < ?",
		thirtyDaysAgo,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old manifests: %w", err)
	}

	s.logger.Debug().Msg("retention pass completed")
	return nil
}

// StartRetentionLoop runs retention periodically until the context is done.
func (s *Store) StartRetentionLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RunRetention(ctx); err != nil {
					s.logger.Error().Err(err).Msg("retention pass failed")
				}
			}
		}
	}()
}
