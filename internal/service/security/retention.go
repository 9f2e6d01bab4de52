package security

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"authbridge/internal/cache"
	"authbridge/internal/domain"
)

// RetentionScheduler runs the periodic maintenance jobs: pruning audit log
// entries past their retention window and sweeping expired cache entries.
type RetentionScheduler struct {
	cron      *cron.Cron
	audit     domain.AuditRepository
	cache     *cache.Cache[string]
	retention time.Duration
	logger    *slog.Logger
}

// NewRetentionScheduler creates a scheduler. retention must be positive.
func NewRetentionScheduler(audit domain.AuditRepository, c *cache.Cache[string], retention time.Duration, logger *slog.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		cron:      cron.New(),
		audit:     audit,
		cache:     c,
		retention: retention,
		logger:    logger,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *RetentionScheduler) Start() error {
	// Nightly audit prune.
	if _, err := s.cron.AddFunc("0 3 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		cutoff := time.Now().Add(-s.retention)
		pruned, err := s.audit.PruneBefore(ctx, cutoff)
		if err != nil {
			s.logger.Warn("audit prune failed", "error", err)
			return
		}
		s.logger.Info("pruned audit log", "removed", pruned, "cutoff", cutoff)
	}); err != nil {
		return err
	}

	// Hourly cache sweep so stale entries don't linger under low traffic.
	if _, err := s.cron.AddFunc("@hourly", func() {
		if removed := s.cache.RemoveExpired(); removed > 0 {
			s.logger.Debug("swept identity cache", "removed", removed)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("retention scheduler started", "retention", s.retention)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *RetentionScheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("retention scheduler stopped")
}
