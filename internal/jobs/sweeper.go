package jobs

import (
	"context"
	"log/slog"
	"time"

	"skydrive/internal/domain/services"
)

// Sweeper periodically purges expired bin entries. It runs one sweep
// immediately on start, then on every tick until the context is cancelled.
type Sweeper struct {
	bin      services.BinService
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper running every interval. Each run gets its own
// timeout context so a wedged sweep cannot block the next one forever.
func NewSweeper(bin services.BinService, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		bin:      bin,
		interval: interval,
		timeout:  interval / 2,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. Call it on its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("bin sweeper started", "interval", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("bin sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.bin.DeleteExpiredEntries(runCtx)
	if err != nil {
		s.logger.Error("bin sweep failed", "error", err)
		return
	}

	if result.EntriesDeleted == 0 {
		s.logger.Debug("bin sweep found nothing to purge")
		return
	}

	s.logger.Info("bin sweep purged expired entries",
		"entries_deleted", result.EntriesDeleted,
		"policies_deleted", result.PoliciesDeleted,
		"owners", len(result.BytesReclaimed),
	)
}
