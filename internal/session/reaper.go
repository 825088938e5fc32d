package session

import (
	"context"
	"log/slog"
	"time"

	"registration-service/internal/metrics"
)

// RunReaper purges expired sessions every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration, logger *slog.Logger, mtr *metrics.Metrics) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("session reaper started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("session reaper stopped")
			return
		case <-ticker.C:
			n, err := m.PurgeExpired(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "purged expired sessions", "count", n)
				mtr.RecordSessionsPurged(ctx, n)
			}
		}
	}
}
