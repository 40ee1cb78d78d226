package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/arbiter/core/logger"
)

// Monitor returns an errgroup-compatible runner that re-checks readiness every interval
// and logs transitions. It stops without error when ctx is cancelled.
func Monitor(log *slog.Logger, interval time.Duration, checks ...Check) func(ctx context.Context) func() error {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return func(ctx context.Context) func() error {
		return func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			ready := true
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					err := Readiness(ctx, log, checks...)
					switch {
					case err != nil && ready:
						log.WarnContext(ctx, "service became unready", logger.Component("health"), logger.Error(err))
					case err == nil && !ready:
						log.InfoContext(ctx, "service is ready again", logger.Component("health"))
					}
					ready = err == nil
				}
			}
		}
	}
}
