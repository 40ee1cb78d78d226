package health

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/arbiter/core/logger"
)

// ErrNotReady wraps the failures reported by Readiness.
var ErrNotReady = errors.New("service not ready")

// Check reports whether one dependency is available.
type Check func(context.Context) error

// Readiness runs all checks. It returns nil when every check passes.
func Readiness(ctx context.Context, log *slog.Logger, checks ...Check) error {
	var errs []error
	for _, check := range checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			log.ErrorContext(ctx, "readiness check failed", logger.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrNotReady}, errs...)...)
	}
	return nil
}
