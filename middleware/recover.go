package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/uplink-foundation/uplink"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to INTERNAL statuses and logged with a
// stack trace.
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, info Info, next Handler) (st uplink.Status) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("delegate panicked",
					slog.String("name", info.Name),
					slog.Any("job_id", info.JobID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				st = uplink.NewStatusf(uplink.CodeInternal, uplink.ReasonDelegatePanicked,
					"panic in %s: %v", info.Name, r)
			}
		}()
		return next(ctx)
	}
}
