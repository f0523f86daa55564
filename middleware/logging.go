package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/uplink-foundation/uplink"
)

// Logging returns middleware that logs delegate start and completion.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, info Info, next Handler) uplink.Status {
		logger.Info("delegate started",
			slog.String("name", info.Name),
			slog.Any("job_id", info.JobID),
		)

		start := time.Now()
		st := next(ctx)
		elapsed := time.Since(start)

		if st.IsOK() {
			logger.Info("delegate completed",
				slog.String("name", info.Name),
				slog.Any("job_id", info.JobID),
				slog.Duration("elapsed", elapsed),
			)
		} else {
			logger.Error("delegate failed",
				slog.String("name", info.Name),
				slog.Any("job_id", info.JobID),
				slog.Duration("elapsed", elapsed),
				slog.String("status", st.String()),
			)
		}

		return st
	}
}
