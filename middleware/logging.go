package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/conveyor/client"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *client.ActivityTask, next Handler) (string, error) {
		logger.Info("activity task started",
			slog.String("activity", t.ActivityType.Name),
			slog.String("version", t.ActivityType.Version),
			slog.String("activity_id", t.ActivityID),
		)

		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("activity task failed",
				slog.String("activity", t.ActivityType.Name),
				slog.String("activity_id", t.ActivityID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("activity task completed",
				slog.String("activity", t.ActivityType.Name),
				slog.String("activity_id", t.ActivityID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return result, err
	}
}
