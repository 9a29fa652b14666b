package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/conveyor/client"
)

// Recover returns middleware that recovers from panics in the task
// function. Panics are converted to errors and logged with a stack
// trace, so one panicking task cannot take down its poller.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *client.ActivityTask, next Handler) (result string, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("activity task panicked",
					slog.String("activity", t.ActivityType.Name),
					slog.String("activity_id", t.ActivityID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in activity %s: %v", t.ActivityType.Name, r)
			}
		}()
		return next(ctx)
	}
}
