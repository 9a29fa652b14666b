package middleware

import (
	"context"
	"time"

	"github.com/xraph/conveyor/client"
)

// Timeout returns middleware that enforces a per-task execution
// deadline. When d is zero the middleware is a pass-through. When the
// deadline is exceeded the context is cancelled and the task function
// should return context.DeadlineExceeded.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *client.ActivityTask, next Handler) (string, error) {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
