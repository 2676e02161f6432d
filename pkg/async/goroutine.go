// Package async provides panic-safe background execution for fire-and-forget
// work such as audit writes.
package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/stewardhq/steward/pkg/observability"
)

// Go executes fn in a goroutine with a timeout, panic recovery, and error
// logging. Use this instead of a bare `go func()` for work that must not
// crash the process or fail silently.
func Go(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithField("task", taskName).
					WithField("panic", r).
					WithField("stack", string(debug.Stack())).
					Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithField("task", taskName).WithError(err).Error("background task failed")
		}
	}()
}
