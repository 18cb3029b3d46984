// Package timeout enforces hard wall-clock deadlines around units of work.
package timeout

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/doeshing/replybot/internal/domain"
)

type outcome[T any] struct {
	value T
	err   error
}

// ExecuteWithTimeout runs task on its own goroutine and waits until it
// finishes, the timeout elapses, or ctx is done. The task's context is
// cancelled before returning in every case; a task that ignores cancellation
// is abandoned and its result discarded.
func ExecuteWithTimeout[T any](ctx context.Context, timeout time.Duration, task func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return zero, fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned task can always deliver and exit.
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: domain.NewExecutionFailed(
					"bot execution panicked", fmt.Sprint(r), string(debug.Stack()))}
			}
		}()
		value, err := task(taskCtx)
		done <- outcome[T]{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		return zero, domain.NewExecutionTimeout(timeout)
	case <-ctx.Done():
		return zero, &domain.BotError{
			Code:    domain.EExecutionCancelled,
			Message: "bot execution cancelled",
			Err:     ctx.Err(),
		}
	}
}
