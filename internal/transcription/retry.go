package transcription

import (
	"context"
	"errors"
	"time"

	"scribe/internal/services/stt"
)

const (
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = 30 * time.Second
)

// retryDelay decides whether attempt should be followed by another one and
// how long to wait first.
func (e *Engine) retryDelay(ctx context.Context, err error, attempt int) (time.Duration, bool) {
	if attempt >= e.attempts() || err == nil {
		return 0, false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return 0, false
	}
	if !stt.IsTransient(err) {
		return 0, false
	}
	if after := stt.RetryAfter(err); after > 0 {
		return e.capDelay(after), true
	}
	return e.backoffDelay(attempt), true
}

func (e *Engine) attempts() int {
	if e.settings.MaxAttempts <= 0 {
		return 1
	}
	return e.settings.MaxAttempts
}

// backoffDelay doubles from the base: attempt 1 -> base, 2 -> base*2, ...
func (e *Engine) backoffDelay(attempt int) time.Duration {
	base := e.settings.RetryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := e.maxDelay()
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			delay = maxDelay
			break
		}
		delay *= 2
	}
	return e.capDelay(delay)
}

func (e *Engine) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if maxDelay := e.maxDelay(); delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (e *Engine) maxDelay() time.Duration {
	if e.settings.RetryMaxDelay > 0 {
		return e.settings.RetryMaxDelay
	}
	return defaultRetryMaxDelay
}

func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.sleeper != nil {
		e.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
