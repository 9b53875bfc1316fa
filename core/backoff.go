package core

import (
	"context"
	"time"
)

const (
	defaultRetryInitialBackoff = 500 * time.Millisecond
	defaultRetryMaxBackoff     = 10 * time.Second
)

type BackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRetryInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRetryMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// WaitWithContext sleeps for delay unless the context is cancelled first.
func WaitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
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
