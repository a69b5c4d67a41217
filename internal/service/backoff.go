package service

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds retries of ledger calls whose outcome is unknown.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Delay returns the wait after the given failed attempt (1-based): an
// exponential ceiling base*2^(attempt-1), capped at MaxDelay, with full jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.BaseDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}

	delay := ceiling
	if attempt < 32 {
		if d := base << (attempt - 1); d > 0 && d < ceiling {
			delay = d
		}
	}
	return time.Duration(rand.Int64N(int64(delay) + 1))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
