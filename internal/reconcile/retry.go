package reconcile

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/roach88/vaultledger/internal/fault"
)

// maxShift caps the exponent so base<<attempt cannot overflow.
const maxShift = 30

// retry runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. Delays grow exponentially with full jitter.
func (d *Driver) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if err = fn(); err == nil || !fault.IsTransient(err) {
			return err
		}
		if attempt == d.attempts-1 {
			break
		}

		delay := fullJitter(exponential(d.base, attempt))
		d.logger.Warn("retrying after transient error", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
		if serr := sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: %w", op, serr)
		}
	}
	return err
}

func exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt > maxShift {
		attempt = maxShift
	}
	return base << attempt
}

// fullJitter returns a random duration in [0, d).
func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
