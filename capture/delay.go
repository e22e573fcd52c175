package capture

import (
	"context"
	"math/rand/v2"
	"time"
)

// humanDelay returns a picker for the post-load dwell time: uniform in
// [lo, hi) plus whatever extra the caller adds on retries.
func humanDelay(lo, hi time.Duration) func(extra time.Duration) time.Duration {
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		hi = lo
	}
	return func(extra time.Duration) time.Duration {
		d := lo
		if span := hi - lo; span > 0 {
			d += rand.N(span)
		}
		if extra > 0 {
			d += extra
		}
		return d
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
