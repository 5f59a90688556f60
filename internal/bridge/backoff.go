package bridge

import (
	"math/rand/v2"
	"time"
)

// jitterFraction spreads reconnect attempts so instances that lost the
// same device do not retry in lockstep.
const jitterFraction = 0.2

// backoff produces capped exponential delays with jitter for reconnect
// attempts. Not safe for concurrent use; each session owns one.
type backoff struct {
	initial time.Duration
	max     time.Duration
	attempt int

	// rand is injected for deterministic tests. Returns [0.0, 1.0).
	rand func() float64
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		rand:    rand.Float64,
	}
}

// next returns the delay before the upcoming attempt and advances the
// schedule. The base doubles per attempt up to the cap; the result is
// then jittered by up to ±20%.
func (b *backoff) next() time.Duration {
	base := b.initial
	for i := 0; i < b.attempt; i++ {
		base *= 2
		if base >= b.max {
			base = b.max
			break
		}
	}
	b.attempt++

	spread := 1 + jitterFraction*(2*b.rand()-1)
	return time.Duration(float64(base) * spread)
}

// reset restores the schedule after a successful connect.
func (b *backoff) reset() {
	b.attempt = 0
}
