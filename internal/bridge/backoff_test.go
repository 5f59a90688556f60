package bridge

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := newBackoff(1*time.Second, 30*time.Second)
	b.rand = func() float64 { return 0.5 } // zero jitter

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := b.next(); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.75, 0.999} {
		b := newBackoff(10*time.Second, 30*time.Second)
		b.rand = func() float64 { return r }

		got := b.next()
		if got < 8*time.Second || got > 12*time.Second {
			t.Errorf("rand %v: delay %v outside ±20%% of 10s", r, got)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := newBackoff(1*time.Second, 30*time.Second)
	b.rand = func() float64 { return 0.5 }

	b.next()
	b.next()
	b.reset()

	if got := b.next(); got != 1*time.Second {
		t.Errorf("expected initial delay after reset, got %v", got)
	}
}
