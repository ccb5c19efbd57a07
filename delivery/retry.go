package delivery

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns the wait before retry n, counting from 1.
type Backoff func(n int) time.Duration

// ConstantBackoff waits d before every retry.
func ConstantBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// JitterBackoff waits a random duration in [0, min(initial*2^(n-1), max)].
func JitterBackoff(initial, maxDelay time.Duration) Backoff {
	return func(n int) time.Duration {
		ceiling := float64(initial) * math.Pow(2, float64(n-1))
		if maxDelay > 0 && ceiling > float64(maxDelay) {
			ceiling = float64(maxDelay)
		}
		return time.Duration(rand.Float64() * ceiling) //nolint:gosec // jitter
	}
}

// DefaultBackoff is the retry delay of the PagerDuty sender.
func DefaultBackoff() Backoff {
	return JitterBackoff(500*time.Millisecond, 5*time.Second)
}

// sleep waits d or until done is closed, reporting whether the full
// wait elapsed.
func sleep(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
