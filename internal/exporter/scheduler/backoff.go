package scheduler

import "time"

// Backoff counts consecutive failures and stretches the poll delay once they reach
// a threshold. Below the threshold the cadence is unchanged.
type Backoff struct {
	threshold int
	max       time.Duration
	failures  int
}

// NewBackoff creates a Backoff. A threshold below 1 is treated as 1.
func NewBackoff(threshold int, maxDelay time.Duration) *Backoff {
	if threshold < 1 {
		threshold = 1
	}
	return &Backoff{threshold: threshold, max: maxDelay}
}

// Failure records a failed attempt and returns the new failure count.
func (b *Backoff) Failure() int {
	b.failures++
	return b.failures
}

// Reset clears the failure count after a success.
func (b *Backoff) Reset() {
	b.failures = 0
}

// Failures returns the number of consecutive failures.
func (b *Backoff) Failures() int {
	return b.failures
}

// Delay returns the wait before the next attempt given the state interval base.
// From the threshold on, base doubles per failure, starting at 2*base on the
// threshold itself, and is capped at the maximum. The result is never below base.
func (b *Backoff) Delay(base time.Duration) time.Duration {
	if b.failures < b.threshold {
		return base
	}

	d := base
	for i := 0; i <= b.failures-b.threshold; i++ {
		if d >= b.max {
			break
		}
		d *= 2
	}
	if d > b.max {
		d = b.max
	}
	if d < base {
		d = base
	}
	return d
}
