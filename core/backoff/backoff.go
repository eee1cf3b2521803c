package backoff

import "time"

// Default bounds for reconnect delays.
const (
	DefaultInitial = time.Second
	DefaultMax     = 5 * time.Minute
)

// Delay returns the exponential backoff duration for the given attempt,
// starting at initial and doubling per attempt up to max. Attempt numbering
// starts at zero.
func Delay(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if max <= 0 {
		max = DefaultMax
	}
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
