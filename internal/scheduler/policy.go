package scheduler

import "time"

// DefaultInterval is the delay between cycles when none is configured.
const DefaultInterval = 5 * time.Minute

// RetryPolicy decides how long to wait before the next cycle, given the
// error the previous cycle ended with (nil on success).
type RetryPolicy interface {
	Delay(err error) time.Duration
}

// FixedDelay waits Interval after every cycle, successful or not.
type FixedDelay struct {
	Interval time.Duration
}

func (f FixedDelay) Delay(error) time.Duration {
	if f.Interval <= 0 {
		return DefaultInterval
	}
	return f.Interval
}
