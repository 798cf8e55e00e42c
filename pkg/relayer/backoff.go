package relayer

import "time"

// RetryPolicy decides how submission failures are retried. Next is a
// pure function of the attempt number so the schedule can be tested
// without any network in the loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Next returns the delay to wait before the given attempt (1-based)
// and whether the attempt is allowed at all. The first attempt runs
// immediately; attempt n waits base * 2^(n-2), capped at MaxDelay.
func (p RetryPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > p.MaxAttempts {
		return 0, false
	}
	if attempt == 1 {
		return 0, true
	}
	delay := p.BaseDelay << uint(attempt-2)
	if delay <= 0 || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		delay = p.MaxDelay
	}
	return delay, true
}
