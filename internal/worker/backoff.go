package worker

import "time"

// backoffDelay returns the wait before the next attempt: base doubled per
// completed attempt, capped. retryCount is the number of attempts already
// consumed, so the first retry waits the base delay.
func backoffDelay(baseMS, capMS, retryCount int) time.Duration {
	if baseMS <= 0 {
		baseMS = 1000
	}
	if capMS < baseMS {
		capMS = baseMS
	}
	delay := baseMS
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= capMS {
			delay = capMS
			break
		}
	}
	if delay > capMS {
		delay = capMS
	}
	return time.Duration(delay) * time.Millisecond
}
