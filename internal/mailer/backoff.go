package mailer

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff doubles base per attempt (attempt 0 => base), caps
// at capDelay and adds up to 250ms of jitter.
func ExponentialBackoff(base, capDelay time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
		if delay > capDelay || delay <= 0 {
			delay = capDelay
		}

		return delay + time.Duration(rand.Intn(250))*time.Millisecond
	}
}
