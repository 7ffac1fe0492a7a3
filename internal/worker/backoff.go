package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff is the wait after the given number of consecutive
// failures: base doubling per attempt, capped, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int, base, capDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// attempt=0 => base
	// attempt=1 => 2*base
	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
