package replication

import (
	"math"
	"math/rand/v2"
	"time"
)

// BackoffConfig controls how quickly the primary driver retries dialing
// a replica it could not reach. It does not affect the catch-up
// schedule itself (that is driven by Primary's own timer); it only
// smooths repeated connection attempts to an unreachable replica
// within that schedule.
type BackoffConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultBackoffConfig returns reasonable reconnect backoff defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

// backoffCounter tracks consecutive dial failures for a single replica
// destination and computes the delay before the next attempt.
type backoffCounter struct {
	BackoffConfig
	failures uint32
}

func (bc *backoffCounter) reset() {
	bc.failures = 0
}

// next returns the delay to wait before retrying, incrementing the
// failure count each time it is called.
func (bc *backoffCounter) next() time.Duration {
	bc.failures++
	return bc.delay()
}

// delay returns the delay implied by the current failure count, without
// incrementing it. Used to recompute the holdoff for an addr whose
// failure count was already advanced by a prior recordFailure call, so
// that checking the holdoff does not itself count as another failure.
func (bc *backoffCounter) delay() time.Duration {
	if bc.failures == 0 {
		return 0
	}
	exp := float64(bc.InitialInterval) * math.Pow(bc.Multiplier, float64(bc.failures-1))
	if exp > float64(bc.MaxInterval) {
		exp = float64(bc.MaxInterval)
	}
	if bc.RandomizationFactor > 0 {
		delta := bc.RandomizationFactor * exp
		exp = exp - delta + rand.Float64()*(2*delta)
	}
	return time.Duration(exp)
}
