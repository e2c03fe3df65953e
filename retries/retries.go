// Package retries provides back off duration generators used to compose
// retry timing policies over failed stream attempts.
package retries

import (
	"math"
	"math/rand"
	"time"
)

// BackOff defines a function which giving a zero-based attempt index
// returns how long to hold before the next attempt.
type BackOff func(attempt int64) time.Duration

var (
	// random is used to generate pseudo-random numbers.
	random = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Fixed returns a BackOff holding the same duration for every attempt.
func Fixed(d time.Duration) BackOff {
	return func(int64) time.Duration {
		return d
	}
}

// Linear returns a BackOff growing by one step per attempt.
func Linear(step time.Duration) BackOff {
	return func(attempt int64) time.Duration {
		return time.Duration(attempt+1) * step
	}
}

// Exponential returns a BackOff doubling the base duration per attempt,
// capped at max.
func Exponential(base time.Duration, max time.Duration) BackOff {
	return func(attempt int64) time.Duration {
		mult := math.Pow(2, float64(attempt)) * float64(base)
		next := time.Duration(mult)
		if float64(next) != mult || next > max {
			next = max
		}
		return next
	}
}

// Jittered decorates a BackOff with +/- 0-33% jitter to prevent
// synchronized resubscription storms.
func Jittered(b BackOff) BackOff {
	return func(attempt int64) time.Duration {
		return JitterDuration(b(attempt))
	}
}

// JitterDuration keeps the +/- 0-33% logic in one place.
func JitterDuration(d time.Duration) time.Duration {
	ms := int(d / time.Millisecond)
	maxJitter := ms / 3
	if maxJitter > 0 {
		ms += random.Intn(2*maxJitter) - maxJitter
	}

	// a jitter of 0 messes up timer-based retry streams
	if ms <= 0 {
		ms = 1
	}

	return time.Duration(ms) * time.Millisecond
}

// RangedLinear provides a back off value which will perform linear back
// off based on the attempt number, with the per-attempt multiplier
// chosen at random between min and max to bound the jitter.
func RangedLinear(min, max time.Duration) BackOff {
	return func(attempt int64) time.Duration {
		attempt++

		if max <= min {
			return min * time.Duration(attempt)
		}

		jitter := random.Float64() * float64(max-min)
		base := int64(jitter) + int64(min)
		return time.Duration(base * attempt)
	}
}
