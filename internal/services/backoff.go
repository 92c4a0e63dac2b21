package services

import (
	"restock-route-service/internal/platform/clock"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy is an uncapped-attempt exponential backoff: base delay,
// doubling, capped per wait.
type BackoffPolicy struct {
	Base time.Duration
	Max  time.Duration
}

var (
	// Geocoding services throttle for longer; the ETA oracle recovers quickly.
	DefaultGeocodeBackoff = BackoffPolicy{Base: time.Second, Max: 30 * time.Second}
	DefaultETABackoff     = BackoffPolicy{Base: 250 * time.Millisecond, Max: 8 * time.Second}
)

// newBackOff returns a deterministic exponential backoff that never gives up;
// callers stop it via context cancellation.
func (p BackoffPolicy) newBackOff(clk clock.Clock) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.Max,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()
	return b
}
