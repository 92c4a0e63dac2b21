package services

import (
	"context"
	"errors"
	"fmt"
	"restock-route-service/internal/adapters/cache"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/clock"
	"restock-route-service/internal/ports"
	"restock-route-service/internal/ratebudget"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

type etaEntry struct {
	Seconds int64
	NoRoute bool
}

// ETAClient wraps the travel-time oracle with a sliding-window call budget,
// unbounded exponential backoff on throttling and a session result cache.
//
// The client is safe for concurrent use; budget accounting is serialized
// inside ratebudget.Budget.
type ETAClient struct {
	oracle       ports.TravelTimeOracle
	budget       *ratebudget.Budget
	clock        clock.Clock
	backoff      BackoffPolicy
	cache        *cache.MemoryCache[etaEntry]
	throttled    atomic.Bool
	throttles    atomic.Int64
	throttleWait atomic.Int64
	calls        atomic.Int64
}

func NewETAClient(
	oracle ports.TravelTimeOracle,
	budget *ratebudget.Budget,
	clk clock.Clock,
	policy BackoffPolicy,
) *ETAClient {
	if clk == nil {
		clk = clock.Real()
	}

	return &ETAClient{
		oracle:  oracle,
		budget:  budget,
		clock:   clk,
		backoff: policy,
		cache:   cache.NewMemoryCache[etaEntry](),
	}
}

func etaKey(origin, destination domain.Place) string {
	o, d := origin.Rounded(), destination.Rounded()
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", o.Lat, o.Lon, d.Lat, d.Lon)
}

// TravelTime returns the driving time from origin to destination.
// Failures other than cancellation wrap ErrUnavailable.
func (c *ETAClient) TravelTime(
	ctx context.Context,
	origin domain.Place,
	destination domain.Place,
	departure time.Time,
) (time.Duration, error) {
	if origin.Rounded() == destination.Rounded() {
		return 0, nil
	}

	key := etaKey(origin, destination)
	if e, ok := c.cache.Get(ctx, key); ok {
		if e.NoRoute {
			return 0, fmt.Errorf("travel time %q -> %q: %w: %w", origin.Label, destination.Label, ErrUnavailable, ports.ErrNoRoute)
		}
		return time.Duration(e.Seconds) * time.Second, nil
	}

	b := c.backoff.newBackOff(c.clock)
	var wait time.Duration

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if wait > 0 {
			wait = max(wait, c.budget.Delay())
			c.throttleWait.Add(int64(wait))
			if err := clock.Sleep(ctx, c.clock, wait); err != nil {
				return 0, err
			}
		}

		if err := c.budget.Acquire(ctx); err != nil {
			return 0, err
		}

		d, err := c.oracle.TravelTime(ctx, origin, destination, departure)
		c.calls.Add(1)
		if err == nil {
			c.throttled.Store(false)
			c.cache.Put(ctx, key, etaEntry{Seconds: int64(d.Round(time.Second) / time.Second)})
			return d, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}

		if errors.Is(err, ports.ErrThrottled) {
			c.throttled.Store(true)
			c.throttles.Add(1)
			wait = b.NextBackOff()
			log.Info().
				Str("from", origin.Label).
				Str("to", destination.Label).
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("travel time throttled, backing off")
			continue
		}

		c.throttled.Store(false)
		if errors.Is(err, ports.ErrNoRoute) {
			c.cache.Put(ctx, key, etaEntry{NoRoute: true})
		}
		return 0, fmt.Errorf("travel time %q -> %q: %w: %w", origin.Label, destination.Label, ErrUnavailable, err)
	}
}

// Throttled reports whether the most recent oracle attempt was rate limited.
func (c *ETAClient) Throttled() bool {
	return c.throttled.Load()
}

// ThrottleCount is the number of throttled answers seen so far.
func (c *ETAClient) ThrottleCount() int64 {
	return c.throttles.Load()
}

// ThrottleWait is the total time slept before retrying throttled calls.
func (c *ETAClient) ThrottleWait() time.Duration {
	return time.Duration(c.throttleWait.Load())
}

// Calls is the number of oracle requests issued, retries included.
func (c *ETAClient) Calls() int64 {
	return c.calls.Load()
}
