package services

import (
	"context"
	"errors"
	"fmt"
	"restock-route-service/internal/adapters/cache"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/clock"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// PlaceResolver turns free-text addresses into places for one planning
// session. Results are cached by normalized address for the life of the
// resolver; throttling is retried until an answer arrives or ctx ends.
type PlaceResolver struct {
	geocoder     ports.Geocoder
	cache        *cache.MemoryCache[domain.Place]
	clock        clock.Clock
	backoff      BackoffPolicy
	group        singleflight.Group
	throttled    atomic.Bool
	throttles    atomic.Int64
	throttleWait atomic.Int64 // nanoseconds
}

func NewPlaceResolver(geocoder ports.Geocoder, clk clock.Clock, policy BackoffPolicy) *PlaceResolver {
	if clk == nil {
		clk = clock.Real()
	}

	return &PlaceResolver{
		geocoder: geocoder,
		cache:    cache.NewMemoryCache[domain.Place](),
		clock:    clk,
		backoff:  policy,
	}
}

// normalizeAddress collapses whitespace and case so equivalent inputs share a cache entry.
func normalizeAddress(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Resolve returns the place for address or an error wrapping ports.ErrNotFound.
// Blank input is NotFound without calling the geocoder.
func (r *PlaceResolver) Resolve(ctx context.Context, address string) (_ domain.Place, err error) {
	defer obs.Time(ctx, "places.Resolve")(&err)

	key := normalizeAddress(address)
	if key == "" {
		return domain.Place{}, fmt.Errorf("resolve place: empty address: %w", ports.ErrNotFound)
	}

	for {
		if p, ok := r.cache.Get(ctx, key); ok {
			return p, nil
		}

		// Concurrent lookups of one address share a single geocoder call,
		// run under the context of whichever caller started it.
		ch := r.group.DoChan(key, func() (any, error) {
			return r.lookup(ctx, strings.TrimSpace(address), key)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return domain.Place{}, ctx.Err()
		case res = <-ch:
		}

		if res.Err == nil {
			return res.Val.(domain.Place), nil
		}
		// The shared call died with another caller's context; ours is
		// still live, so start a fresh one.
		if isContextErr(res.Err) && ctx.Err() == nil {
			r.group.Forget(key)
			continue
		}
		return domain.Place{}, res.Err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// lookup calls the geocoder, backing off while it reports throttling.
func (r *PlaceResolver) lookup(ctx context.Context, address, key string) (domain.Place, error) {
	b := r.backoff.newBackOff(r.clock)

	for attempt := 1; ; attempt++ {
		p, err := r.geocoder.Geocode(ctx, address)
		if err == nil {
			r.throttled.Store(false)
			if p.Label == "" {
				p.Label = address
			}
			r.cache.Put(ctx, key, p)
			return p, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Place{}, ctxErr
		}

		if !errors.Is(err, ports.ErrThrottled) {
			r.throttled.Store(false)
			log.Debug().Str("address", address).Err(err).Msg("address not resolved")
			return domain.Place{}, fmt.Errorf("resolve place %q: %w: %v", address, ports.ErrNotFound, err)
		}

		r.throttled.Store(true)
		r.throttles.Add(1)
		wait := b.NextBackOff()
		r.throttleWait.Add(int64(wait))
		log.Info().
			Str("address", address).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("geocoding throttled, backing off")

		if err := clock.Sleep(ctx, r.clock, wait); err != nil {
			return domain.Place{}, err
		}
	}
}

// Throttled reports whether the most recent geocoder attempt was rate limited.
func (r *PlaceResolver) Throttled() bool {
	return r.throttled.Load()
}

// ThrottleCount is the number of throttled answers seen so far.
func (r *PlaceResolver) ThrottleCount() int64 {
	return r.throttles.Load()
}

// ThrottleWait is the total backoff spent waiting out throttling.
func (r *PlaceResolver) ThrottleWait() time.Duration {
	return time.Duration(r.throttleWait.Load())
}

// CachedCount is the number of addresses resolved in this session.
func (r *PlaceResolver) CachedCount() int {
	return r.cache.Len()
}
