package services

import (
	"context"
	"errors"
	"fmt"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/clock"
	"restock-route-service/internal/ports"
	"restock-route-service/internal/ratebudget"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const NoticeRateLimited = "lookups are temporarily rate limited"

type SessionConfig struct {
	ETALimit       int
	ETAWindow      time.Duration
	Parallelism    int
	GeocodeBackoff BackoffPolicy
	ETABackoff     BackoffPolicy

	// NoticeAfter is how long a task may spend waiting out throttling
	// before its plan carries NoticeRateLimited.
	NoticeAfter time.Duration
	Clock       clock.Clock
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ETALimit:       50,
		ETAWindow:      time.Minute,
		Parallelism:    1,
		GeocodeBackoff: DefaultGeocodeBackoff,
		ETABackoff:     DefaultETABackoff,
		NoticeAfter:    2 * time.Second,
		Clock:          clock.Real(),
	}
}

// PlanInput is a depot, a start time and stops whose schedules are already
// resolved. Stops may or may not carry a place yet.
type PlanInput struct {
	DepotAddress string
	StartAt      time.Time
	Stops        []domain.Stop
}

// Plan is everything a caller shows after optimising or re-estimating a run.
type Plan struct {
	Depot        domain.Place
	StartAt      time.Time
	Order        []domain.Stop
	Legs         []domain.RouteLeg
	LegsByStop   map[string]domain.RouteLeg
	TotalSeconds *int64
	Visits       []domain.Visit
	ReturnAt     time.Time
	Preview      Preview
	Degraded     bool
	Unplaced     []string
	Unresolved   []string
	Notices      []string
}

// Session owns the place cache and ETA rate budget of one run being planned.
// Only one task runs at a time: starting a new one cancels the one in flight
// and waits for it to unwind, so the budget is never shared between tasks.
type Session struct {
	places      *PlaceResolver
	eta         *ETAClient
	sequencer   *Sequencer
	noticeAfter time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(geocoder ports.Geocoder, oracle ports.TravelTimeOracle, cfg SessionConfig) (*Session, error) {
	if geocoder == nil || oracle == nil {
		return nil, errors.New("new session: geocoder and oracle are required")
	}

	budget, err := ratebudget.New(cfg.ETALimit, cfg.ETAWindow, cfg.Clock)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	eta := NewETAClient(oracle, budget, cfg.Clock, cfg.ETABackoff)
	return &Session{
		places:      NewPlaceResolver(geocoder, cfg.Clock, cfg.GeocodeBackoff),
		eta:         eta,
		sequencer:   NewSequencer(eta, cfg.Parallelism),
		noticeAfter: cfg.NoticeAfter,
	}, nil
}

// begin installs a fresh task, cancelling and awaiting any previous one.
func (s *Session) begin(parent context.Context) (context.Context, func()) {
	s.mu.Lock()
	for s.cancel != nil {
		s.cancel()
		done := s.done
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.mu.Unlock()

	return ctx, func() {
		cancel()
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
		close(done)
	}
}

// Optimize resolves places, sequences the stops and evaluates the result.
func (s *Session) Optimize(ctx context.Context, in PlanInput) (*Plan, error) {
	ctx, release := s.begin(ctx)
	defer release()
	mark := s.throttleWait()

	depot, stops, unresolved, err := s.resolve(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}

	seq, err := s.sequencer.Sequence(ctx, depot, in.StartAt, stops)
	if err != nil {
		return nil, fmt.Errorf("optimize: sequence stops: %w", err)
	}
	if seq.Degraded && len(seq.Unplaced) == len(stops) {
		return nil, fmt.Errorf("optimize: %w", ErrRouteInfeasible)
	}

	plan, err := s.evaluate(ctx, depot, in.StartAt, seq.Order, mark)
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	plan.Degraded = seq.Degraded
	plan.Unplaced = seq.Unplaced
	plan.Unresolved = unresolved
	return plan, nil
}

// Estimate evaluates the stops in exactly the given order.
func (s *Session) Estimate(ctx context.Context, in PlanInput) (*Plan, error) {
	ctx, release := s.begin(ctx)
	defer release()
	mark := s.throttleWait()

	depot, stops, unresolved, err := s.resolve(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}

	plan, err := s.evaluate(ctx, depot, in.StartAt, stops, mark)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}
	plan.Unresolved = unresolved
	return plan, nil
}

// RateLimited reports whether the latest geocoding or ETA attempt was throttled.
func (s *Session) RateLimited() bool {
	return s.places.Throttled() || s.eta.Throttled()
}

func (s *Session) throttleWait() time.Duration {
	return s.places.ThrottleWait() + s.eta.ThrottleWait()
}

func (s *Session) resolve(ctx context.Context, in PlanInput) (domain.Place, []domain.Stop, []string, error) {
	depot, err := s.places.Resolve(ctx, in.DepotAddress)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return domain.Place{}, nil, nil, fmt.Errorf("%w: %v", ErrDepotNotFound, err)
		}
		return domain.Place{}, nil, nil, err
	}

	stops := make([]domain.Stop, 0, len(in.Stops))
	var unresolved []string
	for _, st := range in.Stops {
		if st.Place != nil {
			stops = append(stops, st)
			continue
		}

		p, err := s.places.Resolve(ctx, st.Address)
		switch {
		case err == nil:
			stops = append(stops, st.WithPlace(p))
		case errors.Is(err, ports.ErrNotFound):
			unresolved = append(unresolved, st.ID)
			stops = append(stops, st)
		default:
			return domain.Place{}, nil, nil, err
		}
	}

	return depot, stops, unresolved, nil
}

// evaluate estimates order and assembles the plan. mark is the throttle
// wait when the task began; a notice is added once the task has spent at
// least noticeAfter backing off.
func (s *Session) evaluate(ctx context.Context, depot domain.Place, start time.Time, order []domain.Stop, mark time.Duration) (*Plan, error) {
	est, err := EstimateOrder(ctx, s.eta, depot, order, start)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Depot:        depot,
		StartAt:      start,
		Order:        order,
		Legs:         est.Legs,
		LegsByStop:   est.LegsByStop,
		TotalSeconds: est.TotalSeconds,
		Visits:       est.Visits,
		ReturnAt:     est.ReturnAt,
		Preview:      BuildPreview(depot, order),
	}
	if waited := s.throttleWait() - mark; waited > 0 && waited >= s.noticeAfter {
		plan.Notices = append(plan.Notices, NoticeRateLimited)
	}
	return plan, nil
}

// Close cancels the task in flight, if any. The session stays usable.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// SessionRegistry hands out one Session per key (a run, or a screen
// instance), creating it on first use. A session unused for idleTTL is
// evicted along with its caches and budget.
type SessionRegistry struct {
	newSession func() (*Session, error)

	mu       sync.Mutex
	sessions *gocache.Cache
}

// NewSessionRegistry keeps sessions until they sit idle for idleTTL, or
// forever when idleTTL is not positive.
func NewSessionRegistry(newSession func() (*Session, error), idleTTL time.Duration) *SessionRegistry {
	ttl, cleanup := idleTTL, idleTTL
	if idleTTL <= 0 {
		ttl, cleanup = gocache.NoExpiration, 0
	}

	sessions := gocache.New(ttl, cleanup)
	sessions.OnEvicted(func(key string, v any) {
		v.(*Session).Close()
		log.Debug().Str("session", key).Msg("planning session released")
	})

	return &SessionRegistry{
		newSession: newSession,
		sessions:   sessions,
	}
}

// Get returns the session for key and restarts its idle timer.
func (r *SessionRegistry) Get(key string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.sessions.Get(key); ok {
		r.sessions.SetDefault(key, v)
		return v.(*Session), nil
	}

	s, err := r.newSession()
	if err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}
	r.sessions.SetDefault(key, s)
	return s, nil
}

// Drop forgets the session for key, discarding its caches and budget.
func (r *SessionRegistry) Drop(key string) {
	r.mu.Lock()
	r.sessions.Delete(key)
	r.mu.Unlock()
}

// Len is the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions.DeleteExpired()
	return r.sessions.ItemCount()
}
