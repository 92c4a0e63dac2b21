package services

import (
	"context"
	"fmt"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/clock"
	"restock-route-service/internal/ports"
	"strings"
	"sync"
	"time"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ptr[T any](v T) *T { return &v }

func place(label string, lat float64) domain.Place {
	return domain.Place{Coordinates: domain.Coordinates{Lat: lat, Lon: 13.4}, Label: label}
}

// stop builds a placed stop with a full-day window and the default dwell.
func stop(id string, lat float64) domain.Stop {
	s := domain.StopRecord{ID: id, Title: id, Address: id + " St"}.Stop()
	return s.WithPlace(place(id, lat))
}

func withWindow(s domain.Stop, opening, closing int) domain.Stop {
	s.Schedule = domain.ResolveSchedule(&opening, &closing, &s.Schedule.DwellMinutes)
	return s
}

// fakeOracle answers travel times by label pair. Unknown pairs are NoRoute.
type fakeOracle struct {
	mu        sync.Mutex
	minutes   map[string]int
	throttle  map[string]int
	fail      map[string]error
	clock     clock.Clock
	calls     []string
	callTimes []time.Time
	onCall    func(ctx context.Context, key string) error
}

func newFakeOracle(minutes map[string]int) *fakeOracle {
	return &fakeOracle{
		minutes:  minutes,
		throttle: map[string]int{},
		fail:     map[string]error{},
	}
}

func (f *fakeOracle) TravelTime(ctx context.Context, origin, destination domain.Place, departure time.Time) (time.Duration, error) {
	key := origin.Label + ">" + destination.Label

	f.mu.Lock()
	f.calls = append(f.calls, key)
	if f.clock != nil {
		f.callTimes = append(f.callTimes, f.clock.Now())
	}
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, key); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.throttle[key] > 0 {
		f.throttle[key]--
		return 0, fmt.Errorf("fake %s: %w", key, ports.ErrThrottled)
	}
	if err := f.fail[key]; err != nil {
		return 0, err
	}
	m, ok := f.minutes[key]
	if !ok {
		return 0, fmt.Errorf("fake %s: %w", key, ports.ErrNoRoute)
	}
	return time.Duration(m) * time.Minute, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeOracle) setHook(h func(ctx context.Context, key string) error) {
	f.mu.Lock()
	f.onCall = h
	f.mu.Unlock()
}

// fakeGeocoder resolves addresses from a fixed table.
type fakeGeocoder struct {
	mu       sync.Mutex
	places   map[string]domain.Place
	throttle int
	fail     error
	calls    int
	onCall   func(ctx context.Context) error
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) (domain.Place, error) {
	g.mu.Lock()
	g.calls++
	hook := g.onCall
	g.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return domain.Place{}, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.throttle > 0 {
		g.throttle--
		return domain.Place{}, ports.ErrThrottled
	}
	if g.fail != nil {
		return domain.Place{}, g.fail
	}
	p, ok := g.places[strings.ToLower(address)]
	if !ok {
		return domain.Place{}, fmt.Errorf("fake geocode %q: %w", address, ports.ErrNotFound)
	}
	return p, nil
}

func (g *fakeGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// restockScenario is a depot and three stops with a known greedy answer:
// C, A, B, then back to the depot.
func restockScenario() (domain.Place, []domain.Stop, map[string]int) {
	depot := place("Depot", 52.50)
	stops := []domain.Stop{stop("A", 52.51), stop("B", 52.52), stop("C", 52.53)}
	minutes := map[string]int{
		"Depot>A": 10, "Depot>B": 30, "Depot>C": 5,
		"A>Depot": 10, "B>Depot": 30, "C>Depot": 5,
		"A>B": 12, "A>C": 8,
		"B>A": 12, "B>C": 20,
		"C>A": 8, "C>B": 20,
	}
	return depot, stops, minutes
}

func stopIDs(stops []domain.Stop) []string {
	out := make([]string, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.ID)
	}
	return out
}
