package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/ports"
	"strings"
	"sync"
	"time"
)

type MockPlace struct {
	Address string  `json:"address"`
	Label   string  `json:"label"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// MockPair is a scripted driving time between two place labels.
type MockPair struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Seconds int    `json:"seconds"`
}

type MockFixture struct {
	Places []MockPlace `json:"places"`
	Pairs  []MockPair  `json:"pairs"`
}

// MockOracle is a scripted geocoder and travel-time oracle for tests and
// offline demos. Unknown addresses are NotFound, unknown pairs are NoRoute.
type MockOracle struct {
	places map[string]domain.Place
	pairs  map[string]time.Duration

	mu        sync.Mutex
	throttles int
	calls     int
}

func NewMockOracle(places []MockPlace, pairs []MockPair) *MockOracle {
	m := &MockOracle{
		places: make(map[string]domain.Place, len(places)),
		pairs:  make(map[string]time.Duration, len(pairs)),
	}
	for _, p := range places {
		label := p.Label
		if label == "" {
			label = p.Address
		}
		m.places[mockKey(p.Address)] = domain.Place{
			Coordinates: domain.Coordinates{Lat: p.Lat, Lon: p.Lon},
			Label:       label,
		}
	}
	for _, p := range pairs {
		m.pairs[p.From+"|"+p.To] = time.Duration(p.Seconds) * time.Second
	}
	return m
}

// LoadMockOracle reads a MockFixture JSON file.
func LoadMockOracle(path string) (*MockOracle, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock fixture: %w", err)
	}

	var f MockFixture
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode mock fixture %q: %w", path, err)
	}
	return NewMockOracle(f.Places, f.Pairs), nil
}

// Throttle makes the next n calls answer ErrThrottled.
func (m *MockOracle) Throttle(n int) {
	m.mu.Lock()
	m.throttles = n
	m.mu.Unlock()
}

// Calls counts every Geocode and TravelTime call, throttled ones included.
func (m *MockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockOracle) admit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.throttles > 0 {
		m.throttles--
		return ports.ErrThrottled
	}
	return nil
}

func (m *MockOracle) Geocode(ctx context.Context, address string) (domain.Place, error) {
	if err := ctx.Err(); err != nil {
		return domain.Place{}, err
	}
	if err := m.admit(); err != nil {
		return domain.Place{}, fmt.Errorf("mock geocode %q: %w", address, err)
	}

	p, ok := m.places[mockKey(address)]
	if !ok {
		return domain.Place{}, fmt.Errorf("mock geocode %q: %w", address, ports.ErrNotFound)
	}
	return p, nil
}

func (m *MockOracle) TravelTime(ctx context.Context, origin, destination domain.Place, departure time.Time) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := m.admit(); err != nil {
		return 0, fmt.Errorf("mock travel time: %w", err)
	}

	d, ok := m.pairs[origin.Label+"|"+destination.Label]
	if !ok {
		return 0, fmt.Errorf("missing pair %q -> %q: %w", origin.Label, destination.Label, ports.ErrNoRoute)
	}
	return d, nil
}

func mockKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
