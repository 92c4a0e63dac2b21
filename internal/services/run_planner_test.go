package services

import (
	"context"
	"errors"
	"fmt"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/clock"
	"restock-route-service/internal/ports"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	runs    map[string]domain.Run
	stops   map[string][]domain.StopRecord
	saved   map[string][]*string
	saveErr error
}

func (f *fakeRuns) GetRun(ctx context.Context, runID string) (domain.Run, error) {
	r, ok := f.runs[runID]
	if !ok {
		return domain.Run{}, fmt.Errorf("fake: %w", ports.ErrRunNotFound)
	}
	return r, nil
}

func (f *fakeRuns) ListRunStops(ctx context.Context, runID string) ([]domain.StopRecord, error) {
	if _, ok := f.runs[runID]; !ok {
		return nil, fmt.Errorf("fake: %w", ports.ErrRunNotFound)
	}
	return f.stops[runID], nil
}

func (f *fakeRuns) SaveOrder(ctx context.Context, runID string, order []*string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.runs[runID]; !ok {
		return fmt.Errorf("fake: %w", ports.ErrRunNotFound)
	}
	f.saved[runID] = order
	return nil
}

func newTestPlanner(t *testing.T) (*RunPlanner, *fakeRuns) {
	t.Helper()

	depot, placed, minutes := restockScenario()
	places := map[string]domain.Place{"depot rd": depot}
	records := make([]domain.StopRecord, 0, len(placed))
	for _, s := range placed {
		places[strings.ToLower(s.Address)] = *s.Place
		records = append(records, domain.StopRecord{ID: s.ID, Title: s.Title, Address: s.Address})
	}

	runs := &fakeRuns{
		runs: map[string]domain.Run{
			"r1":      {ID: "r1", Name: "Monday", DepotAddress: "Depot Rd", StartAt: at(9, 0)},
			"undated": {ID: "undated", Name: "Someday", DepotAddress: "Depot Rd"},
		},
		stops: map[string][]domain.StopRecord{"r1": records, "undated": records},
		saved: map[string][]*string{},
	}

	cfg := DefaultSessionConfig()
	cfg.Clock = clock.NewFake(at(9, 0))
	sessions := NewSessionRegistry(func() (*Session, error) {
		return NewSession(&fakeGeocoder{places: places}, newFakeOracle(minutes), cfg)
	}, 0)

	p := NewRunPlanner(runs, sessions)
	p.DefaultStart = func() time.Time { return at(9, 0) }
	return p, runs
}

func TestRunPlanner_Stops(t *testing.T) {
	p, _ := newTestPlanner(t)

	stops, err := p.Stops(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, stopIDs(stops))
	assert.Equal(t, domain.DefaultDwellMinutes, stops[0].Schedule.DwellMinutes)

	_, err = p.Stops(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestRunPlanner_Optimize(t *testing.T) {
	p, runs := newTestPlanner(t)

	plan, err := p.Optimize(context.Background(), "r1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, stopIDs(plan.Order))
	assert.Equal(t, at(9, 0), plan.StartAt)
	assert.Empty(t, runs.saved, "optimising never persists")
}

func TestRunPlanner_StartTimes(t *testing.T) {
	p, _ := newTestPlanner(t)

	override := at(13, 0)
	plan, err := p.Optimize(context.Background(), "r1", &override)
	require.NoError(t, err)
	assert.Equal(t, override, plan.StartAt)

	plan, err = p.Optimize(context.Background(), "undated", nil)
	require.NoError(t, err)
	assert.Equal(t, at(9, 0), plan.StartAt)
}

func TestRunPlanner_Estimate(t *testing.T) {
	p, _ := newTestPlanner(t)

	plan, err := p.Estimate(context.Background(), "r1", []string{"C", "A", "B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, stopIDs(plan.Order))
	assert.EqualValues(t, 3300, *plan.TotalSeconds)

	plan, err = p.Estimate(context.Background(), "r1", []string{"B"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, stopIDs(plan.Order), "unlisted stops follow in saved order")

	_, err = p.Estimate(context.Background(), "r1", []string{"Z"}, nil)
	require.ErrorIs(t, err, ErrUnknownStop)
}

func TestRunPlanner_SaveOrder(t *testing.T) {
	p, runs := newTestPlanner(t)
	order := []*string{ptr("C"), nil, ptr("A"), ptr("B")}

	require.NoError(t, p.SaveOrder(context.Background(), "r1", order))
	assert.Equal(t, order, runs.saved["r1"])

	err := p.SaveOrder(context.Background(), "missing", order)
	require.ErrorIs(t, err, ports.ErrRunNotFound)
	assert.NotErrorIs(t, err, ErrSaveRejected)

	runs.saveErr = errors.New("connection reset")
	err = p.SaveOrder(context.Background(), "r1", order)
	require.ErrorIs(t, err, ErrSaveRejected)

	runs.saveErr = fmt.Errorf("fake: %w", ports.ErrInvalidOrder)
	err = p.SaveOrder(context.Background(), "r1", order)
	require.ErrorIs(t, err, ports.ErrInvalidOrder)
	assert.NotErrorIs(t, err, ErrSaveRejected)
}

func TestRunPlanner_SaveOrderReleasesSession(t *testing.T) {
	p, _ := newTestPlanner(t)

	_, err := p.Optimize(context.Background(), "r1", nil)
	require.NoError(t, err)
	before, err := p.Sessions.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, 4, before.places.CachedCount())

	require.NoError(t, p.SaveOrder(context.Background(), "r1", []*string{ptr("C"), ptr("A"), ptr("B")}))
	assert.Zero(t, p.Sessions.Len())

	after, err := p.Sessions.Get("r1")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
	assert.Zero(t, after.places.CachedCount())

	runsErr := p.SaveOrder(context.Background(), "missing", nil)
	require.ErrorIs(t, runsErr, ports.ErrRunNotFound)
	assert.Equal(t, 1, p.Sessions.Len(), "a failed save keeps the session")
}
