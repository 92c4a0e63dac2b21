package services

import (
	"context"
	"restock-route-service/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legSeconds(legs []domain.RouteLeg) []*int64 {
	out := make([]*int64, 0, len(legs))
	for _, l := range legs {
		out = append(out, l.ETASeconds)
	}
	return out
}

func TestEstimateOrder_RoundTrip(t *testing.T) {
	depot, stops, minutes := restockScenario()
	byID := map[string]domain.Stop{}
	for _, s := range stops {
		byID[s.ID] = s
	}
	ordered := []domain.Stop{byID["C"], byID["A"], byID["B"]}

	est, err := EstimateOrder(context.Background(), newFakeOracle(minutes), depot, ordered, at(9, 0))
	require.NoError(t, err)

	assert.Equal(t, []*int64{ptr[int64](300), ptr[int64](480), ptr[int64](720), ptr[int64](1800)}, legSeconds(est.Legs))
	require.NotNil(t, est.TotalSeconds)
	assert.EqualValues(t, 3300, *est.TotalSeconds)

	assert.Equal(t, "Depot", est.Legs[0].FromLabel)
	assert.Equal(t, "C", est.Legs[0].ToLabel)
	assert.Equal(t, "B", est.Legs[3].FromLabel)
	assert.Equal(t, "Depot", est.Legs[3].ToLabel)
	assert.Empty(t, est.Legs[3].StopID)

	assert.Len(t, est.LegsByStop, 3)
	assert.EqualValues(t, 480, *est.LegsByStop["A"].ETASeconds)

	require.Len(t, est.Visits, 3)
	assert.Equal(t, at(9, 5), est.Visits[0].ArriveAt)
	assert.Equal(t, at(9, 25), est.Visits[0].FinishAt)
	assert.Equal(t, at(9, 33), est.Visits[1].ArriveAt)
	assert.Equal(t, at(10, 25), est.Visits[2].FinishAt)
	assert.Equal(t, at(10, 55), est.ReturnAt)
}

func TestEstimateOrder_Idempotent(t *testing.T) {
	depot, stops, minutes := restockScenario()
	oracle := newFakeOracle(minutes)

	first, err := EstimateOrder(context.Background(), oracle, depot, stops, at(9, 0))
	require.NoError(t, err)
	second, err := EstimateOrder(context.Background(), oracle, depot, stops, at(9, 0))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEstimateOrder_UnavailableLeg(t *testing.T) {
	depot, stops, minutes := restockScenario()
	delete(minutes, "A>B")

	est, err := EstimateOrder(context.Background(), newFakeOracle(minutes), depot, stops, at(9, 0))
	require.NoError(t, err)

	require.Len(t, est.Legs, 4)
	assert.Nil(t, est.Legs[1].ETASeconds)
	assert.Equal(t, "B", est.Legs[1].StopID)
	_, ok := est.LegsByStop["B"]
	assert.False(t, ok)

	// Depot>A 10 + B>C 20 + C>Depot 5; the missing leg adds nothing.
	assert.EqualValues(t, 35*60, *est.TotalSeconds)
	assert.Equal(t, est.Visits[0].FinishAt, est.Visits[1].ArriveAt)
}

func TestEstimateOrder_NothingKnown(t *testing.T) {
	depot, stops, _ := restockScenario()

	est, err := EstimateOrder(context.Background(), newFakeOracle(nil), depot, stops, at(9, 0))
	require.NoError(t, err)

	assert.Len(t, est.Legs, 4)
	assert.Nil(t, est.TotalSeconds)
	assert.Empty(t, est.LegsByStop)
}

func TestEstimateOrder_Empty(t *testing.T) {
	est, err := EstimateOrder(context.Background(), newFakeOracle(nil), place("Depot", 52.5), nil, at(9, 0))
	require.NoError(t, err)

	assert.Empty(t, est.Legs)
	assert.Nil(t, est.TotalSeconds)
	assert.Equal(t, at(9, 0), est.ReturnAt)
}

func TestEstimateOrder_LateAndWaiting(t *testing.T) {
	depot := place("Depot", 52.50)
	early := withWindow(stop("E", 52.51), 0, 550) // closes 09:10
	later := withWindow(stop("L", 52.52), 660, 1439)
	minutes := map[string]int{"Depot>E": 5, "E>L": 5, "L>Depot": 5}

	est, err := EstimateOrder(context.Background(), newFakeOracle(minutes), depot, []domain.Stop{early, later}, at(9, 0))
	require.NoError(t, err)

	assert.True(t, est.Visits[0].Late)
	assert.False(t, est.Visits[1].Late)
	assert.Equal(t, at(9, 30), est.Visits[1].ArriveAt)
	assert.Equal(t, at(11, 0), est.Visits[1].StartAt)
	assert.Equal(t, at(11, 20), est.Visits[1].FinishAt)
}

func TestEstimateOrder_StopWithoutPlaceKeepsCursor(t *testing.T) {
	depot, stops, minutes := restockScenario()
	unplaced := domain.StopRecord{ID: "U", Title: "U", Address: "nowhere"}.Stop()
	ordered := []domain.Stop{stops[0], unplaced, stops[1]}

	est, err := EstimateOrder(context.Background(), newFakeOracle(minutes), depot, ordered, at(9, 0))
	require.NoError(t, err)

	require.Len(t, est.Legs, 4)
	assert.Nil(t, est.Legs[1].ETASeconds)
	assert.Equal(t, "A", est.Legs[2].FromLabel, "leg after an unplaced stop leaves from the last known place")
	assert.EqualValues(t, 12*60, *est.Legs[2].ETASeconds)
	assert.Equal(t, est.Visits[1].FinishAt.Add(12*time.Minute), est.Visits[2].ArriveAt)
}

func TestEstimateOrder_Cancelled(t *testing.T) {
	depot, stops, minutes := restockScenario()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	oracle := newFakeOracle(minutes)
	oracle.setHook(func(ctx context.Context, key string) error { return ctx.Err() })

	_, err := EstimateOrder(ctx, oracle, depot, stops, at(9, 0))
	require.ErrorIs(t, err, context.Canceled)
}
