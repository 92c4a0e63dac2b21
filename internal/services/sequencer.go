package services

import (
	"cmp"
	"context"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// TravelTimer is the travel-time capability the sequencer and the estimate
// aggregator consume. Any error other than ctx cancellation means
// "unavailable" for that pair.
type TravelTimer interface {
	TravelTime(ctx context.Context, origin, destination domain.Place, departure time.Time) (time.Duration, error)
}

// Sequence is the visiting order chosen for a run.
type Sequence struct {
	Order []domain.Stop
	// Degraded is set when sequencing stopped because no remaining stop could
	// be reached; those stops were appended in their input order.
	Degraded bool
	Unplaced []string
}

// Sequencer orders stops with a time-windowed greedy heuristic.
//
// Each step evaluates every unplaced stop from the current position and time
// and commits the best one. It does not attempt exact TSP-with-time-windows
// solving; each step costs two oracle lookups per remaining stop.
type Sequencer struct {
	eta         TravelTimer
	parallelism int
}

// NewSequencer builds a sequencer. parallelism > 1 evaluates the candidates
// of one step concurrently; selection is unaffected.
func NewSequencer(eta TravelTimer, parallelism int) *Sequencer {
	return &Sequencer{eta: eta, parallelism: max(parallelism, 1)}
}

type candidate struct {
	index     int
	stop      domain.Stop
	reachable bool

	closeAt   time.Time
	arrival   time.Time
	startAt   time.Time
	finish    time.Time
	waiting   time.Duration
	returnETA *time.Duration
}

func (c candidate) feasible() bool {
	return !c.finish.After(c.closeAt)
}

func (c candidate) lateness() time.Duration {
	return max(c.finish.Sub(c.closeAt), 0)
}

// Sequence orders stops starting from depot at start.
func (s *Sequencer) Sequence(
	ctx context.Context,
	depot domain.Place,
	start time.Time,
	stops []domain.Stop,
) (_ Sequence, err error) {
	defer obs.Time(ctx, "sequencer.Sequence")(&err)

	remaining := make([]int, len(stops))
	for i := range stops {
		remaining[i] = i
	}

	currentPlace := depot
	currentTime := start
	order := make([]domain.Stop, 0, len(stops))

	for len(remaining) > 0 {
		cands, err := s.evaluateAll(ctx, depot, currentPlace, currentTime, stops, remaining)
		if err != nil {
			return Sequence{}, err
		}

		best, ok := choose(cands)
		if !ok {
			unplaced := make([]string, 0, len(remaining))
			for _, i := range remaining {
				order = append(order, stops[i])
				unplaced = append(unplaced, stops[i].ID)
			}
			log.Warn().
				Int("placed", len(order)-len(unplaced)).
				Strs("unplaced", unplaced).
				Msg("no remaining stop reachable, appending in input order")
			return Sequence{Order: order, Degraded: true, Unplaced: unplaced}, nil
		}

		log.Debug().
			Str("stop", best.stop.ID).
			Time("arrive", best.arrival).
			Time("finish", best.finish).
			Bool("feasible", best.feasible()).
			Msg("sequenced stop")

		order = append(order, best.stop)
		currentPlace = *best.stop.Place
		currentTime = best.finish
		remaining = slices.DeleteFunc(remaining, func(i int) bool { return i == best.index })
	}

	return Sequence{Order: order}, nil
}

// evaluateAll scores every remaining stop from the current cursor. Results
// come back in input order regardless of parallelism.
func (s *Sequencer) evaluateAll(
	ctx context.Context,
	depot domain.Place,
	from domain.Place,
	now time.Time,
	stops []domain.Stop,
	remaining []int,
) ([]candidate, error) {
	if s.parallelism == 1 || len(remaining) == 1 {
		out := make([]candidate, 0, len(remaining))
		for _, i := range remaining {
			c, err := s.evaluate(ctx, depot, from, now, stops[i], i)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, nil
	}

	p := pool.NewWithResults[candidate]().
		WithContext(ctx).
		WithCancelOnError().
		WithMaxGoroutines(s.parallelism)
	for _, i := range remaining {
		p.Go(func(ctx context.Context) (candidate, error) {
			return s.evaluate(ctx, depot, from, now, stops[i], i)
		})
	}

	out, err := p.Wait()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b candidate) int { return cmp.Compare(a.index, b.index) })
	return out, nil
}

// evaluate computes arrival, window-adjusted start, finish and return time
// for one stop. Unreachable stops come back with reachable == false; only
// cancellation is an error.
func (s *Sequencer) evaluate(
	ctx context.Context,
	depot domain.Place,
	from domain.Place,
	now time.Time,
	stop domain.Stop,
	index int,
) (candidate, error) {
	c := candidate{index: index, stop: stop}
	if stop.Place == nil {
		return c, nil
	}

	openAt, closeAt, ok := stop.Schedule.Window(now)
	if !ok {
		return c, nil
	}

	travel, err := s.eta.TravelTime(ctx, from, *stop.Place, now)
	if err != nil {
		return c, ctx.Err()
	}

	c.reachable = true
	c.closeAt = closeAt
	c.arrival = now.Add(travel)
	c.startAt = c.arrival
	if openAt.After(c.startAt) {
		c.startAt = openAt
	}
	c.finish = c.startAt.Add(stop.Schedule.Dwell())
	c.waiting = c.startAt.Sub(c.arrival)

	back, err := s.eta.TravelTime(ctx, *stop.Place, depot, c.finish)
	if err != nil {
		return c, ctx.Err()
	}
	c.returnETA = &back
	return c, nil
}

// choose picks the next stop: among feasible candidates the earliest finish,
// then earliest close, then shortest return, then least waiting; when none is
// feasible, the least late. ok is false when no candidate was reachable.
func choose(cands []candidate) (candidate, bool) {
	var feasible, late []candidate
	for _, c := range cands {
		if !c.reachable {
			continue
		}
		if c.feasible() {
			feasible = append(feasible, c)
		} else {
			late = append(late, c)
		}
	}

	switch {
	case len(feasible) > 0:
		return slices.MinFunc(feasible, compareFeasible), true
	case len(late) > 0:
		return slices.MinFunc(late, compareInfeasible), true
	default:
		return candidate{}, false
	}
}

func compareFeasible(a, b candidate) int {
	return cmp.Or(
		a.finish.Compare(b.finish),
		a.closeAt.Compare(b.closeAt),
		compareReturn(a.returnETA, b.returnETA),
		cmp.Compare(a.waiting, b.waiting),
		cmp.Compare(a.index, b.index),
	)
}

func compareInfeasible(a, b candidate) int {
	return cmp.Or(
		cmp.Compare(a.lateness(), b.lateness()),
		a.finish.Compare(b.finish),
		compareReturn(a.returnETA, b.returnETA),
		cmp.Compare(a.index, b.index),
	)
}

// compareReturn orders return times with "unavailable" last.
func compareReturn(a, b *time.Duration) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}
