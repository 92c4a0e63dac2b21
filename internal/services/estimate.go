package services

import (
	"context"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"time"
)

// Estimate is the evaluation of one fixed stop order.
type Estimate struct {
	// Legs has one entry per consecutive pair, return-to-depot last.
	Legs []domain.RouteLeg
	// LegsByStop holds the arriving leg of each stop whose ETA is known.
	LegsByStop map[string]domain.RouteLeg
	// TotalSeconds sums the known leg ETAs; nil when no leg had one.
	TotalSeconds *int64
	Visits       []domain.Visit
	ReturnAt     time.Time
}

// EstimateOrder walks ordered from depot at start without making choices:
// travel, wait for opening, dwell, move on, then return to depot. A leg
// without an ETA adds no travel time, and a stop without a place leaves the
// cursor where it was.
func EstimateOrder(
	ctx context.Context,
	eta TravelTimer,
	depot domain.Place,
	ordered []domain.Stop,
	start time.Time,
) (_ Estimate, err error) {
	defer obs.Time(ctx, "estimate.EstimateOrder")(&err)

	est := Estimate{
		Legs:       make([]domain.RouteLeg, 0, len(ordered)+1),
		LegsByStop: make(map[string]domain.RouteLeg, len(ordered)),
		Visits:     make([]domain.Visit, 0, len(ordered)),
	}
	if len(ordered) == 0 {
		est.ReturnAt = start
		return est, nil
	}

	var total int64
	known := 0

	currentPlace := depot
	currentTime := start

	for _, stop := range ordered {
		leg := domain.RouteLeg{StopID: stop.ID, FromLabel: currentPlace.Label, ToLabel: stop.Label()}

		arrival := currentTime
		if stop.Place != nil {
			d, err := eta.TravelTime(ctx, currentPlace, *stop.Place, currentTime)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return Estimate{}, ctxErr
				}
			} else {
				secs := int64(d.Round(time.Second) / time.Second)
				leg.ETASeconds = &secs
				total += secs
				known++
				arrival = currentTime.Add(d)
				est.LegsByStop[stop.ID] = leg
			}
		}
		est.Legs = append(est.Legs, leg)

		visit := domain.Visit{StopID: stop.ID, ArriveAt: arrival, StartAt: arrival}
		if openAt, closeAt, ok := stop.Schedule.Window(currentTime); ok {
			if openAt.After(visit.StartAt) {
				visit.StartAt = openAt
			}
			visit.FinishAt = visit.StartAt.Add(stop.Schedule.Dwell())
			visit.Late = visit.FinishAt.After(closeAt)
		} else {
			visit.FinishAt = visit.StartAt.Add(stop.Schedule.Dwell())
		}
		est.Visits = append(est.Visits, visit)

		currentTime = visit.FinishAt
		if stop.Place != nil {
			currentPlace = *stop.Place
		}
	}

	back := domain.RouteLeg{FromLabel: currentPlace.Label, ToLabel: depot.Label}
	est.ReturnAt = currentTime
	d, err := eta.TravelTime(ctx, currentPlace, depot, currentTime)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Estimate{}, ctxErr
		}
	} else {
		secs := int64(d.Round(time.Second) / time.Second)
		back.ETASeconds = &secs
		total += secs
		known++
		est.ReturnAt = currentTime.Add(d)
	}
	est.Legs = append(est.Legs, back)

	if known > 0 {
		est.TotalSeconds = &total
	}

	return est, nil
}
