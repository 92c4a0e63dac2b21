package ports

import (
	"context"
	"restock-route-service/internal/domain"
	"time"
)

// Contract for point-to-point driving time estimates.
type TravelTimeOracle interface {
	// Return the driving duration from origin to destination when leaving at
	// departure. Errors wrap ErrNoRoute or ErrThrottled where they apply.
	TravelTime(ctx context.Context, origin, destination domain.Place, departure time.Time) (time.Duration, error)
}
