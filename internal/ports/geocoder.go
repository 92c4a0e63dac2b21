package ports

import (
	"context"
	"restock-route-service/internal/domain"
)

// Contract for turning free-text addresses into places.
type Geocoder interface {
	// Return the best match for address, ErrNotFound when there is none,
	// or an error wrapping ErrThrottled when the service is rate limiting.
	Geocode(ctx context.Context, address string) (domain.Place, error)
}
