package ports

import "errors"

// Classification tags adapters attach to oracle failures. Services branch on
// these with errors.Is and never on transport errors.
var (
	// ErrThrottled marks a transient rate-limit answer; retrying later may succeed.
	ErrThrottled = errors.New("oracle throttled")
	// ErrNotFound marks an address the geocoder cannot resolve.
	ErrNotFound = errors.New("address not found")
	// ErrNoRoute marks an origin/destination pair with no drivable route.
	ErrNoRoute = errors.New("no route between places")
)
