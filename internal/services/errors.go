package services

import "errors"

var (
	// ErrUnavailable is the normal "oracle could not answer" outcome of a
	// travel-time lookup; it wraps the underlying cause.
	ErrUnavailable = errors.New("travel time unavailable")
	// ErrDepotNotFound means the depot address could not be geocoded.
	ErrDepotNotFound = errors.New("could not find the shop address")
	// ErrRouteInfeasible means no stop could be reached from the depot.
	ErrRouteInfeasible = errors.New("could not build a route between these stops")
	// ErrSaveRejected wraps a run-persistence failure; the working order is kept.
	ErrSaveRejected = errors.New("saving the stop order failed")
	// ErrUnknownStop means an order referenced a stop that is not on the run.
	ErrUnknownStop = errors.New("unknown stop in order")
)
