package ports

import (
	"context"
	"errors"
	"restock-route-service/internal/domain"
)

var (
	ErrRunNotFound = errors.New("run not found")
	// ErrInvalidOrder rejects an order naming stops outside the run, or
	// naming one twice.
	ErrInvalidOrder = errors.New("invalid stop order")
)

// Port: a boundary to the run-management service that owns runs, their
// location records and the persisted stop order.
type RunRepository interface {
	// Return run metadata, or ErrRunNotFound.
	GetRun(ctx context.Context, runID string) (domain.Run, error)
	// Return the run's stop records in their currently saved order.
	ListRunStops(ctx context.Context, runID string) ([]domain.StopRecord, error)
	// Persist an order. A nil entry is the "unassigned stops" bucket, kept at its position.
	SaveOrder(ctx context.Context, runID string, order []*string) error
}
