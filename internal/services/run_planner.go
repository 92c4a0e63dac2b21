package services

import (
	"context"
	"errors"
	"fmt"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/ports"
	"time"

	"github.com/rs/zerolog/log"
)

// RunPlanner connects the run-management collaborator to planning sessions.
type RunPlanner struct {
	Runs     ports.RunRepository
	Sessions *SessionRegistry
	// DefaultStart supplies the start time when neither the request nor
	// the run has one.
	DefaultStart func() time.Time
}

func NewRunPlanner(runs ports.RunRepository, sessions *SessionRegistry) *RunPlanner {
	return &RunPlanner{Runs: runs, Sessions: sessions, DefaultStart: time.Now}
}

// Stops returns the run's stops, schedules resolved, in saved order.
func (p *RunPlanner) Stops(ctx context.Context, runID string) ([]domain.Stop, error) {
	records, err := p.Runs.ListRunStops(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("run stops %q: %w", runID, err)
	}

	stops := make([]domain.Stop, 0, len(records))
	for _, r := range records {
		stops = append(stops, r.Stop())
	}
	return stops, nil
}

// Optimize orders the run's stops. Nothing is persisted.
func (p *RunPlanner) Optimize(ctx context.Context, runID string, startAt *time.Time) (*Plan, error) {
	in, session, err := p.prepare(ctx, runID, startAt)
	if err != nil {
		return nil, fmt.Errorf("optimize run: %w", err)
	}

	plan, err := session.Optimize(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("optimize run %q: %w", runID, err)
	}

	log.Info().
		Str("run", runID).
		Int("stops", len(plan.Order)).
		Bool("degraded", plan.Degraded).
		Int("unresolved", len(plan.Unresolved)).
		Msg("run optimized")
	return plan, nil
}

// Estimate evaluates a manual order. Stops missing from order keep their
// saved relative order after the listed ones.
func (p *RunPlanner) Estimate(ctx context.Context, runID string, order []string, startAt *time.Time) (*Plan, error) {
	in, session, err := p.prepare(ctx, runID, startAt)
	if err != nil {
		return nil, fmt.Errorf("estimate run: %w", err)
	}

	if len(order) > 0 {
		in.Stops, err = reorder(in.Stops, order)
		if err != nil {
			return nil, fmt.Errorf("estimate run %q: %w", runID, err)
		}
	}

	plan, err := session.Estimate(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("estimate run %q: %w", runID, err)
	}
	return plan, nil
}

// SaveOrder persists an order; nil entries mark the unassigned bucket.
// A saved order ends planning for the run, so its session is released.
func (p *RunPlanner) SaveOrder(ctx context.Context, runID string, order []*string) error {
	if err := p.Runs.SaveOrder(ctx, runID, order); err != nil {
		if errors.Is(err, ports.ErrRunNotFound) || errors.Is(err, ports.ErrInvalidOrder) {
			return fmt.Errorf("save order: %w", err)
		}
		return fmt.Errorf("save order %q: %w: %w", runID, ErrSaveRejected, err)
	}

	p.Sessions.Drop(runID)
	return nil
}

func (p *RunPlanner) prepare(ctx context.Context, runID string, startAt *time.Time) (PlanInput, *Session, error) {
	run, err := p.Runs.GetRun(ctx, runID)
	if err != nil {
		return PlanInput{}, nil, err
	}

	stops, err := p.Stops(ctx, runID)
	if err != nil {
		return PlanInput{}, nil, err
	}

	start := run.StartAt
	if startAt != nil {
		start = *startAt
	}
	if start.IsZero() {
		start = p.DefaultStart()
	}

	session, err := p.Sessions.Get(runID)
	if err != nil {
		return PlanInput{}, nil, err
	}

	return PlanInput{DepotAddress: run.DepotAddress, StartAt: start, Stops: stops}, session, nil
}

func reorder(stops []domain.Stop, order []string) ([]domain.Stop, error) {
	byID := make(map[string]domain.Stop, len(stops))
	for _, s := range stops {
		byID[s.ID] = s
	}

	seen := make(map[string]struct{}, len(order))
	out := make([]domain.Stop, 0, len(stops))
	for _, id := range order {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStop, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, s)
	}

	for _, s := range stops {
		if _, ok := seen[s.ID]; !ok {
			out = append(out, s)
		}
	}
	return out, nil
}
