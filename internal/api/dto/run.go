package dto

import (
	"restock-route-service/internal/domain"
	"time"
)

type StopResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Subtitle       string `json:"subtitle,omitempty"`
	Address        string `json:"address"`
	OpeningMinutes int    `json:"opening_minutes"`
	ClosingMinutes int    `json:"closing_minutes"`
	DwellMinutes   int    `json:"dwell_minutes"`
}

type ListStopsResponse struct {
	RunID string         `json:"run_id"`
	Stops []StopResponse `json:"stops"`
}

func NewStopResponse(s domain.Stop) StopResponse {
	return StopResponse{
		ID:             s.ID,
		Title:          s.Title,
		Subtitle:       s.Subtitle,
		Address:        s.Address,
		OpeningMinutes: s.Schedule.OpeningMinutes,
		ClosingMinutes: s.Schedule.ClosingMinutes,
		DwellMinutes:   s.Schedule.DwellMinutes,
	}
}

type OptimizeRequest struct {
	StartAt *time.Time `json:"start_at"`
}

type EstimateRequest struct {
	StartAt *time.Time `json:"start_at"`
	Order   []string   `json:"order"`
}

// SaveOrderRequest carries stop IDs; a null entry marks the unassigned bucket.
type SaveOrderRequest struct {
	Order []*string `json:"order"`
}
