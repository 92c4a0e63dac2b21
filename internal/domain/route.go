package domain

import "time"

// RouteLeg is the travel between two consecutive points of a run.
// ETASeconds is nil when the travel-time oracle could not answer.
// StopID names the stop the leg arrives at; it is empty for the return leg.
type RouteLeg struct {
	StopID     string `json:"stop_id,omitempty"`
	FromLabel  string `json:"from_label"`
	ToLabel    string `json:"to_label"`
	ETASeconds *int64 `json:"eta_seconds,omitempty"`
}

// Visit is the computed timing of one stop within an evaluated order.
type Visit struct {
	StopID   string    `json:"stop_id"`
	ArriveAt time.Time `json:"arrive_at"`
	StartAt  time.Time `json:"start_at"`
	FinishAt time.Time `json:"finish_at"`
	Late     bool      `json:"late"`
}

// Run is the subset of a restock run the planner needs.
type Run struct {
	ID           string
	Name         string
	DepotAddress string
	StartAt      time.Time
}
