package dto

import (
	"restock-route-service/internal/domain"
	"restock-route-service/internal/services"
	"time"
)

type AnnotationResponse struct {
	Kind   string  `json:"kind"`
	StopID string  `json:"stop_id,omitempty"`
	Label  string  `json:"label"`
	Order  int     `json:"order,omitempty"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}

type PreviewResponse struct {
	Annotations []AnnotationResponse `json:"annotations"`
	// Polyline is a closed loop of [lon, lat] pairs.
	Polyline [][]float64 `json:"polyline"`
}

type PlanResponse struct {
	StartAt      time.Time                  `json:"start_at"`
	ReturnAt     time.Time                  `json:"return_at"`
	Order        []string                   `json:"order"`
	Legs         []domain.RouteLeg          `json:"legs"`
	LegsByStop   map[string]domain.RouteLeg `json:"legs_by_stop"`
	TotalSeconds *int64                     `json:"total_seconds"`
	Visits       []domain.Visit             `json:"visits"`
	Preview      PreviewResponse            `json:"preview"`
	Degraded     bool                       `json:"degraded"`
	Unresolved   []string                   `json:"unresolved"`
	Notices      []string                   `json:"notices"`
}

func NewPlanResponse(p *services.Plan) PlanResponse {
	res := PlanResponse{
		StartAt:      p.StartAt,
		ReturnAt:     p.ReturnAt,
		Order:        make([]string, 0, len(p.Order)),
		Legs:         p.Legs,
		LegsByStop:   p.LegsByStop,
		TotalSeconds: p.TotalSeconds,
		Visits:       p.Visits,
		Degraded:     p.Degraded,
		Unresolved:   p.Unresolved,
		Notices:      p.Notices,
		Preview: PreviewResponse{
			Annotations: make([]AnnotationResponse, 0, len(p.Preview.Annotations)),
			Polyline:    make([][]float64, 0, len(p.Preview.Polyline)),
		},
	}
	for _, s := range p.Order {
		res.Order = append(res.Order, s.ID)
	}
	for _, a := range p.Preview.Annotations {
		res.Preview.Annotations = append(res.Preview.Annotations, AnnotationResponse{
			Kind:   string(a.Kind),
			StopID: a.StopID,
			Label:  a.Label,
			Order:  a.Order,
			Lat:    a.Coordinates.Lat,
			Lon:    a.Coordinates.Lon,
		})
	}
	for _, c := range p.Preview.Polyline {
		res.Preview.Polyline = append(res.Preview.Polyline, c.CoordsToList())
	}
	if res.Unresolved == nil {
		res.Unresolved = []string{}
	}
	if res.Notices == nil {
		res.Notices = []string{}
	}
	return res
}
