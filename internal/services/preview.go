package services

import "restock-route-service/internal/domain"

type AnnotationKind string

const (
	AnnotationDepot AnnotationKind = "depot"
	AnnotationStop  AnnotationKind = "stop"
)

// Annotation is one map pin. Order is the 1-based position of a stop in the
// run and 0 for the depot.
type Annotation struct {
	Kind        AnnotationKind     `json:"kind"`
	StopID      string             `json:"stop_id,omitempty"`
	Label       string             `json:"label"`
	Order       int                `json:"order,omitempty"`
	Coordinates domain.Coordinates `json:"coordinates"`
}

// Preview is the drawable form of a route. The polyline only connects pins;
// it is never used for scheduling.
type Preview struct {
	Annotations []Annotation         `json:"annotations"`
	Polyline    []domain.Coordinates `json:"polyline"`
}

// BuildPreview pins the depot and every resolved stop and closes the loop
// back to the depot. Stops without a place are left off the map but still
// count toward the order numbering.
func BuildPreview(depot domain.Place, ordered []domain.Stop) Preview {
	p := Preview{
		Annotations: make([]Annotation, 0, len(ordered)+1),
		Polyline:    make([]domain.Coordinates, 0, len(ordered)+2),
	}

	p.Annotations = append(p.Annotations, Annotation{
		Kind:        AnnotationDepot,
		Label:       depot.Label,
		Coordinates: depot.Coordinates,
	})
	p.Polyline = append(p.Polyline, depot.Coordinates)

	for i, s := range ordered {
		if s.Place == nil {
			continue
		}
		p.Annotations = append(p.Annotations, Annotation{
			Kind:        AnnotationStop,
			StopID:      s.ID,
			Label:       s.Label(),
			Order:       i + 1,
			Coordinates: s.Place.Coordinates,
		})
		p.Polyline = append(p.Polyline, s.Place.Coordinates)
	}

	p.Polyline = append(p.Polyline, depot.Coordinates)
	return p
}
