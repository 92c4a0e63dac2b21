package domain

import "math"

// Immutable geographic coordinates (latitude, longitude).
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Rounded snaps both axes to 5 decimal places (about 1m), the precision used
// for cache keys and same-point checks.
func (c Coordinates) Rounded() Coordinates {
	return Coordinates{Lat: roundCoordinate(c.Lat), Lon: roundCoordinate(c.Lon)}
}

func roundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Place is a geocoded address: a coordinate plus the label the geocoder
// resolved it to.
type Place struct {
	Coordinates
	Label string `json:"label"`
}
