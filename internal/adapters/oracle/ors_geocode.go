package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label string `json:"label"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocode resolves one address with /geocode/search, taking the top feature.
func (o *ORS) Geocode(ctx context.Context, address string) (_ domain.Place, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.tr.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.tr.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("size", "1")
		if o.country != "" {
			q.Set("boundary.country", o.country)
		}
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Place{}, fmt.Errorf("ors geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Place{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Place{}, fmt.Errorf("no geocode results for %q: %w", address, ports.ErrNotFound)
	}

	feature := decoded.Features[0]
	coords := feature.Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Place{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.Place{
		Coordinates: domain.Coordinates{Lon: coords[0], Lat: coords[1]},
		Label:       feature.Properties.Label,
	}, nil
}
