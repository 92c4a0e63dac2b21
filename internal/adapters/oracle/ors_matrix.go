package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
	"time"
)

type matrixRequest struct {
	Locations    [][]float64 `json:"locations"`
	Destinations []int       `json:"destinations"`
	Metrics      []string    `json:"metrics"`
	Sources      []int       `json:"sources"`
}

type matrixResponse struct {
	Durations [][]*float64 `json:"durations"`
}

// TravelTime asks the matrix endpoint for a single origin->destination cell.
// ORS matrices are not time-dependent, so departure is ignored.
func (o *ORS) TravelTime(
	ctx context.Context,
	origin domain.Place,
	destination domain.Place,
	departure time.Time,
) (_ time.Duration, err error) {
	defer obs.Time(ctx, "ors.TravelTime")(&err)

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", o.baseURL, o.profile)

	payload, err := json.Marshal(matrixRequest{
		Locations:    [][]float64{origin.CoordsToList(), destination.CoordsToList()},
		Destinations: []int{1},
		Metrics:      []string{"duration"},
		Sources:      []int{0},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal matrix request: %w", err)
	}

	resp, err := o.tr.doWithRetry(ctx, func() (*http.Request, error) {
		return o.tr.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return 0, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return 0, fmt.Errorf("decode matrix response: %w", err)
	}

	if len(mr.Durations) != 1 || len(mr.Durations[0]) != 1 {
		return 0, fmt.Errorf("expected a 1x1 duration matrix; got %d rows", len(mr.Durations))
	}

	seconds := mr.Durations[0][0]
	if seconds == nil {
		return 0, fmt.Errorf("matrix %q -> %q: %w", origin.Label, destination.Label, ports.ErrNoRoute)
	}

	// ORS returns float seconds; round to whole seconds.
	return time.Duration(math.Round(*seconds)) * time.Second, nil
}
