package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
	"strings"
	"time"
)

const defaultOSRMBaseURL = "https://router.project-osrm.org"

// OSRM implements ports.TravelTimeOracle with the OSRM route service.
type OSRM struct {
	tr      *transport
	baseURL string
	profile string
}

type OSRMOptions struct {
	BaseURL string
	Profile string
	Client  *http.Client
}

type osrmRouteResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func NewOSRM(opts OSRMOptions) *OSRM {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOSRMBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = "driving"
	}

	return &OSRM{
		tr:      newTransport(opts.Client, nil),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		profile: opts.Profile,
	}
}

// TravelTime returns the fastest route duration. OSRM is not time-dependent,
// so departure is ignored.
func (c *OSRM) TravelTime(
	ctx context.Context,
	origin domain.Place,
	destination domain.Place,
	departure time.Time,
) (_ time.Duration, err error) {
	defer obs.Time(ctx, "osrm.TravelTime")(&err)

	endpoint := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=false",
		c.baseURL, c.profile,
		origin.Lon, origin.Lat, destination.Lon, destination.Lat,
	)

	resp, err := c.tr.doWithRetry(ctx, func() (*http.Request, error) {
		return c.tr.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		// OSRM reports unroutable pairs as a 400 with code NoRoute.
		var he *httpStatusError
		if errors.As(err, &he) && osrmCode(he.Body) == "NoRoute" {
			return 0, fmt.Errorf("osrm route %q -> %q: %w", origin.Label, destination.Label, ports.ErrNoRoute)
		}
		return 0, fmt.Errorf("osrm route %q -> %q: %w", origin.Label, destination.Label, err)
	}
	defer resp.Body.Close()

	var rr osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return 0, fmt.Errorf("decode osrm response: %w", err)
	}

	if rr.Code == "NoRoute" || (rr.Code == "Ok" && len(rr.Routes) == 0) {
		return 0, fmt.Errorf("osrm route %q -> %q: %w", origin.Label, destination.Label, ports.ErrNoRoute)
	}
	if rr.Code != "Ok" {
		return 0, fmt.Errorf("osrm route %q -> %q: unexpected code %q", origin.Label, destination.Label, rr.Code)
	}

	return time.Duration(math.Round(rr.Routes[0].Duration)) * time.Second, nil
}

func osrmCode(body string) string {
	var r struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return ""
	}
	return r.Code
}
