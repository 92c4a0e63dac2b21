package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"restock-route-service/internal/domain"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultNominatimBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim implements ports.Geocoder against an OSM Nominatim instance.
// The public instance allows one request per second, so calls are paced by
// a limiter before they leave the process.
type Nominatim struct {
	tr      *transport
	baseURL string
	limiter *rate.Limiter
}

type NominatimOptions struct {
	BaseURL   string
	UserAgent string
	// Interval between requests; zero means one per second.
	Interval time.Duration
	Client   *http.Client
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func NewNominatim(opts NominatimOptions) *Nominatim {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultNominatimBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "RestockRouteService/1.0"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	header := http.Header{}
	header.Set("User-Agent", opts.UserAgent)

	return &Nominatim{
		tr:      newTransport(opts.Client, header),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
	}
}

func (n *Nominatim) Geocode(ctx context.Context, address string) (_ domain.Place, err error) {
	defer obs.Time(ctx, "nominatim.Geocode")(&err)

	if err := n.limiter.Wait(ctx); err != nil {
		return domain.Place{}, fmt.Errorf("nominatim geocode %q: %w", address, err)
	}

	endpoint := n.baseURL + "/search"
	resp, err := n.tr.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := n.tr.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("q", address)
		q.Set("format", "json")
		q.Set("limit", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Place{}, fmt.Errorf("nominatim geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return domain.Place{}, fmt.Errorf("decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return domain.Place{}, fmt.Errorf("no geocode results for %q: %w", address, ports.ErrNotFound)
	}

	result := results[0]
	lat, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("invalid latitude %q for %q: %w", result.Lat, address, err)
	}
	lon, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("invalid longitude %q for %q: %w", result.Lon, address, err)
	}

	return domain.Place{
		Coordinates: domain.Coordinates{Lat: lat, Lon: lon},
		Label:       result.DisplayName,
	}, nil
}
