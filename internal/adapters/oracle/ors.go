package oracle

import (
	"errors"
	"net/http"
	"strings"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

// ORS implements ports.Geocoder and ports.TravelTimeOracle on top of
// OpenRouteService. It holds no caches; the planning session owns those.
//
// The provider is safe for concurrent use.
type ORS struct {
	tr      *transport
	baseURL string
	profile string
	country string
}

type ORSOptions struct {
	BaseURL string
	Profile string
	// Country restricts geocoding to an ISO 3166-1 alpha-2 code; empty means worldwide.
	Country string
	Client  *http.Client
}

func NewORS(apiKey string, opts ORSOptions) (*ORS, error) {
	if apiKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	if opts.BaseURL == "" {
		opts.BaseURL = defaultORSBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = "driving-car"
	}

	header := http.Header{}
	header.Set("Authorization", apiKey)

	return &ORS{
		tr:      newTransport(opts.Client, header),
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		profile: opts.Profile,
		country: opts.Country,
	}, nil
}
