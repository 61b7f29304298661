// Package routing resolves road distances through the Google Maps Distance
// Matrix API, with an optional Redis cache in front of the provider.
package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/courierflow/dispatch/core/faults"
	"github.com/courierflow/dispatch/core/model"
	"github.com/courierflow/dispatch/infra/logger"
)

// Config holds the Maps API settings.
type Config struct {
	APIKey       string `json:"api_key"`
	CacheTTLMins int    `json:"cache_ttl_mins"`
}

// distanceAPI is the subset of the maps client the provider depends on.
type distanceAPI interface {
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
}

// MapsProvider fetches driving distances from the Google Maps API.
type MapsProvider struct {
	client distanceAPI
	log    logger.Logger
}

// NewMapsProvider creates a provider with the given API key.
func NewMapsProvider(cfg Config) (*MapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &MapsProvider{client: client, log: logger.New("routing")}, nil
}

// GetDistance returns the driving distance in meters between the two points.
func (p *MapsProvider) GetDistance(ctx context.Context, from, to model.LatLng) (float64, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{fmt.Sprintf("%f,%f", from.Lat, from.Lng)},
		Destinations: []string{fmt.Sprintf("%f,%f", to.Lat, to.Lng)},
		Mode:         maps.TravelModeDriving,
	}
	resp, err := p.client.DistanceMatrix(ctx, req)
	if err != nil {
		return 0, faults.External("maps", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, faults.External("maps", fmt.Errorf("empty distance matrix response"))
	}
	elem := resp.Rows[0].Elements[0]
	if elem.Status != "OK" {
		return 0, faults.External("maps", fmt.Errorf("element status %s", elem.Status))
	}
	return float64(elem.Distance.Meters), nil
}
