package maps

//go:generate mockgen -source=geocode_service.go -destination=./mocks/geocoder_mock.go -package=mocks Geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"knx/internal/types"
)

var ErrNoResult = errors.New("address not found")

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// GeocodeService handles interactions with the Google Geocoding API.
type GeocodeService struct {
	client *maps.Client
	region string
}

// NewGeocodeService creates a new GeocodeService with the given API Key.
func NewGeocodeService(apiKey, region string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client, region: region}, nil
}

// Geocode returns the first match's location.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Point{}, ErrNoResult
	}
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  s.region,
	})
	if err != nil {
		return types.Point{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, ErrNoResult
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Disabled is used when no API key is configured.
type Disabled struct{}

func (Disabled) Geocode(context.Context, string) (types.Point, error) {
	return types.Point{}, ErrNoResult
}
