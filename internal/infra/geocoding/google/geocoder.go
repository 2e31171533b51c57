package google

import (
	"context"
	"fmt"
	"slices"

	"googlemaps.github.io/maps"

	"tinyhouse/internal/app/policies"
)

// Geocoder resolves free-text locations with the Google Geocoding API.
type Geocoder struct {
	client *maps.Client
}

func New(apiKey string, opts ...maps.ClientOption) (*Geocoder, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	return &Geocoder{client: c}, nil
}

// Geocode reads the first result. Admin and City may be empty; a missing
// country is reported as ErrLocationNotFound.
func (g *Geocoder) Geocode(ctx context.Context, address string) (policies.Location, error) {
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return policies.Location{}, fmt.Errorf("google: geocode: %w", err)
	}
	if len(results) == 0 {
		return policies.Location{}, policies.ErrLocationNotFound
	}
	loc := parseComponents(results[0].AddressComponents)
	if loc.Country == "" {
		return policies.Location{}, policies.ErrLocationNotFound
	}
	return loc, nil
}

func parseComponents(components []maps.AddressComponent) policies.Location {
	var loc policies.Location
	for _, c := range components {
		switch {
		case slices.Contains(c.Types, "country"):
			loc.Country = c.LongName
		case slices.Contains(c.Types, "administrative_area_level_1"):
			loc.Admin = c.LongName
		case slices.Contains(c.Types, "locality"), slices.Contains(c.Types, "postal_town"):
			loc.City = c.LongName
		}
	}
	return loc
}

var _ policies.Geocoder = (*Geocoder)(nil)
