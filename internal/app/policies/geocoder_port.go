package policies

import (
	"context"
	"errors"
)

var ErrLocationNotFound = errors.New("geocoder: no country found")

// Location holds the long names of the geocoded address components.
type Location struct {
	Country string
	Admin   string
	City    string
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
}
