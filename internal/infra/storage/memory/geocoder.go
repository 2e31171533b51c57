package memory

import (
	"context"
	"strings"
	"sync"

	"tinyhouse/internal/app/policies"
)

// Geocoder resolves addresses from a fixed table, matched case-insensitively.
type Geocoder struct {
	mu        sync.RWMutex
	locations map[string]policies.Location
}

func NewGeocoder(locations map[string]policies.Location) *Geocoder {
	g := &Geocoder{locations: make(map[string]policies.Location, len(locations))}
	for address, loc := range locations {
		g.locations[normalizeAddress(address)] = loc
	}
	return g
}

func (g *Geocoder) Add(address string, loc policies.Location) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locations[normalizeAddress(address)] = loc
}

func (g *Geocoder) Geocode(ctx context.Context, address string) (policies.Location, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	loc, ok := g.locations[normalizeAddress(address)]
	if !ok || loc.Country == "" {
		return policies.Location{}, policies.ErrLocationNotFound
	}
	return loc, nil
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

var _ policies.Geocoder = (*Geocoder)(nil)
