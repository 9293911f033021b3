// Package mock provides a places.Provider with canned results for
// development and tests. No network calls are made.
package mock

import (
	"context"

	"github.com/scrapegate/scrapegate/internal/places"
)

// Provider returns a fixed result set for every search.
type Provider struct {
	// Err, when set, is returned by every Search call.
	Err error
}

// New creates a mock Provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Search(ctx context.Context, params places.SearchParams) (*places.SearchResult, error) {
	if p.Err != nil {
		return nil, p.Err
	}

	params = params.Normalize()
	kind := "restaurant"
	if len(params.Kinds) > 0 {
		kind = params.Kinds[0]
	}

	return &places.SearchResult{
		Location: params.Location,
		Kinds:    params.Kinds,
		RadiusM:  params.RadiusM,
		Places: []places.Place{
			{
				Name:      "The Corner House",
				Address:   "12, High Street",
				Latitude:  51.5007,
				Longitude: -0.1246,
				Kind:      kind,
				OSMLink:   "https://www.openstreetmap.org/?mlat=51.500700&mlon=-0.124600&zoom=18",
			},
			{
				Name:      "Riverside Cafe",
				Address:   "3, Embankment Road",
				Latitude:  51.5033,
				Longitude: -0.1195,
				Kind:      kind,
				OSMLink:   "https://www.openstreetmap.org/?mlat=51.503300&mlon=-0.119500&zoom=18",
			},
		},
	}, nil
}
