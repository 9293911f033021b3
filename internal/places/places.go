// Package places defines the downstream data-fetching capability that
// quota-gated API calls pay for: a nearby-places lookup against an
// OpenStreetMap-compatible upstream.
package places

import (
	"context"
	"errors"
)

// Provider performs a places search. Implementations:
//   - overpass: real HTTP client against Nominatim + Overpass endpoints
//   - mock: canned results for development and tests
type Provider interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
}

// SearchParams describes one places lookup.
type SearchParams struct {
	Location string   // free-form address/area to search around
	Kinds    []string // amenity kinds, e.g. "restaurant", "cafe"
	RadiusM  int      // search radius in meters; 0 means DefaultRadiusM
	Limit    int      // max results; 0 means DefaultLimit
}

const (
	DefaultRadiusM = 5000
	DefaultLimit   = 10
	MaxLimit       = 50
)

// Place is one result returned by the upstream.
type Place struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Kind      string  `json:"kind"`
	OSMLink   string  `json:"osm_link"`
}

// SearchResult is the outcome of one lookup.
type SearchResult struct {
	Location string   `json:"location"`
	Kinds    []string `json:"kinds"`
	RadiusM  int      `json:"radius_m"`
	Places   []Place  `json:"results"`
}

// Sentinel errors. Handlers map these to client-facing responses; any
// other error is treated as an upstream failure.
var (
	// ErrLocationNotFound: the upstream could not geocode the location.
	ErrLocationNotFound = errors.New("location not found")

	// ErrUpstream: the upstream was unreachable or answered badly.
	ErrUpstream = errors.New("places upstream failed")
)

// Normalize fills defaults and clamps limits in params.
func (p SearchParams) Normalize() SearchParams {
	if p.RadiusM <= 0 {
		p.RadiusM = DefaultRadiusM
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}
