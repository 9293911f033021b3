// Package overpass implements the places.Provider interface against the
// public OpenStreetMap stack: Nominatim for geocoding the location and
// Overpass for the amenity search around it.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/scrapegate/scrapegate/internal/places"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	DefaultOverpassURL  = "https://overpass-api.de/api/interpreter"
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "scrapegate/1.0"

	// DefaultMaxRetries bounds retries of a failed upstream call. Transport
	// errors and 5xx answers retry; 4xx answers do not.
	DefaultMaxRetries = 2

	retryBaseDelay = 200 * time.Millisecond
)

// kindAliases maps common user spellings to OSM amenity values.
var kindAliases = map[string]string{
	"restaurants":  "restaurant",
	"resturants":   "restaurant",
	"supermarkets": "supermarket",
	"cafes":        "cafe",
	"pg":           "guest_house",
}

// Config holds upstream endpoints and client behavior.
type Config struct {
	NominatimURL string
	OverpassURL  string
	Timeout      time.Duration
	UserAgent    string

	// MaxRetries is the number of retries after a retryable failure;
	// negative disables retrying.
	MaxRetries int
}

// Provider is the real places.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Provider, filling config defaults.
func New(cfg Config, logger *slog.Logger) *Provider {
	if cfg.NominatimURL == "" {
		cfg.NominatimURL = DefaultNominatimURL
	}
	if cfg.OverpassURL == "" {
		cfg.OverpassURL = DefaultOverpassURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	} else if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Search geocodes the location, then queries Overpass for the requested
// amenity kinds around it.
func (p *Provider) Search(ctx context.Context, params places.SearchParams) (*places.SearchResult, error) {
	params = params.Normalize()

	lat, lon, err := p.geocode(ctx, params.Location)
	if err != nil {
		return nil, err
	}

	kinds := normalizeKinds(params.Kinds)
	if len(kinds) == 0 {
		kinds = []string{"restaurant"}
	}
	elements, err := p.query(ctx, kinds, lat, lon, params.RadiusM)
	if err != nil {
		return nil, err
	}

	result := &places.SearchResult{
		Location: params.Location,
		Kinds:    kinds,
		RadiusM:  params.RadiusM,
		Places:   make([]places.Place, 0, len(elements)),
	}
	for _, el := range elements {
		if len(result.Places) >= params.Limit {
			break
		}
		result.Places = append(result.Places, elementToPlace(el))
	}
	return result, nil
}

type nominatimHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// withRetry runs fn under the provider's bounded retry budget. fn signals
// a retryable failure by returning retry.RetryableError.
func (p *Provider) withRetry(ctx context.Context, fn retry.RetryFunc) error {
	backoff := retry.WithMaxRetries(uint64(p.cfg.MaxRetries), retry.NewExponential(retryBaseDelay))
	return retry.Do(ctx, backoff, fn)
}

func (p *Provider) geocode(ctx context.Context, location string) (lat, lon float64, err error) {
	q := url.Values{}
	q.Set("q", location)
	q.Set("format", "json")
	q.Set("limit", "1")

	var hits []nominatimHit
	err = p.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.NominatimURL+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", p.cfg.UserAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("geocode: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("geocode status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("geocode status %d", resp.StatusCode)
		}

		hits = hits[:0]
		return json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&hits)
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", places.ErrUpstream, err)
	}
	if len(hits) == 0 {
		return 0, 0, places.ErrLocationNotFound
	}

	lat, err = strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: geocode lat: %v", places.ErrUpstream, err)
	}
	lon, err = strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: geocode lon: %v", places.ErrUpstream, err)
	}
	return lat, lon, nil
}

type overpassElement struct {
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *overpassCenter   `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type overpassCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

func (p *Provider) query(ctx context.Context, kinds []string, lat, lon float64, radiusM int) ([]overpassElement, error) {
	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	for _, kind := range kinds {
		for _, shape := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&b, "%s[\"amenity\"=%q](around:%d,%f,%f);\n", shape, kind, radiusM, lat, lon)
		}
	}
	b.WriteString(");\nout center;\n")

	form := url.Values{}
	form.Set("data", b.String())

	var decoded overpassResponse
	err := p.withRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.OverpassURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", p.cfg.UserAgent)

		resp, err := p.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("query: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(fmt.Errorf("query status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("query status %d", resp.StatusCode)
		}

		decoded = overpassResponse{}
		return json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&decoded)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", places.ErrUpstream, err)
	}
	return decoded.Elements, nil
}

func elementToPlace(el overpassElement) places.Place {
	lat, lon := el.Lat, el.Lon
	if lat == 0 && lon == 0 && el.Center != nil {
		lat, lon = el.Center.Lat, el.Center.Lon
	}

	name := el.Tags["name"]
	if name == "" {
		name = "N/A"
	}

	addrParts := []string{
		el.Tags["addr:housenumber"],
		el.Tags["addr:street"],
		el.Tags["addr:suburb"],
		el.Tags["addr:city"],
		el.Tags["addr:postcode"],
	}
	parts := addrParts[:0]
	for _, part := range addrParts {
		if part != "" {
			parts = append(parts, part)
		}
	}

	link := ""
	if lat != 0 || lon != 0 {
		link = fmt.Sprintf("https://www.openstreetmap.org/?mlat=%f&mlon=%f&zoom=18", lat, lon)
	}

	return places.Place{
		Name:      name,
		Address:   strings.Join(parts, ", "),
		Latitude:  lat,
		Longitude: lon,
		Kind:      el.Tags["amenity"],
		OSMLink:   link,
	}
}

func normalizeKinds(kinds []string) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if alias, ok := kindAliases[k]; ok {
			k = alias
		}
		out = append(out, k)
	}
	return out
}
