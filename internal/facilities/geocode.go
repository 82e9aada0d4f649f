package facilities

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

// ErrLocationNotFound is returned when the geocoder has no match for a query.
var ErrLocationNotFound = errors.New("location not found")

// Geocoder resolves a free-text location to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (Point, error)
}

// NominatimGeocoder queries an OpenStreetMap Nominatim instance. Results are
// kept in an LRU cache because patient locations repeat heavily.
type NominatimGeocoder struct {
	client *resty.Client
	cache  *lru.Cache
	ttl    time.Duration
}

type cachedPoint struct {
	point     Point
	expiresAt time.Time
}

// NominatimOptions configures NewNominatimGeocoder.
type NominatimOptions struct {
	BaseURL   string
	UserAgent string
	CacheSize int
	CacheTTL  time.Duration
	Timeout   time.Duration
}

// NewNominatimGeocoder creates a geocoder. Nominatim's usage policy requires
// an identifying User-Agent.
func NewNominatimGeocoder(opts NominatimOptions) (*NominatimGeocoder, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating geocode cache: %w", err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)

	return &NominatimGeocoder{client: client, cache: cache, ttl: opts.CacheTTL}, nil
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for query.
func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (Point, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return Point{}, ErrLocationNotFound
	}
	if v, ok := g.cache.Get(key); ok {
		entry := v.(cachedPoint)
		if time.Now().Before(entry.expiresAt) {
			return entry.point, nil
		}
		g.cache.Remove(key)
	}

	var places []nominatimPlace
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"format": "json",
			"limit":  "1",
		}).
		SetResult(&places).
		Get("/search")
	if err != nil {
		return Point{}, fmt.Errorf("geocoding %q: %w", query, err)
	}
	if resp.IsError() {
		return Point{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode())
	}
	if len(places) == 0 {
		return Point{}, ErrLocationNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parsing latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("parsing longitude %q: %w", places[0].Lon, err)
	}

	p := Point{Lat: lat, Lon: lon}
	g.cache.Add(key, cachedPoint{point: p, expiresAt: time.Now().Add(g.ttl)})
	log.Debug().Str("query", query).Str("match", places[0].DisplayName).Msg("geocoded location")
	return p, nil
}
