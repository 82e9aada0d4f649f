package facilities

import (
	"context"
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0088

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Closest picks the candidate nearest to origin. Candidates without usable
// coordinates are skipped; on an exact tie the earlier candidate is kept.
// It returns nil when nothing qualifies.
func Closest(origin Point, candidates []Facility) (*Facility, float64) {
	var (
		best     *Facility
		bestDist = math.Inf(1)
	)
	for i := range candidates {
		p, ok := candidates[i].Coordinates()
		if !ok {
			continue
		}
		if d := Distance(origin, p); d < bestDist {
			best, bestDist = &candidates[i], d
		}
	}
	return best, bestDist
}

// Locator answers nearest-facility queries against the directory.
type Locator struct {
	store    *Store
	geocoder Geocoder
}

// NewLocator creates a Locator.
func NewLocator(store *Store, geocoder Geocoder) *Locator {
	return &Locator{store: store, geocoder: geocoder}
}

// Nearest resolves location and returns the closest active facility, or nil
// when no facility has resolvable coordinates.
func (l *Locator) Nearest(ctx context.Context, location string) (*Facility, error) {
	origin, err := l.geocoder.Geocode(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("resolving patient location: %w", err)
	}

	candidates, err := l.store.List(ctx, ListFilter{Status: StatusActive})
	if err != nil {
		return nil, err
	}

	best, _ := Closest(origin, candidates)
	return best, nil
}
