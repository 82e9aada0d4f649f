package facilities

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/medisur/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func ptr(v float64) *float64 { return &v }

func testFacility(name string, lat, lon float64) *Facility {
	return &Facility{
		Name:      name,
		Address:   name + " 123",
		Latitude:  ptr(lat),
		Longitude: ptr(lon),
		IntakeURI: "http://" + name + ".example:8000",
	}
}

type fakeGeocoder struct {
	point Point
	err   error
}

func (g fakeGeocoder) Geocode(ctx context.Context, query string) (Point, error) {
	return g.point, g.err
}

func TestStoreCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	f := testFacility("central", -34.6, -58.38)
	require.NoError(t, store.Create(ctx, f))
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, StatusActive, f.Status)

	got, err := store.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "central", got.Name)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, -34.6, *got.Latitude, 1e-9)

	byName, err := store.GetByName(ctx, "central")
	require.NoError(t, err)
	assert.Equal(t, f.ID, byName.ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRequiresName(t *testing.T) {
	store := setupTestStore(t)
	assert.Error(t, store.Create(context.Background(), &Facility{}))
}

func TestStoreListRegistrationOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.Create(ctx, testFacility(name, 1, 1)))
	}
	list, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "zeta", list[0].Name)
	assert.Equal(t, "alpha", list[1].Name)
	assert.Equal(t, "mid", list[2].Name)
}

func TestStoreUpdateAndStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	f := testFacility("north", 1, 1)
	require.NoError(t, store.Create(ctx, f))

	f.IntakeURI = ""
	f.Latitude = nil
	require.NoError(t, store.Update(ctx, f))

	got, err := store.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, got.IntakeURI)
	assert.Nil(t, got.Latitude)

	require.NoError(t, store.SetStatus(ctx, f.ID, StatusInactive))
	active, err := store.List(ctx, ListFilter{Status: StatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, store.SetStatus(ctx, "missing", StatusActive), ErrNotFound)
}

func TestDistance(t *testing.T) {
	// One degree of longitude on the equator.
	d := Distance(Point{0, 0}, Point{0, 1})
	assert.InDelta(t, 111.195, d, 0.01)
	assert.Equal(t, 0.0, Distance(Point{10, 10}, Point{10, 10}))
}

func TestClosestTieKeepsFirstRegistered(t *testing.T) {
	// Both candidates sit 5 km from the origin.
	delta := 5.0 / 111.195
	candidates := []Facility{
		*testFacility("first", 0, delta),
		*testFacility("second", 0, -delta),
	}
	best, dist := Closest(Point{0, 0}, candidates)
	require.NotNil(t, best)
	assert.Equal(t, "first", best.Name)
	assert.InDelta(t, 5.0, dist, 0.01)
}

func TestClosestSkipsUnresolvable(t *testing.T) {
	candidates := []Facility{
		{Name: "nowhere"},
		*testFacility("zero", 0, 0),
		*testFacility("far", 10, 10),
		*testFacility("near", 1, 1),
	}
	best, _ := Closest(Point{0.5, 0.5}, candidates)
	require.NotNil(t, best)
	assert.Equal(t, "near", best.Name)

	best, dist := Closest(Point{0, 0}, []Facility{{Name: "nowhere"}})
	assert.Nil(t, best)
	assert.True(t, math.IsInf(dist, 1))
}

func TestLocatorNearest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testFacility("far", 10, 10)))
	near := testFacility("near", 1, 1)
	require.NoError(t, store.Create(ctx, near))
	closed := testFacility("closed", 0.1, 0.1)
	closed.Status = StatusInactive
	require.NoError(t, store.Create(ctx, closed))

	loc := NewLocator(store, fakeGeocoder{point: Point{0, 0}})
	got, err := loc.Nearest(ctx, "Quito")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, near.ID, got.ID)
}

func TestLocatorNoFacilities(t *testing.T) {
	store := setupTestStore(t)
	loc := NewLocator(store, fakeGeocoder{point: Point{0, 0}})
	got, err := loc.Nearest(context.Background(), "Lima")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocatorGeocodeFailure(t *testing.T) {
	store := setupTestStore(t)
	loc := NewLocator(store, fakeGeocoder{err: ErrLocationNotFound})
	_, err := loc.Nearest(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestNominatimGeocoderCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "medisur-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("q") == "nowhere" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[{"lat":"-0.2299","lon":"-78.5249","display_name":"Quito, Ecuador"}]`))
	}))
	defer srv.Close()

	g, err := NewNominatimGeocoder(NominatimOptions{BaseURL: srv.URL, UserAgent: "medisur-test", CacheSize: 4})
	require.NoError(t, err)

	ctx := context.Background()
	p, err := g.Geocode(ctx, "Quito")
	require.NoError(t, err)
	assert.InDelta(t, -0.2299, p.Lat, 1e-9)
	assert.InDelta(t, -78.5249, p.Lon, 1e-9)

	_, err = g.Geocode(ctx, " quito ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup should hit the cache")

	_, err = g.Geocode(ctx, "nowhere")
	assert.True(t, errors.Is(err, ErrLocationNotFound))

	_, err = g.Geocode(ctx, "  ")
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestMonitorCheckAll(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer healthy.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	store := setupTestStore(t)
	ctx := context.Background()

	up := &Facility{Name: "up", IntakeURI: healthy.URL, Status: StatusInactive}
	down := &Facility{Name: "down", IntakeURI: broken.URL}
	noAddr := &Facility{Name: "no-address"}
	retired := &Facility{Name: "retired", Status: StatusInactive}
	for _, f := range []*Facility{up, down, noAddr, retired} {
		require.NoError(t, store.Create(ctx, f))
	}

	m := NewMonitor(store, time.Minute, "/health")
	require.NoError(t, m.CheckAll(ctx))

	expected := map[string]Status{
		up.ID:      StatusActive,
		down.ID:    StatusInactive,
		noAddr.ID:  StatusActive,
		retired.ID: StatusInactive,
	}
	for id, want := range expected {
		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, got.Name)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facilities.yml")
	content := `facilities:
  - name: Hospital Central
    address: Av. Siempre Viva 742
    latitude: -34.6
    longitude: -58.38
    intake_uri: http://central.example:8000
  - name: Clinica Norte
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	list, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Hospital Central", list[0].Name)
	require.NotNil(t, list[0].Latitude)
	assert.InDelta(t, -34.6, *list[0].Latitude, 1e-9)
	assert.Nil(t, list[1].Latitude)

	bad := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("facilities:\n  - address: nameless\n"), 0o644))
	_, err = LoadFile(bad)
	assert.Error(t, err)
}
