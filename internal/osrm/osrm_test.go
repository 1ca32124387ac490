package osrm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(serverURL string) *Client {
	return NewClient(&Config{BaseURL: serverURL, Profile: "driving"})
}

func TestTable(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{
			"code": "Ok",
			"distances": [[0, 1200], [1250, 0]],
			"durations": [[0, 180], [190, 0]]
		}`)
	}))
	defer server.Close()

	client := testClient(server.URL)
	points := []models.Coordinate{
		{Lat: 41.0, Lng: 29.0},
		{Lat: 41.1, Lng: 29.1},
	}

	result := client.Table(context.Background(), points, true)

	assert.False(t, result.Fallback)
	assert.Equal(t, [][]float64{{0, 1200}, {1250, 0}}, result.Distances)
	assert.Equal(t, [][]float64{{0, 180}, {190, 0}}, result.Durations)

	// coordinates go out as lng,lat
	assert.Contains(t, gotPath, "/table/v1/driving/29.000000,41.000000;29.100000,41.100000")
	assert.Contains(t, gotQuery, "annotations=distance%2Cduration")
	assert.Contains(t, gotQuery, "exclude=toll")
}

func TestTableFallback(t *testing.T) {
	points := []models.Coordinate{
		{Lat: 41.0, Lng: 29.0},
		{Lat: 41.01, Lng: 29.0}, // ~1112m apart
	}

	t.Run("Server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		result := testClient(server.URL).Table(context.Background(), points, false)

		require.True(t, result.Fallback)
		wantDist := geo.Distance(points[0], points[1])
		assert.InDelta(t, wantDist, result.Distances[0][1], 1.0)
		// duration model: 1.4x circuity at 30 km/h
		assert.InDelta(t, wantDist*1.4/(30.0*1000/3600), result.Durations[0][1], 1.0)
		assert.Zero(t, result.Distances[0][0])
	})

	t.Run("Bad code", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"code": "NoTable", "message": "no route"}`)
		}))
		defer server.Close()

		result := testClient(server.URL).Table(context.Background(), points, false)
		assert.True(t, result.Fallback)
	})

	t.Run("Unreachable engine", func(t *testing.T) {
		result := testClient("http://127.0.0.1:1").Table(context.Background(), points, false)
		assert.True(t, result.Fallback)
	})
}

func TestRoute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/route/v1/driving/")
		assert.Equal(t, "geojson", r.URL.Query().Get("geometries"))
		assert.Equal(t, "true", r.URL.Query().Get("steps"))
		fmt.Fprint(w, `{
			"code": "Ok",
			"routes": [{
				"geometry": {"coordinates": [[29.0, 41.0], [29.05, 41.02], [29.1, 41.1]]},
				"distance": 15000,
				"duration": 1800,
				"legs": [{"distance": 7000, "duration": 850}, {"distance": 8000, "duration": 950}]
			}]
		}`)
	}))
	defer server.Close()

	points := []models.Coordinate{
		{Lat: 41.0, Lng: 29.0},
		{Lat: 41.02, Lng: 29.05},
		{Lat: 41.1, Lng: 29.1},
	}
	result := testClient(server.URL).Route(context.Background(), points, false)

	assert.False(t, result.Fallback)
	assert.Equal(t, 15000.0, result.Distance)
	assert.Equal(t, 1800.0, result.Duration)
	require.Len(t, result.Legs, 2)

	// geojson lng,lat pairs flipped to lat,lng
	require.Len(t, result.Polyline, 3)
	assert.Equal(t, models.Coordinate{Lat: 41.0, Lng: 29.0}, result.Polyline[0])
	assert.Equal(t, models.Coordinate{Lat: 41.1, Lng: 29.1}, result.Polyline[2])
}

func TestRouteFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": "NoRoute"}`)
	}))
	defer server.Close()

	points := []models.Coordinate{
		{Lat: 41.0, Lng: 29.0},
		{Lat: 41.01, Lng: 29.0},
	}
	result := testClient(server.URL).Route(context.Background(), points, false)

	require.True(t, result.Fallback)
	// straight line through the input points
	assert.Equal(t, points, result.Polyline)
	require.Len(t, result.Legs, 1)
	wantDist := geo.Distance(points[0], points[1]) * 1.4
	assert.InDelta(t, wantDist, result.Distance, 1.0)
	assert.InDelta(t, wantDist/(30.0*1000/3600), result.Duration, 1.0)
}

func nearestBody(waypoints string) string {
	return fmt.Sprintf(`{"code": "Ok", "waypoints": [%s]}`, waypoints)
}

func TestSnapToRoad(t *testing.T) {
	origin := models.Coordinate{Lat: 41.0, Lng: 29.0}

	t.Run("Prefers main road over closer residential street", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, "/nearest/v1/driving/29.000000,41.000000")
			assert.Equal(t, "100", r.URL.Query().Get("number"))
			fmt.Fprint(w, nearestBody(`
				{"location": [29.0001, 41.0001], "distance": 20, "name": "Gül Sokak"},
				{"location": [29.002, 41.002], "distance": 300, "name": "Atatürk Caddesi"}
			`))
		}))
		defer server.Close()

		result := testClient(server.URL).SnapToRoad(context.Background(), origin)

		assert.True(t, result.Valid)
		assert.True(t, result.MainRoad)
		assert.Equal(t, "Atatürk Caddesi", result.RoadName)
		assert.Equal(t, models.Coordinate{Lat: 41.002, Lng: 29.002}, result.Snapped)
		assert.InDelta(t, geo.Distance(origin, result.Snapped), result.WalkingDistance, 0.1)
	})

	t.Run("Main road usable within extended radius", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, nearestBody(`
				{"location": [29.01, 41.01], "distance": 1200, "name": "Fatih Bulvarı"}
			`))
		}))
		defer server.Close()

		result := testClient(server.URL).SnapToRoad(context.Background(), origin)

		// 1200m is beyond the 500m acceptance radius but inside 3x
		assert.True(t, result.Valid)
		assert.True(t, result.MainRoad)
	})

	t.Run("Named non-residential road within radius", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, nearestBody(`
				{"location": [29.0001, 41.0001], "distance": 30, "name": "Dar Sokak"},
				{"location": [29.0005, 41.0005], "distance": 80, "name": "Liman Yolu"}
			`))
		}))
		defer server.Close()

		result := testClient(server.URL).SnapToRoad(context.Background(), origin)

		assert.True(t, result.Valid)
		assert.False(t, result.MainRoad)
		assert.Equal(t, "Liman Yolu", result.RoadName)
	})

	t.Run("Only residential streets gives flagged nearest", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, nearestBody(`
				{"location": [29.0001, 41.0001], "distance": 25, "name": "Gül Sokak"}
			`))
		}))
		defer server.Close()

		result := testClient(server.URL).SnapToRoad(context.Background(), origin)

		// usable, but flagged for review
		assert.True(t, result.Valid)
		assert.True(t, result.LastResort)
		assert.False(t, result.MainRoad)
		assert.Equal(t, "Gül Sokak", result.RoadName)
		assert.NotEqual(t, origin, result.Snapped)
	})

	t.Run("Nothing within the radius passes point through", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, nearestBody(`
				{"location": [29.01, 41.01], "distance": 650, "name": "Gül Sokak"}
			`))
		}))
		defer server.Close()

		result := testClient(server.URL).SnapToRoad(context.Background(), origin)

		assert.False(t, result.Valid)
		assert.Equal(t, origin, result.Snapped)
	})

	t.Run("Engine failure passes point through", func(t *testing.T) {
		result := testClient("http://127.0.0.1:1").SnapToRoad(context.Background(), origin)

		assert.False(t, result.Valid)
		assert.Equal(t, origin, result.Snapped)
		assert.Zero(t, result.WalkingDistance)
	})
}

func TestSnapAllPreservesOrder(t *testing.T) {
	// the server names each road after the queried longitude so we can
	// verify result ordering
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		coord := parts[len(parts)-1]
		lng := strings.Split(coord, ",")[0]
		fmt.Fprint(w, nearestBody(fmt.Sprintf(
			`{"location": [%s, 41.0], "distance": 50, "name": "Cadde %s"}`, lng, lng)))
	}))
	defer server.Close()

	points := make([]models.Coordinate, 8)
	for i := range points {
		points[i] = models.Coordinate{Lat: 41.0, Lng: 29.0 + float64(i)*0.01}
	}

	results := testClient(server.URL).SnapAll(context.Background(), points)

	require.Len(t, results, len(points))
	for i, r := range results {
		assert.Equal(t, points[i], r.Original, "result %d matches input %d", i)
		assert.Equal(t, fmt.Sprintf("Cadde %f", points[i].Lng), r.RoadName)
	}
}

type fakeSnapCache struct {
	store map[models.Coordinate]*SnapResult
	hits  int
}

func (f *fakeSnapCache) GetSnap(_ context.Context, c models.Coordinate) (*SnapResult, error) {
	if r, ok := f.store[c]; ok {
		f.hits++
		return r, nil
	}
	return nil, nil
}

func (f *fakeSnapCache) SetSnap(_ context.Context, c models.Coordinate, r *SnapResult) error {
	f.store[c] = r
	return nil
}

func TestSnapCacheShortCircuits(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, nearestBody(`{"location": [29.001, 41.001], "distance": 100, "name": "Ana Cadde"}`))
	}))
	defer server.Close()

	cache := &fakeSnapCache{store: map[models.Coordinate]*SnapResult{}}
	client := testClient(server.URL).WithSnapCache(cache)
	point := models.Coordinate{Lat: 41.0, Lng: 29.0}

	first := client.SnapToRoad(context.Background(), point)
	second := client.SnapToRoad(context.Background(), point)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.hits)
}
