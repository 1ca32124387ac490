// Package osrm is the road-network adapter. It talks to an OSRM instance for
// distance/duration matrices, route geometry and nearest-road snapping, and
// degrades to great-circle estimates when the engine is unavailable.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
)

const (
	// fallback duration model: 30 km/h average speed over a road network
	// that is 1.4x longer than the straight line
	fallbackSpeedMS   = 30.0 * 1000 / 3600
	roadCircuityRatio = 1.4

	requestTimeout = 60 * time.Second
)

// Config holds OSRM client configuration
type Config struct {
	BaseURL string
	Profile string
}

// LoadConfigFromEnv loads OSRM configuration from environment variables
func LoadConfigFromEnv() *Config {
	return &Config{
		BaseURL: getEnv("OSRM_URL", "http://localhost:5000"),
		Profile: getEnv("OSRM_PROFILE", "driving"),
	}
}

// Client is a thin HTTP client for the OSRM table/route/nearest services.
// It is stateless and safe for concurrent use.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	snap       SnapConfig
	cache      SnapCache
}

// SnapCache caches snap-to-road results across plan runs. Implementations
// must be safe for concurrent use; a nil cache disables caching.
type SnapCache interface {
	GetSnap(ctx context.Context, c models.Coordinate) (*SnapResult, error)
	SetSnap(ctx context.Context, c models.Coordinate, result *SnapResult) error
}

// NewClient creates an OSRM client for the given base URL and routing profile
func NewClient(config *Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		profile:    config.Profile,
		httpClient: &http.Client{Timeout: requestTimeout},
		snap:       DefaultSnapConfig(),
	}
}

// WithSnapCache attaches a snap result cache
func (c *Client) WithSnapCache(cache SnapCache) *Client {
	c.cache = cache
	return c
}

// WithSnapConfig overrides the road-classification keyword lists
func (c *Client) WithSnapConfig(cfg SnapConfig) *Client {
	c.snap = cfg
	return c
}

// TableResult is a distance/duration matrix over N points. Fallback marks
// results synthesized from great-circle distances.
type TableResult struct {
	Distances [][]float64 // meters
	Durations [][]float64 // seconds
	Fallback  bool
}

// Leg is the distance and duration of one segment between consecutive
// waypoints of a route
type Leg struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
}

// RouteResult is road geometry plus metrics for an ordered waypoint sequence
type RouteResult struct {
	Polyline []models.Coordinate
	Distance float64 // meters
	Duration float64 // seconds
	Legs     []Leg
	Fallback bool
}

type tableResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Distances [][]float64 `json:"distances"`
	Durations [][]float64 `json:"durations"`
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"` // lng,lat pairs
		} `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []Leg   `json:"legs"`
	} `json:"routes"`
}

type nearestResponse struct {
	Code      string `json:"code"`
	Waypoints []struct {
		Location []float64 `json:"location"` // lng,lat
		Distance float64   `json:"distance"`
		Name     string    `json:"name"`
	} `json:"waypoints"`
}

// Table returns the NxN distance and duration matrices for the given points.
// Any upstream failure degrades to a haversine fallback matrix rather than
// an error; callers check Fallback to learn which one they got.
func (c *Client) Table(ctx context.Context, points []models.Coordinate, excludeTolls bool) TableResult {
	if len(points) < 2 {
		return TableResult{Distances: [][]float64{{0}}, Durations: [][]float64{{0}}}
	}

	query := url.Values{}
	query.Set("annotations", "distance,duration")
	if excludeTolls {
		query.Set("exclude", "toll")
	}
	reqURL := fmt.Sprintf("%s/table/v1/%s/%s?%s", c.baseURL, c.profile, coordPath(points), query.Encode())

	var resp tableResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		log.Printf("osrm table request failed, using fallback: %v", err)
		return fallbackTable(points)
	}
	if resp.Code != "Ok" || len(resp.Distances) != len(points) || len(resp.Durations) != len(points) {
		log.Printf("osrm table returned code=%q message=%q, using fallback", resp.Code, resp.Message)
		return fallbackTable(points)
	}

	return TableResult{Distances: resp.Distances, Durations: resp.Durations}
}

// Route returns the road geometry through the given points in order, with
// per-leg metrics. Falls back to a straight-line polyline on upstream
// failure.
func (c *Client) Route(ctx context.Context, points []models.Coordinate, excludeTolls bool) RouteResult {
	if len(points) < 2 {
		return RouteResult{}
	}

	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "geojson")
	query.Set("steps", "true")
	if excludeTolls {
		query.Set("exclude", "toll")
	}
	reqURL := fmt.Sprintf("%s/route/v1/%s/%s?%s", c.baseURL, c.profile, coordPath(points), query.Encode())

	var resp routeResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		log.Printf("osrm route request failed, using fallback: %v", err)
		return fallbackRoute(points)
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		log.Printf("osrm route returned code=%q, using fallback", resp.Code)
		return fallbackRoute(points)
	}

	route := resp.Routes[0]
	polyline := make([]models.Coordinate, 0, len(route.Geometry.Coordinates))
	for _, pair := range route.Geometry.Coordinates {
		if len(pair) < 2 {
			continue
		}
		// OSRM speaks lng,lat; we store lat,lng
		polyline = append(polyline, models.Coordinate{Lat: pair[1], Lng: pair[0]})
	}

	return RouteResult{
		Polyline: polyline,
		Distance: route.Distance,
		Duration: route.Duration,
		Legs:     route.Legs,
	}
}

// getJSON performs a GET request and decodes the JSON body
func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// coordPath formats coordinates the way OSRM expects: lng,lat pairs joined
// by semicolons
func coordPath(points []models.Coordinate) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%f,%f", p.Lng, p.Lat)
	}
	return strings.Join(parts, ";")
}

// fallbackTable builds a great-circle matrix with durations at 30 km/h over
// a 1.4x circuity factor
func fallbackTable(points []models.Coordinate) TableResult {
	n := len(points)
	distances := make([][]float64, n)
	durations := make([][]float64, n)
	for i := range distances {
		distances[i] = make([]float64, n)
		durations[i] = make([]float64, n)
		for j := range distances[i] {
			if i == j {
				continue
			}
			d := geo.Distance(points[i], points[j])
			distances[i][j] = d
			durations[i][j] = d * roadCircuityRatio / fallbackSpeedMS
		}
	}
	return TableResult{Distances: distances, Durations: durations, Fallback: true}
}

// fallbackRoute builds a straight-line polyline through the points
func fallbackRoute(points []models.Coordinate) RouteResult {
	polyline := append([]models.Coordinate(nil), points...)

	legs := make([]Leg, 0, len(points)-1)
	total := 0.0
	for i := 0; i < len(points)-1; i++ {
		d := geo.Distance(points[i], points[i+1]) * roadCircuityRatio
		legs = append(legs, Leg{Distance: d, Duration: d / fallbackSpeedMS})
		total += d
	}

	return RouteResult{
		Polyline: polyline,
		Distance: total,
		Duration: total / fallbackSpeedMS,
		Legs:     legs,
		Fallback: true,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
