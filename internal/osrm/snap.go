package osrm

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
)

// nearestCandidates is how many waypoints we ask OSRM for per snap. Stop
// centroids often land between streets; a wide candidate set lets the
// main-road preference actually find one.
const nearestCandidates = 100

// SnapConfig classifies road names for the snap preference cascade. The
// keyword lists are matched case-insensitively as substrings and can be
// swapped out for other locales.
type SnapConfig struct {
	// MainRoadKeywords mark avenues, boulevards and connectors that buses
	// can stop on
	MainRoadKeywords []string
	// ResidentialKeywords mark small streets to avoid when a better
	// candidate exists
	ResidentialKeywords []string
	// MaxDistance is the acceptance radius in meters; main roads get 3x
	MaxDistance float64
}

// DefaultSnapConfig returns the Turkish road-name classification used in
// production
func DefaultSnapConfig() SnapConfig {
	return SnapConfig{
		MainRoadKeywords:    []string{"cadde", "cd.", "bulvar", "blv", "bağlantı", "otoyol", "anayol", "çevre yolu"},
		ResidentialKeywords: []string{"sokak", "sok.", "sk.", "ara yol", "çıkmaz"},
		MaxDistance:         500,
	}
}

// SnapResult is the outcome of snapping one point to the road network.
// Valid is false only when the engine failed or no candidate was within
// the acceptance radius; the point then passes through unchanged. A
// last-resort snap (nearest road regardless of class) is still valid but
// flagged so callers can surface the stop for manual review.
type SnapResult struct {
	Original        models.Coordinate `json:"original"`
	Snapped         models.Coordinate `json:"snapped"`
	WalkingDistance float64           `json:"walking_distance"`
	RoadName        string            `json:"road_name"`
	MainRoad        bool              `json:"main_road"`
	LastResort      bool              `json:"last_resort,omitempty"`
	Valid           bool              `json:"valid"`
}

type snapCandidate struct {
	location models.Coordinate
	distance float64
	name     string
}

// SnapToRoad snaps a point to the preferred nearby road. The cascade:
// nearest main road within 3x the acceptance radius, then the nearest
// named non-residential road within the radius, then the absolute nearest
// candidate within the radius marked LastResort. Upstream failure or no
// candidate in range returns the input unchanged with Valid=false.
func (c *Client) SnapToRoad(ctx context.Context, point models.Coordinate) SnapResult {
	if c.cache != nil {
		if cached, err := c.cache.GetSnap(ctx, point); err == nil && cached != nil {
			return *cached
		}
	}

	result := c.snapUncached(ctx, point)

	if c.cache != nil && result.Valid {
		if err := c.cache.SetSnap(ctx, point, &result); err != nil {
			log.Printf("snap cache write failed: %v", err)
		}
	}
	return result
}

func (c *Client) snapUncached(ctx context.Context, point models.Coordinate) SnapResult {
	passthrough := SnapResult{Original: point, Snapped: point}

	query := url.Values{}
	query.Set("number", fmt.Sprintf("%d", nearestCandidates))
	reqURL := fmt.Sprintf("%s/nearest/v1/%s/%f,%f?%s", c.baseURL, c.profile, point.Lng, point.Lat, query.Encode())

	var resp nearestResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		log.Printf("osrm nearest request failed for (%.5f, %.5f): %v", point.Lat, point.Lng, err)
		return passthrough
	}
	if resp.Code != "Ok" || len(resp.Waypoints) == 0 {
		return passthrough
	}

	candidates := make([]snapCandidate, 0, len(resp.Waypoints))
	for _, wp := range resp.Waypoints {
		if len(wp.Location) < 2 {
			continue
		}
		candidates = append(candidates, snapCandidate{
			location: models.Coordinate{Lat: wp.Location[1], Lng: wp.Location[0]},
			distance: wp.Distance,
			name:     wp.Name,
		})
	}
	if len(candidates) == 0 {
		return passthrough
	}

	if best, ok := c.pickMainRoad(candidates); ok {
		return snapResult(point, best, true, true)
	}
	if best, ok := c.pickNamedRoad(candidates); ok {
		return snapResult(point, best, false, true)
	}

	// last resort: absolute nearest within the radius, flagged so the
	// caller knows the stop may sit on an unsuitable street
	if candidates[0].distance <= c.snap.MaxDistance {
		result := snapResult(point, candidates[0], false, true)
		result.LastResort = true
		return result
	}
	return passthrough
}

// pickMainRoad returns the nearest candidate on a main road within the
// extended 3x radius
func (c *Client) pickMainRoad(candidates []snapCandidate) (snapCandidate, bool) {
	extended := c.snap.MaxDistance * 3
	var best snapCandidate
	found := false
	for _, cand := range candidates {
		if cand.distance > extended || !containsAny(cand.name, c.snap.MainRoadKeywords) {
			continue
		}
		if !found || cand.distance < best.distance {
			best = cand
			found = true
		}
	}
	return best, found
}

// pickNamedRoad returns the nearest named non-residential candidate within
// the acceptance radius
func (c *Client) pickNamedRoad(candidates []snapCandidate) (snapCandidate, bool) {
	var best snapCandidate
	found := false
	for _, cand := range candidates {
		if cand.distance > c.snap.MaxDistance || cand.name == "" {
			continue
		}
		if containsAny(cand.name, c.snap.ResidentialKeywords) {
			continue
		}
		if !found || cand.distance < best.distance {
			best = cand
			found = true
		}
	}
	return best, found
}

func snapResult(original models.Coordinate, cand snapCandidate, mainRoad, valid bool) SnapResult {
	return SnapResult{
		Original:        original,
		Snapped:         cand.location,
		WalkingDistance: geo.Distance(original, cand.location),
		RoadName:        cand.name,
		MainRoad:        mainRoad,
		Valid:           valid,
	}
}

func containsAny(name string, keywords []string) bool {
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SnapAll snaps a batch of points concurrently. results[i] always
// corresponds to points[i].
func (c *Client) SnapAll(ctx context.Context, points []models.Coordinate) []SnapResult {
	results := make([]SnapResult, len(points))

	var wg sync.WaitGroup
	for i, p := range points {
		wg.Add(1)
		go func(i int, p models.Coordinate) {
			defer wg.Done()
			results[i] = c.SnapToRoad(ctx, p)
		}(i, p)
	}
	wg.Wait()

	return results
}
