package planner

import (
	"context"

	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/rotaplan/rotaplan_core/internal/osrm"
)

// routeGeometry is the enriched result for one vehicle's stop sequence
type routeGeometry struct {
	distance float64 // meters
	duration float64 // seconds, traffic-scaled
	polyline []models.Coordinate
	stops    []models.Stop
	fallback bool
}

// buildRouteGeometry asks the road network for geometry over the stop
// sequence shaped by the route type, applies the traffic factor to
// durations, and fills each stop's distance/duration to or from the depot
// from the leg sums. Polyline endpoints are pinned to the exact depot
// point where the route type requires it.
func buildRouteGeometry(ctx context.Context, roads RoadNetwork, depot models.Coordinate, routeType models.RouteType, excludeTolls bool, factor float64, stops []models.Stop) routeGeometry {
	if len(stops) == 0 {
		return routeGeometry{polyline: []models.Coordinate{}, stops: []models.Stop{}}
	}

	out := make([]models.Stop, len(stops))
	copy(out, stops)

	points := routePoints(depot, routeType, out)
	res := roads.Route(ctx, points, excludeTolls)

	geom := routeGeometry{
		distance: res.Distance,
		duration: res.Duration * factor,
		polyline: res.Polyline,
		stops:    out,
		fallback: res.Fallback,
	}

	fillDepotLegs(out, routeType, res.Legs, factor)
	geom.polyline = pinEndpoints(geom.polyline, depot, routeType)

	return geom
}

// routePoints builds the waypoint sequence for the route type
func routePoints(depot models.Coordinate, routeType models.RouteType, stops []models.Stop) []models.Coordinate {
	points := make([]models.Coordinate, 0, len(stops)+2)
	if routeType == models.RouteRing || routeType == models.RouteToHome {
		points = append(points, depot)
	}
	for _, s := range stops {
		points = append(points, s.Location)
	}
	if routeType == models.RouteRing || routeType == models.RouteToDepot {
		points = append(points, depot)
	}
	return points
}

// fillDepotLegs computes per-stop distance and duration to or from the
// depot as leg sums. Legs line up with consecutive waypoint pairs of
// routePoints; a short leg slice (engine hiccup) leaves the remaining
// stops at zero rather than guessing.
func fillDepotLegs(stops []models.Stop, routeType models.RouteType, legs []osrm.Leg, factor float64) {
	sumRange := func(from, to int) (dist, dur float64) { // legs[from:to]
		for i := from; i < to && i < len(legs); i++ {
			dist += legs[i].Distance
			dur += legs[i].Duration * factor
		}
		return dist, dur
	}

	switch routeType {
	case models.RouteToHome:
		// waypoints: depot, s0..s_{k-1}; stop i is reached after legs 0..i
		for i := range stops {
			stops[i].DistanceFromDepot, stops[i].DurationFromDepot = sumRange(0, i+1)
		}
	case models.RouteToDepot:
		// waypoints: s0..s_{k-1}, depot; from stop i the rest is legs i..
		for i := range stops {
			stops[i].DistanceToDepot, stops[i].DurationToDepot = sumRange(i, len(legs))
		}
	default:
		// ring: depot, s0..s_{k-1}, depot; after stop i the legs i+1..
		// lead back to the depot
		for i := range stops {
			stops[i].DistanceToDepot, stops[i].DurationToDepot = sumRange(i+1, len(legs))
		}
	}
}

// pinEndpoints forces the polyline to start and/or end at the exact depot
// point as the route type demands; the engine snaps endpoints to roads so
// they rarely coincide with the depot coordinate itself
func pinEndpoints(polyline []models.Coordinate, depot models.Coordinate, routeType models.RouteType) []models.Coordinate {
	if routeType == models.RouteRing || routeType == models.RouteToHome {
		if len(polyline) == 0 || polyline[0] != depot {
			polyline = append([]models.Coordinate{depot}, polyline...)
		}
	}
	if routeType == models.RouteRing || routeType == models.RouteToDepot {
		if len(polyline) == 0 || polyline[len(polyline)-1] != depot {
			polyline = append(polyline, depot)
		}
	}
	return polyline
}
