package planner

import (
	"context"
	"fmt"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
)

// attachRadiusM is how close an existing stop must be to absorb a newly
// added employee before we create an individual stop instead
const attachRadiusM = 400.0

// Editor applies incremental edits to persisted plans. Every operation has
// a preview form (compute, do not write) and a commit form (write route
// and plan totals in one transaction).
type Editor struct {
	employees EmployeeSource
	roads     RoadNetwork
	store     PlanStore
}

// NewEditor creates a plan editor
func NewEditor(employees EmployeeSource, roads RoadNetwork, store PlanStore) *Editor {
	return &Editor{employees: employees, roads: roads, store: store}
}

// MetricDiff compares one metric before and after an edit
type MetricDiff struct {
	Old         float64 `json:"old"`
	New         float64 `json:"new"`
	Diff        float64 `json:"diff"`
	DiffPercent float64 `json:"diff_percent"`
}

func metricDiff(oldV, newV float64) MetricDiff {
	d := MetricDiff{Old: oldV, New: newV, Diff: newV - oldV}
	if oldV != 0 {
		d.DiffPercent = d.Diff / oldV * 100
	}
	return d
}

// EditResult is the outcome of an edit: the recomputed route and the
// distance/duration diffs against the stored version
type EditResult struct {
	Route     *models.PlanRoute `json:"route"`
	Distance  MetricDiff        `json:"distance"`
	Duration  MetricDiff        `json:"duration"`
	Committed bool              `json:"committed"`
}

// StopMove relocates the stop at Index to Location
type StopMove struct {
	Index    int               `json:"stop_index"`
	Location models.Coordinate `json:"location"`
}

// MoveStops relocates one or more stops of a route and recomputes its
// geometry and member walking distances
func (e *Editor) MoveStops(ctx context.Context, routeID int64, moves []StopMove, commit bool) (*EditResult, error) {
	return e.edit(ctx, routeID, commit, func(ctx context.Context, route *models.PlanRoute) error {
		for _, m := range moves {
			if m.Index < 0 || m.Index >= len(route.Stops) {
				return fmt.Errorf("stop index %d out of range (route has %d stops)", m.Index, len(route.Stops))
			}
			if !m.Location.Valid() {
				return fmt.Errorf("stop location out of range: (%f, %f)", m.Location.Lat, m.Location.Lng)
			}
			stop := &route.Stops[m.Index]
			if stop.OriginalLocation == nil {
				prev := stop.Location
				stop.OriginalLocation = &prev
			}
			stop.Location = m.Location
			if err := e.rewalkStop(ctx, stop); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reorder rotates the stop sequence so the stop at firstIndex becomes the
// first pickup
func (e *Editor) Reorder(ctx context.Context, routeID int64, firstIndex int, commit bool) (*EditResult, error) {
	return e.edit(ctx, routeID, commit, func(_ context.Context, route *models.PlanRoute) error {
		if firstIndex < 0 || firstIndex >= len(route.Stops) {
			return fmt.Errorf("stop index %d out of range (route has %d stops)", firstIndex, len(route.Stops))
		}
		rotated := make([]models.Stop, 0, len(route.Stops))
		rotated = append(rotated, route.Stops[firstIndex:]...)
		rotated = append(rotated, route.Stops[:firstIndex]...)
		route.Stops = rotated
		return nil
	})
}

// AddEmployee puts an employee on the route: onto the nearest stop within
// the attach radius of their home, or a new individual stop appended at
// the end. Rejects duplicates and full routes.
func (e *Editor) AddEmployee(ctx context.Context, routeID, employeeID int64, commit bool) (*EditResult, error) {
	return e.edit(ctx, routeID, commit, func(ctx context.Context, route *models.PlanRoute) error {
		for _, s := range route.Stops {
			for _, id := range s.EmployeeIDs {
				if id == employeeID {
					return ErrEmployeeOnRoute
				}
			}
		}
		if route.Passengers+1 > route.Capacity {
			return ErrCapacityFull
		}

		emp, err := e.employees.Employee(ctx, employeeID)
		if err != nil {
			return fmt.Errorf("loading employee %d: %w", employeeID, err)
		}

		best, bestDist := -1, attachRadiusM
		for i := range route.Stops {
			if d := geo.Distance(emp.Home, route.Stops[i].Location); d <= bestDist {
				best, bestDist = i, d
			}
		}

		if best >= 0 {
			stop := &route.Stops[best]
			stop.EmployeeIDs = append(stop.EmployeeIDs, emp.ID)
			stop.EmployeeNames = append(stop.EmployeeNames, emp.Name)
			stop.Walks = append(stop.Walks, models.MemberWalk{EmployeeID: emp.ID, WalkingDistance: bestDist})
			if bestDist > stop.MaxWalk {
				stop.MaxWalk = bestDist
			}
		} else {
			route.Stops = append(route.Stops, models.Stop{
				ClusterID:     nextClusterID(route.Stops),
				Location:      emp.Home,
				EmployeeIDs:   []int64{emp.ID},
				EmployeeNames: []string{emp.Name},
				Walks:         []models.MemberWalk{{EmployeeID: emp.ID, WalkingDistance: 0}},
				Individual:    true,
			})
		}

		route.Passengers++
		return nil
	})
}

// RemoveEmployee drops an employee from the route, removing their stop if
// it empties out
func (e *Editor) RemoveEmployee(ctx context.Context, routeID, employeeID int64, commit bool) (*EditResult, error) {
	return e.edit(ctx, routeID, commit, func(_ context.Context, route *models.PlanRoute) error {
		for i := range route.Stops {
			stop := &route.Stops[i]
			found := false
			for j, id := range stop.EmployeeIDs {
				if id != employeeID {
					continue
				}
				found = true
				stop.EmployeeIDs = append(stop.EmployeeIDs[:j], stop.EmployeeIDs[j+1:]...)
				if j < len(stop.EmployeeNames) {
					stop.EmployeeNames = append(stop.EmployeeNames[:j], stop.EmployeeNames[j+1:]...)
				}
				break
			}
			if !found {
				continue
			}

			dropWalk(stop, employeeID)
			route.Passengers--
			if len(stop.EmployeeIDs) == 0 {
				route.Stops = append(route.Stops[:i], route.Stops[i+1:]...)
			}
			return nil
		}
		return fmt.Errorf("employee %d is not on route %d", employeeID, route.ID)
	})
}

// edit is the shared skeleton: load, mutate, recompute geometry, diff,
// optionally commit
func (e *Editor) edit(ctx context.Context, routeID int64, commit bool, mutate func(context.Context, *models.PlanRoute) error) (*EditResult, error) {
	route, err := e.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("loading route %d: %w", routeID, err)
	}
	plan, err := e.store.GetPlan(ctx, route.PlanID)
	if err != nil {
		return nil, fmt.Errorf("loading plan %d: %w", route.PlanID, err)
	}

	oldDistance, oldDuration := route.Distance, route.Duration

	if err := mutate(ctx, route); err != nil {
		return nil, err
	}

	factor := plan.TrafficMode.Factor()
	geom := buildRouteGeometry(ctx, e.roads, plan.Depot, plan.RouteType, plan.ExcludeTolls, factor, route.Stops)
	route.Stops = geom.stops
	route.Distance = geom.distance
	route.Duration = geom.duration
	route.Polyline = geom.polyline

	result := &EditResult{
		Route:    route,
		Distance: metricDiff(oldDistance, route.Distance),
		Duration: metricDiff(oldDuration, route.Duration),
	}

	if commit {
		if err := e.store.UpdateRoute(ctx, route); err != nil {
			return nil, fmt.Errorf("saving route %d: %w", routeID, err)
		}
		result.Committed = true
	}

	return result, nil
}

// rewalkStop recomputes member walking distances after a stop moved
func (e *Editor) rewalkStop(ctx context.Context, stop *models.Stop) error {
	walks := make([]models.MemberWalk, 0, len(stop.EmployeeIDs))
	maxWalk := 0.0
	for _, id := range stop.EmployeeIDs {
		emp, err := e.employees.Employee(ctx, id)
		if err != nil {
			return fmt.Errorf("loading employee %d: %w", id, err)
		}
		d := geo.Distance(emp.Home, stop.Location)
		if d > maxWalk {
			maxWalk = d
		}
		walks = append(walks, models.MemberWalk{EmployeeID: id, WalkingDistance: d})
	}
	stop.Walks = walks
	stop.MaxWalk = maxWalk
	return nil
}

func dropWalk(stop *models.Stop, employeeID int64) {
	maxWalk := 0.0
	walks := stop.Walks[:0]
	for _, w := range stop.Walks {
		if w.EmployeeID == employeeID {
			continue
		}
		if w.WalkingDistance > maxWalk {
			maxWalk = w.WalkingDistance
		}
		walks = append(walks, w)
	}
	stop.Walks = walks
	stop.MaxWalk = maxWalk
}

func nextClusterID(stops []models.Stop) int {
	next := 0
	for _, s := range stops {
		if s.ClusterID >= next {
			next = s.ClusterID + 1
		}
	}
	return next
}
