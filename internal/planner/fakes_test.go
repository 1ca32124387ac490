package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/rotaplan/rotaplan_core/internal/osrm"
)

// fakeEmployees serves a fixed employee list
type fakeEmployees struct {
	list   []models.Employee
	shifts map[int64]models.Shift
}

func (f *fakeEmployees) Employees(_ context.Context, shiftID *int64) ([]models.Employee, error) {
	if shiftID == nil {
		return f.list, nil
	}
	var out []models.Employee
	for _, e := range f.list {
		if e.ShiftID != nil && *e.ShiftID == *shiftID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEmployees) Employee(_ context.Context, id int64) (*models.Employee, error) {
	for _, e := range f.list {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, fmt.Errorf("employee %d not found", id)
}

func (f *fakeEmployees) Shift(_ context.Context, id int64) (*models.Shift, error) {
	if s, ok := f.shifts[id]; ok {
		return &s, nil
	}
	return nil, fmt.Errorf("shift %d not found", id)
}

// fakeRoads computes straight-line geometry at 10 m/s so tests stay fast
// and deterministic. Snaps are identity unless snapOffset is set.
type fakeRoads struct {
	fallback   bool
	snapOffset float64 // degrees latitude added by every snap
	roadName   string
}

func (f *fakeRoads) Table(_ context.Context, points []models.Coordinate, _ bool) osrm.TableResult {
	n := len(points)
	dist := make([][]float64, n)
	dur := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		dur[i] = make([]float64, n)
		for j := range dist[i] {
			if i == j {
				continue
			}
			d := geo.Distance(points[i], points[j])
			dist[i][j] = d
			dur[i][j] = d / 10
		}
	}
	return osrm.TableResult{Distances: dist, Durations: dur, Fallback: f.fallback}
}

func (f *fakeRoads) Route(_ context.Context, points []models.Coordinate, _ bool) osrm.RouteResult {
	res := osrm.RouteResult{
		Polyline: append([]models.Coordinate(nil), points...),
		Fallback: f.fallback,
	}
	for i := 0; i < len(points)-1; i++ {
		d := geo.Distance(points[i], points[i+1])
		res.Legs = append(res.Legs, osrm.Leg{Distance: d, Duration: d / 10})
		res.Distance += d
		res.Duration += d / 10
	}
	return res
}

func (f *fakeRoads) SnapAll(_ context.Context, points []models.Coordinate) []osrm.SnapResult {
	results := make([]osrm.SnapResult, len(points))
	for i, p := range points {
		snapped := models.Coordinate{Lat: p.Lat + f.snapOffset, Lng: p.Lng}
		results[i] = osrm.SnapResult{
			Original:        p,
			Snapped:         snapped,
			WalkingDistance: geo.Distance(p, snapped),
			RoadName:        f.roadName,
			Valid:           true,
		}
	}
	return results
}

// fakeStore keeps plans in memory and mimics the transactional totals
// recompute of the real repository
type fakeStore struct {
	plans     map[int64]*models.Plan
	nextPlan  int64
	nextRoute int64
	saveCalls int
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{plans: map[int64]*models.Plan{}, nextPlan: 1, nextRoute: 1}
}

func (f *fakeStore) SavePlan(_ context.Context, plan *models.Plan) (int64, error) {
	f.saveCalls++
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	id := f.nextPlan
	f.nextPlan++

	stored := *plan
	stored.ID = id
	stored.CreatedAt = time.Now()
	stored.Routes = make([]models.PlanRoute, len(plan.Routes))
	for i, r := range plan.Routes {
		r.ID = f.nextRoute
		f.nextRoute++
		r.PlanID = id
		stored.Routes[i] = r
	}
	f.plans[id] = &stored
	return id, nil
}

func (f *fakeStore) GetPlan(_ context.Context, id int64) (*models.Plan, error) {
	if p, ok := f.plans[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("plan %d not found", id)
}

func (f *fakeStore) ListPlans(_ context.Context) ([]models.Plan, error) {
	var out []models.Plan
	for _, p := range f.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) DeletePlan(_ context.Context, id int64) error {
	delete(f.plans, id)
	return nil
}

func (f *fakeStore) GetRoute(_ context.Context, routeID int64) (*models.PlanRoute, error) {
	for _, p := range f.plans {
		for _, r := range p.Routes {
			if r.ID == routeID {
				copied := r
				copied.Stops = append([]models.Stop(nil), r.Stops...)
				copied.Polyline = append([]models.Coordinate(nil), r.Polyline...)
				return &copied, nil
			}
		}
	}
	return nil, fmt.Errorf("route %d not found", routeID)
}

func (f *fakeStore) UpdateRoute(_ context.Context, route *models.PlanRoute) error {
	plan, ok := f.plans[route.PlanID]
	if !ok {
		return fmt.Errorf("plan %d not found", route.PlanID)
	}
	for i, r := range plan.Routes {
		if r.ID == route.ID {
			plan.Routes[i] = *route
			recomputeTotals(plan)
			return nil
		}
	}
	return fmt.Errorf("route %d not found", route.ID)
}

func recomputeTotals(plan *models.Plan) {
	plan.TotalVehicles = len(plan.Routes)
	plan.TotalDistance = 0
	plan.TotalDuration = 0
	plan.TotalPassengers = 0
	for _, r := range plan.Routes {
		plan.TotalDistance += r.Distance
		plan.TotalDuration += r.Duration
		plan.TotalPassengers += r.Passengers
	}
}

// testPlanner wires a planner against the fakes with a fast solver budget
func testPlanner(emp *fakeEmployees, roads *fakeRoads, store *fakeStore) *Planner {
	return New(emp, roads, store).WithBudget(func(int) time.Duration {
		return 100 * time.Millisecond
	})
}
