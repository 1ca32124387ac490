package planner

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/rotaplan/rotaplan_core/internal/cluster"
	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/rotaplan/rotaplan_core/internal/osrm"
	"github.com/rotaplan/rotaplan_core/internal/solver"
)

// maxSolveAttempts bounds the fleet-escalation retry loop
const maxSolveAttempts = 5

// Accepted walking-cap range in meters. Below 50 DBSCAN degenerates to
// all-individual stops; above 2000 the walk is no longer a walk.
const (
	minWalkingM = 50
	maxWalkingM = 2000
)

// budgetFor picks the solver wall-clock budget from the stop count
func budgetFor(stops int) time.Duration {
	switch {
	case stops <= 20:
		return 30 * time.Second
	case stops <= 40:
		return 45 * time.Second
	default:
		return 60 * time.Second
	}
}

// Planner runs the plan-creation pipeline
type Planner struct {
	employees EmployeeSource
	roads     RoadNetwork
	store     PlanStore
	budget    func(stops int) time.Duration
}

// New creates a planner with the production solver budgets
func New(employees EmployeeSource, roads RoadNetwork, store PlanStore) *Planner {
	return &Planner{
		employees: employees,
		roads:     roads,
		store:     store,
		budget:    budgetFor,
	}
}

// WithBudget overrides the solver budget schedule
func (p *Planner) WithBudget(budget func(stops int) time.Duration) *Planner {
	p.budget = budget
	return p
}

// CreatePlan executes the full pipeline and persists the result in a
// single transaction. The returned plan carries its database id.
func (p *Planner) CreatePlan(ctx context.Context, cfg models.PlanConfig) (*models.Plan, error) {
	cfg.ApplyDefaults()
	if !cfg.Depot.Valid() {
		return nil, fmt.Errorf("depot location out of range (%f, %f): %w", cfg.Depot.Lat, cfg.Depot.Lng, ErrInvalidInput)
	}
	if cfg.MaxWalkingM < minWalkingM || cfg.MaxWalkingM > maxWalkingM {
		return nil, fmt.Errorf("walking cap %dm outside [%d, %d]: %w", cfg.MaxWalkingM, minWalkingM, maxWalkingM, ErrInvalidInput)
	}

	employees, err := p.loadEmployees(ctx, cfg.ShiftID)
	if err != nil {
		return nil, err
	}

	homes := make(map[int64]models.Coordinate, len(employees))
	names := make(map[int64]string, len(employees))
	members := make([]cluster.Member, 0, len(employees))
	for _, e := range employees {
		homes[e.ID] = e.Home
		names[e.ID] = e.Name
		members = append(members, cluster.Member{EmployeeID: e.ID, Location: e.Home})
	}

	engine := cluster.NewEngine(float64(cfg.MaxWalkingM))
	stops := engine.Cluster(members, cluster.MethodDensity, cfg.LargeCapacity)
	if len(stops) == 0 {
		return nil, ErrNoEmployees
	}

	p.snapStops(ctx, stops, homes)
	fillNames(stops, names)

	matrixPoints := make([]models.Coordinate, 0, len(stops)+1)
	matrixPoints = append(matrixPoints, cfg.Depot)
	for _, s := range stops {
		matrixPoints = append(matrixPoints, s.Location)
	}
	table := p.roads.Table(ctx, matrixPoints, cfg.ExcludeTolls)
	degraded := table.Fallback

	factor := cfg.TrafficMode.Factor()
	distances, durations := integerMatrices(table, factor)

	demands := make([]int64, len(stops)+1)
	for i, s := range stops {
		demands[i+1] = int64(s.PassengerCount())
	}

	budget := p.budget(len(stops))
	maxRouteDur := int64(math.Round(float64(cfg.MaxTravelMin) * 60 * factor))

	fleetCfg := cfg
	var fleet solver.Fleet
	var sol solver.Solution
	solved := false
	for attempt := 1; attempt <= maxSolveAttempts; attempt++ {
		fleet = solver.BuildFleet(fleetCfg)
		sol = solver.Solve(solver.Problem{
			Distances:        distances,
			Durations:        durations,
			Demands:          demands,
			Capacities:       fleet.Capacities(),
			PriorityCount:    fleet.PriorityCount,
			Depot:            0,
			MaxRouteDuration: maxRouteDur,
			TimeBudget:       budget,
		})
		if sol.Status != solver.StatusNoSolution && sol.VehiclesUsed > 0 {
			solved = true
			break
		}
		log.Printf("solve attempt %d/%d found no solution with %d small + %d large, enlarging fleet",
			attempt, maxSolveAttempts, fleetCfg.NumSmall, fleetCfg.NumLarge)
		fleetCfg = solver.Enlarge(fleetCfg)
	}
	if !solved {
		return nil, fmt.Errorf("no feasible routing after %d attempts: %w", maxSolveAttempts, ErrInfeasible)
	}

	plan := &models.Plan{
		Name:            cfg.Name,
		MaxWalkingM:     cfg.MaxWalkingM,
		Depot:           cfg.Depot,
		TrafficMode:     cfg.TrafficMode,
		BufferSeats:     cfg.BufferSeats,
		VehiclePriority: cfg.VehiclePriority,
		MaxTravelMin:    cfg.MaxTravelMin,
		NumSmall:        fleetCfg.NumSmall,
		NumLarge:        fleetCfg.NumLarge,
		ShiftID:         cfg.ShiftID,
		RouteType:       cfg.RouteType,
		ExcludeTolls:    cfg.ExcludeTolls,
	}
	if cfg.ShiftID != nil {
		if shift, err := p.employees.Shift(ctx, *cfg.ShiftID); err == nil && shift != nil {
			plan.ShiftName = shift.Name
		}
	}

	vehicleID := 0
	for v, nodes := range sol.Routes {
		if len(nodes) == 0 {
			continue
		}
		interior := nodes[1 : len(nodes)-1]
		routeStops := make([]models.Stop, len(interior))
		for i, node := range interior {
			routeStops[i] = stops[node-1]
		}

		geom := buildRouteGeometry(ctx, p.roads, cfg.Depot, cfg.RouteType, cfg.ExcludeTolls, factor, routeStops)
		degraded = degraded || geom.fallback

		vehicleID++
		route := models.PlanRoute{
			VehicleID:   vehicleID,
			VehicleType: fleet.Vehicles[v].Type,
			Capacity:    fleet.Vehicles[v].Capacity,
			Passengers:  int(sol.RouteLoads[v]),
			Distance:    geom.distance,
			Duration:    geom.duration,
			Polyline:    geom.polyline,
			Stops:       geom.stops,
		}
		plan.Routes = append(plan.Routes, route)

		plan.TotalVehicles++
		plan.TotalDistance += route.Distance
		plan.TotalDuration += route.Duration
		plan.TotalPassengers += route.Passengers
	}
	plan.Degraded = degraded

	id, err := p.store.SavePlan(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("persisting plan: %w", err)
	}
	plan.ID = id

	log.Printf("plan %d created: %d routes, %d passengers, %.1f km",
		id, plan.TotalVehicles, plan.TotalPassengers, plan.TotalDistance/1000)

	return plan, nil
}

// loadEmployees fetches and filters employees to those with a usable home
// location
func (p *Planner) loadEmployees(ctx context.Context, shiftID *int64) ([]models.Employee, error) {
	employees, err := p.employees.Employees(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("loading employees: %w", err)
	}

	// fresh slice: the source may hand out its own backing array
	usable := make([]models.Employee, 0, len(employees))
	for _, e := range employees {
		if e.Home.Valid() && (e.Home.Lat != 0 || e.Home.Lng != 0) {
			usable = append(usable, e)
		}
	}
	if len(usable) == 0 {
		return nil, ErrNoEmployees
	}
	return usable, nil
}

// snapStops moves each stop onto the preferred nearby road and recomputes
// member walking distances against the snapped position
func (p *Planner) snapStops(ctx context.Context, stops []models.Stop, homes map[int64]models.Coordinate) {
	points := make([]models.Coordinate, len(stops))
	for i, s := range stops {
		points[i] = s.Location
	}

	results := p.roads.SnapAll(ctx, points)
	for i := range stops {
		r := results[i]
		if !r.Valid {
			continue
		}
		original := stops[i].Location
		stops[i].OriginalLocation = &original
		stops[i].Location = r.Snapped
		stops[i].RoadName = r.RoadName
		recomputeWalks(&stops[i], homes)
	}
}

// recomputeWalks rebuilds per-member walking distances to the stop's
// current location
func recomputeWalks(stop *models.Stop, homes map[int64]models.Coordinate) {
	walks := make([]models.MemberWalk, 0, len(stop.EmployeeIDs))
	maxWalk := 0.0
	for _, id := range stop.EmployeeIDs {
		home, ok := homes[id]
		if !ok {
			continue
		}
		d := geo.Distance(home, stop.Location)
		if d > maxWalk {
			maxWalk = d
		}
		walks = append(walks, models.MemberWalk{EmployeeID: id, WalkingDistance: d})
	}
	stop.Walks = walks
	stop.MaxWalk = maxWalk
}

func fillNames(stops []models.Stop, names map[int64]string) {
	for i := range stops {
		stopNames := make([]string, 0, len(stops[i].EmployeeIDs))
		for _, id := range stops[i].EmployeeIDs {
			stopNames = append(stopNames, names[id])
		}
		stops[i].EmployeeNames = stopNames
	}
}

// integerMatrices rounds the table to integers, scaling durations by the
// traffic factor so the solver's bound and matrix share units
func integerMatrices(table osrm.TableResult, factor float64) ([][]int64, [][]int64) {
	n := len(table.Distances)
	distances := make([][]int64, n)
	durations := make([][]int64, n)
	for i := 0; i < n; i++ {
		distances[i] = make([]int64, n)
		durations[i] = make([]int64, n)
		for j := 0; j < n; j++ {
			distances[i][j] = int64(math.Round(table.Distances[i][j]))
			durations[i][j] = int64(math.Round(table.Durations[i][j] * factor))
		}
	}
	return distances, durations
}
