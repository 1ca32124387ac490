// Package solver implements a capacitated vehicle routing solver with a
// heterogeneous fleet, vehicle fixed costs and a soft per-route duration
// bound. The search is a parallel cheapest-insertion construction refined
// by guided local search under a wall-clock budget.
package solver

import (
	"log"
	"time"
)

// Status classifies a solver outcome
type Status string

const (
	// StatusOptimal means the search converged before its budget ran out
	StatusOptimal Status = "optimal"
	// StatusFeasible means the budget expired while the search was still
	// improving
	StatusFeasible Status = "feasible"
	// StatusNoSolution means no assignment satisfies the capacity
	// constraints
	StatusNoSolution Status = "no_solution"
)

// Objective shaping. Priority vehicles are filled first because using a
// non-priority vehicle costs five times as much as using a priority one,
// and every second over the duration bound is penalized heavily enough to
// dominate any distance saving.
const (
	priorityFixedCost = 100_000
	standardFixedCost = 500_000
	overtimePenalty   = 10_000 // per second over the bound
)

// Problem is a CVRP instance. Matrices are indexed by node; Depot is the
// index of the depot row. Durations are expected to already carry any
// traffic scaling, with MaxRouteDuration expressed in the same scaled
// seconds.
type Problem struct {
	Distances [][]int64 // meters
	Durations [][]int64 // seconds
	Demands   []int64   // passengers per node, 0 at the depot
	// Capacities lists every vehicle in preference order, already reduced
	// by buffer seats
	Capacities []int64
	// PriorityCount marks the first P vehicles as preferred; 0 means all
	// vehicles are priority
	PriorityCount    int
	Depot            int
	MaxRouteDuration int64
	TimeBudget       time.Duration
}

// Solution is the per-vehicle routing. Routes[v] starts and ends at the
// depot; an unused vehicle gets an empty slice, never counted toward
// VehiclesUsed.
type Solution struct {
	Routes         [][]int
	RouteDistances []int64
	RouteLoads     []int64
	TotalDistance  int64
	VehiclesUsed   int
	Status         Status
}

// Solve runs the search. The time budget is a hard wall-clock limit on the
// improvement phase; construction always runs to completion. Deterministic
// for a fixed problem up to budget-dependent cutoff points.
func Solve(p Problem) Solution {
	if err := validate(p); err != nil {
		log.Printf("solver: rejecting instance: %v", err)
		return Solution{Status: StatusNoSolution}
	}

	if !capacitySuffices(p) {
		return Solution{Status: StatusNoSolution}
	}

	e := newEvaluator(p)
	deadline := time.Now().Add(p.TimeBudget)

	routes, ok := cheapestInsertion(e)
	if !ok {
		// demand fits the aggregate capacity but no per-vehicle packing was
		// found; with our fleet shapes this only happens on degenerate
		// instances, treat it as infeasible
		return Solution{Status: StatusNoSolution}
	}

	routes, converged := guidedLocalSearch(e, routes, deadline)

	return buildSolution(e, routes, converged)
}

func validate(p Problem) error {
	n := len(p.Demands)
	if n == 0 || len(p.Distances) != n || len(p.Durations) != n {
		return errDimensions
	}
	for i := range p.Distances {
		if len(p.Distances[i]) != n || len(p.Durations[i]) != n {
			return errDimensions
		}
	}
	if p.Depot < 0 || p.Depot >= n {
		return errDepotIndex
	}
	if len(p.Capacities) == 0 {
		return errNoVehicles
	}
	for _, c := range p.Capacities {
		if c <= 0 {
			return errBadCapacity
		}
	}
	return nil
}

// capacitySuffices checks the aggregate demand against the aggregate fleet
// capacity and each node against the largest vehicle
func capacitySuffices(p Problem) bool {
	var totalDemand, totalCap, maxCap int64
	for i, d := range p.Demands {
		if i == p.Depot {
			continue
		}
		totalDemand += d
	}
	for _, c := range p.Capacities {
		totalCap += c
		if c > maxCap {
			maxCap = c
		}
	}
	if totalDemand > totalCap {
		return false
	}
	for i, d := range p.Demands {
		if i != p.Depot && d > maxCap {
			return false
		}
	}
	return true
}

func buildSolution(e *evaluator, routes [][]int, converged bool) Solution {
	sol := Solution{
		Routes:         make([][]int, len(routes)),
		RouteDistances: make([]int64, len(routes)),
		RouteLoads:     make([]int64, len(routes)),
		Status:         StatusFeasible,
	}
	if converged {
		sol.Status = StatusOptimal
	}

	for v, r := range routes {
		if len(r) == 0 {
			sol.Routes[v] = []int{}
			continue
		}
		full := make([]int, 0, len(r)+2)
		full = append(full, e.p.Depot)
		full = append(full, r...)
		full = append(full, e.p.Depot)
		sol.Routes[v] = full

		sol.RouteDistances[v] = e.routeDistance(r)
		sol.RouteLoads[v] = e.routeLoad(r)
		sol.TotalDistance += sol.RouteDistances[v]
		sol.VehiclesUsed++
	}

	return sol
}
