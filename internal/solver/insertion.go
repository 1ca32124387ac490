package solver

import "math"

// cheapestInsertion builds an initial solution by repeatedly making the
// globally cheapest feasible insertion across all vehicles and positions.
// All routes grow in parallel, so the construction naturally balances load
// while the fixed costs steer nodes into priority vehicles first. Returns
// false when some node cannot be placed in any vehicle.
func cheapestInsertion(e *evaluator) ([][]int, bool) {
	routes := make([][]int, len(e.p.Capacities))

	unassigned := make([]int, 0, len(e.p.Demands)-1)
	for node := range e.p.Demands {
		if node != e.p.Depot {
			unassigned = append(unassigned, node)
		}
	}

	for len(unassigned) > 0 {
		bestDelta := int64(math.MaxInt64)
		bestNode, bestVehicle, bestPos := -1, -1, -1

		for _, node := range unassigned {
			demand := e.p.Demands[node]
			for v, route := range routes {
				if !e.fits(v, route, demand) {
					continue
				}
				for pos := 0; pos <= len(route); pos++ {
					delta := e.insertionDelta(v, route, node, pos)
					if delta < bestDelta {
						bestDelta = delta
						bestNode, bestVehicle, bestPos = node, v, pos
					}
				}
			}
		}

		if bestNode == -1 {
			return nil, false
		}

		routes[bestVehicle] = insertAt(routes[bestVehicle], bestNode, bestPos)
		unassigned = removeValue(unassigned, bestNode)
	}

	return routes, true
}

// insertionDelta is the true-objective increase of inserting node at pos in
// the given vehicle's route, including the fixed cost of opening an unused
// vehicle and any change in overtime penalty
func (e *evaluator) insertionDelta(vehicle int, route []int, node, pos int) int64 {
	depot := e.p.Depot

	prev, next := depot, depot
	if pos > 0 {
		prev = route[pos-1]
	}
	if pos < len(route) {
		next = route[pos]
	}

	delta := e.p.Distances[prev][node] + e.p.Distances[node][next] - e.p.Distances[prev][next]
	if len(route) == 0 {
		delta += e.fixedCost(vehicle)
	}

	if e.p.MaxRouteDuration > 0 {
		before := e.overtime(route)
		after := e.overtimeWithInsert(route, node, pos)
		delta += after - before
	}

	return delta
}

// overtimeWithInsert computes the overtime penalty of route with node
// inserted at pos, without materializing the new slice
func (e *evaluator) overtimeWithInsert(route []int, node, pos int) int64 {
	depot := e.p.Depot
	prev, next := depot, depot
	if pos > 0 {
		prev = route[pos-1]
	}
	if pos < len(route) {
		next = route[pos]
	}

	dur := e.routeDuration(route)
	if len(route) == 0 {
		dur = e.p.Durations[depot][node] + e.p.Durations[node][depot]
	} else {
		dur += e.p.Durations[prev][node] + e.p.Durations[node][next] - e.p.Durations[prev][next]
	}

	over := dur - e.p.MaxRouteDuration
	if over <= 0 {
		return 0
	}
	return over * overtimePenalty
}

func insertAt(route []int, node, pos int) []int {
	route = append(route, 0)
	copy(route[pos+1:], route[pos:])
	route[pos] = node
	return route
}

func removeValue(nodes []int, value int) []int {
	for i, n := range nodes {
		if n == value {
			return append(nodes[:i], nodes[i+1:]...)
		}
	}
	return nodes
}
