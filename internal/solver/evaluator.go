package solver

import "errors"

var (
	errDimensions  = errors.New("matrix dimensions do not match demand vector")
	errDepotIndex  = errors.New("depot index out of range")
	errNoVehicles  = errors.New("empty fleet")
	errBadCapacity = errors.New("vehicle capacity must be positive")
)

// evaluator computes route costs against a problem instance. Routes are
// held internally as customer-node sequences without the depot endpoints.
type evaluator struct {
	p Problem
	// penalties are the guided-local-search arc penalties, indexed
	// [from][to]
	penalties [][]int64
	// lambda scales penalties into the augmented objective
	lambda int64
}

func newEvaluator(p Problem) *evaluator {
	n := len(p.Demands)
	penalties := make([][]int64, n)
	for i := range penalties {
		penalties[i] = make([]int64, n)
	}
	return &evaluator{p: p, penalties: penalties, lambda: avgArc(p.Distances) / 10}
}

// avgArc is the mean off-diagonal arc distance, used to scale penalties to
// the instance
func avgArc(dist [][]int64) int64 {
	var sum, count int64
	for i := range dist {
		for j := range dist[i] {
			if i == j {
				continue
			}
			sum += dist[i][j]
			count++
		}
	}
	if count == 0 {
		return 1
	}
	avg := sum / count
	if avg < 1 {
		return 1
	}
	return avg
}

func (e *evaluator) fixedCost(vehicle int) int64 {
	if e.p.PriorityCount == 0 || vehicle < e.p.PriorityCount {
		return priorityFixedCost
	}
	return standardFixedCost
}

func (e *evaluator) routeLoad(route []int) int64 {
	var load int64
	for _, node := range route {
		load += e.p.Demands[node]
	}
	return load
}

// routeDistance is depot -> route -> depot arc distance
func (e *evaluator) routeDistance(route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	d := e.p.Distances[e.p.Depot][route[0]]
	for i := 0; i < len(route)-1; i++ {
		d += e.p.Distances[route[i]][route[i+1]]
	}
	return d + e.p.Distances[route[len(route)-1]][e.p.Depot]
}

func (e *evaluator) routeDuration(route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	d := e.p.Durations[e.p.Depot][route[0]]
	for i := 0; i < len(route)-1; i++ {
		d += e.p.Durations[route[i]][route[i+1]]
	}
	return d + e.p.Durations[route[len(route)-1]][e.p.Depot]
}

// overtime is the soft duration-bound penalty for one route
func (e *evaluator) overtime(route []int) int64 {
	if e.p.MaxRouteDuration <= 0 {
		return 0
	}
	over := e.routeDuration(route) - e.p.MaxRouteDuration
	if over <= 0 {
		return 0
	}
	return over * overtimePenalty
}

// routeCost is the true objective contribution of one route on one vehicle
func (e *evaluator) routeCost(vehicle int, route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	return e.fixedCost(vehicle) + e.routeDistance(route) + e.overtime(route)
}

// cost is the true objective over all routes
func (e *evaluator) cost(routes [][]int) int64 {
	var total int64
	for v, r := range routes {
		total += e.routeCost(v, r)
	}
	return total
}

// penalizedDistance adds the scaled arc penalties along a route
func (e *evaluator) penalizedDistance(route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	d := e.penalties[e.p.Depot][route[0]]
	for i := 0; i < len(route)-1; i++ {
		d += e.penalties[route[i]][route[i+1]]
	}
	d += e.penalties[route[len(route)-1]][e.p.Depot]
	return d * e.lambda
}

// augmentedCost is the guided-local-search objective: true cost plus
// penalty terms that push the search away from overused arcs
func (e *evaluator) augmentedCost(routes [][]int) int64 {
	total := e.cost(routes)
	for _, r := range routes {
		total += e.penalizedDistance(r)
	}
	return total
}

// fits reports whether adding demand to a route on the given vehicle stays
// within capacity
func (e *evaluator) fits(vehicle int, route []int, extra int64) bool {
	return e.routeLoad(route)+extra <= e.p.Capacities[vehicle]
}
