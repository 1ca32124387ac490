package solver

import "time"

// stagnationLimit is how many penalization rounds without a true-objective
// improvement the search tolerates before declaring convergence
const stagnationLimit = 30

// guidedLocalSearch refines routes until the deadline. Each round descends
// to a local optimum of the augmented objective, then penalizes the most
// expensive arcs of the local optimum so the next descent explores around
// them. The best solution by true objective is kept throughout. The second
// return value reports convergence before the deadline.
func guidedLocalSearch(e *evaluator, routes [][]int, deadline time.Time) ([][]int, bool) {
	best := cloneRoutes(routes)
	bestCost := e.cost(best)

	current := cloneRoutes(routes)
	stagnant := 0

	for {
		descend(e, current, deadline)

		if c := e.cost(current); c < bestCost {
			bestCost = c
			best = cloneRoutes(current)
			stagnant = 0
		} else {
			stagnant++
		}

		if stagnant >= stagnationLimit {
			return best, true
		}
		if !time.Now().Before(deadline) {
			return best, false
		}

		e.penalizeWorstArcs(current)
	}
}

// descend applies best-improvement moves (relocate, swap, intra-route
// 2-opt) on the augmented objective until none improves or the deadline
// passes
func descend(e *evaluator, routes [][]int, deadline time.Time) {
	for {
		if !time.Now().Before(deadline) {
			return
		}
		if !bestMove(e, routes) {
			return
		}
	}
}

// bestMove finds and applies the single best improving move; reports
// whether one was applied
func bestMove(e *evaluator, routes [][]int) bool {
	var bestDelta int64
	var apply func()

	consider := func(delta int64, fn func()) {
		if delta < bestDelta {
			bestDelta = delta
			apply = fn
		}
	}

	for a := range routes {
		for i := range routes[a] {
			relocateMoves(e, routes, a, i, consider)
			swapMoves(e, routes, a, i, consider)
		}
		twoOptMoves(e, routes, a, consider)
	}

	if apply == nil {
		return false
	}
	apply()
	return true
}

// augRouteCost is one route's contribution to the augmented objective
func (e *evaluator) augRouteCost(vehicle int, route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	return e.routeCost(vehicle, route) + e.penalizedDistance(route)
}

func relocateMoves(e *evaluator, routes [][]int, a, i int, consider func(int64, func())) {
	node := routes[a][i]
	demand := e.p.Demands[node]
	removed := without(routes[a], i)
	baseA := e.augRouteCost(a, routes[a])

	for b := range routes {
		if b == a {
			// reposition within the same route
			for pos := 0; pos <= len(removed); pos++ {
				if pos == i {
					continue
				}
				candidate := insertCopy(removed, node, pos)
				delta := e.augRouteCost(a, candidate) - baseA
				consider(delta, applyRelocate(routes, a, a, candidate, candidate))
			}
			continue
		}

		if !e.fits(b, routes[b], demand) {
			continue
		}
		baseB := e.augRouteCost(b, routes[b])
		for pos := 0; pos <= len(routes[b]); pos++ {
			candidateB := insertCopy(routes[b], node, pos)
			delta := e.augRouteCost(a, removed) + e.augRouteCost(b, candidateB) - baseA - baseB
			consider(delta, applyRelocate(routes, a, b, removed, candidateB))
		}
	}
}

func applyRelocate(routes [][]int, a, b int, newA, newB []int) func() {
	return func() {
		routes[a] = newA
		if b != a {
			routes[b] = newB
		}
	}
}

func swapMoves(e *evaluator, routes [][]int, a, i int, consider func(int64, func())) {
	nodeA := routes[a][i]
	baseA := e.augRouteCost(a, routes[a])

	for b := a + 1; b < len(routes); b++ {
		baseB := e.augRouteCost(b, routes[b])
		for j := range routes[b] {
			nodeB := routes[b][j]

			loadA := e.routeLoad(routes[a]) - e.p.Demands[nodeA] + e.p.Demands[nodeB]
			loadB := e.routeLoad(routes[b]) - e.p.Demands[nodeB] + e.p.Demands[nodeA]
			if loadA > e.p.Capacities[a] || loadB > e.p.Capacities[b] {
				continue
			}

			newA := replaceCopy(routes[a], i, nodeB)
			newB := replaceCopy(routes[b], j, nodeA)
			delta := e.augRouteCost(a, newA) + e.augRouteCost(b, newB) - baseA - baseB
			consider(delta, applyRelocate(routes, a, b, newA, newB))
		}
	}
}

func twoOptMoves(e *evaluator, routes [][]int, a int, consider func(int64, func())) {
	route := routes[a]
	if len(route) < 3 {
		return
	}
	base := e.augRouteCost(a, route)

	for i := 0; i < len(route)-1; i++ {
		for j := i + 1; j < len(route); j++ {
			candidate := reverseCopy(route, i, j)
			delta := e.augRouteCost(a, candidate) - base
			consider(delta, applyRelocate(routes, a, a, candidate, candidate))
		}
	}
}

// penalizeWorstArcs increments the penalty of every arc in the solution
// with maximal utility dist/(1+penalty)
func (e *evaluator) penalizeWorstArcs(routes [][]int) {
	type arc struct{ from, to int }
	var worst []arc
	var worstUtil float64

	visit := func(from, to int) {
		util := float64(e.p.Distances[from][to]) / float64(1+e.penalties[from][to])
		switch {
		case util > worstUtil:
			worstUtil = util
			worst = worst[:0]
			worst = append(worst, arc{from, to})
		case util == worstUtil:
			worst = append(worst, arc{from, to})
		}
	}

	for _, r := range routes {
		if len(r) == 0 {
			continue
		}
		visit(e.p.Depot, r[0])
		for i := 0; i < len(r)-1; i++ {
			visit(r[i], r[i+1])
		}
		visit(r[len(r)-1], e.p.Depot)
	}

	for _, a := range worst {
		e.penalties[a.from][a.to]++
	}
}

func cloneRoutes(routes [][]int) [][]int {
	out := make([][]int, len(routes))
	for i, r := range routes {
		out[i] = append([]int(nil), r...)
	}
	return out
}

func without(route []int, i int) []int {
	out := make([]int, 0, len(route)-1)
	out = append(out, route[:i]...)
	return append(out, route[i+1:]...)
}

func insertCopy(route []int, node, pos int) []int {
	out := make([]int, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, node)
	return append(out, route[pos:]...)
}

func replaceCopy(route []int, i, node int) []int {
	out := append([]int(nil), route...)
	out[i] = node
	return out
}

func reverseCopy(route []int, i, j int) []int {
	out := append([]int(nil), route...)
	for l, r := i, j; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}
