package cluster

// noise is the label assigned to points that belong to no cluster
const noise = -1

// dbscan runs density-based clustering over a precomputed distance matrix.
// eps is in the same unit as the matrix (meters here), minPts is the minimum
// neighborhood size for a core point. Returns one label per point; noise
// points get -1. Deterministic for a fixed input order.
func dbscan(dist [][]float64, eps float64, minPts int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noise
	}
	visited := make([]bool, n)

	clusterID := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(dist, i, eps)
		if len(neighbors) < minPts {
			continue // stays noise unless reached from a core point later
		}

		labels[i] = clusterID
		expandCluster(dist, labels, visited, neighbors, clusterID, eps, minPts)
		clusterID++
	}

	return labels
}

// expandCluster grows a cluster from the seed neighborhood, absorbing every
// density-reachable point
func expandCluster(dist [][]float64, labels []int, visited []bool, seeds []int, clusterID int, eps float64, minPts int) {
	for k := 0; k < len(seeds); k++ {
		j := seeds[k]

		if !visited[j] {
			visited[j] = true
			neighbors := regionQuery(dist, j, eps)
			if len(neighbors) >= minPts {
				seeds = append(seeds, neighbors...)
			}
		}

		if labels[j] == noise {
			labels[j] = clusterID
		}
	}
}

// regionQuery returns the indices within eps of point i, including i itself
func regionQuery(dist [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j := range dist[i] {
		if dist[i][j] <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
