package cluster

import (
	"math"
	"math/rand"

	"github.com/rotaplan/rotaplan_core/internal/models"
)

const (
	kmeansSeed     = 42
	kmeansRestarts = 10
	kmeansMaxIter  = 300
)

// kmeans clusters raw (lat, lng) points into k groups. Runs kmeansRestarts
// restarts from a fixed-seed RNG and keeps the assignment with the lowest
// inertia, so results are reproducible across runs.
func kmeans(points []models.Coordinate, k int) ([]int, []models.Coordinate) {
	n := len(points)
	if k >= n {
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i
		}
		return labels, append([]models.Coordinate(nil), points...)
	}

	rng := rand.New(rand.NewSource(kmeansSeed))

	var bestLabels []int
	var bestCentroids []models.Coordinate
	bestInertia := math.Inf(1)

	for restart := 0; restart < kmeansRestarts; restart++ {
		centroids := initialCentroids(points, k, rng)
		labels := make([]int, n)

		for iter := 0; iter < kmeansMaxIter; iter++ {
			changed := false
			for i, p := range points {
				best := nearestCentroid(p, centroids)
				if labels[i] != best {
					labels[i] = best
					changed = true
				}
			}

			centroids = recomputeCentroids(points, labels, centroids)

			if !changed && iter > 0 {
				break
			}
		}

		inertia := 0.0
		for i, p := range points {
			inertia += sqEuclid(p, centroids[labels[i]])
		}
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
			bestCentroids = centroids
		}
	}

	return bestLabels, bestCentroids
}

// initialCentroids picks k distinct points as seeds
func initialCentroids(points []models.Coordinate, k int, rng *rand.Rand) []models.Coordinate {
	perm := rng.Perm(len(points))
	centroids := make([]models.Coordinate, k)
	for i := 0; i < k; i++ {
		centroids[i] = points[perm[i]]
	}
	return centroids
}

func nearestCentroid(p models.Coordinate, centroids []models.Coordinate) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := sqEuclid(p, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// recomputeCentroids moves each centroid to the mean of its members. A
// centroid that lost all members keeps its previous position.
func recomputeCentroids(points []models.Coordinate, labels []int, prev []models.Coordinate) []models.Coordinate {
	k := len(prev)
	sumLat := make([]float64, k)
	sumLng := make([]float64, k)
	counts := make([]int, k)

	for i, p := range points {
		l := labels[i]
		sumLat[l] += p.Lat
		sumLng[l] += p.Lng
		counts[l]++
	}

	centroids := make([]models.Coordinate, k)
	for i := 0; i < k; i++ {
		if counts[i] == 0 {
			centroids[i] = prev[i]
			continue
		}
		centroids[i] = models.Coordinate{
			Lat: sumLat[i] / float64(counts[i]),
			Lng: sumLng[i] / float64(counts[i]),
		}
	}
	return centroids
}

// sqEuclid is squared euclidean distance in degree space, good enough for
// assignment decisions at city scale
func sqEuclid(a, b models.Coordinate) float64 {
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	return dLat*dLat + dLng*dLng
}
