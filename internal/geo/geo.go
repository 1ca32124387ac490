package geo

import (
	"math"

	"github.com/rotaplan/rotaplan_core/internal/models"
)

const earthRadius = 6371000 // meters

// Haversine calculates the great-circle distance between two points in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Distance is Haversine over Coordinate values
func Distance(a, b models.Coordinate) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Centroid returns the arithmetic mean of the points. Fine at neighborhood
// scale; do not use across the antimeridian.
func Centroid(points []models.Coordinate) models.Coordinate {
	if len(points) == 0 {
		return models.Coordinate{}
	}
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}
	n := float64(len(points))
	return models.Coordinate{Lat: sumLat / n, Lng: sumLng / n}
}

// DistanceMatrix builds the full pairwise geodesic distance matrix in meters
func DistanceMatrix(points []models.Coordinate) [][]float64 {
	n := len(points)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Distance(points[i], points[j])
			matrix[i][j] = d
			matrix[j][i] = d
		}
	}
	return matrix
}
