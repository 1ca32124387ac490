package geo

import (
	"testing"

	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name     string
		lat1     float64
		lng1     float64
		lat2     float64
		lng2     float64
		expected float64
		delta    float64
	}{
		{
			name:     "Zero distance",
			lat1:     41.0082,
			lng1:     28.9784,
			lat2:     41.0082,
			lng2:     28.9784,
			expected: 0,
			delta:    1,
		},
		{
			name:     "Approximately 1km north",
			lat1:     41.0082,
			lng1:     28.9784,
			lat2:     41.0172,
			lng2:     28.9784,
			expected: 1000,
			delta:    100,
		},
		{
			name:     "Bosphorus crossing roughly 2km",
			lat1:     41.0450,
			lng1:     29.0030,
			lat2:     41.0450,
			lng2:     29.0270,
			expected: 2017,
			delta:    150,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Haversine(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.expected, result, tt.delta)
		})
	}
}

func TestCentroid(t *testing.T) {
	t.Run("Empty input", func(t *testing.T) {
		c := Centroid(nil)
		assert.Equal(t, models.Coordinate{}, c)
	})

	t.Run("Mean of points", func(t *testing.T) {
		c := Centroid([]models.Coordinate{
			{Lat: 41.0, Lng: 29.0},
			{Lat: 41.2, Lng: 29.4},
		})
		assert.InDelta(t, 41.1, c.Lat, 1e-9)
		assert.InDelta(t, 29.2, c.Lng, 1e-9)
	})
}

func TestDistanceMatrix(t *testing.T) {
	points := []models.Coordinate{
		{Lat: 41.000, Lng: 29.000},
		{Lat: 41.010, Lng: 29.000},
		{Lat: 41.020, Lng: 29.000},
	}

	m := DistanceMatrix(points)

	assert.Len(t, m, 3)
	for i := 0; i < 3; i++ {
		assert.Zero(t, m[i][i])
		for j := 0; j < 3; j++ {
			assert.Equal(t, m[i][j], m[j][i])
		}
	}
	// ~1.1km per 0.01 degree of latitude
	assert.InDelta(t, 1112, m[0][1], 50)
	assert.InDelta(t, 2224, m[0][2], 100)
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, models.Coordinate{Lat: 41.0, Lng: 29.0}.Valid())
	assert.False(t, models.Coordinate{Lat: 95.0, Lng: 29.0}.Valid())
	assert.False(t, models.Coordinate{Lat: 41.0, Lng: 200.0}.Valid())
}
