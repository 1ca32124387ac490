package cluster

import (
	"testing"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// three neighbors well within 200m of each other
func closeTrio() []Member {
	return []Member{
		{EmployeeID: 1, Location: models.Coordinate{Lat: 41.0000, Lng: 29.0000}},
		{EmployeeID: 2, Location: models.Coordinate{Lat: 41.0005, Lng: 29.0005}},
		{EmployeeID: 3, Location: models.Coordinate{Lat: 41.0010, Lng: 29.0000}},
	}
}

// memberIDs flattens the employee ids of all stops
func memberIDs(stops []models.Stop) []int64 {
	var ids []int64
	for _, s := range stops {
		ids = append(ids, s.EmployeeIDs...)
	}
	return ids
}

func TestDensityClusterTrio(t *testing.T) {
	engine := NewEngine(200)
	stops := engine.Cluster(closeTrio(), MethodDensity, 27)

	require.Len(t, stops, 1)
	assert.ElementsMatch(t, []int64{1, 2, 3}, stops[0].EmployeeIDs)
	assert.False(t, stops[0].Individual)
	assert.LessOrEqual(t, stops[0].MaxWalk, 200.0)
	assert.Len(t, stops[0].Walks, 3)
}

func TestDensityClusterAllOutliers(t *testing.T) {
	// 10 employees roughly 5km apart along a meridian
	var members []Member
	for i := 0; i < 10; i++ {
		members = append(members, Member{
			EmployeeID: int64(i + 1),
			Location:   models.Coordinate{Lat: 40.0 + float64(i)*0.045, Lng: 29.0},
		})
	}

	engine := NewEngine(200)
	stops := engine.Cluster(members, MethodDensity, 27)

	require.Len(t, stops, 10)
	for _, s := range stops {
		assert.True(t, s.Individual)
		assert.Len(t, s.EmployeeIDs, 1)
		assert.Zero(t, s.MaxWalk)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, memberIDs(stops))
}

func TestDensityClusterFourNeighborhoods(t *testing.T) {
	// 4 tight groups of 10, far apart from each other
	centers := []models.Coordinate{
		{Lat: 41.00, Lng: 29.00},
		{Lat: 41.05, Lng: 29.00},
		{Lat: 41.00, Lng: 29.06},
		{Lat: 41.05, Lng: 29.06},
	}
	var members []Member
	id := int64(1)
	for _, c := range centers {
		for i := 0; i < 10; i++ {
			members = append(members, Member{
				EmployeeID: id,
				Location: models.Coordinate{
					Lat: c.Lat + float64(i%5)*0.0002,
					Lng: c.Lng + float64(i/5)*0.0002,
				},
			})
			id++
		}
	}

	engine := NewEngine(150)
	stops := engine.Cluster(members, MethodDensity, 27)

	require.Len(t, stops, 4)
	for _, s := range stops {
		assert.Len(t, s.EmployeeIDs, 10)
		assert.LessOrEqual(t, s.MaxWalk, 150.0)
	}
	assert.Len(t, memberIDs(stops), 40)
}

func TestClusterPartitionInvariant(t *testing.T) {
	// mixed layout: one pair, one trio, two outliers
	members := []Member{
		{EmployeeID: 1, Location: models.Coordinate{Lat: 41.0000, Lng: 29.0000}},
		{EmployeeID: 2, Location: models.Coordinate{Lat: 41.0005, Lng: 29.0000}},
		{EmployeeID: 3, Location: models.Coordinate{Lat: 41.1000, Lng: 29.1000}},
		{EmployeeID: 4, Location: models.Coordinate{Lat: 41.1004, Lng: 29.1000}},
		{EmployeeID: 5, Location: models.Coordinate{Lat: 41.1008, Lng: 29.1000}},
		{EmployeeID: 6, Location: models.Coordinate{Lat: 41.5000, Lng: 29.5000}},
		{EmployeeID: 7, Location: models.Coordinate{Lat: 40.5000, Lng: 28.5000}},
	}

	for _, method := range []Method{MethodDensity, MethodCapacity} {
		t.Run(string(method), func(t *testing.T) {
			engine := NewEngine(200)
			stops := engine.Cluster(members, method, 27)

			assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7}, memberIDs(stops))
			for _, s := range stops {
				if !s.Individual {
					assert.LessOrEqual(t, s.MaxWalk, 200.0)
				}
			}
		})
	}
}

func TestClusterEdgeCases(t *testing.T) {
	engine := NewEngine(200)

	t.Run("Empty input", func(t *testing.T) {
		stops := engine.Cluster(nil, MethodDensity, 27)
		assert.Empty(t, stops)
	})

	t.Run("Single employee becomes individual stop", func(t *testing.T) {
		stops := engine.Cluster([]Member{
			{EmployeeID: 42, Location: models.Coordinate{Lat: 41.0, Lng: 29.0}},
		}, MethodDensity, 27)

		require.Len(t, stops, 1)
		assert.True(t, stops[0].Individual)
		assert.Equal(t, []int64{42}, stops[0].EmployeeIDs)
	})
}

func TestClusterDeterminism(t *testing.T) {
	members := closeTrio()
	members = append(members,
		Member{EmployeeID: 4, Location: models.Coordinate{Lat: 41.2000, Lng: 29.2000}},
		Member{EmployeeID: 5, Location: models.Coordinate{Lat: 41.2006, Lng: 29.2000}},
	)

	for _, method := range []Method{MethodDensity, MethodCapacity} {
		t.Run(string(method), func(t *testing.T) {
			engine := NewEngine(200)
			first := engine.Cluster(members, method, 27)
			second := engine.Cluster(members, method, 27)
			assert.Equal(t, first, second)
		})
	}
}

func TestStopCentroidIsMemberMean(t *testing.T) {
	members := closeTrio()
	engine := NewEngine(200)
	stops := engine.Cluster(members, MethodDensity, 27)

	require.Len(t, stops, 1)
	want := geo.Centroid([]models.Coordinate{
		members[0].Location, members[1].Location, members[2].Location,
	})
	assert.InDelta(t, want.Lat, stops[0].Location.Lat, 1e-9)
	assert.InDelta(t, want.Lng, stops[0].Location.Lng, 1e-9)
}

func TestDBSCANChainRespectsWalkingBound(t *testing.T) {
	// a chain of points 150m apart: all density-reachable with eps=200, but
	// the chain ends sit farther than the cap from the centroid
	var members []Member
	for i := 0; i < 6; i++ {
		members = append(members, Member{
			EmployeeID: int64(i + 1),
			Location:   models.Coordinate{Lat: 41.0 + float64(i)*0.00135, Lng: 29.0},
		})
	}

	engine := NewEngine(200)
	stops := engine.Cluster(members, MethodDensity, 27)

	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6}, memberIDs(stops))
	for _, s := range stops {
		if !s.Individual {
			assert.LessOrEqual(t, s.MaxWalk, 200.0)
		}
	}
}
