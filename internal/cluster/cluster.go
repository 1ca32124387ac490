// Package cluster groups employee home locations into candidate shuttle
// stops under a walking-distance cap.
package cluster

import (
	"log"
	"math"

	"github.com/rotaplan/rotaplan_core/internal/geo"
	"github.com/rotaplan/rotaplan_core/internal/models"
)

// Method selects the clustering algorithm
type Method string

const (
	// MethodDensity runs DBSCAN over the geodesic distance matrix with
	// eps = walking cap. Handles irregular cluster shapes and needs no
	// cluster count up front.
	MethodDensity Method = "density"
	// MethodCapacity estimates the cluster count from the largest vehicle
	// capacity and runs k-means, rejecting members beyond the walking cap.
	MethodCapacity Method = "capacity"
)

// individualClusterBase offsets cluster ids of synthesized single-member
// stops so they never collide with algorithm-assigned ids
const individualClusterBase = 1000

// Member is one employee position fed into clustering
type Member struct {
	EmployeeID int64
	Location   models.Coordinate
}

// Engine clusters members into stops whose riders all live within the
// walking cap of the stop centroid
type Engine struct {
	maxWalk float64 // meters
}

// NewEngine creates a clustering engine for the given walking cap in meters
func NewEngine(maxWalkM float64) *Engine {
	return &Engine{maxWalk: maxWalkM}
}

// Cluster runs the selected method and then refines the residual so every
// member ends up in exactly one stop. maxClusterSize only matters for
// MethodCapacity (pass the largest vehicle capacity).
func (e *Engine) Cluster(members []Member, method Method, maxClusterSize int) []models.Stop {
	var stops []models.Stop
	var residual []Member

	switch method {
	case MethodCapacity:
		stops, residual = e.capacityCluster(members, maxClusterSize)
	default:
		stops, residual = e.densityCluster(members)
	}

	return e.refine(stops, residual)
}

// densityCluster runs DBSCAN (eps = walking cap, min 2 members per stop)
// over the precomputed geodesic distance matrix. Noise points become the
// residual.
func (e *Engine) densityCluster(members []Member) ([]models.Stop, []Member) {
	if len(members) == 0 {
		return nil, nil
	}

	points := locations(members)
	dist := geo.DistanceMatrix(points)
	labels := dbscan(dist, e.maxWalk, 2)

	groups := make(map[int][]Member)
	order := []int{}
	var residual []Member

	for i, label := range labels {
		if label == noise {
			residual = append(residual, members[i])
			continue
		}
		if _, seen := groups[label]; !seen {
			order = append(order, label)
		}
		groups[label] = append(groups[label], members[i])
	}

	// DBSCAN clusters by reachability, so a chain of neighbors can stretch
	// past the walking cap. Members farther than the cap from the centroid
	// are ejected into the residual to keep the walking bound.
	stops := make([]models.Stop, 0, len(order))
	for _, label := range order {
		within, beyond := splitByCap(groups[label], e.maxWalk)
		residual = append(residual, beyond...)
		if len(within) > 0 {
			stops = append(stops, buildStop(label, within))
		}
	}

	log.Printf("density clustering: %d stops, %d unclustered from %d employees",
		len(stops), len(residual), len(members))

	return stops, residual
}

// splitByCap partitions a cluster by distance to its centroid
func splitByCap(group []Member, maxWalk float64) (within, beyond []Member) {
	centroid := geo.Centroid(locations(group))
	for _, m := range group {
		if geo.Distance(centroid, m.Location) <= maxWalk {
			within = append(within, m)
		} else {
			beyond = append(beyond, m)
		}
	}
	return within, beyond
}

// capacityCluster runs fixed-seed k-means with k derived from the largest
// vehicle capacity, then pushes members beyond the walking cap into the
// residual
func (e *Engine) capacityCluster(members []Member, maxClusterSize int) ([]models.Stop, []Member) {
	if len(members) == 0 {
		return nil, nil
	}
	if maxClusterSize <= 0 {
		maxClusterSize = 27
	}

	points := locations(members)
	k := int(math.Ceil(float64(len(members)) / float64(maxClusterSize)))
	if k < 2 {
		k = 2
	}
	if k > len(members) {
		k = len(members)
	}

	labels, centroids := kmeans(points, k)

	groups := make(map[int][]Member)
	order := []int{}
	var residual []Member

	for i, label := range labels {
		d := geo.Distance(points[i], centroids[label])
		if d > e.maxWalk {
			residual = append(residual, members[i])
			continue
		}
		if _, seen := groups[label]; !seen {
			order = append(order, label)
		}
		groups[label] = append(groups[label], members[i])
	}

	stops := make([]models.Stop, 0, len(order))
	for _, label := range order {
		stops = append(stops, buildStop(label, groups[label]))
	}

	log.Printf("capacity clustering: %d stops, %d unclustered from %d employees",
		len(stops), len(residual), len(members))

	return stops, residual
}

// refine attaches residual members to the first existing stop within the
// walking cap; anyone left becomes an individual stop at their own home
func (e *Engine) refine(stops []models.Stop, residual []Member) []models.Stop {
	var still []Member

	for _, m := range residual {
		attached := false
		for i := range stops {
			d := geo.Distance(m.Location, stops[i].Location)
			if d <= e.maxWalk {
				stops[i].EmployeeIDs = append(stops[i].EmployeeIDs, m.EmployeeID)
				stops[i].Walks = append(stops[i].Walks, models.MemberWalk{
					EmployeeID:      m.EmployeeID,
					WalkingDistance: d,
				})
				if d > stops[i].MaxWalk {
					stops[i].MaxWalk = d
				}
				attached = true
				break
			}
		}
		if !attached {
			still = append(still, m)
		}
	}

	for i, m := range still {
		stops = append(stops, models.Stop{
			ClusterID:   individualClusterBase + i,
			Location:    m.Location,
			EmployeeIDs: []int64{m.EmployeeID},
			Walks: []models.MemberWalk{
				{EmployeeID: m.EmployeeID, WalkingDistance: 0},
			},
			MaxWalk:    0,
			Individual: true,
		})
	}

	return stops
}

// buildStop computes the centroid and per-member walk distances for one group
func buildStop(clusterID int, group []Member) models.Stop {
	centroid := geo.Centroid(locations(group))

	ids := make([]int64, 0, len(group))
	walks := make([]models.MemberWalk, 0, len(group))
	maxWalk := 0.0
	for _, m := range group {
		d := geo.Distance(centroid, m.Location)
		if d > maxWalk {
			maxWalk = d
		}
		ids = append(ids, m.EmployeeID)
		walks = append(walks, models.MemberWalk{EmployeeID: m.EmployeeID, WalkingDistance: d})
	}

	return models.Stop{
		ClusterID:   clusterID,
		Location:    centroid,
		EmployeeIDs: ids,
		Walks:       walks,
		MaxWalk:     maxWalk,
	}
}

func locations(members []Member) []models.Coordinate {
	points := make([]models.Coordinate, len(members))
	for i, m := range members {
		points[i] = m.Location
	}
	return points
}
