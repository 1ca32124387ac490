package solver

import "github.com/rotaplan/rotaplan_core/internal/models"

// Vehicle is one fleet member in solver ordering
type Vehicle struct {
	Type     string // "small" or "large"
	Capacity int    // seats after buffer reduction
}

// Fleet is the ordered vehicle list handed to the solver. The first
// PriorityCount vehicles carry the lower fixed cost.
type Fleet struct {
	Vehicles      []Vehicle
	PriorityCount int
}

// Capacities returns the capacity vector in solver order
func (f Fleet) Capacities() []int64 {
	caps := make([]int64, len(f.Vehicles))
	for i, v := range f.Vehicles {
		caps[i] = int64(v.Capacity)
	}
	return caps
}

// BuildFleet orders the configured vehicles by priority and applies the
// buffer-seat reduction. small priority puts small vehicles first with the
// reduced fixed cost; large does the same for large; auto orders large
// first but marks every vehicle as priority, letting capacity decide.
func BuildFleet(cfg models.PlanConfig) Fleet {
	small := usableCapacity(cfg.SmallCapacity, cfg.BufferSeats)
	large := usableCapacity(cfg.LargeCapacity, cfg.BufferSeats)

	smallVehicles := repeatVehicle("small", small, cfg.NumSmall)
	largeVehicles := repeatVehicle("large", large, cfg.NumLarge)

	switch cfg.VehiclePriority {
	case models.PrioritySmall:
		return Fleet{
			Vehicles:      append(smallVehicles, largeVehicles...),
			PriorityCount: len(smallVehicles),
		}
	case models.PriorityLarge:
		return Fleet{
			Vehicles:      append(largeVehicles, smallVehicles...),
			PriorityCount: len(largeVehicles),
		}
	default:
		// auto: all vehicles share the priority cost, larger ones listed
		// first so equal-cost ties resolve toward fewer vehicles
		return Fleet{
			Vehicles:      append(largeVehicles, smallVehicles...),
			PriorityCount: 0,
		}
	}
}

// Enlarge grows the fleet configuration for a solver retry. The class that
// grows follows the configured priority so escalation reinforces the
// operator's preference.
func Enlarge(cfg models.PlanConfig) models.PlanConfig {
	switch cfg.VehiclePriority {
	case models.PrioritySmall:
		cfg.NumSmall += 2
	case models.PriorityLarge:
		cfg.NumLarge += 2
	default:
		cfg.NumSmall++
		cfg.NumLarge++
	}
	return cfg
}

// usableCapacity subtracts buffer seats, never dropping below one seat
func usableCapacity(capacity, buffer int) int {
	usable := capacity - buffer
	if usable < 1 {
		usable = 1
	}
	return usable
}

func repeatVehicle(vtype string, capacity, count int) []Vehicle {
	if count <= 0 {
		return nil
	}
	vehicles := make([]Vehicle, count)
	for i := range vehicles {
		vehicles[i] = Vehicle{Type: vtype, Capacity: capacity}
	}
	return vehicles
}
