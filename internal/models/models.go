package models

import "time"

// TrafficMode selects the congestion profile applied to travel durations
type TrafficMode string

const (
	TrafficNone    TrafficMode = "none"
	TrafficMorning TrafficMode = "morning"
	TrafficEvening TrafficMode = "evening"
)

// TrafficFactors maps each traffic mode to its duration multiplier
var TrafficFactors = map[TrafficMode]float64{
	TrafficNone:    1.0,
	TrafficMorning: 1.4,
	TrafficEvening: 1.6,
}

// Factor returns the duration multiplier for the mode (1.0 for unknown modes)
func (m TrafficMode) Factor() float64 {
	if f, ok := TrafficFactors[m]; ok {
		return f
	}
	return 1.0
}

// RouteType describes the shape of a shuttle route relative to the depot
type RouteType string

const (
	RouteRing    RouteType = "ring"     // depot -> stops -> depot
	RouteToHome  RouteType = "to_home"  // depot -> stops (evening drop-off)
	RouteToDepot RouteType = "to_depot" // stops -> depot (morning pickup)
)

// VehiclePriority controls which vehicle class the solver fills first
type VehiclePriority string

const (
	PrioritySmall VehiclePriority = "small"
	PriorityLarge VehiclePriority = "large"
	PriorityAuto  VehiclePriority = "auto"
)

// Coordinate is a WGS84 point
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate is within WGS84 bounds
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Employee is a rider with a fixed home location. The planner only reads
// employees; mutation happens elsewhere.
type Employee struct {
	ID      int64      `json:"id"`
	Name    string     `json:"name"`
	Home    Coordinate `json:"home_location"`
	Address string     `json:"address,omitempty"`
	ShiftID *int64     `json:"shift_id,omitempty"`
}

// Shift is a work shift used only to filter employees
type Shift struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Color     string  `json:"color,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// MemberWalk records one employee's walking distance to their stop
type MemberWalk struct {
	EmployeeID      int64   `json:"employee_id"`
	WalkingDistance float64 `json:"walking_distance"` // meters
}

// Stop is a clustered pickup/dropoff point aggregating one or more employees.
// Individual marks a stop synthesized for a single outlier employee; its walk
// distance is zero by construction.
type Stop struct {
	ClusterID        int          `json:"cluster_id"`
	Location         Coordinate   `json:"location"`
	OriginalLocation *Coordinate  `json:"original_location,omitempty"` // pre-snap centroid
	EmployeeIDs      []int64      `json:"employee_ids"`
	EmployeeNames    []string     `json:"employee_names,omitempty"`
	Walks            []MemberWalk `json:"employee_walking_distances,omitempty"`
	MaxWalk          float64      `json:"max_walking_distance"`
	RoadName         string       `json:"road_name,omitempty"`
	Individual       bool         `json:"is_individual_stop,omitempty"`

	// Set during geometry enrichment, depending on route type.
	DistanceToDepot   float64 `json:"distance_to_depot,omitempty"`
	DurationToDepot   float64 `json:"duration_to_depot,omitempty"`
	DistanceFromDepot float64 `json:"distance_from_depot,omitempty"`
	DurationFromDepot float64 `json:"duration_from_depot,omitempty"`
}

// PassengerCount returns the number of employees boarding at this stop
func (s *Stop) PassengerCount() int {
	return len(s.EmployeeIDs)
}

// PlanConfig carries every tunable of one plan run. Zero values are replaced
// by defaults in ApplyDefaults.
type PlanConfig struct {
	Name            string          `json:"name"`
	Depot           Coordinate      `json:"depot_location"`
	MaxWalkingM     int             `json:"max_walking_distance"` // clustering eps and snap acceptance
	NumSmall        int             `json:"num_small"`
	NumLarge        int             `json:"num_large"`
	SmallCapacity   int             `json:"small_capacity"`
	LargeCapacity   int             `json:"large_capacity"`
	BufferSeats     int             `json:"buffer_seats"`
	MaxTravelMin    int             `json:"max_travel_time"` // per-route soft bound, minutes
	VehiclePriority VehiclePriority `json:"vehicle_priority"`
	TrafficMode     TrafficMode     `json:"traffic_mode"`
	ExcludeTolls    bool            `json:"exclude_tolls"`
	RouteType       RouteType       `json:"route_type"`
	ShiftID         *int64          `json:"shift_id"`
}

// ApplyDefaults fills unset fields with the documented defaults
func (c *PlanConfig) ApplyDefaults() {
	if c.MaxWalkingM == 0 {
		c.MaxWalkingM = 200
	}
	if c.NumSmall == 0 && c.NumLarge == 0 {
		c.NumSmall = 5
		c.NumLarge = 5
	}
	if c.SmallCapacity == 0 {
		c.SmallCapacity = 16
	}
	if c.LargeCapacity == 0 {
		c.LargeCapacity = 27
	}
	if c.MaxTravelMin == 0 {
		c.MaxTravelMin = 65
	}
	if c.VehiclePriority == "" {
		c.VehiclePriority = PriorityAuto
	}
	if c.TrafficMode == "" {
		c.TrafficMode = TrafficNone
	}
	if c.RouteType == "" {
		c.RouteType = RouteRing
	}
}

// Plan is a persisted optimization result with its config snapshot and totals
type Plan struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	TotalVehicles   int             `json:"total_vehicles"`
	TotalDistance   float64         `json:"total_distance"` // meters
	TotalDuration   float64         `json:"total_duration"` // seconds, traffic-scaled
	TotalPassengers int             `json:"total_passengers"`
	MaxWalkingM     int             `json:"max_walking_distance"`
	Depot           Coordinate      `json:"depot_location"`
	TrafficMode     TrafficMode     `json:"traffic_mode"`
	BufferSeats     int             `json:"buffer_seats"`
	VehiclePriority VehiclePriority `json:"vehicle_priority"`
	MaxTravelMin    int             `json:"max_travel_time"`
	NumSmall        int             `json:"num_small"`
	NumLarge        int             `json:"num_large"`
	ShiftID         *int64          `json:"shift_id,omitempty"`
	ShiftName       string          `json:"shift_name,omitempty"`
	RouteType       RouteType       `json:"route_type"`
	ExcludeTolls    bool            `json:"exclude_tolls"`
	Degraded        bool            `json:"degraded"` // computed with fallback routing data
	Routes          []PlanRoute     `json:"routes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PlanRoute is one vehicle's route within a plan. Polyline and Stops are
// denormalized so later employee edits do not rewrite history.
type PlanRoute struct {
	ID          int64        `json:"id"`
	PlanID      int64        `json:"plan_id"`
	VehicleID   int          `json:"vehicle_id"`
	VehicleType string       `json:"vehicle_type"`
	Capacity    int          `json:"capacity"`
	Passengers  int          `json:"passengers"`
	Distance    float64      `json:"distance"` // meters
	Duration    float64      `json:"duration"` // seconds, traffic-scaled
	Polyline    []Coordinate `json:"polyline"`
	Stops       []Stop       `json:"stops"`
	CreatedAt   time.Time    `json:"created_at"`
}
