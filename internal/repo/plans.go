package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rotaplan/rotaplan_core/internal/db"
	"github.com/rotaplan/rotaplan_core/internal/models"
)

// PlanRepo persists plans and their routes
type PlanRepo struct {
	pool *pgxpool.Pool
}

// NewPlanRepo creates a plan repository
func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

const planColumns = `id, name, total_vehicles, total_distance, total_duration,
	total_passengers, max_walking_distance, depot_lat, depot_lng, traffic_mode,
	buffer_seats, vehicle_priority, max_travel_time, num_small, num_large,
	shift_id, COALESCE(shift_name, ''), route_type, exclude_tolls, degraded, created_at`

// SavePlan inserts the plan and all its routes in one transaction and
// returns the new plan id. Nothing is visible on failure.
func (r *PlanRepo) SavePlan(ctx context.Context, plan *models.Plan) (int64, error) {
	var planID int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO plans (name, total_vehicles, total_distance, total_duration,
				total_passengers, max_walking_distance, depot_lat, depot_lng,
				traffic_mode, buffer_seats, vehicle_priority, max_travel_time,
				num_small, num_large, shift_id, shift_name, route_type,
				exclude_tolls, degraded)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			RETURNING id`,
			plan.Name, plan.TotalVehicles, plan.TotalDistance, plan.TotalDuration,
			plan.TotalPassengers, plan.MaxWalkingM, plan.Depot.Lat, plan.Depot.Lng,
			plan.TrafficMode, plan.BufferSeats, plan.VehiclePriority, plan.MaxTravelMin,
			plan.NumSmall, plan.NumLarge, plan.ShiftID, plan.ShiftName, plan.RouteType,
			plan.ExcludeTolls, plan.Degraded).
			Scan(&planID)
		if err != nil {
			return fmt.Errorf("inserting plan: %w", err)
		}

		for i := range plan.Routes {
			route := &plan.Routes[i]
			polyline, err := json.Marshal(route.Polyline)
			if err != nil {
				return fmt.Errorf("marshaling polyline: %w", err)
			}
			stops, err := json.Marshal(route.Stops)
			if err != nil {
				return fmt.Errorf("marshaling stops: %w", err)
			}

			err = tx.QueryRow(ctx, `
				INSERT INTO plan_routes (plan_id, vehicle_id, vehicle_type, capacity,
					passengers, distance, duration, polyline, stops)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
				RETURNING id`,
				planID, route.VehicleID, route.VehicleType, route.Capacity,
				route.Passengers, route.Distance, route.Duration, polyline, stops).
				Scan(&route.ID)
			if err != nil {
				return fmt.Errorf("inserting route %d: %w", route.VehicleID, err)
			}
			route.PlanID = planID
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return planID, nil
}

// GetPlan loads a plan with all its routes
func (r *PlanRepo) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id)
	plan, err := scanPlan(row)
	if err != nil {
		return nil, fmt.Errorf("loading plan %d: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, plan_id, vehicle_id, vehicle_type, capacity, passengers,
		       distance, duration, polyline, stops, created_at
		FROM plan_routes
		WHERE plan_id = $1
		ORDER BY vehicle_id`, id)
	if err != nil {
		return nil, fmt.Errorf("querying routes of plan %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		plan.Routes = append(plan.Routes, *route)
	}
	return plan, rows.Err()
}

// ListPlans returns all plans without their routes, newest first
func (r *PlanRepo) ListPlans(ctx context.Context) ([]models.Plan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// DeletePlan removes a plan; plan_routes cascade at the schema level
func (r *PlanRepo) DeletePlan(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting plan %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plan %d not found", id)
	}
	return nil
}

// GetRoute loads a single route with its stop detail
func (r *PlanRepo) GetRoute(ctx context.Context, routeID int64) (*models.PlanRoute, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, plan_id, vehicle_id, vehicle_type, capacity, passengers,
		       distance, duration, polyline, stops, created_at
		FROM plan_routes
		WHERE id = $1`, routeID)
	route, err := scanRoute(row)
	if err != nil {
		return nil, fmt.Errorf("loading route %d: %w", routeID, err)
	}
	return route, nil
}

// UpdateRoute rewrites the route row and recomputes the owning plan's
// totals from its routes, all in one transaction
func (r *PlanRepo) UpdateRoute(ctx context.Context, route *models.PlanRoute) error {
	polyline, err := json.Marshal(route.Polyline)
	if err != nil {
		return fmt.Errorf("marshaling polyline: %w", err)
	}
	stops, err := json.Marshal(route.Stops)
	if err != nil {
		return fmt.Errorf("marshaling stops: %w", err)
	}

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE plan_routes
			SET passengers = $1, distance = $2, duration = $3, polyline = $4, stops = $5
			WHERE id = $6`,
			route.Passengers, route.Distance, route.Duration, polyline, stops, route.ID)
		if err != nil {
			return fmt.Errorf("updating route %d: %w", route.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("route %d not found", route.ID)
		}

		_, err = tx.Exec(ctx, `
			UPDATE plans
			SET total_vehicles = agg.vehicles,
			    total_distance = agg.distance,
			    total_duration = agg.duration,
			    total_passengers = agg.passengers
			FROM (
				SELECT COUNT(*) AS vehicles,
				       COALESCE(SUM(distance), 0) AS distance,
				       COALESCE(SUM(duration), 0) AS duration,
				       COALESCE(SUM(passengers), 0) AS passengers
				FROM plan_routes
				WHERE plan_id = $1
			) AS agg
			WHERE plans.id = $1`, route.PlanID)
		if err != nil {
			return fmt.Errorf("recomputing totals of plan %d: %w", route.PlanID, err)
		}
		return nil
	})
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	err := row.Scan(&p.ID, &p.Name, &p.TotalVehicles, &p.TotalDistance,
		&p.TotalDuration, &p.TotalPassengers, &p.MaxWalkingM, &p.Depot.Lat,
		&p.Depot.Lng, &p.TrafficMode, &p.BufferSeats, &p.VehiclePriority,
		&p.MaxTravelMin, &p.NumSmall, &p.NumLarge, &p.ShiftID, &p.ShiftName,
		&p.RouteType, &p.ExcludeTolls, &p.Degraded, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanRoute(row rowScanner) (*models.PlanRoute, error) {
	var r models.PlanRoute
	var polyline, stops []byte
	err := row.Scan(&r.ID, &r.PlanID, &r.VehicleID, &r.VehicleType, &r.Capacity,
		&r.Passengers, &r.Distance, &r.Duration, &polyline, &stops, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning route: %w", err)
	}
	if err := json.Unmarshal(polyline, &r.Polyline); err != nil {
		return nil, fmt.Errorf("unmarshaling polyline: %w", err)
	}
	if err := json.Unmarshal(stops, &r.Stops); err != nil {
		return nil, fmt.Errorf("unmarshaling stops: %w", err)
	}
	return &r, nil
}
