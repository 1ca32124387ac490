// Package repo implements the planner's persistence ports on PostgreSQL.
// Employee homes live in PostGIS geography columns; plan snapshots carry
// their routes as JSONB so they survive later employee edits.
package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rotaplan/rotaplan_core/internal/models"
)

// EmployeeRepo reads employees and shifts
type EmployeeRepo struct {
	pool *pgxpool.Pool
}

// NewEmployeeRepo creates an employee repository
func NewEmployeeRepo(pool *pgxpool.Pool) *EmployeeRepo {
	return &EmployeeRepo{pool: pool}
}

// Employees returns employees with a home location, optionally filtered by
// shift
func (r *EmployeeRepo) Employees(ctx context.Context, shiftID *int64) ([]models.Employee, error) {
	query := `
		SELECT id, name, ST_Y(home_location::geometry), ST_X(home_location::geometry),
		       COALESCE(address, ''), shift_id
		FROM employees
		WHERE home_location IS NOT NULL`
	args := []interface{}{}
	if shiftID != nil {
		query += ` AND shift_id = $1`
		args = append(args, *shiftID)
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Home.Lat, &e.Home.Lng, &e.Address, &e.ShiftID); err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// Employee returns a single employee by id
func (r *EmployeeRepo) Employee(ctx context.Context, id int64) (*models.Employee, error) {
	var e models.Employee
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, ST_Y(home_location::geometry), ST_X(home_location::geometry),
		       COALESCE(address, ''), shift_id
		FROM employees
		WHERE id = $1 AND home_location IS NOT NULL`, id).
		Scan(&e.ID, &e.Name, &e.Home.Lat, &e.Home.Lng, &e.Address, &e.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("loading employee %d: %w", id, err)
	}
	return &e, nil
}

// Shift returns a shift by id
func (r *EmployeeRepo) Shift(ctx context.Context, id int64) (*models.Shift, error) {
	var s models.Shift
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(color, ''), start_time::text, end_time::text
		FROM shifts
		WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Color, &s.StartTime, &s.EndTime)
	if err != nil {
		return nil, fmt.Errorf("loading shift %d: %w", id, err)
	}
	return &s, nil
}

// Shifts lists all shifts
func (r *EmployeeRepo) Shifts(ctx context.Context) ([]models.Shift, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(color, ''), start_time::text, end_time::text
		FROM shifts
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying shifts: %w", err)
	}
	defer rows.Close()

	var shifts []models.Shift
	for rows.Next() {
		var s models.Shift
		if err := rows.Scan(&s.ID, &s.Name, &s.Color, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("scanning shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}
