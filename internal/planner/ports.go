// Package planner orchestrates plan creation end to end (cluster, snap,
// matrix, solve with fleet escalation, geometry, persist) and implements
// the interactive plan editor. Collaborators are passed in explicitly so
// the pipeline can be exercised against fakes.
package planner

import (
	"context"
	"errors"

	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/rotaplan/rotaplan_core/internal/osrm"
)

var (
	// ErrInvalidInput rejects a plan request before any work starts
	// (walking cap or depot out of range)
	ErrInvalidInput = errors.New("invalid plan input")
	// ErrNoEmployees means the employee query matched nobody with a valid
	// home location
	ErrNoEmployees = errors.New("no employees with valid home locations")
	// ErrInfeasible means the solver found no solution even after fleet
	// escalation
	ErrInfeasible = errors.New("time constraint infeasible")
	// ErrEmployeeOnRoute rejects adding an employee twice to one route
	ErrEmployeeOnRoute = errors.New("employee already on this route")
	// ErrCapacityFull rejects adding an employee to a full route
	ErrCapacityFull = errors.New("route is at capacity")
)

// EmployeeSource reads employees and shifts. The planner never writes them.
type EmployeeSource interface {
	Employees(ctx context.Context, shiftID *int64) ([]models.Employee, error)
	Employee(ctx context.Context, id int64) (*models.Employee, error)
	Shift(ctx context.Context, id int64) (*models.Shift, error)
}

// RoadNetwork is the routing-engine surface the planner needs. All methods
// degrade internally instead of failing; fallback results are marked.
type RoadNetwork interface {
	Table(ctx context.Context, points []models.Coordinate, excludeTolls bool) osrm.TableResult
	Route(ctx context.Context, points []models.Coordinate, excludeTolls bool) osrm.RouteResult
	SnapAll(ctx context.Context, points []models.Coordinate) []osrm.SnapResult
}

// PlanStore persists plans and routes. SavePlan and UpdateRoute are single
// transactions; a failed save leaves nothing behind.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *models.Plan) (int64, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
	DeletePlan(ctx context.Context, id int64) error
	GetRoute(ctx context.Context, routeID int64) (*models.PlanRoute, error)
	// UpdateRoute rewrites one route row and recomputes its plan's totals
	// in the same transaction
	UpdateRoute(ctx context.Context, route *models.PlanRoute) error
}
