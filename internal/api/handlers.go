// Package api exposes the plan pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rotaplan/rotaplan_core/internal/cache"
	"github.com/rotaplan/rotaplan_core/internal/db"
	"github.com/rotaplan/rotaplan_core/internal/models"
	"github.com/rotaplan/rotaplan_core/internal/planner"
	"github.com/rotaplan/rotaplan_core/internal/repo"
)

// ShiftSource lists the work shifts offered in the plan form
type ShiftSource interface {
	Shifts(ctx context.Context) ([]models.Shift, error)
}

// Handlers bundles the request handlers with their collaborators
type Handlers struct {
	planner *planner.Planner
	editor  *planner.Editor
	plans   *repo.PlanRepo
	shifts  ShiftSource
	pool    *pgxpool.Pool
	cache   *cache.Cache
}

// NewHandlers creates the handler set
func NewHandlers(p *planner.Planner, e *planner.Editor, plans *repo.PlanRepo, shifts ShiftSource, pool *pgxpool.Pool, c *cache.Cache) *Handlers {
	return &Handlers{planner: p, editor: e, plans: plans, shifts: shifts, pool: pool, cache: c}
}

// Health reports database, PostGIS and Redis status
func (h *Handlers) Health(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}
	code := fiber.StatusOK

	if err := db.HealthCheck(c.Context(), h.pool); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		code = fiber.StatusServiceUnavailable
	}
	if h.cache != nil {
		if err := h.cache.HealthCheck(c.Context()); err != nil {
			status["status"] = "degraded"
			status["redis"] = err.Error()
		}
	}
	return c.Status(code).JSON(status)
}

// CreatePlan runs the full optimization pipeline and persists the result
func (h *Handlers) CreatePlan(c *fiber.Ctx) error {
	var cfg models.PlanConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body: " + err.Error(),
		})
	}

	plan, err := h.planner.CreatePlan(c.Context(), cfg)
	if err != nil {
		return planError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// ListPlans returns all plans without route detail
func (h *Handlers) ListPlans(c *fiber.Ctx) error {
	plans, err := h.plans.ListPlans(c.Context())
	if err != nil {
		log.Printf("listing plans failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list plans",
		})
	}
	if plans == nil {
		plans = []models.Plan{}
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// GetPlan returns one plan with its routes
func (h *Handlers) GetPlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid plan id"})
	}

	plan, err := h.plans.GetPlan(c.Context(), int64(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "plan not found"})
		}
		log.Printf("loading plan %d failed: %v", id, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load plan",
		})
	}
	return c.JSON(plan)
}

// DeletePlan removes a plan and its routes
func (h *Handlers) DeletePlan(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid plan id"})
	}

	if err := h.plans.DeletePlan(c.Context(), int64(id)); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListShifts returns all shifts for the plan creation form
func (h *Handlers) ListShifts(c *fiber.Ctx) error {
	shifts, err := h.shifts.Shifts(c.Context())
	if err != nil {
		log.Printf("listing shifts failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list shifts",
		})
	}
	if shifts == nil {
		shifts = []models.Shift{}
	}
	return c.JSON(fiber.Map{"shifts": shifts})
}

// moveRequest carries one or more stop relocations
type moveRequest struct {
	Moves []planner.StopMove `json:"moves"`
}

// MoveStops relocates stops on a route; commit controls persistence
func (h *Handlers) MoveStops(commit bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid route id"})
		}

		var req moveRequest
		if err := c.BodyParser(&req); err != nil || len(req.Moves) == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "body must contain a non-empty moves list",
			})
		}

		result, err := h.editor.MoveStops(c.Context(), int64(routeID), req.Moves, commit)
		if err != nil {
			return editError(c, err)
		}
		return c.JSON(result)
	}
}

// reorderRequest designates the stop that becomes the first pickup
type reorderRequest struct {
	FirstStopIndex int `json:"first_stop_index"`
}

// Reorder rotates a route's stop sequence
func (h *Handlers) Reorder(commit bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid route id"})
		}

		var req reorderRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		result, err := h.editor.Reorder(c.Context(), int64(routeID), req.FirstStopIndex, commit)
		if err != nil {
			return editError(c, err)
		}
		return c.JSON(result)
	}
}

// employeeRequest names the employee being added or removed
type employeeRequest struct {
	EmployeeID int64 `json:"employee_id"`
}

// AddEmployee puts an employee onto a route
func (h *Handlers) AddEmployee(commit bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid route id"})
		}

		var req employeeRequest
		if err := c.BodyParser(&req); err != nil || req.EmployeeID == 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "employee_id is required"})
		}

		result, err := h.editor.AddEmployee(c.Context(), int64(routeID), req.EmployeeID, commit)
		if err != nil {
			return editError(c, err)
		}
		return c.JSON(result)
	}
}

// RemoveEmployee drops an employee from a route
func (h *Handlers) RemoveEmployee(commit bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		routeID, err := c.ParamsInt("id")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid route id"})
		}
		employeeID, err := c.ParamsInt("employeeID")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid employee id"})
		}

		result, err := h.editor.RemoveEmployee(c.Context(), int64(routeID), int64(employeeID), commit)
		if err != nil {
			return editError(c, err)
		}
		return c.JSON(result)
	}
}

// planError maps plan-creation failures to HTTP status codes
func planError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, planner.ErrInvalidInput), errors.Is(err, planner.ErrNoEmployees):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, planner.ErrInfeasible):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("plan creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "plan creation failed",
		})
	}
}

// editError maps editor failures to HTTP status codes
func editError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, planner.ErrEmployeeOnRoute), errors.Is(err, planner.ErrCapacityFull):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "route not found"})
	default:
		log.Printf("edit failed: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
}
