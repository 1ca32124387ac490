package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotaplan/rotaplan_core/internal/models"
)

type fakeShifts struct {
	list []models.Shift
	err  error
}

func (f *fakeShifts) Shifts(_ context.Context) ([]models.Shift, error) {
	return f.list, f.err
}

func shiftsApp(shifts ShiftSource) *fiber.App {
	app := fiber.New()
	h := &Handlers{shifts: shifts}
	app.Get("/v1/shifts", h.ListShifts)
	return app
}

func TestListShifts(t *testing.T) {
	t.Run("Returns all shifts", func(t *testing.T) {
		app := shiftsApp(&fakeShifts{list: []models.Shift{
			{ID: 1, Name: "Gündüz"},
			{ID: 2, Name: "Gece"},
		}})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/shifts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var payload struct {
			Shifts []models.Shift `json:"shifts"`
		}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.Len(t, payload.Shifts, 2)
		assert.Equal(t, "Gündüz", payload.Shifts[0].Name)
	})

	t.Run("Empty table gives empty list, not null", func(t *testing.T) {
		app := shiftsApp(&fakeShifts{})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/shifts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"shifts": []}`, string(body))
	})

	t.Run("Query failure maps to 500", func(t *testing.T) {
		app := shiftsApp(&fakeShifts{err: errors.New("connection refused")})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/shifts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}
