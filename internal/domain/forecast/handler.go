package forecast

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/cardicare/cardicare/internal/platform/auth"
)

const defaultHorizon = 7

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	read.GET("/forecast/features", h.ListFeatures)
	read.GET("/patients/:id/forecast", h.GetForecast)
	read.GET("/patients/:id/forecast/all", h.GetAllForecasts)
}

func (h *Handler) ListFeatures(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"features": h.svc.Features()})
}

// GetForecast serves one feature. Diagnostics are returned in the body with
// a status that matches their cause.
func (h *Handler) GetForecast(c echo.Context) error {
	feature := c.QueryParam("feature")
	if feature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "feature is required")
	}
	days, err := horizonParam(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	res := h.svc.Forecast(ctx, Request{PatientID: c.Param("id"), Feature: feature, Horizon: days})
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return c.JSON(statusFor(res.Err()), res)
}

// GetAllForecasts serves every forecastable feature for one patient.
func (h *Handler) GetAllForecasts(c echo.Context) error {
	days, err := horizonParam(c)
	if err != nil {
		return err
	}
	id := c.Param("id")
	if _, ok := h.svc.dir.Lookup(id); !ok {
		return echo.NewHTTPError(http.StatusNotFound, DiagPatientNotFound)
	}
	if days < MinHorizon || days > MaxHorizon {
		return echo.NewHTTPError(http.StatusBadRequest, DiagHorizon)
	}
	results, err := h.svc.ForecastMany(c.Request().Context(), id, h.svc.Features(), days)
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"patient_id": id, "horizon": days, "forecasts": results})
}

func horizonParam(c echo.Context) (int, error) {
	raw := c.QueryParam("days")
	if raw == "" {
		return defaultHorizon, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "days must be an integer")
	}
	return days, nil
}

func statusFor(err error) int {
	var fitErr *FitError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrHorizon):
		return http.StatusBadRequest
	case errors.Is(err, ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientData), errors.As(err, &fitErr):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
