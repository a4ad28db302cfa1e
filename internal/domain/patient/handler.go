package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cardicare/cardicare/internal/platform/auth"
	"github.com/cardicare/cardicare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/patients/:id/dashboard", h.GetDashboard)
	read.GET("/patients/:id/observations/:feature", h.GetSeries)
}

// ListPatients pages through patient banners, or runs a search when q is set.
func (h *Handler) ListPatients(c echo.Context) error {
	ctx := c.Request().Context()
	if q := c.QueryParam("q"); q != "" {
		items, err := h.svc.Search(ctx, q)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if items == nil {
			items = []Demographics{}
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, len(items), len(items), 0))
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Path()))
}

func (h *Handler) GetPatient(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), c.Param("id"))
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetSeries(c echo.Context) error {
	f, ok := ParseFeature(c.Param("feature"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown feature: "+c.Param("feature"))
	}
	s, err := h.svc.SeriesFor(c.Request().Context(), c.Param("id"), f)
	if err != nil {
		return lookupError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func lookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
