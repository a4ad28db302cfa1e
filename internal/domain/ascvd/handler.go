package ascvd

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/cardicare/cardicare/internal/domain/patient"
	"github.com/cardicare/cardicare/internal/platform/auth"
	"github.com/cardicare/cardicare/internal/platform/fhir"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	read.POST("/ascvd/calculate", h.Calculate)
	read.GET("/patients/:id/ascvd", h.AssessPatient)

	fr := fhirGroup.Group("", auth.RequireRole("admin", "physician", "nurse"))
	fr.GET("/RiskAssessment", h.SearchRiskAssessmentsFHIR)
	fr.GET("/RiskAssessment/:patientID", h.GetRiskAssessmentFHIR)
}

// Calculate scores the posted covariates. Absent measurements are a 422;
// range and sex validation failures are part of the result body.
func (h *Handler) Calculate(c echo.Context) error {
	var req patient.RiskCovariates
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in, err := FromCovariates(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.JSON(http.StatusOK, h.svc.Calculate(in))
}

func (h *Handler) AssessPatient(c echo.Context) error {
	a, err := h.svc.AssessPatient(c.Request().Context(), c.Param("id"))
	if err != nil {
		var inErr *InputError
		switch {
		case errors.Is(err, patient.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.As(err, &inErr):
			return echo.NewHTTPError(http.StatusUnprocessableEntity, inErr.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

// GetRiskAssessmentFHIR computes the assessment on read; nothing is stored.
func (h *Handler) GetRiskAssessmentFHIR(c echo.Context) error {
	id := c.Param("patientID")
	a, err := h.svc.AssessPatient(c.Request().Context(), id)
	if err != nil {
		var inErr *InputError
		switch {
		case errors.Is(err, patient.ErrNotFound):
			return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome("Patient", id))
		case errors.As(err, &inErr):
			return c.JSON(http.StatusUnprocessableEntity, fhir.ErrorOutcome(inErr.Error()))
		}
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, a.ToFHIR())
}

// SearchRiskAssessmentsFHIR answers GET /fhir/RiskAssessment?patient=a,b with
// a searchset Bundle. Unknown patients and patients missing covariates are
// left out of the result.
func (h *Handler) SearchRiskAssessmentsFHIR(c echo.Context) error {
	param := c.QueryParam("patient")
	if param == "" {
		return c.JSON(http.StatusBadRequest, fhir.NewOperationOutcome("error", "required", "patient search parameter is required"))
	}

	var resources []map[string]interface{}
	for _, id := range strings.Split(param, ",") {
		id = strings.TrimPrefix(strings.TrimSpace(id), "Patient/")
		if id == "" {
			continue
		}
		a, err := h.svc.AssessPatient(c.Request().Context(), id)
		if err != nil {
			var inErr *InputError
			if errors.Is(err, patient.ErrNotFound) || errors.As(err, &inErr) {
				continue
			}
			return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
		}
		resources = append(resources, a.ToFHIR())
	}

	bundle, err := fhir.NewSearchBundle(resources)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome(err.Error()))
	}
	return c.JSON(http.StatusOK, bundle)
}
