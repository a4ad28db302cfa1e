package forecast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardicare/cardicare/internal/platform/codec"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	e := echo.New()
	e.JSONSerializer = codec.EchoSerializer{}
	return NewHandler(svc), e
}

func TestHandler_GetForecast(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?feature=weight&days=5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("665677")

	require.NoError(t, h.GetForecast(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var res Result
	require.NoError(t, codec.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Values, 5)
	assert.Equal(t, "kg", res.Unit)
}

func TestHandler_GetForecast_Status(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		query string
		code  int
		diag  string
	}{
		{"unknown patient", "1", "?feature=weight", http.StatusNotFound, DiagPatientNotFound},
		{"insufficient", "665677", "?feature=bmi", http.StatusUnprocessableEntity, DiagInsufficientData},
		{"horizon", "665677", "?feature=weight&days=45", http.StatusBadRequest, DiagHorizon},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler()
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			require.NoError(t, h.GetForecast(c))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.diag)
		})
	}
}

func TestHandler_GetForecast_BadParams(t *testing.T) {
	for _, q := range []string{"/", "/?feature=weight&days=soon"} {
		h, e := newTestHandler()
		req := httptest.NewRequest(http.MethodGet, q, nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues("665677")

		err := h.GetForecast(c)
		httpErr, ok := err.(*echo.HTTPError)
		require.True(t, ok, "expected HTTPError for %s, got %v", q, err)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	}
}

func TestHandler_GetAllForecasts(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?days=2", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("665677")

	require.NoError(t, h.GetAllForecasts(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `"feature":"weight"`), body)
	assert.True(t, strings.Contains(body, `"feature":"heart_rate"`), body)
}

func TestHandler_GetAllForecasts_UnknownPatient(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetAllForecasts(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestHandler_ListFeatures(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, h.ListFeatures(c))
	assert.JSONEq(t, `{"features":["bmi","weight","heart_rate"]}`, rec.Body.String())
}

func TestHandler_GetForecast_DeadlineReturnsError(t *testing.T) {
	h, e := newTestHandler()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/?feature=weight", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("665677")

	err := h.GetForecast(c)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, c.Response().Committed)
}
