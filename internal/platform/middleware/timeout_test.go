package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// newTimeoutEcho mounts the middleware the way the server does: globally,
// with health probes exempt.
func newTimeoutEcho(timeout time.Duration, h echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.Use(RequestTimeout(timeout, "/health"))
	e.GET("/health/db", h)
	api := e.Group("/api/v1")
	api.GET("/patients/:id/forecast", h)
	return e
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRequestTimeout_FastHandlerKeepsStatus(t *testing.T) {
	e := newTimeoutEcho(time.Second, func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		return c.JSON(http.StatusOK, map[string]string{"id": c.Param("id")})
	})

	rec := serve(e, "/api/v1/patients/665677/forecast")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequestTimeout_DeadlineErrorBecomesOutcome(t *testing.T) {
	e := newTimeoutEcho(20*time.Millisecond, func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})

	rec := serve(e, "/api/v1/patients/665677/forecast")
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
	var outcome map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if outcome["resourceType"] != "OperationOutcome" {
		t.Errorf("expected OperationOutcome, got %v", outcome["resourceType"])
	}
}

func TestRequestTimeout_SilentHandlerPastDeadline(t *testing.T) {
	e := newTimeoutEcho(10*time.Millisecond, func(c echo.Context) error {
		<-c.Request().Context().Done()
		return nil
	})

	if rec := serve(e, "/api/v1/patients/665677/forecast"); rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

// A handler that writes after the deadline owns the response. Run with -race:
// the middleware must not touch the context concurrently.
func TestRequestTimeout_LateWriteIsSingleResponse(t *testing.T) {
	e := newTimeoutEcho(5*time.Millisecond, func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"diagnostic": "Model fitting failed"})
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := serve(e, "/api/v1/patients/665677/forecast")
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("expected 422, got %d", rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Errorf("expected a single JSON body, got %q", rec.Body.String())
			}
		}()
	}
	wg.Wait()
}

func TestRequestTimeout_HealthIsExempt(t *testing.T) {
	e := newTimeoutEcho(time.Millisecond, func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); ok {
			t.Error("health probe should run without a deadline")
		}
		return c.NoContent(http.StatusOK)
	})

	if rec := serve(e, "/health/db"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequestTimeout_HandlerErrorPassesThrough(t *testing.T) {
	mw := RequestTimeout(time.Second)
	h := mw(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Patient ID not found.")
	})
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/patients/1/forecast", nil), httptest.NewRecorder())

	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 HTTPError, got %v", err)
	}
	if c.Request().Context().Err() != context.Canceled {
		t.Errorf("expected the deadline context to be released, got %v", c.Request().Context().Err())
	}
}
