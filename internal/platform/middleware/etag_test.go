package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveETag(t *testing.T, method, ifNoneMatch string, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/patients/665677", nil)
	if ifNoneMatch != "" {
		req.Header.Set("If-None-Match", ifNoneMatch)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := ETag(DefaultETagConfig())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func okBody(c echo.Context) error {
	return c.String(http.StatusOK, "hello world")
}

func TestETag_SetsHeaders(t *testing.T) {
	rec := serveETag(t, http.MethodGet, "", okBody)

	etag := rec.Header().Get("ETag")
	if len(etag) < 4 || etag[:3] != `W/"` || etag[len(etag)-1] != '"' {
		t.Errorf("expected weak ETag format W/\"...\", got %q", etag)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "private, max-age=300" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if v := rec.Header().Get("Vary"); v != "Accept, Authorization" {
		t.Errorf("Vary = %q", v)
	}
	if rec.Body.String() != "hello world" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestETag_NotModifiedOnMatch(t *testing.T) {
	first := serveETag(t, http.MethodGet, "", okBody)
	etag := first.Header().Get("ETag")

	for _, inm := range []string{etag, stripWeakPrefix(etag), `"other", ` + etag, "*"} {
		rec := serveETag(t, http.MethodGet, inm, okBody)
		if rec.Code != http.StatusNotModified {
			t.Errorf("If-None-Match %q: expected 304, got %d", inm, rec.Code)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("If-None-Match %q: expected empty body", inm)
		}
	}
}

func TestETag_MismatchServesBody(t *testing.T) {
	rec := serveETag(t, http.MethodGet, `W/"nope"`, okBody)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "hello world" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestETag_SkipsErrorsAndWrites(t *testing.T) {
	rec := serveETag(t, http.MethodGet, "", func(c echo.Context) error {
		return c.String(http.StatusNotFound, "missing")
	})
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag on error response")
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = serveETag(t, http.MethodPost, "", okBody)
	if rec.Header().Get("ETag") != "" {
		t.Error("expected no ETag on POST")
	}
}

func TestETag_ExcludesRouteTemplate(t *testing.T) {
	e := echo.New()
	cfg := DefaultETagConfig()
	cfg.ExcludePaths = []string{"/fhir/RiskAssessment/:patientID"}
	g := e.Group("", ETag(cfg))
	g.GET("/fhir/RiskAssessment/:patientID", okBody)
	g.GET("/api/v1/patients/:id", okBody)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fhir/RiskAssessment/665677", nil))
	if rec.Header().Get("ETag") != "" {
		t.Errorf("expected no ETag on excluded route, got %q", rec.Header().Get("ETag"))
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/patients/665677", nil))
	if rec.Header().Get("ETag") == "" {
		t.Error("expected ETag on patient route")
	}
}
