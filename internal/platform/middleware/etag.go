package middleware

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ETagConfig controls validator and Cache-Control headers on GET responses.
type ETagConfig struct {
	MaxAge       int      // seconds
	VaryHeaders  []string // defaults to Accept, Authorization
	// ExcludePaths matches either the request path or the route template,
	// e.g. "/fhir/RiskAssessment/:patientID".
	ExcludePaths []string
}

// DefaultETagConfig returns private caching for five minutes.
func DefaultETagConfig() ETagConfig {
	return ETagConfig{
		MaxAge:      300,
		VaryHeaders: []string{"Accept", "Authorization"},
	}
}

// bufferedResponseWriter holds the body back until the ETag is known.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func (w *bufferedResponseWriter) Header() http.Header {
	return w.writer.Header()
}

func (w *bufferedResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedResponseWriter) WriteHeader(code int) {
	w.statusCode = code
}

func (w *bufferedResponseWriter) Flush() {}

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

// ETag computes a weak ETag for successful GET/HEAD responses and answers
// If-None-Match with 304 Not Modified. Records are read-only, so the body
// hash is a stable validator between snapshot reloads.
func ETag(config ETagConfig) echo.MiddlewareFunc {
	cacheControl := fmt.Sprintf("private, max-age=%d", config.MaxAge)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if shouldSkip(req.URL.Path, c.Path(), config.ExcludePaths) {
				return next(c)
			}

			res := c.Response()
			origWriter := res.Writer
			buf := &bufferedResponseWriter{writer: origWriter, statusCode: http.StatusOK}
			res.Writer = buf

			err := next(c)
			res.Writer = origWriter
			if err != nil {
				// Anything already buffered was never sent.
				if buf.buf.Len() > 0 {
					return buf.flushTo()
				}
				return err
			}

			if buf.statusCode >= http.StatusBadRequest {
				return buf.flushTo()
			}

			res.Header().Set("Cache-Control", cacheControl)
			if len(config.VaryHeaders) > 0 {
				res.Header().Set("Vary", strings.Join(config.VaryHeaders, ", "))
			}

			etag := computeETag(buf.buf.Bytes())
			res.Header().Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				origWriter.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo()
		}
	}
}

func computeETag(body []byte) string {
	hash := md5.Sum(body)
	return fmt.Sprintf(`W/"%x"`, hash)
}

func shouldSkip(path, route string, excludes []string) bool {
	for _, ex := range excludes {
		if path == ex || route == ex {
			return true
		}
	}
	return false
}

// etagMatch does weak comparison against a comma-separated If-None-Match
// list, honouring "*".
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if stripWeakPrefix(strings.TrimSpace(candidate)) == stripWeakPrefix(etag) {
			return true
		}
	}
	return false
}

func stripWeakPrefix(etag string) string {
	return strings.TrimPrefix(etag, "W/")
}
