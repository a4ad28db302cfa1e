package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cardicare/cardicare/internal/platform/auth"
	"github.com/cardicare/cardicare/internal/platform/fhir"
)

// Recovery converts a handler panic into a 500. Requests under /fhir answer
// with an OperationOutcome so FHIR clients can parse the failure; the rest
// go through the echo error handler.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				logger.Error().
					Str("request_id", requestID(c)).
					Str("user_id", auth.UserIDFromContext(c.Request().Context())).
					Str("path", c.Request().URL.Path).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")

				if strings.HasPrefix(c.Request().URL.Path, "/fhir/") && !c.Response().Committed {
					err = c.JSON(http.StatusInternalServerError,
						fhir.NewOperationOutcome("fatal", "exception", "internal server error"))
					return
				}
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
