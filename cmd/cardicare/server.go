package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/cardicare/cardicare/internal/domain/ascvd"
	"github.com/cardicare/cardicare/internal/domain/forecast"
	"github.com/cardicare/cardicare/internal/domain/patient"
	"github.com/cardicare/cardicare/internal/platform/auth"
	"github.com/cardicare/cardicare/internal/platform/codec"
	"github.com/cardicare/cardicare/internal/platform/db"
	"github.com/cardicare/cardicare/internal/platform/fhir"
	"github.com/cardicare/cardicare/internal/platform/middleware"
)

const version = "0.1.0"

func newServer(a *app) *echo.Echo {
	cfg := a.cfg
	logger := a.logger

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = codec.EchoSerializer{}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "If-None-Match"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/health"))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.checks))

	// Auth applies to the API groups only so probes stay anonymous.
	authMW := auth.DevAuthMiddleware()
	if !cfg.IsDev() {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	limiter := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	})
	etagCfg := middleware.DefaultETagConfig()
	// Assessments carry a fresh id and timestamp on every read.
	etagCfg.ExcludePaths = []string{
		"/api/v1/patients/:id/ascvd",
		"/fhir/RiskAssessment",
		"/fhir/RiskAssessment/:patientID",
	}
	etag := middleware.ETag(etagCfg)

	apiV1 := e.Group("/api/v1", limiter, authMW, etag)
	fhirGroup := e.Group("/fhir", limiter, authMW, etag)

	capabilities := fhir.NewCapabilityBuilder(fmt.Sprintf("http://localhost:%s/fhir", cfg.Port), version)
	capabilities.AddResource("RiskAssessment", fhir.ReadOnlyInteractions(), []fhir.SearchParam{
		{Name: "patient", Type: "reference", Documentation: "Comma-separated patient ids"},
	})
	fhir.NewCapabilityHandler(capabilities).RegisterRoutes(e.Group("/fhir"))

	patient.NewHandler(a.patients).RegisterRoutes(apiV1)
	ascvd.NewHandler(a.risk).RegisterRoutes(apiV1, fhirGroup)
	forecast.NewHandler(a.forecasts).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode: every request is treated as admin")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.Close()

	e := newServer(a)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("records", cfg.RecordsSource).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
