package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cardicare/cardicare/internal/config"
	"github.com/cardicare/cardicare/internal/domain/ascvd"
	"github.com/cardicare/cardicare/internal/domain/forecast"
	"github.com/cardicare/cardicare/internal/domain/patient"
	"github.com/cardicare/cardicare/internal/platform/cache"
	"github.com/cardicare/cardicare/internal/platform/db"
)

// app holds the wired services shared by the server and the CLI commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	patients  *patient.Service
	risk      *ascvd.Service
	forecasts *forecast.Service
	checks    map[string]db.Pinger
	closers   []func()
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp opens the record source, the forecast history and the result
// cache. Close releases whatever was opened, also after a partial failure.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, checks: make(map[string]db.Pinger)}

	repo, err := a.openRecords(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.patients = patient.NewService(repo)
	a.risk = ascvd.NewService(ascvd.NewCalculator(), a.patients)

	store, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	history, err := forecast.LoadDataset(cfg.HistoryPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load forecast history: %w", err)
	}
	a.forecasts = forecast.NewService(forecast.DefaultDirectory(), history,
		forecast.WithCache(store, cfg.CacheTTL),
		forecast.WithLogger(logger.With().Str("component", "forecast").Logger()),
	)
	logger.Info().
		Str("path", cfg.HistoryPath).
		Strs("features", a.forecasts.Features()).
		Msg("forecast history loaded")

	return a, nil
}

func (a *app) openRecords(ctx context.Context) (patient.Repository, error) {
	switch a.cfg.RecordsSource {
	case config.SourceFHIR:
		repo := patient.NewFHIRRepository(a.cfg.FHIRBaseURL, a.cfg.FHIRTimeout)
		a.checks["records"] = repo
		a.logger.Info().Str("base_url", a.cfg.FHIRBaseURL).Msg("reading records from FHIR server")
		return repo, nil

	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:            a.cfg.DatabaseURL,
			MaxConns:       a.cfg.DBMaxConns,
			MinConns:       a.cfg.DBMinConns,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks["records"] = pool
		a.logger.Info().Msg("connected to database")
		return patient.NewPGRepository(pool), nil

	default:
		repo, err := patient.LoadSnapshot(a.cfg.RecordsPath)
		if err != nil {
			return nil, err
		}
		ids, _ := repo.ListIDs(ctx)
		a.logger.Info().Str("path", a.cfg.RecordsPath).Int("patients", len(ids)).Msg("snapshot loaded")
		return repo, nil
	}
}

func (a *app) openCache(ctx context.Context) (cache.Store, error) {
	if a.cfg.RedisURL != "" {
		store, err := cache.DialRedis(ctx, a.cfg.RedisURL, "cardicare:")
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.checks["cache"] = store
		a.logger.Info().Msg("forecast cache: redis")
		return store, nil
	}

	store := cache.NewMemory()
	cleanupCtx, cancel := context.WithCancel(context.Background())
	store.StartCleanup(cleanupCtx, time.Minute)
	a.closers = append(a.closers, cancel)
	return store, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
