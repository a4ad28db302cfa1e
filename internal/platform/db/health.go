package db

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Pinger is anything whose reachability can be probed: the pgx pool, the
// Redis cache, the remote FHIR server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// CheckResult is the outcome of probing one dependency.
type CheckResult struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   *PoolStats `json:"pool,omitempty"`
}

// HealthReport aggregates every probe. Status is "healthy" only when all
// checks pass.
type HealthReport struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Check probes each dependency with the given per-check timeout.
func Check(ctx context.Context, checks map[string]Pinger, timeout time.Duration) HealthReport {
	report := HealthReport{Status: "healthy", Checks: make(map[string]CheckResult, len(checks))}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := checks[name]
		pctx, cancel := context.WithTimeout(ctx, timeout)
		err := p.Ping(pctx)
		cancel()

		res := CheckResult{Status: "ok"}
		if err != nil {
			res.Status = "failed"
			res.Error = err.Error()
			report.Status = "unhealthy"
		}
		if pool, ok := p.(*pgxpool.Pool); ok {
			res.Pool = GetPoolStats(pool)
		}
		report.Checks[name] = res
	}
	return report
}

// HealthHandler serves a HealthReport, 503 when any check fails.
func HealthHandler(checks map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := Check(c.Request().Context(), checks, 5*time.Second)
		if report.Status != "healthy" {
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		return c.JSON(http.StatusOK, report)
	}
}
