package db

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// PoolStats is the JSON view of pgxpool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func statsOf(pool *pgxpool.Pool) *PoolStats {
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

// Check probes one backing service.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// PoolCheck pings the database.
func PoolCheck(pool *pgxpool.Pool) Check {
	return Check{Name: "database", Probe: pool.Ping}
}

// MigrationCheck fails while schema has migrations that have not run, so a
// replica started against an old schema reports unhealthy.
func MigrationCheck(m *Migrator, schema string) Check {
	return Check{Name: "migrations", Probe: func(ctx context.Context) error {
		statuses, err := m.Status(ctx, schema)
		if err != nil {
			return err
		}
		pending := 0
		for _, s := range statuses {
			if !s.Applied {
				pending++
			}
		}
		if pending > 0 {
			return fmt.Errorf("%d pending migration(s) in schema %s", pending, schema)
		}
		return nil
	}}
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Pool   *PoolStats             `json:"pool,omitempty"`
}

// RunChecks probes every check concurrently.
func RunChecks(ctx context.Context, checks ...Check) HealthReport {
	report := HealthReport{Status: "healthy", Checks: make(map[string]CheckResult, len(checks))}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, chk := range checks {
		wg.Add(1)
		go func(chk Check) {
			defer wg.Done()
			start := time.Now()
			err := chk.Probe(ctx)
			res := CheckResult{Status: "ok", Latency: time.Since(start).Round(time.Microsecond).String()}
			if err != nil {
				res.Status = "failed"
				res.Error = err.Error()
			}
			mu.Lock()
			report.Checks[chk.Name] = res
			if err != nil {
				report.Status = "unhealthy"
			}
			mu.Unlock()
		}(chk)
	}
	wg.Wait()
	return report
}

// HealthHandler answers 200 when every check passes and 503 otherwise. When
// pool is non-nil its statistics are included.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		report := RunChecks(ctx, checks...)
		if pool != nil {
			report.Pool = statsOf(pool)
		}
		status := http.StatusOK
		if report.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, report)
	}
}
