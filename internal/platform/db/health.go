package db

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything that can report its liveness, such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check is a named dependency reported by HealthHandler.
type Check struct {
	Name   string
	Pinger Pinger
}

// HealthReport is the body of the health endpoint.
type HealthReport struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Run pings every check with a shared timeout. Status is "ok" when every
// check passes and "unhealthy" otherwise.
func Run(ctx context.Context, version string, timeout time.Duration, checks ...Check) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report := HealthReport{Status: "ok", Version: version}
	if len(checks) == 0 {
		return report
	}
	report.Checks = make(map[string]string, len(checks))
	for _, c := range checks {
		if err := c.Pinger.Ping(ctx); err != nil {
			report.Status = "unhealthy"
			report.Checks[c.Name] = err.Error()
			continue
		}
		report.Checks[c.Name] = "ok"
	}
	return report
}

// HealthHandler serves Run as JSON: 200 when healthy, 503 otherwise.
func HealthHandler(version string, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		report := Run(c.Request().Context(), version, 5*time.Second, checks...)
		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, report)
	}
}
