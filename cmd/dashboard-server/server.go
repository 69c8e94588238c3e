package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/config"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/severity"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/db"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/metrics"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/middleware"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/roster"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/websocket"
)

// rosterEnv is a loaded roster plus the pool it came from, if any.
type rosterEnv struct {
	patients []*patient.Patient
	report   roster.Report
	pool     *pgxpool.Pool
}

func (r *rosterEnv) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func openPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	return db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
}

// loadRoster opens the database when the configured source needs one and
// loads the roster from that source.
func loadRoster(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*rosterEnv, error) {
	env := &rosterEnv{}
	var deps roster.Deps
	switch {
	case cfg.UsesDatabase():
		pool, err := openPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		env.pool = pool
		deps.DB = pool
	case cfg.RosterSource == roster.KindS3:
		client, err := roster.NewS3Client(ctx, roster.S3Options{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		deps.S3 = client
	}

	src, err := roster.FromConfig(cfg, deps)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.patients, env.report, err = roster.Load(ctx, src, logger)
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

// healthChecks reports the roster and, when present, the database.
func (r *rosterEnv) healthChecks(store *patient.Store) []db.Check {
	checks := []db.Check{{
		Name: "roster",
		Pinger: db.PingerFunc(func(context.Context) error {
			if store.Len() == 0 {
				return errors.New("roster is empty")
			}
			return nil
		}),
	}}
	if r.pool != nil {
		checks = append(checks, db.Check{Name: "database", Pinger: r.pool})
	}
	return checks
}

type server struct {
	echo        *echo.Echo
	hub         *websocket.Hub
	metrics     *metrics.Metrics
	unsubscribe func()
}

// newServer wires the HTTP surface around store.
func newServer(cfg *config.Config, logger zerolog.Logger, store *patient.Store, checks ...db.Check) *server {
	m := metrics.New()
	m.SetRosterSize(store.Len())
	unsubscribe := store.Subscribe(m.ObserveSelection)

	hub := websocket.NewHub(store, logger)
	m.TrackStreamClients(hub.ClientCount)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(m.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader, middleware.APIKeyHeader},
	}))
	e.Use(middleware.APIKey(cfg.APIKeys))

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "dashboard API is running")
	})
	e.GET("/health", db.HealthHandler(version, checks...))
	e.GET("/metrics", m.Handler())
	if cfg.IsDev() {
		e.GET("/debug/routes", func(c echo.Context) error {
			return c.JSON(http.StatusOK, e.Routes())
		})
	}

	apiV1 := e.Group("/api/v1")
	patient.NewHandler(patient.NewService(store), logger).RegisterRoutes(apiV1)
	severity.NewHandler().RegisterRoutes(apiV1)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	return &server{echo: e, hub: hub, metrics: m, unsubscribe: unsubscribe}
}

// Close detaches the stream hub and the metrics observer from the store.
func (s *server) Close() {
	s.hub.Close()
	s.unsubscribe()
}

// errorHandler renders every error as {"error": msg}. Errors that are not
// *echo.HTTPError are logged and reported as 500.
func errorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, map[string]string{"error": msg})
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
