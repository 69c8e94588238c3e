package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/neuhai/clinical-decision-making-dashboard/internal/config"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/patient"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/domain/severity"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/db"
	"github.com/neuhai/clinical-decision-making-dashboard/internal/platform/roster"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dashboard-server",
		Short:        "Clinical decision-making dashboard API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(severityCmd())
	return rootCmd
}

func newLogger(env string, w io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	// Logger
	logger := newLogger(os.Getenv("ENV"), os.Stdout)

	// Config
	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Roster
	ctx := context.Background()
	env, err := loadRoster(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load roster")
	}
	defer env.Close()

	store := patient.NewStore(env.patients)
	srv := newServer(cfg, logger, store, env.healthChecks(store)...)
	defer srv.Close()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Int("patients", store.Len()).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Inspect the configured patient roster",
	}

	// roster list
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the sidebar summary of every patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cliRoster(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			svc := patient.NewService(patient.NewStore(env.patients))
			return writeJSON(cmd.OutOrStdout(), svc.ListSummaries())
		},
	})

	// roster check
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Load the roster and report its size and duplicate ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cliRoster(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			return writeJSON(cmd.OutOrStdout(), env.report)
		},
	})

	// roster dates <id>
	cmd.AddCommand(&cobra.Command{
		Use:   "dates <patient-id>",
		Short: "Print the dates a patient has data for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cliRoster(cmd)
			if err != nil {
				return err
			}
			defer env.Close()
			svc := patient.NewService(patient.NewStore(env.patients))
			dates, err := svc.AvailableDates(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string][]string{"dates": dates})
		},
	})

	// roster seed
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy a roster into the Postgres roster table",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env, cmd.ErrOrStderr())

			var src roster.Source = roster.EmbeddedSource{}
			if file != "" {
				src = roster.FileSource{Path: file}
			}
			patients, _, err := roster.Load(cmd.Context(), src, logger)
			if err != nil {
				return err
			}

			pool, err := openPool(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := roster.Seed(cmd.Context(), pool, cfg.RosterTable, patients)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patient(s) into %s from %s.\n", n, cfg.RosterTable, src.Name())
			return nil
		},
	}
	seedCmd.Flags().String("file", "", "Roster JSON file (default: the bundled roster)")
	cmd.AddCommand(seedCmd)

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := cliPool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, db.Migrations()).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := cliPool(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, db.Migrations()).Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func cliPool(cmd *cobra.Command) (*pgxpool.Pool, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openPool(cmd.Context(), cfg, newLogger(cfg.Env, cmd.ErrOrStderr()))
}

// cliRoster loads the roster for one-shot commands. Logs go to stderr so
// stdout stays machine readable.
func cliRoster(cmd *cobra.Command) (*rosterEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Env, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
	return loadRoster(cmd.Context(), cfg, logger)
}

func severityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "severity",
		Short: "Print the symptom severity table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeJSON(cmd.OutOrStdout(), severity.Table())
		},
	}
}
