package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"restock-route-service/internal/adapters/oracle"
	"restock-route-service/internal/adapters/repositories"
	"restock-route-service/internal/api"
	"restock-route-service/internal/config"
	"restock-route-service/internal/platform/db"
	"restock-route-service/internal/platform/obs"
	"restock-route-service/internal/ports"
	"restock-route-service/internal/services"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// main is the application composition root.
// It wires concrete adapters (SQL, oracle providers) behind ports and starts the HTTP server.
func main() {
	config.LoadDotEnv()
	obs.SetupLogging()

	cfg := config.Load()

	app := &cli.App{
		Name:  "server",
		Usage: "restock run route planning API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Value: ":" + cfg.Port, Usage: "listen address"},
			&cli.StringFlag{Name: "db-driver", Value: cfg.DBDriver, EnvVars: []string{"DB_DRIVER"}, Usage: "sqlite or pgx"},
			&cli.StringFlag{Name: "db-path", Value: cfg.DBPath, EnvVars: []string{"DB_PATH"}, Usage: "SQLite database file"},
			&cli.StringFlag{Name: "database-url", Value: cfg.DatabaseURL, EnvVars: []string{"DATABASE_URL"}, Usage: "Postgres URL for the pgx driver"},
			&cli.StringFlag{Name: "provider", Value: cfg.Provider, EnvVars: []string{"ORACLE_PROVIDER"}, Usage: "ors, osm (Nominatim + OSRM) or mock"},
			&cli.BoolFlag{Name: "seed", Usage: "initialise the schema and load SEED_PATH on startup"},
		},
		Action: func(c *cli.Context) error {
			return run(c, cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run(c *cli.Context, cfg config.Config) error {
	driver := c.String("db-driver")
	dsn := c.String("db-path")
	if driver == "pgx" {
		dsn = c.String("database-url")
		if strings.TrimSpace(dsn) == "" {
			return errors.New("DATABASE_URL is required for the pgx driver")
		}
	}

	conn, err := db.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize schema and seed demo data on startup for local runs.
	if c.Bool("seed") {
		if err := initAndSeed(ctx, conn, driver, cfg.SeedPath); err != nil {
			return err
		}
	}

	geocoder, travel, err := buildOracle(c.String("provider"), cfg)
	if err != nil {
		return err
	}

	sessionCfg := services.DefaultSessionConfig()
	sessionCfg.ETALimit = cfg.ETALimit
	sessionCfg.ETAWindow = cfg.ETAWindow
	sessionCfg.Parallelism = cfg.Parallelism

	sessions := services.NewSessionRegistry(func() (*services.Session, error) {
		return services.NewSession(geocoder, travel, sessionCfg)
	}, cfg.SessionIdleTTL)

	planner := services.NewRunPlanner(repositories.NewSQLRunRepository(conn, driver), sessions)
	planner.DefaultStart = func() time.Time { return config.StartOn(time.Now(), cfg.DefaultStart) }

	// Timeouts are tuned for cold-cache route planning (rate-limited oracle calls).
	srv := &http.Server{
		Addr:              c.String("listen"),
		Handler:           api.NewRouter(planner),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("provider", c.String("provider")).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildOracle(provider string, cfg config.Config) (ports.Geocoder, ports.TravelTimeOracle, error) {
	switch provider {
	case "ors":
		ors, err := oracle.NewORS(cfg.ORSKey, oracle.ORSOptions{BaseURL: cfg.ORSBaseURL, Country: cfg.Country})
		if err != nil {
			return nil, nil, fmt.Errorf("build oracle: %w", err)
		}
		return ors, ors, nil
	case "osm":
		return oracle.NewNominatim(oracle.NominatimOptions{BaseURL: cfg.NominatimURL}),
			oracle.NewOSRM(oracle.OSRMOptions{BaseURL: cfg.OSRMURL}),
			nil
	case "mock":
		m, err := oracle.LoadMockOracle(cfg.MockFixture)
		if err != nil {
			return nil, nil, fmt.Errorf("build oracle: %w", err)
		}
		return m, m, nil
	default:
		return nil, nil, fmt.Errorf("build oracle: unknown provider %q", provider)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, driver, seedPath string) error {
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if err := repositories.SeedFromJSON(ctx, conn, driver, seedPath); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	return nil
}
