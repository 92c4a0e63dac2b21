package main

import (
	"database/sql"
	"errors"
	"os"
	"restock-route-service/internal/adapters/repositories"
	"restock-route-service/internal/config"
	"restock-route-service/internal/platform/db"
	"restock-route-service/internal/platform/obs"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	config.LoadDotEnv()
	obs.SetupLogging()

	cfg := config.Load()

	dbFlags := []cli.Flag{
		&cli.StringFlag{Name: "db-driver", Value: cfg.DBDriver, EnvVars: []string{"DB_DRIVER"}, Usage: "sqlite or pgx"},
		&cli.StringFlag{Name: "db-path", Value: cfg.DBPath, EnvVars: []string{"DB_PATH"}, Usage: "SQLite database file"},
		&cli.StringFlag{Name: "database-url", Value: cfg.DatabaseURL, EnvVars: []string{"DATABASE_URL"}, Usage: "Postgres URL for the pgx driver"},
	}

	app := &cli.App{
		Name:  "dbtool",
		Usage: "manage the run database",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "create the schema",
				Flags: dbFlags,
				Action: func(c *cli.Context) error {
					conn, err := open(c)
					if err != nil {
						return err
					}
					defer conn.Close()

					log.Info().Msg("Initializing database schema...")
					if err := repositories.InitSchema(c.Context, conn); err != nil {
						return err
					}
					log.Info().Msg("Schema ready.")
					return nil
				},
			},
			{
				Name:  "seed",
				Usage: "create the schema and load runs from a JSON file",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "seed-path", Value: cfg.SeedPath, EnvVars: []string{"SEED_PATH"}, Usage: "seed JSON file"},
				}, dbFlags...),
				Action: func(c *cli.Context) error {
					conn, err := open(c)
					if err != nil {
						return err
					}
					defer conn.Close()

					if err := repositories.InitSchema(c.Context, conn); err != nil {
						return err
					}

					log.Info().Str("path", c.String("seed-path")).Msg("Seeding database...")
					if err := repositories.SeedFromJSON(c.Context, conn, c.String("db-driver"), c.String("seed-path")); err != nil {
						return err
					}
					log.Info().Msg("Seeding complete.")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func open(c *cli.Context) (*sql.DB, error) {
	driver := c.String("db-driver")
	if driver == "pgx" {
		url := c.String("database-url")
		if strings.TrimSpace(url) == "" {
			return nil, errors.New("DATABASE_URL is required for the pgx driver")
		}
		return db.Open(driver, url)
	}
	return db.Open(driver, c.String("db-path"))
}
