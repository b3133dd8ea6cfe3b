package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/platform/observability"
	"github.com/volodymyr-yelisieiev/purity-fashion-studio-sub000/internal/repositories/postgres"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newApp(logger).Run(os.Args); err != nil {
		logger.Error("migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func newApp(logger *zap.Logger) *cli.App {
	dsnFlag := &cli.StringFlag{
		Name:     "dsn",
		Usage:    "PostgreSQL connection string",
		EnvVars:  []string{"API_POSTGRES_DSN", "DATABASE_URL"},
		Required: true,
	}

	withMigrator := func(fn func(c *cli.Context, m *migrate.Migrate) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			m, err := postgres.NewMigrator(c.String("dsn"))
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(c, m)
		}
	}

	return &cli.App{
		Name:  "migrate",
		Usage: "manage the order store schema",
		Flags: []cli.Flag{dsnFlag},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withMigrator(func(_ *cli.Context, m *migrate.Migrate) error {
					return report(logger, m, "up", ignoreNoChange(m.Up()))
				}),
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					steps := c.Int("steps")
					if steps <= 0 {
						return cli.Exit("steps must be positive", 2)
					}
					return report(logger, m, "down", ignoreNoChange(m.Steps(-steps)))
				}),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: withMigrator(func(_ *cli.Context, m *migrate.Migrate) error {
					return report(logger, m, "version", nil)
				}),
			},
			{
				Name:      "force",
				Usage:     "set the schema version without running migrations, clearing the dirty flag",
				ArgsUsage: "VERSION",
				Action: withMigrator(func(c *cli.Context, m *migrate.Migrate) error {
					var version int
					if _, err := fmt.Sscan(c.Args().First(), &version); err != nil {
						return cli.Exit("force requires a numeric VERSION", 2)
					}
					return report(logger, m, "force", m.Force(version))
				}),
			},
		},
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func report(logger *zap.Logger, m *migrate.Migrate, command string, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("schema is empty", zap.String("command", command))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: read version: %w", command, err)
	}
	logger.Info("schema version", zap.String("command", command), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
