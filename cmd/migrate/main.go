package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/bankcrm/bankcrm/internal/app"
	"github.com/bankcrm/bankcrm/internal/auth"
	"github.com/bankcrm/bankcrm/internal/platform/db"
	"github.com/bankcrm/bankcrm/internal/rbac"
	"github.com/bankcrm/bankcrm/migrations"
)

var (
	dsnFlag      string
	seedPassword string
	logger       = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Database migration tool for the bank CRM",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dsnFlag != "" {
			return nil
		}
		cfg, err := app.LoadDatabaseConfig()
		if err != nil {
			return err
		}
		dsnFlag = cfg.PGDSN
		return nil
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrate(func(m *migrate.Migrate) error {
			err := m.Up()
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no migrations to apply")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migration up: %w", err)
			}
			logger.Info("migration up completed")
			return nil
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default 1)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		return withMigrate(func(m *migrate.Migrate) error {
			err := m.Steps(-steps)
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("no migrations to roll back")
				return nil
			}
			if err != nil {
				return fmt.Errorf("migration down: %w", err)
			}
			logger.Info("migration down completed", slog.Int("steps", steps))
			return nil
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the current migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrate(func(m *migrate.Migrate) error {
			version, dirty, err := m.Version()
			if errors.Is(err, migrate.ErrNilVersion) {
				logger.Info("no migrations applied yet")
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info("current version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Force the recorded version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("version must be an integer, got %q", args[0])
		}
		return withMigrate(func(m *migrate.Migrate) error {
			if err := m.Force(version); err != nil {
				return fmt.Errorf("migration force: %w", err)
			}
			logger.Info("migration version forced", slog.Int("version", version))
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create one demo user per registered role",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(seedPassword) < 8 {
			return errors.New("--password must be at least 8 characters")
		}
		return seed(cmd.Context(), seedPassword)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "PostgreSQL DSN (defaults to PG_DSN)")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "password for every demo user")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd, seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	}
}

func withMigrate(fn func(*migrate.Migrate) error) error {
	sqlDB, err := sql.Open("postgres", dsnFlag)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	defer m.Close()
	return fn(m)
}

func seed(ctx context.Context, password string) error {
	pool, err := db.New(ctx, dsnFlag, db.PoolOptions{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	for _, role := range rbac.DefaultRegistry().Roles() {
		email := strings.ReplaceAll(string(role.ID), "_", ".") + "@bankcrm.local"
		tag, err := pool.Exec(ctx, `
			INSERT INTO users (email, name, role, password_hash)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING`, email, "Demo "+role.Name, string(role.ID), hash)
		if err != nil {
			return fmt.Errorf("seed %s: %w", role.ID, err)
		}
		logger.Info("seeded user", slog.String("email", email), slog.String("role", string(role.ID)), slog.Bool("created", tag.RowsAffected() == 1))
	}
	return nil
}
