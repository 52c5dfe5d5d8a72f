// Command dairyctl runs one-off operator tasks against the farm database:
// rendering payslips, writing XLSX exports and triggering background jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/config"
	"dairyfarm/backend/internal/database"
	"dairyfarm/backend/internal/logger"
	"dairyfarm/backend/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "dairyctl",
	Short:         "Operator tools for the dairy farm backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		_, err := logger.Setup(config.LoadLogConfig())
		return err
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("dairyctl")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "dairyctl: %v\n", err)
		if apperr.IsValidation(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// env is what every database-backed command needs.
type env struct {
	cfg   config.Config
	loc   *time.Location
	pool  *pgxpool.Pool
	store *store.Store
}

func (e *env) Close() { e.pool.Close() }

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.AppTimezone, err)
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger.WithComponent("database"))
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, loc: loc, pool: pool, store: store.New(pool, loc)}, nil
}

func writeOutput(path string, content []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(content)
		return err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
