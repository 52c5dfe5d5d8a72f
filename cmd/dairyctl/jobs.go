package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dairyfarm/backend/internal/database"
	"dairyfarm/backend/internal/jobs"
	"dairyfarm/backend/internal/logger"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background jobs by hand",
}

var overdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Mark unpaid invoices past their due date as Overdue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := jobs.NewOverdueSweeper(e.store, e.loc).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue\n", n)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema file to the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		e, err := openEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		applied, err := database.EnsureSchema(ctx, e.pool, e.cfg.SchemaPath)
		if err != nil {
			return err
		}
		logger.WithComponent("migrate").Info().Int("statements", applied).Str("schema", e.cfg.SchemaPath).Msg("schema applied")
		return nil
	},
}

func init() {
	jobsCmd.AddCommand(overdueCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(migrateCmd)
}
