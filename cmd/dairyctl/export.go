package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"dairyfarm/backend/internal/export"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/logger"
)

var exportCmd = &cobra.Command{
	Use:   "export [expenses|invoices|payroll]",
	Short: "Write an XLSX export of expenses, invoices or payroll",
	Example: `  dairyctl export invoices --range quarter
  dairyctl export payroll --range custom --start 2024-01-01 --end 2024-03-31 --out q1-payroll.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("range", "month", "month, quarter, year or custom")
	exportCmd.Flags().String("start", "", "custom range start, YYYY-MM-DD")
	exportCmd.Flags().String("end", "", "custom range end, YYYY-MM-DD (default: today)")
	exportCmd.Flags().String("out", "", "output file, - for stdout (default: generated filename)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	kind, err := export.ParseKind(args[0])
	if err != nil {
		return err
	}
	rawRange, _ := cmd.Flags().GetString("range")
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	out, _ := cmd.Flags().GetString("out")

	rangeKind, err := finance.ParseRangeKind(rawRange)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	now := time.Now().In(e.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.loc)
	rng, err := finance.ResolveRange(rangeKind, now, finance.PolicyTrend, finance.CustomRange{Start: start, End: end})
	if err != nil {
		return err
	}

	book, err := export.Build(ctx, e.store, kind, rng, today)
	if err != nil {
		return err
	}
	if out == "" {
		out = export.Filename(kind, rng.Closed(today))
	}
	if err := writeOutput(out, book); err != nil {
		return err
	}
	log.Info().Str("kind", string(kind)).Str("range", rng.String()).Int("bytes", len(book)).Str("out", out).Msg("export written")
	return nil
}
