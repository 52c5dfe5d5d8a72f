package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/api"
	"dairyfarm/backend/internal/config"
	"dairyfarm/backend/internal/database"
	"dairyfarm/backend/internal/jobs"
	"dairyfarm/backend/internal/logger"
	"dairyfarm/backend/internal/payroll"
	"dairyfarm/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dairy backend: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	for _, p := range []string{".env", "backend/.env"} {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", p, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	loc, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.AppTimezone, err)
	}
	decimal.MarshalJSONWithoutQuotes = true

	startCtx, cancel := context.WithTimeout(context.Background(), 40*time.Second)
	defer cancel()

	pool, err := database.NewPool(startCtx, cfg.DatabaseURL, logger.WithComponent("database"))
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := database.EnsureSchema(startCtx, pool, cfg.SchemaPath)
	if err != nil {
		return err
	}
	log.Info().Int("statements", applied).Str("schema", cfg.SchemaPath).Msg("schema ensured")

	st := store.New(pool, loc)
	payrollSvc := payroll.NewService(st, payrollDefaults(cfg.Farm.Payroll), logger.WithComponent("payroll"), nil)

	var sweeper *jobs.OverdueSweeper
	if !cfg.Farm.Jobs.Disabled {
		sweeper = jobs.NewOverdueSweeper(st, loc)
		if err := sweeper.Start(cfg.Farm.Jobs.OverdueSweepSpec); err != nil {
			return err
		}
	}

	mailer := api.NewSMTPMailer(cfg.SMTP)
	if mailer == nil {
		log.Warn().Msg("SMTP is not configured, invoice reminders are disabled")
	}

	srv := api.NewServer(api.Options{
		Store:          st,
		Payroll:        payrollSvc,
		Settings:       cfg.Farm,
		JWTSecret:      cfg.JWTSecret,
		Location:       loc,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Mailer:         mailer,
		Logger:         logger.WithComponent("http"),
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("timezone", loc.String()).Msg("dairy backend listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	return httpServer.Shutdown(shutdownCtx)
}

// payrollDefaults falls back to the built-in defaults for settings outside
// their valid range.
func payrollDefaults(s config.PayrollSettings) payroll.Defaults {
	d := payroll.DefaultDefaults()
	if s.DefaultTaxWithholding >= 0 && s.DefaultTaxWithholding <= 100 {
		d.TaxWithholding = decimal.NewFromFloat(s.DefaultTaxWithholding)
	}
	if s.DefaultHoursWorked > 0 {
		d.HoursWorked = decimal.NewFromFloat(s.DefaultHoursWorked)
	}
	return d
}
