// Package jobs runs the background maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/logger"
)

// OverdueMarker flips unpaid invoices whose due date is before today to
// Overdue and reports how many changed.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
}

type OverdueSweeper struct {
	marker  OverdueMarker
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
	cron    *cron.Cron
}

func NewOverdueSweeper(marker OverdueMarker, loc *time.Location) *OverdueSweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &OverdueSweeper{
		marker:  marker,
		loc:     loc,
		timeout: 30 * time.Second,
		now:     time.Now,
		log:     logger.WithComponent("overdue-sweep"),
	}
}

// RunOnce performs a single sweep using today's date in the farm timezone.
func (s *OverdueSweeper) RunOnce(ctx context.Context) (int64, error) {
	today := s.now().In(s.loc)
	n, err := s.marker.MarkOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("overdue sweep: %w", err)
	}
	return n, nil
}

// Start schedules the sweep with a standard five-field cron spec, evaluated
// in the farm timezone.
func (s *OverdueSweeper) Start(spec string) error {
	c := cron.New(cron.WithLocation(s.loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		n, err := s.RunOnce(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("sweep failed")
			return
		}
		s.log.Info().Int64("marked", n).Msg("sweep finished")
	})
	if err != nil {
		return fmt.Errorf("unable to schedule overdue sweep %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	s.log.Info().Str("schedule", spec).Str("timezone", s.loc.String()).Msg("overdue sweep scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to return or ctx to
// expire.
func (s *OverdueSweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("overdue sweep still running at shutdown")
	}
}
