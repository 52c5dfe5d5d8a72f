package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is the persistence the service needs. The store package
// provides the Postgres implementation.
type Repository interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	GetPayment(ctx context.Context, id int64) (Payment, error)
	// TransitionPayment moves a payment from one status to another and
	// reports false when the payment was not in the from status.
	TransitionPayment(ctx context.Context, id int64, from, to PaymentStatus) (bool, error)
}

type Service struct {
	repo     Repository
	defaults Defaults
	log      zerolog.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

func NewService(repo Repository, defaults Defaults, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, defaults: defaults, log: log, now: now, newID: newPaymentID}
}

func newPaymentID(at time.Time) string {
	return fmt.Sprintf("PAY-%s-%s", at.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

// Preview builds a draft for run over the given period, or over the default
// period when start is zero.
func (s *Service) Preview(ctx context.Context, run RunType, start, end time.Time) (Draft, error) {
	if start.IsZero() {
		start, end = DefaultPeriod(run, s.now())
	}
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return Draft{}, err
	}
	return NewDraft(run, employees, start, end, s.defaults)
}

// Submit completes and stores the draft after reconciling it against the
// current staff list.
func (s *Service) Submit(ctx context.Context, d Draft) (Payment, error) {
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return Payment{}, err
	}
	d, err = d.Reconcile(employees)
	if err != nil {
		return Payment{}, err
	}
	date := s.now()
	p, err := d.Complete(s.newID(date), date)
	if err != nil {
		return Payment{}, err
	}
	id, err := s.repo.InsertPayment(ctx, p)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("payroll submission failed")
		return Payment{}, err
	}
	p.ID = id
	s.log.Info().
		Str("payment_id", p.PaymentID).
		Str("type", string(p.Type)).
		Int("employees", len(p.Items)).
		Str("total", p.TotalAmount.StringFixed(2)).
		Msg("payroll submitted")
	return p, nil
}

// Void reports whether the payment was voided by this call. A payment that is
// already voided yields false and ErrAlreadyVoided.
func (s *Service) Void(ctx context.Context, id int64) (bool, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return false, err
	}
	if err := p.Void(); err != nil {
		return false, err
	}
	changed, err := s.repo.TransitionPayment(ctx, id, StatusCompleted, StatusVoided)
	if err != nil {
		s.log.Error().Err(err).Int64("id", id).Msg("payroll void failed")
		return false, err
	}
	if !changed {
		return false, ErrAlreadyVoided
	}
	s.log.Info().Int64("id", id).Str("payment_id", p.PaymentID).Msg("payroll voided")
	return true, nil
}

func IsAlreadyVoided(err error) bool {
	return errors.Is(err, ErrAlreadyVoided)
}
