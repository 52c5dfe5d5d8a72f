package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/payroll"
	"dairyfarm/backend/internal/payslip"
)

type employeeInput struct {
	Name           string           `json:"name"`
	Position       string           `json:"position"`
	Department     string           `json:"department"`
	Salary         decimal.Decimal  `json:"salary"`
	HourlyRate     decimal.Decimal  `json:"hourlyRate"`
	PayPeriod      string           `json:"payPeriod"`
	TaxWithholding *decimal.Decimal `json:"taxWithholding"`
}

func (in employeeInput) toEmployee() (payroll.Employee, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return payroll.Employee{}, apperr.Invalid("name", "is required")
	}
	if err := nonNegative("salary", in.Salary); err != nil {
		return payroll.Employee{}, err
	}
	if err := nonNegative("hourlyRate", in.HourlyRate); err != nil {
		return payroll.Employee{}, err
	}
	if in.TaxWithholding != nil && (in.TaxWithholding.IsNegative() || in.TaxWithholding.GreaterThan(decimal.NewFromInt(100))) {
		return payroll.Employee{}, apperr.Invalid("taxWithholding", "must be between 0 and 100")
	}
	return payroll.Employee{
		Name:           name,
		Position:       strings.TrimSpace(in.Position),
		Department:     strings.TrimSpace(in.Department),
		Salary:         in.Salary,
		HourlyRate:     in.HourlyRate,
		PayPeriod:      strings.TrimSpace(in.PayPeriod),
		TaxWithholding: in.TaxWithholding,
	}, nil
}

func (s *Server) handleEmployees(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	employees, err := s.store.ListEmployees(ctx)
	if err != nil {
		respondError(w, r, err, "failed to load employees")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": employees})
}

func (s *Server) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var in employeeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := in.toEmployee()
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateEmployee(ctx, e)
	if err != nil {
		respondError(w, r, err, "failed to create employee")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in employeeInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := in.toEmployee()
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	e.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.UpdateEmployee(ctx, e); err != nil {
		respondError(w, r, err, "failed to update employee")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handlePayrollDraft previews a run. Without start/end the run's default
// period around today is used.
func (s *Server) handlePayrollDraft(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type  string `json:"type"`
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	run, err := payroll.ParseRunType(in.Type)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	start, err := optionalDate(in.Start, s.loc())
	if err != nil {
		respondError(w, r, apperr.Invalid("start", "%s", err.Error()), "")
		return
	}
	end, err := optionalDate(in.End, s.loc())
	if err != nil {
		respondError(w, r, apperr.Invalid("end", "%s", err.Error()), "")
		return
	}
	if (start == nil) != (end == nil) {
		respondError(w, r, apperr.Invalid("end", "start and end must be given together"), "")
		return
	}

	var from, to time.Time
	if start != nil {
		from, to = *start, *end
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	draft, err := s.payroll.Preview(ctx, run, from, to)
	if err != nil {
		respondError(w, r, err, "failed to prepare payroll")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"draft": draft, "total": draft.Total()})
}

func (s *Server) handlePayrollRecalculate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Draft      payroll.Draft   `json:"draft"`
		EmployeeID int64           `json:"employeeId"`
		Field      payroll.Field   `json:"field"`
		Value      decimal.Decimal `json:"value"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	draft, err := in.Draft.Apply(in.EmployeeID, payroll.Edit{Field: in.Field, Value: in.Value})
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"draft": draft, "total": draft.Total()})
}

func (s *Server) handleSubmitPayroll(w http.ResponseWriter, r *http.Request) {
	var draft payroll.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	run, err := payroll.ParseRunType(string(draft.Type))
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	draft.Type = run

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	payment, err := s.payroll.Submit(ctx, draft)
	if err != nil {
		respondError(w, r, err, "failed to submit payroll")
		return
	}
	respondJSON(w, http.StatusCreated, payment)
}

func (s *Server) handlePayrollPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListPayments(ctx, listOptions(r))
	if err != nil {
		respondError(w, r, err, "failed to load payroll payments")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetPayrollPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := s.store.GetPayment(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load payroll payment")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleVoidPayroll(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.payroll.Void(ctx, id); err != nil {
		if payroll.IsAlreadyVoided(err) {
			respondJSON(w, http.StatusConflict, map[string]any{"voided": false, "error": "payment already voided"})
			return
		}
		respondError(w, r, err, "failed to void payroll payment")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"voided": true})
}

// handlePayslip renders one employee's slip from a stored payment. When the
// employee record is gone the slip falls back to what the payment item holds.
func (s *Server) handlePayslip(w http.ResponseWriter, r *http.Request) {
	paymentID, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	employeeID, err := parsePathID(r, "employeeId")
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		respondError(w, r, err, "failed to load payroll payment")
		return
	}
	item, ok := p.Item(employeeID)
	if !ok {
		respondError(w, r, apperr.ErrNotFound, "")
		return
	}

	employee := payslip.Employee{ID: payslip.ID(r.PathValue("employeeId")), Name: item.EmployeeName}
	if e, err := s.store.GetEmployee(ctx, employeeID); err == nil {
		employee = payslip.EmployeeFromPayroll(e)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int64("employee_id", employeeID).Msg("employee lookup failed, using payment item")
	}

	artifact, err := payslip.Render(payslip.FromPayroll(p, item), employee, payslip.Options{
		CompanyName:    s.settings.CompanyName,
		CompanyAddress: s.settings.CompanyAddress,
		Now:            s.now,
	})
	if err != nil {
		respondError(w, r, err, "failed to render payslip")
		return
	}
	if artifact.Breakdown.Estimated() {
		w.Header().Set("X-Payslip-Estimated", strings.Join(artifact.Breakdown.EstimatedFields, ","))
	}
	attachment(w, "application/pdf", artifact.Filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Content)
}
