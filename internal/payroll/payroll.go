// Package payroll computes pay runs: which employees a run covers, their
// gross, withholding and net pay, how draft edits cascade, and the
// Completed to Voided lifecycle of a submitted payment.
package payroll

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
)

type RunType string

const (
	MonthlySalary RunType = "Monthly Salary"
	BiweeklyWages RunType = "Bi-weekly Wages"
)

func ParseRunType(raw string) (RunType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "monthly salary", "monthly", "salary":
		return MonthlySalary, nil
	case "bi-weekly wages", "biweekly wages", "bi-weekly", "biweekly", "wages":
		return BiweeklyWages, nil
	default:
		return "", apperr.Invalid("type", "unknown payroll type %q", raw)
	}
}

var (
	ErrAlreadyVoided = fmt.Errorf("%w: payment already voided", apperr.ErrConflict)
	ErrEmptyRun      = errors.New("no eligible employees for this run")
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// Employee is the payroll view of a staff record. Exactly one of Salary
// (annual) and HourlyRate is the active basis.
type Employee struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Position       string           `json:"position"`
	Department     string           `json:"department"`
	Salary         decimal.Decimal  `json:"salary"`
	HourlyRate     decimal.Decimal  `json:"hourlyRate"`
	PayPeriod      string           `json:"payPeriod"`
	TaxWithholding *decimal.Decimal `json:"taxWithholding"`
	LastPaid       *time.Time       `json:"lastPaid"`
}

type Defaults struct {
	TaxWithholding decimal.Decimal
	HoursWorked    decimal.Decimal
}

func DefaultDefaults() Defaults {
	return Defaults{TaxWithholding: decimal.NewFromInt(15), HoursWorked: decimal.NewFromInt(80)}
}

// Eligible keeps the employees a run pays: salaried staff for a monthly run,
// hourly staff for a wages run. Anyone else is left out without error.
func Eligible(run RunType, employees []Employee) []Employee {
	out := make([]Employee, 0, len(employees))
	for _, e := range employees {
		switch run {
		case MonthlySalary:
			if e.Salary.IsPositive() {
				out = append(out, e)
			}
		case BiweeklyWages:
			if e.HourlyRate.IsPositive() {
				out = append(out, e)
			}
		}
	}
	return out
}

// DefaultPeriod is the calendar month of ref for salaried runs and the
// fourteen days ending on ref for wage runs.
func DefaultPeriod(run RunType, ref time.Time) (time.Time, time.Time) {
	d := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	if run == BiweeklyWages {
		return d.AddDate(0, 0, -13), d
	}
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	return start, start.AddDate(0, 1, -1)
}

// Line is one employee's row in a draft run.
type Line struct {
	EmployeeID     int64           `json:"employeeId"`
	EmployeeName   string          `json:"employeeName"`
	Hourly         bool            `json:"hourly"`
	HourlyRate     decimal.Decimal `json:"hourlyRate"`
	HoursWorked    decimal.Decimal `json:"hoursWorked"`
	TaxWithholding decimal.Decimal `json:"taxWithholding"`
	GrossPay       decimal.Decimal `json:"grossPay"`
	Deductions     decimal.Decimal `json:"deductions"`
	NetPay         decimal.Decimal `json:"netPay"`
}

// NewLine computes the opening figures for e.
func NewLine(run RunType, e Employee, d Defaults) Line {
	l := Line{
		EmployeeID:     e.ID,
		EmployeeName:   e.Name,
		TaxWithholding: d.TaxWithholding,
	}
	if e.TaxWithholding != nil {
		l.TaxWithholding = *e.TaxWithholding
	}
	if run == BiweeklyWages {
		l.Hourly = true
		l.HourlyRate = e.HourlyRate
		l.HoursWorked = d.HoursWorked
		l.GrossPay = l.HourlyRate.Mul(l.HoursWorked).Round(2)
	} else {
		l.GrossPay = e.Salary.Div(monthsPerYear).Round(2)
	}
	return l.withDeductions()
}

func (l Line) withDeductions() Line {
	l.Deductions = l.GrossPay.Mul(l.TaxWithholding).Div(hundred).Round(2)
	return l.withNet()
}

func (l Line) withNet() Line {
	l.NetPay = l.GrossPay.Sub(l.Deductions)
	return l
}

type Field string

const (
	FieldHourlyRate  Field = "hourly_rate"
	FieldHoursWorked Field = "hours_worked"
	FieldGrossPay    Field = "gross_pay"
	FieldDeductions  Field = "deductions"
)

type Edit struct {
	Field Field           `json:"field"`
	Value decimal.Decimal `json:"value"`
}

// Apply returns l with one field changed and its dependents recomputed:
// rate or hours flow into gross, gross into deductions, deductions into net.
// Applying the same edit twice gives the same line.
func (l Line) Apply(e Edit) (Line, error) {
	if e.Value.IsNegative() {
		return l, apperr.Invalid(string(e.Field), "must not be negative")
	}
	switch e.Field {
	case FieldHourlyRate, FieldHoursWorked:
		if !l.Hourly {
			return l, apperr.Invalid(string(e.Field), "only applies to hourly employees")
		}
		if e.Field == FieldHourlyRate {
			l.HourlyRate = e.Value
		} else {
			l.HoursWorked = e.Value
		}
		l.GrossPay = l.HourlyRate.Mul(l.HoursWorked).Round(2)
		return l.withDeductions(), nil
	case FieldGrossPay:
		l.GrossPay = e.Value.Round(2)
		return l.withDeductions(), nil
	case FieldDeductions:
		l.Deductions = e.Value.Round(2)
		return l.withNet(), nil
	default:
		return l, apperr.Invalid("field", "unknown field %q", string(e.Field))
	}
}

// Draft is an unsaved pay run. It lives only until it is completed.
type Draft struct {
	Type           RunType   `json:"type"`
	PayPeriodStart time.Time `json:"payPeriodStart"`
	PayPeriodEnd   time.Time `json:"payPeriodEnd"`
	Lines          []Line    `json:"lines"`
}

func NewDraft(run RunType, employees []Employee, start, end time.Time, d Defaults) (Draft, error) {
	if end.Before(start) {
		return Draft{}, apperr.Invalid("payPeriodEnd", "must not be before the period start")
	}
	eligible := Eligible(run, employees)
	draft := Draft{Type: run, PayPeriodStart: start, PayPeriodEnd: end, Lines: make([]Line, 0, len(eligible))}
	for _, e := range eligible {
		draft.Lines = append(draft.Lines, NewLine(run, e, d))
	}
	return draft, nil
}

// Apply edits the line for employeeID and returns a new draft.
func (d Draft) Apply(employeeID int64, e Edit) (Draft, error) {
	lines := make([]Line, len(d.Lines))
	copy(lines, d.Lines)
	for i := range lines {
		if lines[i].EmployeeID != employeeID {
			continue
		}
		updated, err := lines[i].Apply(e)
		if err != nil {
			return d, err
		}
		lines[i] = updated
		d.Lines = lines
		return d, nil
	}
	return d, fmt.Errorf("%w: employee %d is not in this run", apperr.ErrNotFound, employeeID)
}

// Reconcile checks a draft that came back from a client against the current
// staff list. Each line must belong to an employee the run pays, once, with
// non-negative figures and deductions no larger than gross. Names and the
// pay basis are taken from the staff record and net pay is recomputed.
func (d Draft) Reconcile(employees []Employee) (Draft, error) {
	if d.PayPeriodStart.IsZero() {
		return d, apperr.Invalid("payPeriodStart", "is required")
	}
	if d.PayPeriodEnd.IsZero() {
		return d, apperr.Invalid("payPeriodEnd", "is required")
	}
	if d.PayPeriodEnd.Before(d.PayPeriodStart) {
		return d, apperr.Invalid("payPeriodEnd", "must not be before the period start")
	}

	eligible := make(map[int64]Employee)
	for _, e := range Eligible(d.Type, employees) {
		eligible[e.ID] = e
	}
	seen := make(map[int64]bool, len(d.Lines))
	lines := make([]Line, len(d.Lines))
	for i, l := range d.Lines {
		field := func(name string) string { return fmt.Sprintf("lines[%d].%s", i, name) }
		e, ok := eligible[l.EmployeeID]
		if !ok {
			return d, apperr.Invalid(field("employeeId"), "employee %d is not paid by a %s run", l.EmployeeID, d.Type)
		}
		if seen[l.EmployeeID] {
			return d, apperr.Invalid(field("employeeId"), "employee %d appears more than once", l.EmployeeID)
		}
		seen[l.EmployeeID] = true

		for _, f := range []struct {
			name  string
			value decimal.Decimal
		}{
			{"hourlyRate", l.HourlyRate},
			{"hoursWorked", l.HoursWorked},
			{"grossPay", l.GrossPay},
			{"deductions", l.Deductions},
		} {
			if f.value.IsNegative() {
				return d, apperr.Invalid(field(f.name), "must not be negative")
			}
		}
		if l.Deductions.GreaterThan(l.GrossPay) {
			return d, apperr.Invalid(field("deductions"), "must not exceed gross pay")
		}

		l.EmployeeName = e.Name
		l.Hourly = d.Type == BiweeklyWages
		if !l.Hourly {
			l.HourlyRate, l.HoursWorked = decimal.Zero, decimal.Zero
		}
		l.GrossPay = l.GrossPay.Round(2)
		l.Deductions = l.Deductions.Round(2)
		lines[i] = l.withNet()
	}
	d.Lines = lines
	return d, nil
}

func (d Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.GrossPay)
	}
	return total
}

// Complete turns the draft into a payment ready to persist.
func (d Draft) Complete(paymentID string, date time.Time) (Payment, error) {
	if len(d.Lines) == 0 {
		return Payment{}, ErrEmptyRun
	}
	p := Payment{
		PaymentID:   paymentID,
		Date:        date,
		Type:        d.Type,
		TotalAmount: d.Total(),
		Status:      StatusCompleted,
		Items:       make([]Item, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		it := Item{
			EmployeeID:     l.EmployeeID,
			EmployeeName:   l.EmployeeName,
			GrossPay:       l.GrossPay,
			Deductions:     l.Deductions,
			NetPay:         l.NetPay,
			PayPeriodStart: d.PayPeriodStart,
			PayPeriodEnd:   d.PayPeriodEnd,
		}
		if l.Hourly {
			hours := l.HoursWorked
			it.HoursWorked = &hours
		}
		p.Items = append(p.Items, it)
	}
	return p, p.Validate()
}

type PaymentStatus string

const (
	StatusCompleted PaymentStatus = "Completed"
	StatusVoided    PaymentStatus = "Voided"
)

type Item struct {
	EmployeeID     int64            `json:"employeeId"`
	EmployeeName   string           `json:"employeeName"`
	GrossPay       decimal.Decimal  `json:"grossPay"`
	Deductions     decimal.Decimal  `json:"deductions"`
	NetPay         decimal.Decimal  `json:"netPay"`
	HoursWorked    *decimal.Decimal `json:"hoursWorked"`
	PayPeriodStart time.Time        `json:"payPeriodStart"`
	PayPeriodEnd   time.Time        `json:"payPeriodEnd"`
}

type Payment struct {
	ID          int64           `json:"id"`
	PaymentID   string          `json:"paymentId"`
	Date        time.Time       `json:"date"`
	Type        RunType         `json:"type"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Status      PaymentStatus   `json:"status"`
	Items       []Item          `json:"items"`
}

// Validate checks net = gross - deductions on every item and that the total
// is the sum of gross pay.
func (p Payment) Validate() error {
	sum := decimal.Zero
	for i, it := range p.Items {
		if !it.NetPay.Equal(it.GrossPay.Sub(it.Deductions)) {
			return apperr.Invalid(fmt.Sprintf("items[%d].netPay", i), "must equal gross pay minus deductions")
		}
		sum = sum.Add(it.GrossPay)
	}
	if !sum.Equal(p.TotalAmount) {
		return apperr.Invalid("totalAmount", "must equal the sum of gross pay (%s)", sum.StringFixed(2))
	}
	return nil
}

// Void marks the payment voided. It only flips the status; no ledger entries
// are reversed.
func (p *Payment) Void() error {
	if p.Status == StatusVoided {
		return ErrAlreadyVoided
	}
	p.Status = StatusVoided
	return nil
}

func (p Payment) Item(employeeID int64) (Item, bool) {
	for _, it := range p.Items {
		if it.EmployeeID == employeeID {
			return it, true
		}
	}
	return Item{}, false
}
