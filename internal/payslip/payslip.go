// Package payslip renders a single payroll payment for one employee as a
// one-page PDF.
//
// Payments stored before itemised pay was recorded only carry totals. For
// those the renderer estimates the breakdown: overtime and bonus default to
// zero, basic salary is gross minus both, tax is 10% of gross and other
// deductions are whatever remains of the total deductions. The estimated
// fields are listed on the artifact and printed on the document.
package payslip

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/payroll"
)

var estimatedTaxRate = decimal.RequireFromString("0.10")

// ID accepts either a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Payment is the payslip view of one employee's pay. Pointer fields are
// optional; nil means the source did not supply the value.
type Payment struct {
	ID              ID               `json:"id"`
	PaymentID       string           `json:"payment_id"`
	GrossPay        *decimal.Decimal `json:"gross_pay"`
	NetPay          *decimal.Decimal `json:"net_pay"`
	Deductions      *decimal.Decimal `json:"deductions"`
	BasicSalary     *decimal.Decimal `json:"basic_salary"`
	Overtime        *decimal.Decimal `json:"overtime"`
	Bonus           *decimal.Decimal `json:"bonus"`
	TaxAmount       *decimal.Decimal `json:"tax_amount"`
	OtherDeductions *decimal.Decimal `json:"other_deductions"`
	HoursWorked     *decimal.Decimal `json:"hours_worked"`
	PayPeriodStart  string           `json:"pay_period_start"`
	PayPeriodEnd    string           `json:"pay_period_end"`
	PaymentDate     string           `json:"payment_date"`
	Status          string           `json:"status"`
}

type Employee struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	JobTitle   string `json:"job_title"`
	Email      string `json:"email"`
}

// FromPayroll adapts a stored payroll item.
func FromPayroll(p payroll.Payment, it payroll.Item) Payment {
	gross, net, ded := it.GrossPay, it.NetPay, it.Deductions
	return Payment{
		ID:             ID(fmt.Sprintf("%d-%d", p.ID, it.EmployeeID)),
		PaymentID:      p.PaymentID,
		GrossPay:       &gross,
		NetPay:         &net,
		Deductions:     &ded,
		HoursWorked:    it.HoursWorked,
		PayPeriodStart: finance.FormatISODate(it.PayPeriodStart),
		PayPeriodEnd:   finance.FormatISODate(it.PayPeriodEnd),
		PaymentDate:    finance.FormatISODate(p.Date),
		Status:         string(p.Status),
	}
}

func EmployeeFromPayroll(e payroll.Employee) Employee {
	return Employee{
		ID:         ID(fmt.Sprintf("%d", e.ID)),
		Name:       e.Name,
		Department: e.Department,
		JobTitle:   e.Position,
	}
}

type Options struct {
	CompanyName    string
	CompanyAddress string
	// Now stamps the issue date and the fallback filename. Defaults to time.Now.
	Now func() time.Time
}

// Breakdown is the itemised pay shown on the document.
type Breakdown struct {
	BasicSalary     decimal.Decimal
	Overtime        decimal.Decimal
	Bonus           decimal.Decimal
	GrossPay        decimal.Decimal
	TaxAmount       decimal.Decimal
	OtherDeductions decimal.Decimal
	Deductions      decimal.Decimal
	NetPay          decimal.Decimal
	EstimatedFields []string
}

func (b Breakdown) Estimated() bool { return len(b.EstimatedFields) > 0 }

type Artifact struct {
	Filename  string
	Content   []byte
	Breakdown Breakdown
	Sections  []string
}

// Validate reports every missing required field in one error.
func Validate(p Payment) error {
	var missing []string
	if strings.TrimSpace(string(p.ID)) == "" {
		missing = append(missing, "id")
	}
	if p.GrossPay == nil {
		missing = append(missing, "gross_pay")
	}
	if p.NetPay == nil {
		missing = append(missing, "net_pay")
	}
	if strings.TrimSpace(p.PayPeriodStart) == "" {
		missing = append(missing, "pay_period_start")
	}
	if strings.TrimSpace(p.PayPeriodEnd) == "" {
		missing = append(missing, "pay_period_end")
	}
	if len(missing) == 0 {
		return nil
	}
	return &apperr.ValidationError{
		Field:   missing[0],
		Message: "payslip requires " + strings.Join(missing, ", "),
	}
}

// ComputeBreakdown fills in the itemised figures, estimating the ones the
// payment does not carry.
func ComputeBreakdown(p Payment) Breakdown {
	b := Breakdown{GrossPay: *p.GrossPay, NetPay: *p.NetPay}

	b.Overtime = valueOr(p.Overtime, decimal.Zero)
	b.Bonus = valueOr(p.Bonus, decimal.Zero)

	if p.BasicSalary != nil {
		b.BasicSalary = *p.BasicSalary
	} else {
		b.BasicSalary = b.GrossPay.Sub(b.Overtime).Sub(b.Bonus)
		b.EstimatedFields = append(b.EstimatedFields, "basic_salary")
	}

	if p.Deductions != nil {
		b.Deductions = *p.Deductions
	} else {
		b.Deductions = b.GrossPay.Sub(b.NetPay)
		b.EstimatedFields = append(b.EstimatedFields, "deductions")
	}

	if p.TaxAmount != nil {
		b.TaxAmount = *p.TaxAmount
	} else {
		b.TaxAmount = b.GrossPay.Mul(estimatedTaxRate).Round(2)
		b.EstimatedFields = append(b.EstimatedFields, "tax_amount")
	}

	if p.OtherDeductions != nil {
		b.OtherDeductions = *p.OtherDeductions
	} else {
		b.OtherDeductions = b.Deductions.Sub(b.TaxAmount)
		b.EstimatedFields = append(b.EstimatedFields, "other_deductions")
	}
	return b
}

func valueOr(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}

// Render validates the payment and lays out the payslip. Nothing is produced
// when validation fails.
func Render(p Payment, e Employee, opts Options) (Artifact, error) {
	if err := Validate(p); err != nil {
		return Artifact{}, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := opts.Now()
	b := ComputeBreakdown(p)

	content, sections := layout(p, e, b, opts, now)
	return Artifact{
		Filename:  Filename(e.Name, p.PayPeriodEnd, now),
		Content:   content,
		Breakdown: b,
		Sections:  sections,
	}, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Filename is Payslip_<name>_<period end>.pdf, or Payslip_<unix ms>.pdf when
// the period end is not a date.
func Filename(employeeName, payPeriodEnd string, now time.Time) string {
	end, ok := parseDate(payPeriodEnd)
	if !ok {
		return fmt.Sprintf("Payslip_%d.pdf", now.UnixMilli())
	}
	name := strings.Join(strings.Fields(employeeName), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	if name == "" {
		name = "Employee"
	}
	return fmt.Sprintf("Payslip_%s_%s.pdf", name, finance.FormatISODate(end))
}

func parseDate(raw string) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	if len(v) > 10 {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		v = v[:10]
	}
	t, err := time.Parse(finance.ISODateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// longDate renders an ISO date as "January 2, 2006", or returns raw as-is
// when it does not parse.
func longDate(raw string) string {
	t, ok := parseDate(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return finance.FormatLongDate(t)
}
