package payslip

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/payroll"
)

var fixedNow = func() time.Time { return time.Date(2024, time.February, 2, 10, 0, 0, 0, time.UTC) }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ashaPayment() Payment {
	return Payment{
		ID:             "pay-17",
		GrossPay:       dec("20000"),
		Deductions:     dec("3000"),
		NetPay:         dec("17000"),
		PayPeriodStart: "2024-01-01",
		PayPeriodEnd:   "2024-01-31",
	}
}

var asha = Employee{Name: "Asha Devi", Department: "Milking", JobTitle: "Herder"}

func TestRenderMissingFieldProducesNothing(t *testing.T) {
	p := ashaPayment()
	p.PayPeriodStart = ""

	art, err := Render(p, asha, Options{Now: fixedNow})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "pay_period_start" || !strings.Contains(err.Error(), "pay_period_start") {
		t.Fatalf("unexpected error %v", err)
	}
	if art.Filename != "" || art.Content != nil {
		t.Fatalf("no artifact expected, got %+v", art.Filename)
	}
}

func TestValidateListsEveryMissingField(t *testing.T) {
	err := Validate(Payment{PayPeriodEnd: "2024-01-31"})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, f := range []string{"id", "gross_pay", "net_pay", "pay_period_start"} {
		if !strings.Contains(err.Error(), f) {
			t.Errorf("error %q does not mention %s", err, f)
		}
	}
	if strings.Contains(err.Error(), "pay_period_end") {
		t.Errorf("error %q mentions a present field", err)
	}
}

func TestRenderAshaDevi(t *testing.T) {
	art, err := Render(ashaPayment(), asha, Options{CompanyName: "Green Pastures Dairy", Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if art.Filename != "Payslip_Asha_Devi_2024-01-31.pdf" {
		t.Fatalf("filename = %q", art.Filename)
	}
	if !bytes.HasPrefix(art.Content, []byte("%PDF-1.4")) {
		t.Fatal("content is not a PDF")
	}

	want := []string{"header", "period", "employee", "earnings", "deductions", "summary", "footer"}
	if strings.Join(art.Sections, ",") != strings.Join(want, ",") {
		t.Fatalf("sections = %v", art.Sections)
	}

	doc := string(art.Content)
	for _, s := range []string{
		"January 1, 2024 - January 31, 2024",
		"February 2, 2024",
		"(Asha Devi)",
		"(Milking)",
		"(Herder)",
		"INR 20,000.00",
		"INR 2,000.00",
		"INR 1,000.00",
		"INR 17,000.00",
	} {
		if !strings.Contains(doc, s) {
			t.Errorf("document missing %q", s)
		}
	}
	for _, order := range [][2]string{
		{"(PAYSLIP)", "(PAY PERIOD)"},
		{"(PAY PERIOD)", "(Employee Information)"},
		{"(Employee Information)", "(Earnings)"},
		{"(Earnings)", "(Deductions)"},
		{"(Deductions)", "(Net Pay)"},
		{"(Net Pay)", "does not require a signature"},
	} {
		if strings.Index(doc, order[0]) > strings.Index(doc, order[1]) {
			t.Errorf("%s should be drawn before %s", order[0], order[1])
		}
	}
}

func TestComputeBreakdownEstimationPath(t *testing.T) {
	b := ComputeBreakdown(ashaPayment())
	if !b.Estimated() {
		t.Fatal("totals-only payment must take the estimation path")
	}
	if strings.Join(b.EstimatedFields, ",") != "basic_salary,tax_amount,other_deductions" {
		t.Fatalf("estimated fields = %v", b.EstimatedFields)
	}
	checks := map[string][2]decimal.Decimal{
		"basic":    {b.BasicSalary, decimal.NewFromInt(20000)},
		"overtime": {b.Overtime, decimal.Zero},
		"bonus":    {b.Bonus, decimal.Zero},
		"tax":      {b.TaxAmount, decimal.NewFromInt(2000)},
		"other":    {b.OtherDeductions, decimal.NewFromInt(1000)},
	}
	for name, c := range checks {
		if !c[0].Equal(c[1]) {
			t.Errorf("%s = %s, want %s", name, c[0], c[1])
		}
	}

	p := ashaPayment()
	p.Deductions = nil
	p.Overtime = dec("1500")
	p.Bonus = dec("500")
	b = ComputeBreakdown(p)
	if !b.Deductions.Equal(decimal.NewFromInt(3000)) || !b.BasicSalary.Equal(decimal.NewFromInt(18000)) {
		t.Fatalf("derived deductions/basic = %s/%s", b.Deductions, b.BasicSalary)
	}
	if b.EstimatedFields[1] != "deductions" {
		t.Fatalf("deductions should be flagged, got %v", b.EstimatedFields)
	}
}

func TestComputeBreakdownExactPath(t *testing.T) {
	p := ashaPayment()
	p.BasicSalary = dec("18000")
	p.Overtime = dec("1200")
	p.Bonus = dec("800")
	p.TaxAmount = dec("2400")
	p.OtherDeductions = dec("600")

	b := ComputeBreakdown(p)
	if b.Estimated() {
		t.Fatalf("fully itemised payment flagged as estimated: %v", b.EstimatedFields)
	}
	if !b.TaxAmount.Equal(decimal.NewFromInt(2400)) || !b.OtherDeductions.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("supplied values overridden: %+v", b)
	}

	art, err := Render(p, asha, Options{Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(art.Content), "Estimated from payment totals") {
		t.Fatal("exact payslip must not carry the estimate note")
	}
}

func TestFilename(t *testing.T) {
	now := fixedNow()
	tests := []struct {
		name, end, want string
	}{
		{"Asha Devi", "2024-01-31", "Payslip_Asha_Devi_2024-01-31.pdf"},
		{"  Ravi   Kumar ", "2024-02-14T00:00:00Z", "Payslip_Ravi_Kumar_2024-02-14.pdf"},
		{"O'Brien / Night Shift", "2024-03-31", "Payslip_OBrien__Night_Shift_2024-03-31.pdf"},
		{"", "2024-03-31", "Payslip_Employee_2024-03-31.pdf"},
		{"Asha Devi", "31/01/2024", "Payslip_1706868000000.pdf"},
	}
	for _, tt := range tests {
		if got := Filename(tt.name, tt.end, now); got != tt.want {
			t.Errorf("Filename(%q, %q) = %q, want %q", tt.name, tt.end, got, tt.want)
		}
	}
}

func TestPaymentJSON(t *testing.T) {
	raw := `{"id": 42, "gross_pay": 20000, "net_pay": "17000.00", "pay_period_start": "2024-01-01", "pay_period_end": "2024-01-31"}`
	var p Payment
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatal(err)
	}
	if p.ID != "42" || p.Deductions != nil || p.GrossPay == nil || !p.NetPay.Equal(decimal.NewFromInt(17000)) {
		t.Fatalf("decoded %+v", p)
	}
	if err := Validate(p); err != nil {
		t.Fatalf("decoded payment should validate: %v", err)
	}
}

func TestFromPayroll(t *testing.T) {
	hours := decimal.NewFromInt(80)
	pay := payroll.Payment{
		ID:        7,
		PaymentID: "PAY-20240131-ABCD1234",
		Date:      time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
		Status:    payroll.StatusCompleted,
	}
	item := payroll.Item{
		EmployeeID:     3,
		GrossPay:       decimal.NewFromInt(12000),
		Deductions:     decimal.NewFromInt(1800),
		NetPay:         decimal.NewFromInt(10200),
		HoursWorked:    &hours,
		PayPeriodStart: time.Date(2024, time.January, 18, 0, 0, 0, 0, time.UTC),
		PayPeriodEnd:   time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
	}
	p := FromPayroll(pay, item)
	e := EmployeeFromPayroll(payroll.Employee{ID: 3, Name: "Ravi Kumar", Position: "Milker", Department: "Parlour"})

	art, err := Render(p, e, Options{Now: fixedNow})
	if err != nil {
		t.Fatal(err)
	}
	if art.Filename != "Payslip_Ravi_Kumar_2024-01-31.pdf" {
		t.Fatalf("filename = %q", art.Filename)
	}
	if !strings.Contains(string(art.Content), "(PAY-20240131-ABCD1234)") || !strings.Contains(string(art.Content), "(80.00)") {
		t.Fatal("payment reference or hours missing from document")
	}
}
