package api

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"dairyfarm/backend/internal/config"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/store"
)

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return asUser(req, 7, store.RoleOwner)
}

func TestDashboardRefusesStaleFetch(t *testing.T) {
	s := newTestServer()
	s.sequencer.begin(sequenceKey(7, "finance-summary"), 5)

	rec := httptest.NewRecorder()
	s.handleFinanceSummary(rec, jsonRequest(http.MethodGet, "/api/finance/summary?seq=3", ""))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["stale"] != true || body["seq"] != float64(3) {
		t.Fatalf("body = %v", body)
	}
}

func TestDashboardRejectsBadQuery(t *testing.T) {
	s := newTestServer()
	cases := map[string]http.HandlerFunc{
		"/api/finance/summary?range=decade":                                       s.handleFinanceSummary,
		"/api/finance/expenses/trend?granularity=hour":                            s.handleExpenseTrend,
		"/api/finance/summary?range=custom":                                       s.handleFinanceSummary,
		"/api/finance/customers/ranking?top=0":                                    s.handleCustomerRanking,
		"/api/finance/customers/ranking?top=51":                                   s.handleCustomerRanking,
		"/api/finance/invoices/summary?seq=abc":                                   s.handleInvoiceSummary,
		"/api/milk/trend?range=week":                                              s.handleMilkTrend,
		"/api/milk/trend?range=custom&start=0001-01-01&end=9999-12-31":            s.handleMilkTrend,
		"/api/milk/trend?range=custom&start=2023-01-01&end=2024-06-30":            s.handleMilkTrend,
		"/api/finance/revenue/trend?range=custom&start=2000-01-01&end=2024-01-01": s.handleRevenueTrend,
	}
	for target, h := range cases {
		rec := httptest.NewRecorder()
		h(rec, jsonRequest(http.MethodGet, target, ""))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	s := newTestServer()
	cases := []struct {
		body  string
		field string
	}{
		{`{"date":"05/01/2024","amount":10}`, "date"},
		{`{"amount":10}`, "date"},
		{`{"date":"2024-01-05","amount":-1}`, "amount"},
		{`{"date":"2024-01-05","amount":10,"status":"Overdue"}`, "status"},
		{`{"date":"2024-01-05","amount":10,"status":"refunded"}`, "status"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.handleCreateExpense(rec, jsonRequest(http.MethodPost, "/api/expenses", tc.body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.body, rec.Code)
		}
		if body := decodeBody(t, rec); body["field"] != tc.field {
			t.Fatalf("%s: body = %v", tc.body, body)
		}
	}

	rec := httptest.NewRecorder()
	s.handleCreateExpense(rec, jsonRequest(http.MethodPost, "/api/expenses", `{"date":`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed payload: status = %d", rec.Code)
	}
}

func TestExpenseInputNormalises(t *testing.T) {
	in := expenseInput{Date: "2024-01-05", Category: " Feed ", Amount: decimal.RequireFromString("10.005"), Status: "paid"}
	e, err := in.toExpense(ist)
	if err != nil {
		t.Fatal(err)
	}
	if e.Category != "Feed" || e.Status != finance.StatusPaid || !e.Amount.Equal(decimal.RequireFromString("10.01")) {
		t.Fatalf("expense = %+v", e)
	}
	if e.Date.Location() != ist {
		t.Fatalf("date location = %v", e.Date.Location())
	}

	in.Status = ""
	if e, _ := in.toExpense(ist); e.Status != finance.StatusPending {
		t.Fatalf("default status = %s", e.Status)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	s := newTestServer()
	cases := []struct {
		body  string
		field string
	}{
		{`{"invoiceNumber":"INV-1","date":"2024-03-10","dueDate":"2024-03-01","amount":100,"items":[{"amount":100}]}`, "dueDate"},
		{`{"invoiceNumber":"INV-1","date":"2024-03-01","dueDate":"2024-03-31","amount":100,"items":[]}`, "items"},
		{`{"invoiceNumber":"INV-1","date":"2024-03-01","dueDate":"2024-03-31","amount":100,"items":[{"amount":60},{"amount":30}]}`, "amount"},
		{`{"invoiceNumber":" ","date":"2024-03-01","dueDate":"2024-03-31","amount":100,"items":[{"amount":100}]}`, "invoiceNumber"},
		{`{"invoiceNumber":"INV-1","date":"2024-03-01","amount":100,"items":[{"amount":100}]}`, "dueDate"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		s.handleCreateInvoice(rec, jsonRequest(http.MethodPost, "/api/invoices", tc.body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.body, rec.Code)
		}
		if body := decodeBody(t, rec); body["field"] != tc.field {
			t.Fatalf("%s: body = %v", tc.body, body)
		}
	}
}

func TestStatusPatchRejectsUnknownStatus(t *testing.T) {
	s := newTestServer()
	for _, h := range []http.HandlerFunc{s.handleExpenseStatus, s.handleRevenueStatus, s.handleInvoiceStatus} {
		req := jsonRequest(http.MethodPatch, "/api/x/3/status", `{"status":"refunded"}`)
		req.SetPathValue("id", "3")
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	req := jsonRequest(http.MethodPatch, "/api/expenses/abc/status", `{"status":"paid"}`)
	req.SetPathValue("id", "abc")
	rec := httptest.NewRecorder()
	s.handleExpenseStatus(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", rec.Code)
	}
}

func TestCustomerValidation(t *testing.T) {
	if err := validateCustomer(finance.Customer{Name: " "}); err == nil {
		t.Fatal("expected name error")
	}
	if err := validateCustomer(finance.Customer{Name: "Co-op", Email: "nope"}); err == nil {
		t.Fatal("expected email error")
	}
	if err := validateCustomer(finance.Customer{Name: "Co-op", Email: "buyer@coop.test"}); err != nil {
		t.Fatal(err)
	}
}

const hourlyDraft = `{"type":"Bi-weekly Wages","payPeriodStart":"2024-03-01T00:00:00+05:30","payPeriodEnd":"2024-03-14T00:00:00+05:30",
"lines":[{"employeeId":4,"employeeName":"Ravi","hourly":true,"hourlyRate":"100","hoursWorked":"80","taxWithholding":"10",
"grossPay":"8000","deductions":"800","netPay":"7200"}]}`

func TestPayrollRecalculate(t *testing.T) {
	s := newTestServer()
	body := `{"draft":` + hourlyDraft + `,"employeeId":4,"field":"hours_worked","value":"90"}`
	rec := httptest.NewRecorder()
	s.handlePayrollRecalculate(rec, jsonRequest(http.MethodPost, "/api/payroll/draft/recalculate", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	out := decodeBody(t, rec)
	line := out["draft"].(map[string]any)["lines"].([]any)[0].(map[string]any)
	if line["grossPay"] != "9000" || line["deductions"] != "900" || line["netPay"] != "8100" {
		t.Fatalf("line = %v", line)
	}
	if out["total"] != "9000" {
		t.Fatalf("total = %v", out["total"])
	}

	body = `{"draft":` + hourlyDraft + `,"employeeId":99,"field":"hours_worked","value":"90"}`
	rec = httptest.NewRecorder()
	s.handlePayrollRecalculate(rec, jsonRequest(http.MethodPost, "/api/payroll/draft/recalculate", body))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown employee: status = %d", rec.Code)
	}

	body = `{"draft":` + hourlyDraft + `,"employeeId":4,"field":"gross_pay","value":"-5"}`
	rec = httptest.NewRecorder()
	s.handlePayrollRecalculate(rec, jsonRequest(http.MethodPost, "/api/payroll/draft/recalculate", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative value: status = %d", rec.Code)
	}
}

func TestPayrollDraftAndSubmitValidation(t *testing.T) {
	s := newTestServer()
	for _, body := range []string{
		`{"type":"weekly"}`,
		`{"type":"monthly","start":"2024-01-01"}`,
		`{"type":"monthly","start":"2024-01-01","end":"31-01-2024"}`,
	} {
		rec := httptest.NewRecorder()
		s.handlePayrollDraft(rec, jsonRequest(http.MethodPost, "/api/payroll/draft", body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", body, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.handleSubmitPayroll(rec, jsonRequest(http.MethodPost, "/api/payroll/payments", `{"type":"weekly","lines":[]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("submit: status = %d", rec.Code)
	}
}

func TestEmployeeInputValidation(t *testing.T) {
	over := decimal.NewFromInt(101)
	cases := []employeeInput{
		{Name: ""},
		{Name: "Asha", Salary: decimal.NewFromInt(-1)},
		{Name: "Asha", HourlyRate: decimal.NewFromInt(-1)},
		{Name: "Asha", TaxWithholding: &over},
	}
	for _, in := range cases {
		if _, err := in.toEmployee(); err == nil {
			t.Fatalf("expected error for %+v", in)
		}
	}
}

func TestHerdInputValidation(t *testing.T) {
	s := newTestServer()
	s.clock = func() time.Time { return time.Date(2024, time.March, 13, 6, 0, 0, 0, ist) }

	cases := []struct {
		h    http.HandlerFunc
		body string
	}{
		{s.handleCreateMilkRecord, `{"cowId":1,"date":"2024-03-12","session":"noon","liters":10}`},
		{s.handleCreateMilkRecord, `{"cowId":1,"session":"morning","liters":10}`},
		{s.handleCreateMilkRecord, `{"cowId":1,"date":"2024-03-12","session":"morning","liters":-2}`},
		{s.handleCreateInspection, `{"cowId":1,"inspectedOn":"2024-03-20","bodyCondition":3}`},
		{s.handleCreateInspection, `{"cowId":1,"bodyCondition":6}`},
		{s.handleCreateInspection, `{"cowId":1,"bodyCondition":3,"lamenessScore":4}`},
		{s.handleCreateCow, `{"tagNumber":" "}`},
		{s.handleCreateCow, `{"tagNumber":"T-1","dateOfBirth":"yesterday"}`},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		tc.h(rec, jsonRequest(http.MethodPost, "/", tc.body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tc.body, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	s.handleMilkRecords(rec, jsonRequest(http.MethodGet, "/api/milk?cowId=x", ""))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("cowId: status = %d", rec.Code)
	}
}

func TestExportRejectsUnknownKind(t *testing.T) {
	s := newTestServer()
	req := jsonRequest(http.MethodGet, "/api/exports/cows.xlsx", "")
	req.SetPathValue("file", "cows.xlsx")
	rec := httptest.NewRecorder()
	s.handleExport(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReminderRequiresMailer(t *testing.T) {
	s := newTestServer()
	req := jsonRequest(http.MethodPost, "/api/invoices/3/remind", "")
	req.SetPathValue("id", "3")
	rec := httptest.NewRecorder()
	s.handleInvoiceReminder(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReminderMessage(t *testing.T) {
	inv := finance.Invoice{
		InvoiceNumber: "INV-1001",
		Date:          time.Date(2024, time.February, 1, 0, 0, 0, 0, ist),
		DueDate:       time.Date(2024, time.March, 1, 0, 0, 0, 0, ist),
		Amount:        decimal.RequireFromString("125000"),
		Status:        finance.StatusPending,
	}
	c := finance.Customer{Name: "Green Valley Co-op", ContactPerson: "Meena"}

	subject, body := reminderMessage(inv, c, "Sunrise Dairy", time.Date(2024, time.March, 11, 0, 0, 0, 0, ist))
	if subject != "Overdue: invoice INV-1001" {
		t.Fatalf("subject = %q", subject)
	}
	for _, want := range []string{"Dear Meena,", "₹1,25,000.00", "10 days overdue", "Sunrise Dairy"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}

	subject, body = reminderMessage(inv, finance.Customer{Name: "Green Valley Co-op"}, "Sunrise Dairy", time.Date(2024, time.February, 20, 0, 0, 0, 0, ist))
	if subject != "Payment reminder: invoice INV-1001" || !strings.Contains(body, "is due on March 1, 2024") {
		t.Fatalf("subject = %q body = %s", subject, body)
	}
	if !strings.Contains(body, "Dear Green Valley Co-op,") {
		t.Fatalf("greeting fallback missing: %s", body)
	}
}

func TestNewSMTPMailer(t *testing.T) {
	cfg := config.SMTPConfig{Host: "smtp.test", Port: "587", Username: "accounts", Password: "secret"}
	if m := NewSMTPMailer(cfg); m != nil {
		t.Fatalf("mailer without sender address = %#v", m)
	}
	cfg.FromAddr = "accounts@farm.test"
	if m := NewSMTPMailer(cfg); m == nil {
		t.Fatal("expected a mailer once the sender is set")
	}
}

func TestGenerateReportValidation(t *testing.T) {
	s := newTestServer()
	for _, body := range []string{
		`{"category":"weather"}`,
		`{"category":"sales","format":"docx"}`,
		`{"category":"sales","range":"custom"}`,
		`{"category":"sales","range":"fortnight"}`,
	} {
		rec := httptest.NewRecorder()
		s.handleGenerateReport(rec, jsonRequest(http.MethodPost, "/api/reports/generate", body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", body, rec.Code)
		}
	}
}

func TestNormalizeReportFormat(t *testing.T) {
	cases := map[string]string{"": formatJSON, "pdf": formatPDF, " csv ": formatCSV, "excel": formatXLSX, "XLSX": formatXLSX}
	for in, want := range cases {
		got, err := normalizeReportFormat(in)
		if err != nil || got != want {
			t.Fatalf("%q -> %q, %v", in, got, err)
		}
	}
}

func TestReportFilename(t *testing.T) {
	if got := reportFilename("Q1 Sales / North!"); got != "q1-sales--north" {
		t.Fatalf("filename = %q", got)
	}
	if got := reportFilename("!!!"); got != "report" {
		t.Fatalf("fallback = %q", got)
	}
}

func sampleReport(rows int) reportContent {
	c := reportContent{
		ID:          4,
		Title:       "March Sales",
		Category:    reportSales,
		Format:      formatCSV,
		GeneratedOn: "2024-03-31",
		Columns:     []string{"Invoice", "Amount"},
		rangeLabel:  "2024-03-01 to 2024-03-31",
	}
	c.metric("Invoices", "2")
	c.metric("Invoiced", "₹1,500.00")
	for i := 0; i < rows; i++ {
		c.Rows = append(c.Rows, []string{"INV-" + string(rune('A'+i%26)), "₹750.00"})
	}
	return c
}

func TestWriteCSVReport(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writeReport(rec, sampleReport(2)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "march-sales.csv") {
		t.Fatalf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	r := csv.NewReader(bytes.NewReader(rec.Body.Bytes()))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if rows[0][0] != "report_id" || rows[0][1] != "4" {
		t.Fatalf("first row = %v", rows[0])
	}
	last := rows[len(rows)-1]
	if last[0] != "INV-B" || last[1] != "₹750.00" {
		t.Fatalf("last row = %v", last)
	}
}

func TestReportWorkbook(t *testing.T) {
	book, err := reportWorkbook(sampleReport(3))
	if err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(book))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	if sheets := f.GetSheetList(); len(sheets) != 2 || sheets[0] != "Summary" || sheets[1] != "Records" {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows("Records")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || rows[0][0] != "Invoice" || rows[3][0] != "INV-C" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestReportPDF(t *testing.T) {
	doc := reportPDF(sampleReport(30))
	if !bytes.HasPrefix(doc, []byte("%PDF-1.4")) || !bytes.HasSuffix(doc, []byte("%%EOF")) {
		t.Fatal("not a pdf document")
	}
	for _, want := range []string{"(March Sales)", "(Rs.1,500.00)", "(6 more rows in the CSV or XLSX download.)"} {
		if !bytes.Contains(doc, []byte(want)) {
			t.Fatalf("pdf missing %s", want)
		}
	}

	empty := reportPDF(reportContent{Title: "Empty", Category: reportHerd})
	if !bytes.Contains(empty, []byte("(No records in this range.)")) {
		t.Fatal("empty report should say so")
	}
}
