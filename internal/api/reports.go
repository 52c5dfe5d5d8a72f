package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/herd"
	"dairyfarm/backend/internal/payroll"
	"dairyfarm/backend/internal/store"
)

const (
	reportFinancial = "Financial"
	reportSales     = "Sales"
	reportPayroll   = "Payroll"
	reportHerd      = "Herd"
)

const (
	formatPDF  = "PDF"
	formatCSV  = "CSV"
	formatXLSX = "XLSX"
	formatJSON = "JSON"
)

func normalizeReportType(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "financial":
		return reportFinancial, nil
	case "sales":
		return reportSales, nil
	case "payroll":
		return reportPayroll, nil
	case "herd":
		return reportHerd, nil
	default:
		return "", apperr.Invalid("category", "unknown report category %q", v)
	}
}

func normalizeReportFormat(v string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", formatJSON:
		return formatJSON, nil
	case formatPDF:
		return formatPDF, nil
	case formatCSV:
		return formatCSV, nil
	case formatXLSX, "EXCEL":
		return formatXLSX, nil
	default:
		return "", apperr.Invalid("format", "unknown report format %q", v)
	}
}

// normalizeReportRange accepts the calendar ranges only. A saved report is
// re-run against the calendar on every download, so fixed custom dates have
// no meaning there.
func normalizeReportRange(v string) (finance.RangeKind, error) {
	kind, err := finance.ParseRangeKind(v)
	if err != nil {
		return "", err
	}
	if kind == finance.RangeCustom {
		return "", apperr.Invalid("range", "saved reports use month, quarter or year")
	}
	return kind, nil
}

func reportFilename(title string) string {
	base := strings.ToLower(strings.TrimSpace(title))
	base = strings.ReplaceAll(base, " ", "-")
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, base)
	if base == "" {
		return "report"
	}
	return base
}

type reportMetric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// reportContent is a report rebuilt from current records. Every writer
// renders the same metrics and table.
type reportContent struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	Range       map[string]any `json:"range"`
	Format      string         `json:"format"`
	GeneratedOn string         `json:"generatedOn"`
	Summary     []reportMetric `json:"summary"`
	Columns     []string       `json:"columns"`
	Rows        [][]string     `json:"rows"`

	rangeLabel string
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListReports(ctx, listOptions(r))
	if err != nil {
		respondError(w, r, err, "failed to load reports")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title    string `json:"title"`
		Category string `json:"category"`
		Range    string `json:"range"`
		Format   string `json:"format"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	category, err := normalizeReportType(in.Category)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	format, err := normalizeReportFormat(in.Format)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	kind, err := normalizeReportRange(in.Range)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fmt.Sprintf("%s Report (%s)", category, kind)
	}
	uid, _ := currentUserID(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rep, err := s.store.CreateReport(ctx, store.Report{
		Title:         title,
		Category:      category,
		RangeKind:     string(kind),
		Format:        format,
		CreatedBy:     uid,
		LastGenerated: s.today(),
	})
	if err != nil {
		respondError(w, r, err, "failed to generate report")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"ok": true, "report": rep})
}

// handleDownloadReport rebuilds the report and writes it in the stored
// format, or in ?format= when given.
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rep, err := s.store.GetReport(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load report")
		return
	}
	format := rep.Format
	if raw := strings.TrimSpace(r.URL.Query().Get("format")); raw != "" {
		if format, err = normalizeReportFormat(raw); err != nil {
			respondError(w, r, err, "")
			return
		}
	}

	content, err := s.buildReportContent(ctx, rep, format)
	if err != nil {
		respondError(w, r, err, "failed to build report")
		return
	}
	if err := s.store.TouchReport(ctx, rep.ID, s.today()); err != nil {
		respondError(w, r, err, "failed to build report")
		return
	}
	if err := writeReport(w, content); err != nil {
		respondError(w, r, err, "failed to write report")
	}
}

func (s *Server) buildReportContent(ctx context.Context, rep store.Report, format string) (reportContent, error) {
	kind, err := normalizeReportRange(rep.RangeKind)
	if err != nil {
		return reportContent{}, err
	}
	today := s.today()
	rng, err := finance.ResolveRange(kind, s.now(), finance.PolicyTrend, finance.CustomRange{})
	if err != nil {
		return reportContent{}, err
	}
	rng = rng.Closed(today)

	c := reportContent{
		ID:          rep.ID,
		Title:       rep.Title,
		Category:    rep.Category,
		Range:       rangeJSON(rng),
		Format:      format,
		GeneratedOn: s.formatISODate(today),
		Summary:     []reportMetric{},
		Rows:        [][]string{},
		rangeLabel:  fmt.Sprintf("%s to %s", rng.StartDate(), rng.EndDate()),
	}

	switch rep.Category {
	case reportSales:
		err = s.salesReport(ctx, &c, rng)
	case reportPayroll:
		err = s.payrollReport(ctx, &c, rng)
	case reportHerd:
		err = s.herdReport(ctx, &c, rng)
	default:
		err = s.financialReport(ctx, &c, rng)
	}
	return c, err
}

func (c *reportContent) metric(label, value string) {
	c.Summary = append(c.Summary, reportMetric{Label: label, Value: value})
}

func (s *Server) financialReport(ctx context.Context, c *reportContent, rng finance.Range) error {
	invoices, err := s.store.InvoicesIn(ctx, rng)
	if err != nil {
		return err
	}
	revenues, err := s.store.RevenuesIn(ctx, rng)
	if err != nil {
		return err
	}
	expenses, err := s.store.ExpensesIn(ctx, rng)
	if err != nil {
		return err
	}

	totals := finance.TotalsFor(invoices, revenues, expenses)
	c.metric("Revenue", finance.FormatINR(totals.Revenue))
	c.metric("Expenses", finance.FormatINR(totals.Expenses))
	c.metric("Profit", finance.FormatINR(totals.Profit))

	c.Columns = []string{"Expense Category", "Amount", "Share"}
	for _, share := range finance.ExpensesByCategory(expenses, s.settings.CategoryColors) {
		c.Rows = append(c.Rows, []string{share.Name, finance.FormatINR(share.Value), fmt.Sprintf("%d%%", share.Percentage)})
	}
	return nil
}

func (s *Server) salesReport(ctx context.Context, c *reportContent, rng finance.Range) error {
	invoices, err := s.store.InvoicesIn(ctx, rng)
	if err != nil {
		return err
	}

	invoiced, paid, unpaid := decimal.Zero, decimal.Zero, decimal.Zero
	active := finance.ActiveInvoices(invoices)
	for _, inv := range active {
		invoiced = invoiced.Add(inv.Amount)
		switch {
		case inv.Status == finance.StatusPaid:
			paid = paid.Add(inv.Amount)
		case inv.Status.Unpaid():
			unpaid = unpaid.Add(inv.Amount)
		}
	}
	c.metric("Invoices", strconv.Itoa(len(active)))
	c.metric("Invoiced", finance.FormatINR(invoiced))
	c.metric("Paid", finance.FormatINR(paid))
	c.metric("Unpaid", finance.FormatINR(unpaid))

	c.Columns = []string{"Invoice", "Customer", "Date", "Due", "Status", "Amount"}
	for _, inv := range invoices {
		c.Rows = append(c.Rows, []string{
			inv.InvoiceNumber, inv.CustomerName,
			finance.FormatISODate(inv.Date), finance.FormatISODate(inv.DueDate),
			string(inv.Status), finance.FormatINR(inv.Amount),
		})
	}
	return nil
}

func (s *Server) payrollReport(ctx context.Context, c *reportContent, rng finance.Range) error {
	payments, err := s.store.PaymentsWithItemsBetween(ctx, rng.Start, *rng.End)
	if err != nil {
		return err
	}

	gross, net := decimal.Zero, decimal.Zero
	runs, voided := 0, 0
	c.Columns = []string{"Payment", "Date", "Status", "Employee", "Gross", "Deductions", "Net"}
	for _, p := range payments {
		if p.Status == payroll.StatusVoided {
			voided++
		} else {
			runs++
		}
		for _, it := range p.Items {
			if p.Status != payroll.StatusVoided {
				gross = gross.Add(it.GrossPay)
				net = net.Add(it.NetPay)
			}
			c.Rows = append(c.Rows, []string{
				p.PaymentID, finance.FormatISODate(p.Date), string(p.Status), it.EmployeeName,
				finance.FormatINR(it.GrossPay), finance.FormatINR(it.Deductions), finance.FormatINR(it.NetPay),
			})
		}
	}
	c.metric("Pay Runs", strconv.Itoa(runs))
	c.metric("Voided Runs", strconv.Itoa(voided))
	c.metric("Gross Pay", finance.FormatINR(gross))
	c.metric("Net Pay", finance.FormatINR(net))
	return nil
}

func (s *Server) herdReport(ctx context.Context, c *reportContent, rng finance.Range) error {
	cows, err := s.store.AllCows(ctx)
	if err != nil {
		return err
	}
	records, err := s.store.MilkSince(ctx, rng.Start)
	if err != nil {
		return err
	}

	health := herd.SummarizeHealth(cows)
	c.metric("Active Cows", strconv.Itoa(health.ActiveCows))
	for _, st := range health.Statuses {
		c.metric(titleWords(st.Status), fmt.Sprintf("%d (%d%%)", st.Count, st.Percentage))
	}

	total := decimal.Zero
	c.Columns = []string{"Date", "Milk (L)"}
	for _, day := range herd.DailyMilkTrend(records, rng) {
		total = total.Add(day.Liters)
		c.Rows = append(c.Rows, []string{day.Date, day.Liters.StringFixed(1)})
	}
	c.metric("Milk (L)", total.StringFixed(1))
	return nil
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
