package payslip

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/pdf"
)

// Page geometry, in points.
const (
	marginX      = 40.0
	contentWidth = pdf.PageWidth - 2*marginX
	rightEdge    = marginX + contentWidth
	rowHeight    = 20.0
	sectionGap   = 18.0
)

var (
	accent    = pdf.Color{R: 0.13, G: 0.42, B: 0.30}
	ink       = pdf.Color{R: 0.18, G: 0.20, B: 0.18}
	muted     = pdf.Color{R: 0.40, G: 0.42, B: 0.40}
	panel     = pdf.Color{R: 0.97, G: 0.97, B: 0.95}
	border    = pdf.Color{R: 0.84, G: 0.84, B: 0.80}
	rowShade  = pdf.Color{R: 0.94, G: 0.95, B: 0.93}
	warnColor = pdf.Color{R: 0.62, G: 0.38, B: 0.05}
)

type row struct {
	label string
	value string
}

// layout draws the sections top to bottom and returns the document together
// with the section names in drawing order.
func layout(p Payment, e Employee, b Breakdown, opts Options, now time.Time) ([]byte, []string) {
	c := pdf.NewCanvas()
	sections := make([]string, 0, 7)
	y := float64(pdf.PageHeight)

	// header
	company := strings.TrimSpace(opts.CompanyName)
	if company == "" {
		company = "Dairy Farm"
	}
	c.FillRect(accent, 0, y-80, pdf.PageWidth, 80)
	c.Text(pdf.Bold, 20, pdf.White, marginX, y-38, pdf.Shorten(company, 40))
	if addr := strings.TrimSpace(opts.CompanyAddress); addr != "" {
		c.Text(pdf.Regular, 9, pdf.Color{R: 0.90, G: 0.95, B: 0.92}, marginX, y-56, pdf.Shorten(addr, 80))
	}
	c.TextRight(pdf.Bold, 22, pdf.White, rightEdge, y-40, "PAYSLIP")
	y -= 80
	sections = append(sections, "header")

	// pay period, issue date, payment id
	y -= sectionGap
	boxH := 44.0
	c.FillRect(panel, marginX, y-boxH, contentWidth, boxH)
	c.StrokeRect(border, 0.8, marginX, y-boxH, contentWidth, boxH)
	period := longDate(p.PayPeriodStart) + " - " + longDate(p.PayPeriodEnd)
	paymentRef := strings.TrimSpace(p.PaymentID)
	if paymentRef == "" {
		paymentRef = string(p.ID)
	}
	cols := []row{
		{"Pay Period", period},
		{"Issue Date", finance.FormatLongDate(now)},
		{"Payment ID", paymentRef},
	}
	colW := []float64{contentWidth * 0.46, contentWidth * 0.24, contentWidth * 0.30}
	x := marginX + 10
	for i, col := range cols {
		c.Text(pdf.Regular, 8, muted, x, y-16, strings.ToUpper(col.label))
		c.Text(pdf.Bold, 10, ink, x, y-32, pdf.Shorten(col.value, int(colW[i]/5.5)))
		x += colW[i]
	}
	y -= boxH
	sections = append(sections, "period")

	// employee
	y -= sectionGap
	y = sectionTitle(c, y, "Employee Information")
	info := []row{
		{"Name", orDash(e.Name)},
		{"Employee ID", orDash(string(e.ID))},
		{"Department", orDash(e.Department)},
		{"Job Title", orDash(e.JobTitle)},
	}
	half := contentWidth / 2
	for i, r := range info {
		cx := marginX + float64(i%2)*half
		cy := y - float64(i/2)*rowHeight - 14
		c.Text(pdf.Regular, 9, muted, cx, cy, r.label+":")
		c.Text(pdf.Bold, 10, ink, cx+80, cy, pdf.Shorten(r.value, 34))
	}
	y -= float64((len(info)+1)/2)*rowHeight + 6
	sections = append(sections, "employee")

	// earnings
	y -= sectionGap
	earnings := []row{
		{"Basic Salary", money(b.BasicSalary)},
		{"Overtime", money(b.Overtime)},
		{"Bonus", money(b.Bonus)},
	}
	if p.HoursWorked != nil {
		earnings = append(earnings, row{"Hours Worked", p.HoursWorked.StringFixed(2)})
	}
	y = table(c, y, "Earnings", earnings, row{"Gross Earnings", money(b.GrossPay)})
	sections = append(sections, "earnings")

	// deductions
	y -= sectionGap
	deductions := []row{
		{"Income Tax (TDS)", money(b.TaxAmount)},
		{"Other Deductions", money(b.OtherDeductions)},
	}
	y = table(c, y, "Deductions", deductions, row{"Total Deductions", money(b.Deductions)})
	sections = append(sections, "deductions")

	// summary
	y -= sectionGap
	sumH := 70.0
	c.FillRect(panel, marginX, y-sumH, contentWidth, sumH)
	c.StrokeRect(border, 0.8, marginX, y-sumH, contentWidth, sumH)
	c.FillRect(accent, marginX, y-sumH, 6, sumH)
	third := contentWidth / 3
	summary := []row{
		{"Gross Pay", money(b.GrossPay)},
		{"Total Deductions", money(b.Deductions)},
		{"Net Pay", money(b.NetPay)},
	}
	for i, s := range summary {
		cx := marginX + third*float64(i) + third/2
		c.TextCenter(pdf.Regular, 9, muted, cx, y-24, s.label)
		size := 13.0
		col := ink
		if i == len(summary)-1 {
			size = 16
			col = accent
		}
		c.TextCenter(pdf.Bold, size, col, cx, y-46, s.value)
	}
	y -= sumH
	sections = append(sections, "summary")

	if b.Estimated() {
		y -= 16
		note := "* Estimated from payment totals: " + strings.Join(b.EstimatedFields, ", ")
		for _, line := range pdf.Wrap(note, 100) {
			c.Text(pdf.Regular, 8, warnColor, marginX, y, line)
			y -= 11
		}
	}

	// footer
	c.Line(border, 0.6, marginX, 60, rightEdge, 60)
	c.TextCenter(pdf.Regular, 8, muted, pdf.PageWidth/2.0, 44, "This is a computer-generated payslip and does not require a signature.")
	c.TextCenter(pdf.Regular, 8, muted, pdf.PageWidth/2.0, 32, "Generated on "+finance.FormatLongDate(now))
	sections = append(sections, "footer")

	return c.Render(), sections
}

func sectionTitle(c *pdf.Canvas, y float64, title string) float64 {
	c.Text(pdf.Bold, 12, ink, marginX, y-12, title)
	c.Line(accent, 1.2, marginX, y-18, rightEdge, y-18)
	return y - 24
}

// table draws a two-column amount table with a bold total row and returns
// the y below it.
func table(c *pdf.Canvas, y float64, title string, rows []row, total row) float64 {
	y = sectionTitle(c, y, title)
	for i, r := range rows {
		if i%2 == 0 {
			c.FillRect(rowShade, marginX, y-rowHeight, contentWidth, rowHeight)
		}
		c.Text(pdf.Regular, 10, ink, marginX+10, y-14, r.label)
		c.TextRight(pdf.Regular, 10, ink, rightEdge-10, y-14, r.value)
		y -= rowHeight
	}
	c.Line(border, 0.8, marginX, y, rightEdge, y)
	c.Text(pdf.Bold, 10, ink, marginX+10, y-14, total.label)
	c.TextRight(pdf.Bold, 10, ink, rightEdge-10, y-14, total.value)
	return y - rowHeight
}

func money(d decimal.Decimal) string {
	return finance.FormatINRPlain(d)
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return strings.TrimSpace(v)
}
