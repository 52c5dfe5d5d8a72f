package api

import (
	"encoding/csv"
	"fmt"
	"net/http"

	"dairyfarm/backend/internal/export"
	"dairyfarm/backend/internal/pdf"
)

// pdfRowLimit keeps the record table on the single page the writer produces.
const pdfRowLimit = 24

func writeReport(w http.ResponseWriter, c reportContent) error {
	base := reportFilename(c.Title)
	switch c.Format {
	case formatCSV:
		attachment(w, "text/csv; charset=utf-8", base+".csv")
		return writeCSVReport(w, c)
	case formatXLSX:
		book, err := reportWorkbook(c)
		if err != nil {
			return err
		}
		attachment(w, xlsxContentType, base+".xlsx")
		_, err = w.Write(book)
		return err
	case formatPDF:
		attachment(w, "application/pdf", base+".pdf")
		_, err := w.Write(reportPDF(c))
		return err
	default:
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".json"))
		respondJSON(w, http.StatusOK, c)
		return nil
	}
}

func writeCSVReport(w http.ResponseWriter, c reportContent) error {
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"report_id", fmt.Sprintf("%d", c.ID)},
		{"title", c.Title},
		{"category", c.Category},
		{"date_range", c.rangeLabel},
		{"generated_on", c.GeneratedOn},
		{},
		{"metric", "value"},
	}
	for _, m := range c.Summary {
		rows = append(rows, []string{m.Label, m.Value})
	}
	rows = append(rows, []string{})
	if len(c.Rows) == 0 {
		rows = append(rows, []string{"records", "none"})
	} else {
		rows = append(rows, c.Columns)
		rows = append(rows, c.Rows...)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv report: %w", err)
	}
	return nil
}

func reportWorkbook(c reportContent) ([]byte, error) {
	summary := export.Sheet{
		Name:    "Summary",
		Columns: []export.Column{{Header: "Metric", Width: 24}, {Header: "Value", Width: 24}},
		Rows: [][]any{
			{"Title", c.Title},
			{"Category", c.Category},
			{"Date Range", c.rangeLabel},
			{"Generated On", c.GeneratedOn},
		},
	}
	for _, m := range c.Summary {
		summary.Rows = append(summary.Rows, []any{m.Label, m.Value})
	}

	records := export.Sheet{Name: "Records"}
	for _, h := range c.Columns {
		records.Columns = append(records.Columns, export.Column{Header: h, Width: 18})
	}
	for _, row := range c.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		records.Rows = append(records.Rows, cells)
	}
	if len(records.Columns) == 0 {
		return export.Workbook(summary)
	}
	return export.Workbook(summary, records)
}

func categoryTheme(category string) pdf.Color {
	switch category {
	case reportHerd:
		return pdf.Color{R: 0.31, G: 0.40, B: 0.18}
	case reportSales:
		return pdf.Color{R: 0.12, G: 0.34, B: 0.48}
	case reportPayroll:
		return pdf.Color{R: 0.45, G: 0.30, B: 0.55}
	default:
		return pdf.Color{R: 0.14, G: 0.45, B: 0.30}
	}
}

var (
	reportPaper = pdf.Color{R: 0.97, G: 0.96, B: 0.93}
	reportInk   = pdf.Color{R: 0.18, G: 0.20, B: 0.18}
	reportMuted = pdf.Color{R: 0.40, G: 0.42, B: 0.40}
	reportRule  = pdf.Color{R: 0.86, G: 0.84, B: 0.79}
)

func reportPDF(c reportContent) []byte {
	accent := categoryTheme(c.Category)
	const margin = 36.0
	width := float64(pdf.PageWidth) - 2*margin

	cv := pdf.NewCanvas()
	cv.FillRect(reportPaper, 0, 0, pdf.PageWidth, pdf.PageHeight)
	cv.FillRect(accent, 0, 758, pdf.PageWidth, 84)
	cv.FillRect(accent.Scale(0.85), 0, 742, pdf.PageWidth, 16)
	cv.Text(pdf.Bold, 22, pdf.White, 48, 804, pdf.Shorten(c.Title, 40))
	cv.Text(pdf.Regular, 10, pdf.White, 48, 784, fmt.Sprintf("%s report, %s", c.Category, c.rangeLabel))
	cv.TextRight(pdf.Regular, 10, pdf.White, pdf.PageWidth-48, 804, fmt.Sprintf("Report #%d", c.ID))
	cv.TextRight(pdf.Regular, 10, pdf.White, pdf.PageWidth-48, 784, "Generated "+c.GeneratedOn)

	// Summary cards, three per row.
	y := 700.0
	cv.Text(pdf.Bold, 13, reportInk, margin, y+14, "Summary")
	cardW := (width - 16) / 3
	for i, m := range c.Summary {
		x := margin + float64(i%3)*(cardW+8)
		top := y - float64(i/3)*40
		cv.FillRect(pdf.White, x, top-34, cardW, 32)
		cv.StrokeRect(reportRule, 0.8, x, top-34, cardW, 32)
		cv.Text(pdf.Regular, 8, reportMuted, x+8, top-14, pdf.Shorten(m.Label, 28))
		cv.Text(pdf.Bold, 11, accent.Scale(0.9), x+8, top-28, pdf.Shorten(m.Value, 26))
	}
	rowsOfCards := (len(c.Summary) + 2) / 3
	y -= float64(rowsOfCards)*40 + 30

	cv.Text(pdf.Bold, 13, reportInk, margin, y, "Records")
	y -= 20
	if len(c.Rows) == 0 {
		cv.Text(pdf.Regular, 10, reportMuted, margin, y, "No records in this range.")
		return cv.Render()
	}

	colW := width / float64(len(c.Columns))
	maxChars := int(colW / 5.5)
	cv.FillRect(accent, margin, y-4, width, 18)
	for i, h := range c.Columns {
		cv.Text(pdf.Bold, 9, pdf.White, margin+float64(i)*colW+4, y+2, pdf.Shorten(h, maxChars))
	}
	y -= 18

	shown := c.Rows
	if len(shown) > pdfRowLimit {
		shown = shown[:pdfRowLimit]
	}
	for n, row := range shown {
		if n%2 == 1 {
			cv.FillRect(pdf.White, margin, y-4, width, 16)
		}
		for i, cell := range row {
			cv.Text(pdf.Regular, 9, reportInk, margin+float64(i)*colW+4, y, pdf.Shorten(cell, maxChars))
		}
		y -= 16
	}
	cv.Line(reportRule, 0.8, margin, y+10, margin+width, y+10)
	if hidden := len(c.Rows) - len(shown); hidden > 0 {
		cv.Text(pdf.Regular, 9, reportMuted, margin, y-4,
			fmt.Sprintf("%d more %s in the CSV or XLSX download.", hidden, plural(hidden, "row", "rows")))
	}
	return cv.Render()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
