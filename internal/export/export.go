// Package export writes finance and payroll records as XLSX workbooks.
package export

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/payroll"
)

type Kind string

const (
	KindExpenses Kind = "expenses"
	KindInvoices Kind = "invoices"
	KindPayroll  Kind = "payroll"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindExpenses:
		return KindExpenses, nil
	case KindInvoices:
		return KindInvoices, nil
	case KindPayroll:
		return KindPayroll, nil
	default:
		return "", apperr.Invalid("kind", "unknown export %q", raw)
	}
}

// Filename is <kind>_<start>_<end>.xlsx, or <kind>_<start>.xlsx for an open
// range.
func Filename(kind Kind, rng finance.Range) string {
	if rng.End == nil {
		return fmt.Sprintf("%s_%s.xlsx", kind, rng.StartDate())
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", kind, rng.StartDate(), rng.EndDate())
}

// Column describes one sheet column. Money columns get a two-decimal number
// format and a total in the footer row.
type Column struct {
	Header string
	Width  float64
	Money  bool
}

// Sheet is a titled table ready to be written.
type Sheet struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// Workbook writes every sheet into one workbook, in order.
func Workbook(sheets ...Sheet) ([]byte, error) {
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook needs at least one sheet")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#216B4D"}},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("money style: %w", err)
	}
	total, err := f.NewStyle(&excelize.Style{NumFmt: 4, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("total style: %w", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return nil, fmt.Errorf("new sheet %s: %w", sh.Name, err)
		}
		if err := writeSheet(f, sh, header, money, total); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sh Sheet, headerStyle, moneyStyle, totalStyle int) error {
	set := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sh.Name, cell, v)
	}

	for i, c := range sh.Columns {
		if err := set(i+1, 1, c.Header); err != nil {
			return fmt.Errorf("%s header: %w", sh.Name, err)
		}
		name, _ := excelize.ColumnNumberToName(i + 1)
		width := c.Width
		if width == 0 {
			width = 16
		}
		if err := f.SetColWidth(sh.Name, name, name, width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(sh.Columns), 1)
	if err := f.SetCellStyle(sh.Name, "A1", last, headerStyle); err != nil {
		return err
	}

	totals := make([]decimal.Decimal, len(sh.Columns))
	for r, row := range sh.Rows {
		for c, v := range row {
			if d, ok := v.(decimal.Decimal); ok {
				if c < len(totals) {
					totals[c] = totals[c].Add(d)
				}
				v = d.Round(2).InexactFloat64()
			}
			if err := set(c+1, r+2, v); err != nil {
				return fmt.Errorf("%s row %d: %w", sh.Name, r+1, err)
			}
		}
	}

	footer := len(sh.Rows) + 2
	hasMoney := false
	for i, c := range sh.Columns {
		if !c.Money {
			continue
		}
		hasMoney = true
		name, _ := excelize.ColumnNumberToName(i + 1)
		if len(sh.Rows) > 0 {
			if err := f.SetCellStyle(sh.Name, fmt.Sprintf("%s2", name), fmt.Sprintf("%s%d", name, footer-1), moneyStyle); err != nil {
				return err
			}
		}
		if err := set(i+1, footer, totals[i].Round(2).InexactFloat64()); err != nil {
			return err
		}
		cell := fmt.Sprintf("%s%d", name, footer)
		if err := f.SetCellStyle(sh.Name, cell, cell, totalStyle); err != nil {
			return err
		}
	}
	if hasMoney {
		return set(1, footer, "Total")
	}
	return nil
}

func ExpensesSheet(expenses []finance.Expense) Sheet {
	rows := make([][]any, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, []any{
			finance.FormatISODate(e.Date), e.Category, e.Description, e.Vendor,
			string(e.Status), e.PaymentMethod, e.Amount,
		})
	}
	return Sheet{
		Name: "Expenses",
		Columns: []Column{
			{Header: "Date", Width: 12},
			{Header: "Category", Width: 16},
			{Header: "Description", Width: 40},
			{Header: "Vendor", Width: 24},
			{Header: "Status", Width: 12},
			{Header: "Payment Method", Width: 16},
			{Header: "Amount (INR)", Width: 16, Money: true},
		},
		Rows: rows,
	}
}

// InvoicesSheets returns the invoice headers and their line items as two
// sheets.
func InvoicesSheets(invoices []finance.Invoice) []Sheet {
	heads := make([][]any, 0, len(invoices))
	items := make([][]any, 0)
	for _, inv := range invoices {
		heads = append(heads, []any{
			inv.InvoiceNumber, inv.CustomerName, finance.FormatISODate(inv.Date),
			finance.FormatISODate(inv.DueDate), string(inv.Status), inv.Amount,
		})
		for _, it := range inv.Items {
			items = append(items, []any{
				inv.InvoiceNumber, it.Description, it.Category,
				it.Quantity.InexactFloat64(), it.UnitPrice, it.Amount,
			})
		}
	}
	return []Sheet{
		{
			Name: "Invoices",
			Columns: []Column{
				{Header: "Invoice #", Width: 16},
				{Header: "Customer", Width: 28},
				{Header: "Date", Width: 12},
				{Header: "Due Date", Width: 12},
				{Header: "Status", Width: 12},
				{Header: "Amount (INR)", Width: 16, Money: true},
			},
			Rows: heads,
		},
		{
			Name: "Items",
			Columns: []Column{
				{Header: "Invoice #", Width: 16},
				{Header: "Description", Width: 36},
				{Header: "Category", Width: 16},
				{Header: "Quantity", Width: 10},
				{Header: "Unit Price", Width: 14},
				{Header: "Amount (INR)", Width: 16, Money: true},
			},
			Rows: items,
		},
	}
}

// PayrollSheet lists one row per employee per payment. Voided payments are
// kept and marked so the sheet reconciles with the payment history.
func PayrollSheet(payments []payroll.Payment) Sheet {
	rows := make([][]any, 0)
	for _, p := range payments {
		for _, it := range p.Items {
			hours := ""
			if it.HoursWorked != nil {
				hours = it.HoursWorked.StringFixed(2)
			}
			rows = append(rows, []any{
				p.PaymentID, finance.FormatISODate(p.Date), string(p.Type), string(p.Status),
				it.EmployeeName, finance.FormatISODate(it.PayPeriodStart), finance.FormatISODate(it.PayPeriodEnd),
				hours, it.GrossPay, it.Deductions, it.NetPay,
			})
		}
	}
	return Sheet{
		Name: "Payroll",
		Columns: []Column{
			{Header: "Payment ID", Width: 24},
			{Header: "Date", Width: 12},
			{Header: "Type", Width: 16},
			{Header: "Status", Width: 12},
			{Header: "Employee", Width: 24},
			{Header: "Period Start", Width: 12},
			{Header: "Period End", Width: 12},
			{Header: "Hours", Width: 8},
			{Header: "Gross Pay", Width: 14, Money: true},
			{Header: "Deductions", Width: 14, Money: true},
			{Header: "Net Pay", Width: 14, Money: true},
		},
		Rows: rows,
	}
}
