package export

import (
	"context"
	"fmt"
	"time"

	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/payroll"
)

// Source is the record access an export needs. *store.Store satisfies it.
type Source interface {
	ExpensesIn(ctx context.Context, rng finance.Range) ([]finance.Expense, error)
	InvoicesIn(ctx context.Context, rng finance.Range) ([]finance.Invoice, error)
	PaymentsWithItemsBetween(ctx context.Context, from, to time.Time) ([]payroll.Payment, error)
}

// Build loads the records of kind inside rng and writes them as a workbook.
// An open range is closed at until.
func Build(ctx context.Context, src Source, kind Kind, rng finance.Range, until time.Time) ([]byte, error) {
	rng = rng.Closed(until)

	var sheets []Sheet
	switch kind {
	case KindExpenses:
		expenses, err := src.ExpensesIn(ctx, rng)
		if err != nil {
			return nil, err
		}
		sheets = []Sheet{ExpensesSheet(expenses)}
	case KindInvoices:
		invoices, err := src.InvoicesIn(ctx, rng)
		if err != nil {
			return nil, err
		}
		sheets = InvoicesSheets(invoices)
	case KindPayroll:
		payments, err := src.PaymentsWithItemsBetween(ctx, rng.Start, *rng.End)
		if err != nil {
			return nil, err
		}
		sheets = []Sheet{PayrollSheet(payments)}
	default:
		return nil, fmt.Errorf("unknown export kind %q", kind)
	}
	return Workbook(sheets...)
}
