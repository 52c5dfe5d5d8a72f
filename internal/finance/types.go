// Package finance holds the canonical bookkeeping records and the pure
// calculators that turn fetched snapshots of them into dashboard figures.
// Nothing in this package performs I/O.
package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusOverdue   Status = "Overdue"
	StatusCancelled Status = "Cancelled"
)

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "paid":
		return StatusPaid, nil
	case "overdue":
		return StatusOverdue, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return "", apperr.Invalid("status", "unknown status %q", raw)
	}
}

// Unpaid reports whether money is still owed on a record with this status.
func (s Status) Unpaid() bool {
	return s == StatusPending || s == StatusOverdue
}

var transactionTransitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
}

var invoiceTransitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// TransactionTransition validates a status change for an expense or revenue
// entry. Paid and Cancelled entries are final.
func TransactionTransition(from, to Status) error {
	return checkTransition(transactionTransitions, from, to)
}

func InvoiceTransition(from, to Status) error {
	return checkTransition(invoiceTransitions, from, to)
}

func checkTransition(table map[Status][]Status, from, to Status) error {
	if from == to {
		return nil
	}
	for _, allowed := range table[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot move from %s to %s", apperr.ErrConflict, from, to)
}

type Expense struct {
	ID            int64           `json:"id"`
	Date          time.Time       `json:"date"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Vendor        string          `json:"vendor"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	ReceiptURL    string          `json:"receiptUrl"`
}

// Revenue is income booked outside an invoice, such as daily collection
// centre payments.
type Revenue struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CustomerID  int64           `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
}

type InvoiceItem struct {
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

type Invoice struct {
	ID            int64           `json:"id"`
	InvoiceNumber string          `json:"invoiceNumber"`
	CustomerID    int64           `json:"customerId"`
	CustomerName  string          `json:"customerName"`
	Date          time.Time       `json:"date"`
	DueDate       time.Time       `json:"dueDate"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	Items         []InvoiceItem   `json:"items"`
}

// ValidateNew checks a fresh invoice before it is stored. The item total is
// only enforced here; later edits may let the two drift.
func (inv Invoice) ValidateNew() error {
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return apperr.Invalid("invoiceNumber", "is required")
	}
	if inv.Date.IsZero() {
		return apperr.Invalid("date", "is required")
	}
	if inv.DueDate.Before(inv.Date) {
		return apperr.Invalid("dueDate", "must not be before the invoice date")
	}
	if len(inv.Items) == 0 {
		return apperr.Invalid("items", "at least one line item is required")
	}
	sum := decimal.Zero
	for i, it := range inv.Items {
		if it.Amount.IsNegative() {
			return apperr.Invalid(fmt.Sprintf("items[%d].amount", i), "must not be negative")
		}
		sum = sum.Add(it.Amount)
	}
	if !sum.Equal(inv.Amount) {
		return apperr.Invalid("amount", "must equal the sum of item amounts (%s)", sum.StringFixed(2))
	}
	return nil
}

type Customer struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	ContactPerson string `json:"contactPerson"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	PaymentTerms  string `json:"paymentTerms"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
}

// ActiveInvoices drops cancelled invoices.
func ActiveInvoices(invoices []Invoice) []Invoice {
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if inv.Status != StatusCancelled {
			out = append(out, inv)
		}
	}
	return out
}
