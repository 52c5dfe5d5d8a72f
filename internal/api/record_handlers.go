package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/store"
)

func (s *Server) financeListOptions(r *http.Request) (store.FinanceListOptions, error) {
	opts := store.FinanceListOptions{ListOptions: listOptions(r)}
	if strings.TrimSpace(r.URL.Query().Get("range")) == "" {
		return opts, nil
	}
	rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicySummary)
	if err != nil {
		return opts, err
	}
	opts.Range = &rng
	return opts, nil
}

func nonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return apperr.Invalid(field, "must not be negative")
	}
	return nil
}

func parseStatusOr(raw string, fallback finance.Status) (finance.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return finance.ParseStatus(raw)
}

// ---- expenses

type expenseInput struct {
	Date          string          `json:"date"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Vendor        string          `json:"vendor"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"paymentMethod"`
	ReceiptURL    string          `json:"receiptUrl"`
}

func (in expenseInput) toExpense(loc *time.Location) (finance.Expense, error) {
	date, err := requiredDate("date", in.Date, loc)
	if err != nil {
		return finance.Expense{}, err
	}
	if err := nonNegative("amount", in.Amount); err != nil {
		return finance.Expense{}, err
	}
	status, err := parseStatusOr(in.Status, finance.StatusPending)
	if err != nil {
		return finance.Expense{}, err
	}
	if status == finance.StatusOverdue {
		return finance.Expense{}, apperr.Invalid("status", "expenses cannot be overdue")
	}
	return finance.Expense{
		Date:          date,
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
		Vendor:        strings.TrimSpace(in.Vendor),
		Amount:        finance.Round2(in.Amount),
		Status:        status,
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		ReceiptURL:    strings.TrimSpace(in.ReceiptURL),
	}, nil
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	opts, err := s.financeListOptions(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListExpenses(ctx, opts)
	if err != nil {
		respondError(w, r, err, "failed to load expenses")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load expense")
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in expenseInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := in.toExpense(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		respondError(w, r, err, "failed to create expense")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in expenseInput
	if !decodeJSON(w, r, &in) {
		return
	}
	e, err := in.toExpense(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	e.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		respondError(w, r, err, "failed to update expense")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type statusInput struct {
	Status string `json:"status"`
}

func (s *Server) handleExpenseStatus(w http.ResponseWriter, r *http.Request) {
	s.changeStatus(w, r, "expense", finance.TransactionTransition,
		func(ctx context.Context, id int64) (finance.Status, error) {
			e, err := s.store.GetExpense(ctx, id)
			return e.Status, err
		},
		s.store.SetExpenseStatus)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "expense", s.store.DeleteExpense)
}

// ---- revenues

type revenueInput struct {
	Date        string          `json:"date"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CustomerID  int64           `json:"customerId"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
}

func (in revenueInput) toRevenue(loc *time.Location) (finance.Revenue, error) {
	date, err := requiredDate("date", in.Date, loc)
	if err != nil {
		return finance.Revenue{}, err
	}
	if err := nonNegative("amount", in.Amount); err != nil {
		return finance.Revenue{}, err
	}
	status, err := parseStatusOr(in.Status, finance.StatusPending)
	if err != nil {
		return finance.Revenue{}, err
	}
	if status == finance.StatusOverdue {
		return finance.Revenue{}, apperr.Invalid("status", "revenue entries cannot be overdue")
	}
	return finance.Revenue{
		Date:        date,
		Category:    strings.TrimSpace(in.Category),
		Description: strings.TrimSpace(in.Description),
		CustomerID:  in.CustomerID,
		Amount:      finance.Round2(in.Amount),
		Status:      status,
	}, nil
}

func (s *Server) handleRevenues(w http.ResponseWriter, r *http.Request) {
	opts, err := s.financeListOptions(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListRevenues(ctx, opts)
	if err != nil {
		respondError(w, r, err, "failed to load revenues")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetRevenue(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rev, err := s.store.GetRevenue(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load revenue")
		return
	}
	respondJSON(w, http.StatusOK, rev)
}

func (s *Server) handleCreateRevenue(w http.ResponseWriter, r *http.Request) {
	var in revenueInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rev, err := in.toRevenue(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateRevenue(ctx, rev)
	if err != nil {
		respondError(w, r, err, "failed to create revenue")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRevenue(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in revenueInput
	if !decodeJSON(w, r, &in) {
		return
	}
	rev, err := in.toRevenue(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	rev.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.UpdateRevenue(ctx, rev); err != nil {
		respondError(w, r, err, "failed to update revenue")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRevenueStatus(w http.ResponseWriter, r *http.Request) {
	s.changeStatus(w, r, "revenue", finance.TransactionTransition,
		func(ctx context.Context, id int64) (finance.Status, error) {
			rev, err := s.store.GetRevenue(ctx, id)
			return rev.Status, err
		},
		s.store.SetRevenueStatus)
}

func (s *Server) handleDeleteRevenue(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "revenue", s.store.DeleteRevenue)
}

// ---- invoices

type invoiceInput struct {
	InvoiceNumber string                `json:"invoiceNumber"`
	CustomerID    int64                 `json:"customerId"`
	Date          string                `json:"date"`
	DueDate       string                `json:"dueDate"`
	Amount        decimal.Decimal       `json:"amount"`
	Items         []finance.InvoiceItem `json:"items"`
}

func (in invoiceInput) toInvoice(loc *time.Location) (finance.Invoice, error) {
	date, err := requiredDate("date", in.Date, loc)
	if err != nil {
		return finance.Invoice{}, err
	}
	due, err := requiredDate("dueDate", in.DueDate, loc)
	if err != nil {
		return finance.Invoice{}, err
	}
	return finance.Invoice{
		InvoiceNumber: strings.TrimSpace(in.InvoiceNumber),
		CustomerID:    in.CustomerID,
		Date:          date,
		DueDate:       due,
		Amount:        in.Amount,
		Items:         in.Items,
	}, nil
}

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	opts, err := s.financeListOptions(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListInvoices(ctx, opts)
	if err != nil {
		respondError(w, r, err, "failed to load invoices")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load invoice")
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in invoiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	inv, err := in.toInvoice(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	if err := inv.ValidateNew(); err != nil {
		respondError(w, r, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateInvoice(ctx, inv)
	if err != nil {
		respondError(w, r, err, "failed to create invoice")
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("invoice", created.InvoiceNumber).Str("amount", created.Amount.StringFixed(2)).Msg("invoice created")
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in invoiceInput
	if !decodeJSON(w, r, &in) {
		return
	}
	inv, err := in.toInvoice(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	if inv.InvoiceNumber == "" {
		respondError(w, r, apperr.Invalid("invoiceNumber", "is required"), "")
		return
	}
	if inv.DueDate.Before(inv.Date) {
		respondError(w, r, apperr.Invalid("dueDate", "must not be before the invoice date"), "")
		return
	}
	inv.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		respondError(w, r, err, "failed to update invoice")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	s.changeStatus(w, r, "invoice", finance.InvoiceTransition,
		func(ctx context.Context, id int64) (finance.Status, error) {
			inv, err := s.store.GetInvoice(ctx, id)
			return inv.Status, err
		},
		s.store.SetInvoiceStatus)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "invoice", s.store.DeleteInvoice)
}

// ---- customers

func validateCustomer(c finance.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Invalid("name", "is required")
	}
	if email := strings.TrimSpace(c.Email); email != "" && !emailRe.MatchString(email) {
		return apperr.Invalid("email", "invalid email format")
	}
	return nil
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListCustomers(ctx, listOptions(r))
	if err != nil {
		respondError(w, r, err, "failed to load customers")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load customer")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var in finance.Customer
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := validateCustomer(in); err != nil {
		respondError(w, r, err, "")
		return
	}
	in.ID = 0

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateCustomer(ctx, in)
	if err != nil {
		respondError(w, r, err, "failed to create customer")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in finance.Customer
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := validateCustomer(in); err != nil {
		respondError(w, r, err, "")
		return
	}
	in.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.UpdateCustomer(ctx, in); err != nil {
		respondError(w, r, err, "failed to update customer")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	refs, err := s.store.DeleteCustomer(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to delete customer")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "referencingInvoices": refs})
}

// ---- shared

type statusSetter func(ctx context.Context, id int64, from, to finance.Status) (bool, error)

// changeStatus applies a PATCH {status} to one record. The transition is
// checked against the status read first, and the write only lands if the
// row still has that status.
func (s *Server) changeStatus(
	w http.ResponseWriter, r *http.Request, what string,
	allowed func(from, to finance.Status) error,
	current func(ctx context.Context, id int64) (finance.Status, error),
	set statusSetter,
) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in statusInput
	if !decodeJSON(w, r, &in) {
		return
	}
	to, err := finance.ParseStatus(in.Status)
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	from, err := current(ctx, id)
	if err != nil {
		respondError(w, r, err, fmt.Sprintf("failed to load %s", what))
		return
	}
	if err := allowed(from, to); err != nil {
		respondError(w, r, err, "")
		return
	}
	if from != to {
		changed, err := set(ctx, id, from, to)
		if err != nil {
			respondError(w, r, err, fmt.Sprintf("failed to update %s status", what))
			return
		}
		if !changed {
			respondJSON(w, http.StatusConflict, map[string]string{"error": fmt.Sprintf("%s status changed concurrently, reload and retry", what)})
			return
		}
	}
	zerolog.Ctx(r.Context()).Info().Str("record", what).Int64("id", id).Str("from", string(from)).Str("to", string(to)).Msg("status changed")
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": to})
}

func (s *Server) deleteByID(w http.ResponseWriter, r *http.Request, what string, del func(ctx context.Context, id int64) error) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := del(ctx, id); err != nil {
		respondError(w, r, err, fmt.Sprintf("failed to delete %s", what))
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
