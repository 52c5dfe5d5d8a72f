package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
)

var invoiceColumns = []string{"id", "invoice_number", "customer_id", "customer_name", "invoice_date", "due_date", "amount", "status"}

func (s *Store) scanInvoice(row pgx.Row) (finance.Invoice, error) {
	var (
		inv        finance.Invoice
		customerID *int64
		date, due  time.Time
		status     string
	)
	if err := row.Scan(&inv.ID, &inv.InvoiceNumber, &customerID, &inv.CustomerName, &date, &due, &inv.Amount, &status); err != nil {
		return finance.Invoice{}, err
	}
	if customerID != nil {
		inv.CustomerID = *customerID
	}
	inv.Date = s.date(date)
	inv.DueDate = s.date(due)
	inv.Status = statusOr(status, finance.StatusPending)
	inv.Items = []finance.InvoiceItem{}
	return inv, nil
}

// withItems loads the line items of every invoice in one round trip, keeping
// their stored order.
func (s *Store) withItems(ctx context.Context, invoices []finance.Invoice) ([]finance.Invoice, error) {
	if len(invoices) == 0 {
		return invoices, nil
	}
	ids := make([]int64, len(invoices))
	index := make(map[int64]int, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		index[inv.ID] = i
	}

	rows, err := s.db.Query(ctx, `
		SELECT invoice_id, description, category, quantity, unit_price, amount
		FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, position, id
	`, ids)
	if err != nil {
		return nil, fail("load invoice items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID int64
		var it finance.InvoiceItem
		if err := rows.Scan(&invoiceID, &it.Description, &it.Category, &it.Quantity, &it.UnitPrice, &it.Amount); err != nil {
			return nil, fail("load invoice items", err)
		}
		it.Category = finance.CategoryName(it.Category)
		if i, ok := index[invoiceID]; ok {
			invoices[i].Items = append(invoices[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fail("load invoice items", err)
	}
	return invoices, nil
}

func (s *Store) invoiceQuery(opts FinanceListOptions) Query {
	q := Query{
		Table:         "invoice_overview",
		Columns:       invoiceColumns,
		Search:        opts.Search,
		SearchColumns: []string{"invoice_number", "customer_name"},
		OrderBy:       "invoice_date",
		Desc:          true,
	}
	if opts.Status != "" {
		q.Where = append(q.Where, Filter{Column: "status", Value: opts.Status})
	}
	if opts.Range != nil {
		q = q.Within("invoice_date", *opts.Range)
	}
	return q
}

func (s *Store) ListInvoices(ctx context.Context, opts FinanceListOptions) (Page[finance.Invoice], error) {
	page, err := paged(ctx, s, "list invoices", s.invoiceQuery(opts), opts.ListOptions,
		func(r pgx.Rows) (finance.Invoice, error) { return s.scanInvoice(r) })
	if err != nil {
		return Page[finance.Invoice]{}, err
	}
	page.Items, err = s.withItems(ctx, page.Items)
	if err != nil {
		return Page[finance.Invoice]{}, err
	}
	return page, nil
}

// InvoicesIn returns every invoice dated inside rng with its items.
func (s *Store) InvoicesIn(ctx context.Context, rng finance.Range) ([]finance.Invoice, error) {
	q := s.invoiceQuery(FinanceListOptions{Range: &rng})
	q.Desc = false
	invoices, err := collect(ctx, s.db, "load invoices", q, func(r pgx.Rows) (finance.Invoice, error) { return s.scanInvoice(r) })
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, invoices)
}

// OpenInvoices returns unpaid invoices of any age plus everything dated on or
// after since. That is the snapshot the invoice summary and aging need.
func (s *Store) OpenInvoices(ctx context.Context, since time.Time) ([]finance.Invoice, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, invoice_number, customer_id, customer_name, invoice_date, due_date, amount, status
		FROM invoice_overview
		WHERE status IN ('Pending', 'Overdue') OR invoice_date >= $1
		ORDER BY due_date, id
	`, since)
	if err != nil {
		return nil, fail("load open invoices", err)
	}
	defer rows.Close()

	out := make([]finance.Invoice, 0)
	for rows.Next() {
		inv, err := s.scanInvoice(rows)
		if err != nil {
			return nil, fail("load open invoices", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("load open invoices", err)
	}
	return out, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (finance.Invoice, error) {
	q := Query{Table: "invoice_overview", Columns: invoiceColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return finance.Invoice{}, apperr.Backend("get invoice", err)
	}
	inv, err := s.scanInvoice(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return finance.Invoice{}, fail("get invoice", err)
	}
	out, err := s.withItems(ctx, []finance.Invoice{inv})
	if err != nil {
		return finance.Invoice{}, err
	}
	return out[0], nil
}

// CreateInvoice stores the invoice and its items in one transaction. The
// caller validates the item total first.
func (s *Store) CreateInvoice(ctx context.Context, inv finance.Invoice) (finance.Invoice, error) {
	if inv.Status == "" {
		inv.Status = finance.StatusPending
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return finance.Invoice{}, fail("create invoice", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices(invoice_number, customer_id, invoice_date, due_date, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, inv.InvoiceNumber, nullableID(inv.CustomerID), inv.Date, inv.DueDate, inv.Amount, string(inv.Status)).Scan(&inv.ID)
	if err != nil {
		return finance.Invoice{}, fail("create invoice", err)
	}
	if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
		return finance.Invoice{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return finance.Invoice{}, fail("create invoice", err)
	}
	inv.Date = s.date(inv.Date)
	inv.DueDate = s.date(inv.DueDate)
	return inv, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID int64, items []finance.InvoiceItem) error {
	for i, it := range items {
		qty := it.Quantity
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_items(invoice_id, position, description, category, quantity, unit_price, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, invoiceID, i, it.Description, finance.CategoryName(it.Category), qty, it.UnitPrice, it.Amount)
		if err != nil {
			return fail("insert invoice item", err)
		}
	}
	return nil
}

// UpdateInvoice rewrites the header and replaces the items. The item total is
// not re-checked against the amount.
func (s *Store) UpdateInvoice(ctx context.Context, inv finance.Invoice) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fail("update invoice", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE invoices
		SET invoice_number = $2, customer_id = $3, invoice_date = $4, due_date = $5, amount = $6
		WHERE id = $1
	`, inv.ID, inv.InvoiceNumber, nullableID(inv.CustomerID), inv.Date, inv.DueDate, inv.Amount)
	if err != nil {
		return fail("update invoice", err)
	}
	if tag.RowsAffected() == 0 {
		return fail("update invoice", pgx.ErrNoRows)
	}
	if inv.Items != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return fail("update invoice", err)
		}
		if err := insertItems(ctx, tx, inv.ID, inv.Items); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fail("update invoice", err)
	}
	return nil
}

func (s *Store) SetInvoiceStatus(ctx context.Context, id int64, from, to finance.Status) (bool, error) {
	return s.transition(ctx, "set invoice status", "invoices", id, from, to)
}

func (s *Store) DeleteInvoice(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete invoice", `DELETE FROM invoices WHERE id = $1`, id)
}

// MarkOverdue flips Pending invoices due before today to Overdue and returns
// how many changed.
func (s *Store) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE invoices SET status = 'Overdue'
		WHERE status = 'Pending' AND due_date < $1
	`, s.date(today))
	if err != nil {
		return 0, fail("mark overdue invoices", err)
	}
	return tag.RowsAffected(), nil
}
