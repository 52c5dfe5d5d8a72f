package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
)

// FinanceListOptions is ListOptions plus an optional date range.
type FinanceListOptions struct {
	ListOptions
	Range *finance.Range
}

func statusOr(raw string, fallback finance.Status) finance.Status {
	st, err := finance.ParseStatus(raw)
	if err != nil {
		return fallback
	}
	return st
}

// transition moves a row from one status to another and reports whether the
// row was in the from status.
func (s *Store) transition(ctx context.Context, op, table string, id int64, from, to finance.Status) (bool, error) {
	if !identRe.MatchString(table) {
		return false, apperr.Backend(op, fmt.Errorf("invalid table %q", table))
	}
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1 WHERE id = $2 AND status = $3`, table),
		string(to), id, string(from))
	if err != nil {
		return false, fail(op, err)
	}
	return tag.RowsAffected() == 1, nil
}

// ---- expenses

var expenseColumns = []string{"id", "expense_date", "category", "description", "vendor", "amount", "status", "payment_method", "receipt_url"}

type expenseRow struct {
	id            int64
	expenseDate   time.Time
	category      string
	description   string
	vendor        string
	amount        decimal.Decimal
	status        string
	paymentMethod string
	receiptURL    string
}

func (s *Store) scanExpense(row pgx.Row) (finance.Expense, error) {
	var r expenseRow
	if err := row.Scan(&r.id, &r.expenseDate, &r.category, &r.description, &r.vendor, &r.amount, &r.status, &r.paymentMethod, &r.receiptURL); err != nil {
		return finance.Expense{}, err
	}
	return finance.Expense{
		ID:            r.id,
		Date:          s.date(r.expenseDate),
		Category:      finance.CategoryName(r.category),
		Description:   r.description,
		Vendor:        r.vendor,
		Amount:        r.amount,
		Status:        statusOr(r.status, finance.StatusPending),
		PaymentMethod: r.paymentMethod,
		ReceiptURL:    r.receiptURL,
	}, nil
}

func (s *Store) expenseQuery(opts FinanceListOptions) Query {
	q := Query{
		Table:         "expenses",
		Columns:       expenseColumns,
		Search:        opts.Search,
		SearchColumns: []string{"category", "description", "vendor"},
		OrderBy:       "expense_date",
		Desc:          true,
	}
	if opts.Status != "" {
		q.Where = append(q.Where, Filter{Column: "status", Value: opts.Status})
	}
	if opts.Range != nil {
		q = q.Within("expense_date", *opts.Range)
	}
	return q
}

func (s *Store) ListExpenses(ctx context.Context, opts FinanceListOptions) (Page[finance.Expense], error) {
	return paged(ctx, s, "list expenses", s.expenseQuery(opts), opts.ListOptions,
		func(r pgx.Rows) (finance.Expense, error) { return s.scanExpense(r) })
}

// ExpensesIn returns every expense dated inside rng, oldest first.
func (s *Store) ExpensesIn(ctx context.Context, rng finance.Range) ([]finance.Expense, error) {
	q := s.expenseQuery(FinanceListOptions{Range: &rng})
	q.Desc = false
	return collect(ctx, s.db, "load expenses", q, func(r pgx.Rows) (finance.Expense, error) { return s.scanExpense(r) })
}

func (s *Store) GetExpense(ctx context.Context, id int64) (finance.Expense, error) {
	q := Query{Table: "expenses", Columns: expenseColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return finance.Expense{}, apperr.Backend("get expense", err)
	}
	e, err := s.scanExpense(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return finance.Expense{}, fail("get expense", err)
	}
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e finance.Expense) (finance.Expense, error) {
	if e.Status == "" {
		e.Status = finance.StatusPending
	}
	e.Category = finance.CategoryName(e.Category)
	err := s.db.QueryRow(ctx, `
		INSERT INTO expenses(expense_date, category, description, vendor, amount, status, payment_method, receipt_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.Date, e.Category, e.Description, e.Vendor, e.Amount, string(e.Status), e.PaymentMethod, e.ReceiptURL).Scan(&e.ID)
	if err != nil {
		return finance.Expense{}, fail("create expense", err)
	}
	e.Date = s.date(e.Date)
	return e, nil
}

// UpdateExpense rewrites an expense that is not yet Paid. A Paid expense is
// immutable and yields ErrConflict.
func (s *Store) UpdateExpense(ctx context.Context, e finance.Expense) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE expenses
		SET expense_date = $2, category = $3, description = $4, vendor = $5, amount = $6,
		    payment_method = $7, receipt_url = $8
		WHERE id = $1 AND status <> 'Paid'
	`, e.ID, e.Date, finance.CategoryName(e.Category), e.Description, e.Vendor, e.Amount, e.PaymentMethod, e.ReceiptURL)
	if err != nil {
		return fail("update expense", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetExpense(ctx, e.ID); err != nil {
		return err
	}
	return fmt.Errorf("update expense: %w: paid expenses cannot be edited", apperr.ErrConflict)
}

func (s *Store) SetExpenseStatus(ctx context.Context, id int64, from, to finance.Status) (bool, error) {
	return s.transition(ctx, "set expense status", "expenses", id, from, to)
}

func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete expense", `DELETE FROM expenses WHERE id = $1`, id)
}

// ---- revenues

var revenueColumns = []string{"id", "revenue_date", "category", "description", "customer_id", "amount", "status"}

func (s *Store) scanRevenue(row pgx.Row) (finance.Revenue, error) {
	var (
		id          int64
		d           time.Time
		category    string
		description string
		customerID  *int64
		amount      decimal.Decimal
		status      string
	)
	if err := row.Scan(&id, &d, &category, &description, &customerID, &amount, &status); err != nil {
		return finance.Revenue{}, err
	}
	rev := finance.Revenue{
		ID:          id,
		Date:        s.date(d),
		Category:    finance.CategoryName(category),
		Description: description,
		Amount:      amount,
		Status:      statusOr(status, finance.StatusPending),
	}
	if customerID != nil {
		rev.CustomerID = *customerID
	}
	return rev, nil
}

func (s *Store) revenueQuery(opts FinanceListOptions) Query {
	q := Query{
		Table:         "revenues",
		Columns:       revenueColumns,
		Search:        opts.Search,
		SearchColumns: []string{"category", "description"},
		OrderBy:       "revenue_date",
		Desc:          true,
	}
	if opts.Status != "" {
		q.Where = append(q.Where, Filter{Column: "status", Value: opts.Status})
	}
	if opts.Range != nil {
		q = q.Within("revenue_date", *opts.Range)
	}
	return q
}

func (s *Store) ListRevenues(ctx context.Context, opts FinanceListOptions) (Page[finance.Revenue], error) {
	return paged(ctx, s, "list revenues", s.revenueQuery(opts), opts.ListOptions,
		func(r pgx.Rows) (finance.Revenue, error) { return s.scanRevenue(r) })
}

func (s *Store) RevenuesIn(ctx context.Context, rng finance.Range) ([]finance.Revenue, error) {
	q := s.revenueQuery(FinanceListOptions{Range: &rng})
	q.Desc = false
	return collect(ctx, s.db, "load revenues", q, func(r pgx.Rows) (finance.Revenue, error) { return s.scanRevenue(r) })
}

func (s *Store) GetRevenue(ctx context.Context, id int64) (finance.Revenue, error) {
	q := Query{Table: "revenues", Columns: revenueColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return finance.Revenue{}, apperr.Backend("get revenue", err)
	}
	rev, err := s.scanRevenue(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return finance.Revenue{}, fail("get revenue", err)
	}
	return rev, nil
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func (s *Store) CreateRevenue(ctx context.Context, rev finance.Revenue) (finance.Revenue, error) {
	if rev.Status == "" {
		rev.Status = finance.StatusPending
	}
	rev.Category = finance.CategoryName(rev.Category)
	err := s.db.QueryRow(ctx, `
		INSERT INTO revenues(revenue_date, category, description, customer_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rev.Date, rev.Category, rev.Description, nullableID(rev.CustomerID), rev.Amount, string(rev.Status)).Scan(&rev.ID)
	if err != nil {
		return finance.Revenue{}, fail("create revenue", err)
	}
	rev.Date = s.date(rev.Date)
	return rev, nil
}

func (s *Store) UpdateRevenue(ctx context.Context, rev finance.Revenue) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE revenues
		SET revenue_date = $2, category = $3, description = $4, customer_id = $5, amount = $6
		WHERE id = $1 AND status <> 'Paid'
	`, rev.ID, rev.Date, finance.CategoryName(rev.Category), rev.Description, nullableID(rev.CustomerID), rev.Amount)
	if err != nil {
		return fail("update revenue", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetRevenue(ctx, rev.ID); err != nil {
		return err
	}
	return fmt.Errorf("update revenue: %w: paid entries cannot be edited", apperr.ErrConflict)
}

func (s *Store) SetRevenueStatus(ctx context.Context, id int64, from, to finance.Status) (bool, error) {
	return s.transition(ctx, "set revenue status", "revenues", id, from, to)
}

func (s *Store) DeleteRevenue(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete revenue", `DELETE FROM revenues WHERE id = $1`, id)
}

// ---- customers

var customerColumns = []string{"id", "name", "type", "contact_person", "email", "phone", "address", "payment_terms", "status", "notes"}

func scanCustomer(row pgx.Row) (finance.Customer, error) {
	var c finance.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Type, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.PaymentTerms, &c.Status, &c.Notes)
	if err != nil {
		return finance.Customer{}, err
	}
	c.Type = finance.CategoryName(c.Type)
	c.Status = trimOr(c.Status, "Active")
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, opts ListOptions) (Page[finance.Customer], error) {
	q := Query{
		Table:         "customers",
		Columns:       customerColumns,
		Search:        opts.Search,
		SearchColumns: []string{"name", "contact_person", "email", "phone"},
		OrderBy:       "name",
	}
	if opts.Status != "" {
		q.Where = append(q.Where, Filter{Column: "status", Value: opts.Status})
	}
	return paged(ctx, s, "list customers", q, opts, scanCustomer)
}

// AllCustomers returns every customer, for ranking.
func (s *Store) AllCustomers(ctx context.Context) ([]finance.Customer, error) {
	q := Query{Table: "customers", Columns: customerColumns, OrderBy: "name"}
	return collect(ctx, s.db, "load customers", q, scanCustomer)
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (finance.Customer, error) {
	q := Query{Table: "customers", Columns: customerColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return finance.Customer{}, apperr.Backend("get customer", err)
	}
	c, err := scanCustomer(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return finance.Customer{}, fail("get customer", err)
	}
	return c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c finance.Customer) (finance.Customer, error) {
	c.Type = finance.CategoryName(c.Type)
	c.Status = trimOr(c.Status, "Active")
	c.PaymentTerms = trimOr(c.PaymentTerms, "Net 30")
	err := s.db.QueryRow(ctx, `
		INSERT INTO customers(name, type, contact_person, email, phone, address, payment_terms, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, c.Name, c.Type, c.ContactPerson, c.Email, c.Phone, c.Address, c.PaymentTerms, c.Status, c.Notes).Scan(&c.ID)
	if err != nil {
		return finance.Customer{}, fail("create customer", err)
	}
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c finance.Customer) error {
	return s.execOne(ctx, "update customer", `
		UPDATE customers
		SET name = $2, type = $3, contact_person = $4, email = $5, phone = $6, address = $7,
		    payment_terms = $8, status = $9, notes = $10
		WHERE id = $1
	`, c.ID, c.Name, finance.CategoryName(c.Type), c.ContactPerson, c.Email, c.Phone, c.Address,
		trimOr(c.PaymentTerms, "Net 30"), trimOr(c.Status, "Active"), c.Notes)
}

// DeleteCustomer removes the customer and reports how many invoices still
// reference it. Invoices are left as they are.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) (int64, error) {
	var refs int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE customer_id = $1`, id).Scan(&refs); err != nil {
		return 0, fail("delete customer", err)
	}
	if err := s.execOne(ctx, "delete customer", `DELETE FROM customers WHERE id = $1`, id); err != nil {
		return 0, err
	}
	return refs, nil
}
