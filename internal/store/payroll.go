package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/payroll"
)

var employeeColumns = []string{"id", "name", "position", "department", "salary", "hourly_rate", "pay_period", "tax_withholding", "status", "last_paid"}

type employeeRow struct {
	payroll.Employee
	status string
}

func (s *Store) scanEmployee(row pgx.Row) (employeeRow, error) {
	var (
		r        employeeRow
		withhold decimal.NullDecimal
		lastPaid *time.Time
	)
	err := row.Scan(&r.ID, &r.Name, &r.Position, &r.Department, &r.Salary, &r.HourlyRate, &r.PayPeriod, &withhold, &r.status, &lastPaid)
	if err != nil {
		return employeeRow{}, err
	}
	if withhold.Valid {
		w := withhold.Decimal
		r.TaxWithholding = &w
	}
	r.LastPaid = s.datePtr(lastPaid)
	r.PayPeriod = trimOr(r.PayPeriod, "Monthly")
	return r, nil
}

// ListEmployees returns active staff, the pool every pay run draws from.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	q := Query{
		Table:   "employees",
		Columns: employeeColumns,
		Where:   []Filter{{"status", "Active"}},
		OrderBy: "name",
	}
	rows, err := collect(ctx, s.db, "list employees", q, func(r pgx.Rows) (employeeRow, error) { return s.scanEmployee(r) })
	if err != nil {
		return nil, err
	}
	out := make([]payroll.Employee, len(rows))
	for i, r := range rows {
		out[i] = r.Employee
	}
	return out, nil
}

func (s *Store) GetEmployee(ctx context.Context, id int64) (payroll.Employee, error) {
	q := Query{Table: "employees", Columns: employeeColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return payroll.Employee{}, apperr.Backend("get employee", err)
	}
	r, err := s.scanEmployee(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return payroll.Employee{}, fail("get employee", err)
	}
	return r.Employee, nil
}

func (s *Store) CreateEmployee(ctx context.Context, e payroll.Employee) (payroll.Employee, error) {
	e.PayPeriod = trimOr(e.PayPeriod, "Monthly")
	err := s.db.QueryRow(ctx, `
		INSERT INTO employees(name, position, department, salary, hourly_rate, pay_period, tax_withholding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, e.Name, e.Position, e.Department, e.Salary, e.HourlyRate, e.PayPeriod, withholding(e.TaxWithholding)).Scan(&e.ID)
	if err != nil {
		return payroll.Employee{}, fail("create employee", err)
	}
	return e, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, e payroll.Employee) error {
	return s.execOne(ctx, "update employee", `
		UPDATE employees
		SET name = $2, position = $3, department = $4, salary = $5, hourly_rate = $6,
		    pay_period = $7, tax_withholding = $8
		WHERE id = $1
	`, e.ID, e.Name, e.Position, e.Department, e.Salary, e.HourlyRate, trimOr(e.PayPeriod, "Monthly"), withholding(e.TaxWithholding))
}

func withholding(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

// InsertPayment stores the payment with its items and stamps last_paid on
// every employee it covers, all in one transaction.
func (s *Store) InsertPayment(ctx context.Context, p payroll.Payment) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fail("insert payroll payment", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO payroll_payments(payment_id, payment_date, type, total_amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, p.PaymentID, p.Date, string(p.Type), p.TotalAmount, string(p.Status)).Scan(&id)
	if err != nil {
		return 0, fail("insert payroll payment", err)
	}

	batch := &pgx.Batch{}
	for _, it := range p.Items {
		var hours decimal.NullDecimal
		if it.HoursWorked != nil {
			hours = decimal.NullDecimal{Decimal: *it.HoursWorked, Valid: true}
		}
		batch.Queue(`
			INSERT INTO payroll_payment_items(payment_id, employee_id, employee_name, gross_pay, deductions, net_pay, hours_worked, pay_period_start, pay_period_end)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, id, it.EmployeeID, it.EmployeeName, it.GrossPay, it.Deductions, it.NetPay, hours, it.PayPeriodStart, it.PayPeriodEnd)
		batch.Queue(`UPDATE employees SET last_paid = $2 WHERE id = $1`, it.EmployeeID, p.Date)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fail("insert payroll items", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fail("insert payroll payment", err)
	}
	return id, nil
}

var paymentColumns = []string{"id", "payment_id", "payment_date", "type", "total_amount", "status"}

func (s *Store) scanPayment(row pgx.Row) (payroll.Payment, error) {
	var (
		p      payroll.Payment
		date   time.Time
		typ    string
		status string
	)
	if err := row.Scan(&p.ID, &p.PaymentID, &date, &typ, &p.TotalAmount, &status); err != nil {
		return payroll.Payment{}, err
	}
	p.Date = s.date(date)
	p.Type = payroll.RunType(typ)
	if rt, err := payroll.ParseRunType(typ); err == nil {
		p.Type = rt
	}
	p.Status = payroll.PaymentStatus(status)
	if p.Status != payroll.StatusVoided {
		p.Status = payroll.StatusCompleted
	}
	p.Items = []payroll.Item{}
	return p, nil
}

func (s *Store) paymentItems(ctx context.Context, paymentID int64) ([]payroll.Item, error) {
	rows, err := s.db.Query(ctx, `
		SELECT employee_id, employee_name, gross_pay, deductions, net_pay, hours_worked, pay_period_start, pay_period_end
		FROM payroll_payment_items
		WHERE payment_id = $1
		ORDER BY id
	`, paymentID)
	if err != nil {
		return nil, fail("load payroll items", err)
	}
	defer rows.Close()

	out := make([]payroll.Item, 0)
	for rows.Next() {
		var (
			it         payroll.Item
			hours      decimal.NullDecimal
			start, end time.Time
		)
		if err := rows.Scan(&it.EmployeeID, &it.EmployeeName, &it.GrossPay, &it.Deductions, &it.NetPay, &hours, &start, &end); err != nil {
			return nil, fail("load payroll items", err)
		}
		if hours.Valid {
			h := hours.Decimal
			it.HoursWorked = &h
		}
		it.PayPeriodStart = s.date(start)
		it.PayPeriodEnd = s.date(end)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("load payroll items", err)
	}
	return out, nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (payroll.Payment, error) {
	q := Query{Table: "payroll_payments", Columns: paymentColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return payroll.Payment{}, apperr.Backend("get payroll payment", err)
	}
	p, err := s.scanPayment(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return payroll.Payment{}, fail("get payroll payment", err)
	}
	if p.Items, err = s.paymentItems(ctx, p.ID); err != nil {
		return payroll.Payment{}, err
	}
	return p, nil
}

// ListPayments pages through payments, newest first, without their items.
func (s *Store) ListPayments(ctx context.Context, opts ListOptions) (Page[payroll.Payment], error) {
	q := Query{
		Table:         "payroll_payments",
		Columns:       paymentColumns,
		Search:        opts.Search,
		SearchColumns: []string{"payment_id", "type"},
		OrderBy:       "payment_date",
		Desc:          true,
	}
	if opts.Status != "" {
		q.Where = append(q.Where, Filter{Column: "status", Value: opts.Status})
	}
	return paged(ctx, s, "list payroll payments", q, opts, func(r pgx.Rows) (payroll.Payment, error) { return s.scanPayment(r) })
}

// PaymentsWithItemsBetween loads payments dated within [from, to]
// with their items, for exports.
func (s *Store) PaymentsWithItemsBetween(ctx context.Context, from, to time.Time) ([]payroll.Payment, error) {
	q := Query{
		Table:      "payroll_payments",
		Columns:    paymentColumns,
		DateColumn: "payment_date",
		From:       &from,
		To:         &to,
		OrderBy:    "payment_date",
	}
	payments, err := collect(ctx, s.db, "load payroll payments", q, func(r pgx.Rows) (payroll.Payment, error) { return s.scanPayment(r) })
	if err != nil {
		return nil, err
	}
	for i := range payments {
		if payments[i].Items, err = s.paymentItems(ctx, payments[i].ID); err != nil {
			return nil, err
		}
	}
	return payments, nil
}

func (s *Store) TransitionPayment(ctx context.Context, id int64, from, to payroll.PaymentStatus) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE payroll_payments SET status = $1 WHERE id = $2 AND status = $3`, string(to), id, string(from))
	if err != nil {
		return false, fail("transition payroll payment", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ payroll.Repository = (*Store)(nil)
