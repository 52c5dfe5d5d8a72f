package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/payroll"
)

type call struct {
	sql  string
	args []any
}

// fakeDB answers queries from canned rows and records every statement.
type fakeDB struct {
	rowQueue [][]any
	rows     [][]any
	tags     []string
	execErr  error
	calls    []call
}

func (f *fakeDB) record(sql string, args []any) {
	f.calls = append(f.calls, call{sql: sql, args: args})
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(sql, args)
	return &fakeRows{data: f.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.record(sql, args)
	if len(f.rowQueue) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	next := f.rowQueue[0]
	f.rowQueue = f.rowQueue[1:]
	return fakeRow{values: next}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.record(sql, args)
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	tag := "UPDATE 1"
	if len(f.tags) > 0 {
		tag, f.tags = f.tags[0], f.tags[1:]
	}
	return pgconn.NewCommandTag(tag), nil
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("transactions are not faked")
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool                                   { r.pos++; return r.pos < len(r.data) }
func (r *fakeRows) Scan(dest ...any) error                       { return assign(r.data[r.pos], dest) }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		if sc, ok := dest[i].(sql.Scanner); ok {
			if err := sc.Scan(v); err != nil {
				return err
			}
			continue
		}
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		val := reflect.ValueOf(v)
		if target.Kind() == reflect.Pointer && val.Kind() != reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(val.Convert(target.Type().Elem()))
			target.Set(p)
			continue
		}
		target.Set(val.Convert(target.Type()))
	}
	return nil
}

var ist = time.FixedZone("IST", 5*3600+1800)

func utcDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestListExpensesNormalisesRows(t *testing.T) {
	db := &fakeDB{
		rowQueue: [][]any{{int64(2)}},
		rows: [][]any{
			{int64(1), utcDay(2024, time.January, 5), "  ", "hay bales", "Co-op", "1200.50", "weird", "", ""},
			{int64(2), utcDay(2024, time.January, 9), "Feed", "", "", "300", "paid", "cash", ""},
		},
	}
	s := New(db, ist)

	page, err := s.ListExpenses(context.Background(), FinanceListOptions{
		ListOptions: ListOptions{Search: "hay", Page: 2, PageSize: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.Page != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}

	first := page.Items[0]
	if first.Category != finance.OtherCategory || first.Status != finance.StatusPending {
		t.Fatalf("blank category / unknown status not normalised: %+v", first)
	}
	if first.Date.Location() != ist || first.Date.Day() != 5 || first.Date.Hour() != 0 {
		t.Fatalf("date not read as local midnight: %s", first.Date)
	}
	if !first.Amount.Equal(decimal.RequireFromString("1200.50")) {
		t.Fatalf("amount = %s", first.Amount)
	}
	if page.Items[1].Status != finance.StatusPaid {
		t.Fatalf("status = %s", page.Items[1].Status)
	}

	list := db.calls[1]
	if !strings.Contains(list.sql, "LIMIT $2 OFFSET $3") || list.args[1] != 10 || list.args[2] != 10 {
		t.Fatalf("list query = %s %v", list.sql, list.args)
	}
}

func TestUpdatePaidExpenseConflicts(t *testing.T) {
	db := &fakeDB{
		tags:     []string{"UPDATE 0"},
		rowQueue: [][]any{{int64(7), utcDay(2024, time.February, 1), "Feed", "", "", "10", "Paid", "", ""}},
	}
	s := New(db, time.UTC)

	err := s.UpdateExpense(context.Background(), finance.Expense{ID: 7, Amount: decimal.NewFromInt(11)})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	db = &fakeDB{tags: []string{"UPDATE 0"}}
	err = New(db, time.UTC).UpdateExpense(context.Background(), finance.Expense{ID: 8})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteCustomerReportsReferences(t *testing.T) {
	db := &fakeDB{rowQueue: [][]any{{int64(3)}}, tags: []string{"DELETE 1"}}
	refs, err := New(db, time.UTC).DeleteCustomer(context.Background(), 12)
	if err != nil {
		t.Fatal(err)
	}
	if refs != 3 {
		t.Fatalf("refs = %d, want 3", refs)
	}

	db = &fakeDB{rowQueue: [][]any{{int64(0)}}, tags: []string{"DELETE 0"}}
	if _, err := New(db, time.UTC).DeleteCustomer(context.Background(), 13); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkOverdueTruncatesToDate(t *testing.T) {
	db := &fakeDB{tags: []string{"UPDATE 4"}}
	s := New(db, ist)

	n, err := s.MarkOverdue(context.Background(), time.Date(2024, time.March, 10, 22, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("changed = %d", n)
	}
	day := db.calls[0].args[0].(time.Time)
	if day.Location() != ist || day.Day() != 10 || day.Hour() != 0 {
		t.Fatalf("cutoff = %s", day)
	}
}

func TestTransitionPaymentGuardsStatus(t *testing.T) {
	db := &fakeDB{tags: []string{"UPDATE 0"}}
	changed, err := New(db, time.UTC).TransitionPayment(context.Background(), 5, payroll.StatusCompleted, payroll.StatusVoided)
	if err != nil || changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	c := db.calls[0]
	if !strings.Contains(c.sql, "AND status = $3") || c.args[0] != "Voided" || c.args[2] != "Completed" {
		t.Fatalf("transition = %s %v", c.sql, c.args)
	}
}

func TestListEmployeesReadsNullableWithholding(t *testing.T) {
	db := &fakeDB{rows: [][]any{
		{int64(1), "Asha Devi", "Herder", "Milking", "240000", "0", "Monthly", nil, "Active", nil},
		{int64(2), "Ravi Kumar", "Milker", "Parlour", "0", "150", "", "10", "Active", utcDay(2024, time.January, 31)},
	}}
	got, err := New(db, time.UTC).ListEmployees(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("employees = %+v", got)
	}
	if got[0].TaxWithholding != nil || got[0].LastPaid != nil {
		t.Fatalf("nulls not preserved: %+v", got[0])
	}
	if got[1].TaxWithholding == nil || !got[1].TaxWithholding.Equal(decimal.NewFromInt(10)) || got[1].PayPeriod != "Monthly" {
		t.Fatalf("second employee = %+v", got[1])
	}
	if !strings.Contains(db.calls[0].sql, "WHERE status = $1") || db.calls[0].args[0] != "Active" {
		t.Fatalf("query = %s", db.calls[0].sql)
	}
}

func TestFailMapsErrors(t *testing.T) {
	if err := fail("get", pgx.ErrNoRows); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("no rows -> %v", err)
	}
	if err := fail("insert", &pgconn.PgError{Code: "23505", ConstraintName: "invoices_invoice_number_key"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("unique violation -> %v", err)
	}
	err := fail("list", errors.New("connection reset"))
	if !apperr.IsBackend(err) || !strings.Contains(err.Error(), "list") {
		t.Fatalf("other -> %v", err)
	}
	if fail("noop", nil) != nil {
		t.Fatal("nil error must stay nil")
	}
}
