// Package store is the Postgres side of the backend. Rows are read into
// snake_case row structs and normalised into the canonical finance, payroll
// and herd records before anything else sees them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"dairyfarm/backend/internal/apperr"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Store struct {
	db  DB
	loc *time.Location
}

// New returns a store whose DATE columns are read as midnight in loc.
func New(db DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) Location() *time.Location { return s.loc }

// ListOptions narrows a list endpoint.
type ListOptions struct {
	Search   string
	Status   string
	Page     int
	PageSize int
}

// Page is one page of records plus the unpaged total.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func (s *Store) date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func (s *Store) datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := s.date(*t)
	return &d
}

// fail wraps err as a backend failure of op, mapping a missing row to
// ErrNotFound and a unique violation to ErrConflict.
func fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w: %s", op, apperr.ErrConflict, pgErr.ConstraintName)
	}
	return apperr.Backend(op, err)
}

func (s *Store) count(ctx context.Context, op string, q Query) (int64, error) {
	sql, args, err := q.CountSQL()
	if err != nil {
		return 0, apperr.Backend(op, err)
	}
	var n int64
	if err := s.db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fail(op, err)
	}
	return n, nil
}

// collect runs q and scans every row with scan.
func collect[T any](ctx context.Context, db DB, op string, q Query, scan func(pgx.Rows) (T, error)) ([]T, error) {
	sql, args, err := q.SQL()
	if err != nil {
		return nil, apperr.Backend(op, err)
	}
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fail(op, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fail(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(op, err)
	}
	return out, nil
}

// paged counts and lists q under opts.
func paged[T any](ctx context.Context, s *Store, op string, q Query, opts ListOptions, scan func(pgx.Rows) (T, error)) (Page[T], error) {
	total, err := s.count(ctx, op, q)
	if err != nil {
		return Page[T]{}, err
	}
	items, err := collect(ctx, s.db, op, q.Page(opts.Page, opts.PageSize), scan)
	if err != nil {
		return Page[T]{}, err
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	return Page[T]{Items: items, Total: total, Page: page, PageSize: opts.PageSize}, nil
}

func (s *Store) execOne(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fail(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	return nil
}

func trimOr(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
