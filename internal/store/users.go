package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Phone        string `json:"phone"`
	Status       string `json:"status"`
	PasswordHash string `json:"-"`
}

const (
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleAccountant = "accountant"
	RoleWorker     = "worker"
)

// CreateUser registers a user. The first account on an empty database
// becomes the owner; later self-registrations start as workers.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return User{}, fail("create user", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&existing); err != nil {
		return User{}, fail("create user", err)
	}
	u := User{Name: name, Email: email, Role: RoleWorker, Status: "active"}
	if existing == 0 {
		u.Role = RoleOwner
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO users(name, email, password_hash, role, phone, status)
		VALUES ($1, $2, $3, $4, '', 'active')
		RETURNING id
	`, u.Name, u.Email, passwordHash, u.Role).Scan(&u.ID)
	if err != nil {
		return User{}, fail("create user", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, fail("create user", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Phone, &u.Status, &u.PasswordHash); err != nil {
		return User{}, err
	}
	u.Role = strings.ToLower(strings.TrimSpace(u.Role))
	u.Status = strings.ToLower(strings.TrimSpace(u.Status))
	return u, nil
}

// ActiveUserByEmail finds an active user for login.
func (s *Store) ActiveUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		SELECT id, name, email, role, phone, status, password_hash
		FROM users
		WHERE email = $1 AND status = 'active'
	`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return User{}, fail("find user", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		SELECT id, name, email, role, phone, status, password_hash
		FROM users
		WHERE id = $1
	`, id))
	if err != nil {
		return User{}, fail("get user", err)
	}
	return u, nil
}

// Report is a saved report definition. Its content is rebuilt on every
// download from the records current at that time.
type Report struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	RangeKind     string    `json:"range"`
	Format        string    `json:"format"`
	CreatedBy     int64     `json:"createdBy"`
	LastGenerated time.Time `json:"lastGenerated"`
}

var reportColumns = []string{"id", "title", "category", "range_kind", "format", "created_by", "last_generated"}

func (s *Store) scanReport(row pgx.Row) (Report, error) {
	var (
		rep       Report
		createdBy *int64
		generated time.Time
	)
	if err := row.Scan(&rep.ID, &rep.Title, &rep.Category, &rep.RangeKind, &rep.Format, &createdBy, &generated); err != nil {
		return Report{}, err
	}
	if createdBy != nil {
		rep.CreatedBy = *createdBy
	}
	rep.LastGenerated = s.date(generated)
	return rep, nil
}

func (s *Store) CreateReport(ctx context.Context, rep Report) (Report, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO reports(title, category, range_kind, format, created_by, last_generated)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rep.Title, rep.Category, rep.RangeKind, rep.Format, nullableID(rep.CreatedBy), s.date(rep.LastGenerated)).Scan(&rep.ID)
	if err != nil {
		return Report{}, fail("create report", err)
	}
	rep.LastGenerated = s.date(rep.LastGenerated)
	return rep, nil
}

func (s *Store) ListReports(ctx context.Context, opts ListOptions) (Page[Report], error) {
	q := Query{
		Table:         "reports",
		Columns:       reportColumns,
		Search:        opts.Search,
		SearchColumns: []string{"title", "category"},
		OrderBy:       "last_generated",
		Desc:          true,
	}
	return paged(ctx, s, "list reports", q, opts, func(r pgx.Rows) (Report, error) { return s.scanReport(r) })
}

func (s *Store) GetReport(ctx context.Context, id int64) (Report, error) {
	q := Query{Table: "reports", Columns: reportColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return Report{}, fail("get report", err)
	}
	rep, err := s.scanReport(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return Report{}, fail("get report", err)
	}
	return rep, nil
}

// TouchReport stamps the report as generated on day.
func (s *Store) TouchReport(ctx context.Context, id int64, day time.Time) error {
	return s.execOne(ctx, "touch report", `UPDATE reports SET last_generated = $2 WHERE id = $1`, id, s.date(day))
}
