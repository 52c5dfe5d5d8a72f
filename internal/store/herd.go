package store

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/herd"
)

var cowColumns = []string{"id", "tag_number", "name", "breed", "date_of_birth", "status", "health_status", "lactation_status"}

func (s *Store) scanCow(row pgx.Row) (herd.Cow, error) {
	var (
		c   herd.Cow
		dob *time.Time
	)
	if err := row.Scan(&c.ID, &c.TagNumber, &c.Name, &c.Breed, &dob, &c.Status, &c.HealthStatus, &c.LactationStatus); err != nil {
		return herd.Cow{}, err
	}
	c.DateOfBirth = s.datePtr(dob)
	c.Status = strings.ToLower(trimOr(c.Status, "active"))
	c.HealthStatus = strings.ToLower(trimOr(c.HealthStatus, "healthy"))
	c.LactationStatus = strings.ToLower(trimOr(c.LactationStatus, "dry"))
	return c, nil
}

func (s *Store) ListCows(ctx context.Context, opts ListOptions) (Page[herd.Cow], error) {
	q := Query{
		Table:         "cows",
		Columns:       cowColumns,
		Search:        opts.Search,
		SearchColumns: []string{"tag_number", "name", "breed"},
		OrderBy:       "tag_number",
	}
	if opts.Status != "" {
		q.Where = append(q.Where, Filter{Column: "status", Value: strings.ToLower(opts.Status)})
	}
	return paged(ctx, s, "list cows", q, opts, func(r pgx.Rows) (herd.Cow, error) { return s.scanCow(r) })
}

// AllCows returns the whole herd, including sold and dead animals.
func (s *Store) AllCows(ctx context.Context) ([]herd.Cow, error) {
	q := Query{Table: "cows", Columns: cowColumns, OrderBy: "tag_number"}
	return collect(ctx, s.db, "load cows", q, func(r pgx.Rows) (herd.Cow, error) { return s.scanCow(r) })
}

func (s *Store) GetCow(ctx context.Context, id int64) (herd.Cow, error) {
	q := Query{Table: "cows", Columns: cowColumns, Where: []Filter{{"id", id}}}
	sql, args, err := q.SQL()
	if err != nil {
		return herd.Cow{}, apperr.Backend("get cow", err)
	}
	c, err := s.scanCow(s.db.QueryRow(ctx, sql, args...))
	if err != nil {
		return herd.Cow{}, fail("get cow", err)
	}
	return c, nil
}

func (s *Store) CreateCow(ctx context.Context, c herd.Cow) (herd.Cow, error) {
	c.Status = strings.ToLower(trimOr(c.Status, "active"))
	c.HealthStatus = strings.ToLower(trimOr(c.HealthStatus, "healthy"))
	c.LactationStatus = strings.ToLower(trimOr(c.LactationStatus, "dry"))
	err := s.db.QueryRow(ctx, `
		INSERT INTO cows(tag_number, name, breed, date_of_birth, status, health_status, lactation_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, c.TagNumber, c.Name, c.Breed, c.DateOfBirth, c.Status, c.HealthStatus, c.LactationStatus).Scan(&c.ID)
	if err != nil {
		return herd.Cow{}, fail("create cow", err)
	}
	return c, nil
}

func (s *Store) UpdateCow(ctx context.Context, c herd.Cow) error {
	return s.execOne(ctx, "update cow", `
		UPDATE cows
		SET tag_number = $2, name = $3, breed = $4, date_of_birth = $5, status = $6,
		    health_status = $7, lactation_status = $8
		WHERE id = $1
	`, c.ID, c.TagNumber, c.Name, c.Breed, c.DateOfBirth,
		strings.ToLower(trimOr(c.Status, "active")),
		strings.ToLower(trimOr(c.HealthStatus, "healthy")),
		strings.ToLower(trimOr(c.LactationStatus, "dry")))
}

func (s *Store) DeleteCow(ctx context.Context, id int64) error {
	return s.execOne(ctx, "delete cow", `DELETE FROM cows WHERE id = $1`, id)
}

var milkColumns = []string{"id", "cow_id", "record_date", "session", "liters", "fat_percent"}

func (s *Store) scanMilk(row pgx.Row) (herd.MilkRecord, error) {
	var (
		m   herd.MilkRecord
		d   time.Time
		fat decimal.NullDecimal
	)
	if err := row.Scan(&m.ID, &m.CowID, &d, &m.Session, &m.Liters, &fat); err != nil {
		return herd.MilkRecord{}, err
	}
	m.Date = s.date(d)
	m.Session = strings.ToLower(trimOr(m.Session, "morning"))
	if fat.Valid {
		f := fat.Decimal
		m.FatPercent = &f
	}
	return m, nil
}

type MilkListOptions struct {
	ListOptions
	CowID int64
	Range *finance.Range
}

func (s *Store) ListMilk(ctx context.Context, opts MilkListOptions) (Page[herd.MilkRecord], error) {
	q := Query{Table: "milk_records", Columns: milkColumns, OrderBy: "record_date", Desc: true}
	if opts.CowID > 0 {
		q.Where = append(q.Where, Filter{Column: "cow_id", Value: opts.CowID})
	}
	if opts.Range != nil {
		q = q.Within("record_date", *opts.Range)
	}
	return paged(ctx, s, "list milk records", q, opts.ListOptions, func(r pgx.Rows) (herd.MilkRecord, error) { return s.scanMilk(r) })
}

// MilkSince returns every record dated on or after from.
func (s *Store) MilkSince(ctx context.Context, from time.Time) ([]herd.MilkRecord, error) {
	from = s.date(from)
	q := Query{Table: "milk_records", Columns: milkColumns, DateColumn: "record_date", From: &from, OrderBy: "record_date"}
	return collect(ctx, s.db, "load milk records", q, func(r pgx.Rows) (herd.MilkRecord, error) { return s.scanMilk(r) })
}

func (s *Store) CreateMilkRecord(ctx context.Context, m herd.MilkRecord) (herd.MilkRecord, error) {
	m.Session = strings.ToLower(strings.TrimSpace(m.Session))
	var fat decimal.NullDecimal
	if m.FatPercent != nil {
		fat = decimal.NullDecimal{Decimal: *m.FatPercent, Valid: true}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO milk_records(cow_id, record_date, session, liters, fat_percent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, m.CowID, m.Date, m.Session, m.Liters, fat).Scan(&m.ID)
	if err != nil {
		return herd.MilkRecord{}, fail("create milk record", err)
	}
	m.Date = s.date(m.Date)
	return m, nil
}

var inspectionColumns = []string{"id", "cow_id", "week_start", "inspected_on", "inspector", "body_condition", "lameness_score", "mastitis_check", "notes"}

func (s *Store) scanInspection(row pgx.Row) (herd.Inspection, error) {
	var (
		in       herd.Inspection
		week, on time.Time
	)
	if err := row.Scan(&in.ID, &in.CowID, &week, &on, &in.Inspector, &in.BodyCondition, &in.LamenessScore, &in.MastitisCheck, &in.Notes); err != nil {
		return herd.Inspection{}, err
	}
	in.WeekStart = s.date(week)
	in.InspectedOn = s.date(on)
	in.MastitisCheck = strings.ToLower(trimOr(in.MastitisCheck, "negative"))
	return in, nil
}

// InspectionsSince returns inspections whose week starts on or after from,
// newest week first.
func (s *Store) InspectionsSince(ctx context.Context, from time.Time) ([]herd.Inspection, error) {
	from = s.date(from)
	q := Query{Table: "cow_inspections", Columns: inspectionColumns, DateColumn: "week_start", From: &from, OrderBy: "week_start", Desc: true}
	return collect(ctx, s.db, "load inspections", q, func(r pgx.Rows) (herd.Inspection, error) { return s.scanInspection(r) })
}

// CreateInspection stores one inspection. A second inspection of the same
// cow in the same week is a conflict.
func (s *Store) CreateInspection(ctx context.Context, in herd.Inspection) (herd.Inspection, error) {
	in.WeekStart = herd.WeekStart(s.date(in.InspectedOn))
	in.MastitisCheck = strings.ToLower(trimOr(in.MastitisCheck, "negative"))
	err := s.db.QueryRow(ctx, `
		INSERT INTO cow_inspections(cow_id, week_start, inspected_on, inspector, body_condition, lameness_score, mastitis_check, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, in.CowID, in.WeekStart, in.InspectedOn, in.Inspector, in.BodyCondition, in.LamenessScore, in.MastitisCheck, in.Notes).Scan(&in.ID)
	if err != nil {
		return herd.Inspection{}, fail("create inspection", err)
	}
	in.InspectedOn = s.date(in.InspectedOn)
	return in, nil
}
