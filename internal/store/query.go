package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dairyfarm/backend/internal/finance"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Filter is an equality condition on one column.
type Filter struct {
	Column string
	Value  any
}

// Query is the generic record query: equality filters, an inclusive date
// range on one column, a case-insensitive search over text columns, ordering
// and offset pagination. Identifiers are checked before they reach SQL;
// values always travel as parameters.
type Query struct {
	Table         string
	Columns       []string
	Where         []Filter
	In            *InFilter
	DateColumn    string
	From          *time.Time
	To            *time.Time
	Search        string
	SearchColumns []string
	OrderBy       string
	Desc          bool
	Limit         int
	Offset        int
}

type InFilter struct {
	Column string
	Values []string
}

// Within scopes the query to r on column. An open range only sets From.
func (q Query) Within(column string, r finance.Range) Query {
	q.DateColumn = column
	start := r.Start
	q.From = &start
	q.To = nil
	if r.End != nil {
		end := *r.End
		q.To = &end
	}
	return q
}

func (q Query) Page(page, pageSize int) Query {
	if page < 1 {
		page = 1
	}
	q.Limit = pageSize
	q.Offset = (page - 1) * pageSize
	return q
}

func (q Query) validate() error {
	if !identRe.MatchString(q.Table) {
		return fmt.Errorf("invalid table %q", q.Table)
	}
	if len(q.Columns) == 0 {
		return fmt.Errorf("query on %s selects no columns", q.Table)
	}
	check := func(kind, name string) error {
		if !identRe.MatchString(name) {
			return fmt.Errorf("invalid %s %q", kind, name)
		}
		return nil
	}
	for _, c := range q.Columns {
		if err := check("column", c); err != nil {
			return err
		}
	}
	for _, f := range q.Where {
		if err := check("filter column", f.Column); err != nil {
			return err
		}
	}
	if q.In != nil {
		if err := check("filter column", q.In.Column); err != nil {
			return err
		}
	}
	for _, c := range q.SearchColumns {
		if err := check("search column", c); err != nil {
			return err
		}
	}
	if (q.From != nil || q.To != nil) && q.DateColumn == "" {
		return fmt.Errorf("date bounds on %s without a date column", q.Table)
	}
	if q.DateColumn != "" {
		if err := check("date column", q.DateColumn); err != nil {
			return err
		}
	}
	if q.OrderBy != "" {
		if err := check("order column", q.OrderBy); err != nil {
			return err
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("negative limit or offset")
	}
	return nil
}

func (q Query) where() (string, []any) {
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, f := range q.Where {
		conds = append(conds, fmt.Sprintf("%s = %s", f.Column, next(f.Value)))
	}
	if q.In != nil {
		conds = append(conds, fmt.Sprintf("%s = ANY(%s)", q.In.Column, next(q.In.Values)))
	}
	if q.From != nil {
		conds = append(conds, fmt.Sprintf("%s >= %s", q.DateColumn, next(*q.From)))
	}
	if q.To != nil {
		conds = append(conds, fmt.Sprintf("%s <= %s", q.DateColumn, next(*q.To)))
	}
	if s := strings.TrimSpace(q.Search); s != "" && len(q.SearchColumns) > 0 {
		p := next(s)
		parts := make([]string, 0, len(q.SearchColumns))
		for _, c := range q.SearchColumns {
			parts = append(parts, fmt.Sprintf("%s ILIKE '%%' || %s || '%%'", c, p))
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SQL renders the select statement and its arguments.
func (q Query) SQL() (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}
	where, args := q.where()

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", strings.Join(q.Columns, ", "), q.Table, where)
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s, id %s", q.OrderBy, dir, dir)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args, nil
}

// CountSQL counts the rows the query matches, ignoring pagination.
func (q Query) CountSQL() (string, []any, error) {
	if err := q.validate(); err != nil {
		return "", nil, err
	}
	where, args := q.where()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", q.Table, where), args, nil
}
