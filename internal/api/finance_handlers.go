package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
)

// dashboardFetch carries one sequenced dashboard request. A failed load does
// not fail the request: the figure is computed over an empty set and a
// warning tells the client which part is missing.
type dashboardFetch struct {
	s        *Server
	key      string
	seq      int64
	warnings []string
	log      *zerolog.Logger
}

func (s *Server) beginFetch(w http.ResponseWriter, r *http.Request, screen string) (*dashboardFetch, bool) {
	seq, err := parseSeq(r)
	if err != nil {
		respondError(w, r, apperr.Invalid("seq", "%s", err.Error()), "")
		return nil, false
	}
	uid, _ := currentUserID(r)
	f := &dashboardFetch{
		s:        s,
		key:      sequenceKey(uid, screen),
		seq:      seq,
		warnings: []string{},
		log:      zerolog.Ctx(r.Context()),
	}
	if !s.sequencer.begin(f.key, seq) {
		respondStale(w, seq)
		return nil, false
	}
	return f, true
}

func (f *dashboardFetch) warn(what string, err error) {
	f.log.Error().Err(err).Str("part", what).Msg("dashboard load failed")
	f.warnings = append(f.warnings, "could not load "+what)
}

func (f *dashboardFetch) respond(w http.ResponseWriter, payload map[string]any) {
	if !f.s.sequencer.current(f.key, f.seq) {
		respondStale(w, f.seq)
		return
	}
	payload["seq"] = f.seq
	payload["warnings"] = f.warnings
	respondJSON(w, http.StatusOK, payload)
}

func loadOr[T any](f *dashboardFetch, what string, load func() ([]T, error)) []T {
	items, err := load()
	if err != nil {
		f.warn(what, err)
		return []T{}
	}
	return items
}

type periodRecords struct {
	invoices []finance.Invoice
	revenues []finance.Revenue
	expenses []finance.Expense
}

func (s *Server) loadPeriod(ctx context.Context, f *dashboardFetch, rng finance.Range, label string) periodRecords {
	return periodRecords{
		invoices: loadOr(f, label+" invoices", func() ([]finance.Invoice, error) { return s.store.InvoicesIn(ctx, rng) }),
		revenues: loadOr(f, label+" revenues", func() ([]finance.Revenue, error) { return s.store.RevenuesIn(ctx, rng) }),
		expenses: loadOr(f, label+" expenses", func() ([]finance.Expense, error) { return s.store.ExpensesIn(ctx, rng) }),
	}
}

func (s *Server) handleFinanceSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicySummary)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "finance-summary")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	previous := rng.Previous(s.today())
	cur := s.loadPeriod(ctx, f, rng, "current")
	prev := s.loadPeriod(ctx, f, previous, "previous")

	summary := finance.ComparePeriods(
		finance.TotalsFor(cur.invoices, cur.revenues, cur.expenses),
		finance.TotalsFor(prev.invoices, prev.revenues, prev.expenses),
	)
	f.respond(w, map[string]any{
		"range":         rangeJSON(rng),
		"previousRange": rangeJSON(previous),
		"summary":       summary,
	})
}

func (s *Server) trendBuckets(r *http.Request) (finance.Range, []finance.Bucket, error) {
	rng, err := s.rangeFromQuery(r, finance.RangeYear, finance.PolicyTrend)
	if err != nil {
		return finance.Range{}, nil, err
	}
	g, err := finance.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		return finance.Range{}, nil, err
	}
	return rng, rng.Buckets(g, s.today()), nil
}

func (s *Server) handleExpenseTrend(w http.ResponseWriter, r *http.Request) {
	rng, buckets, err := s.trendBuckets(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "expense-trend")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	expenses := loadOr(f, "expenses", func() ([]finance.Expense, error) { return s.store.ExpensesIn(ctx, rng) })
	f.respond(w, map[string]any{
		"range":  rangeJSON(rng),
		"points": finance.ExpenseTrend(expenses, buckets),
	})
}

func (s *Server) handleExpenseCategories(w http.ResponseWriter, r *http.Request) {
	rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicySummary)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "expense-categories")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	expenses := loadOr(f, "expenses", func() ([]finance.Expense, error) { return s.store.ExpensesIn(ctx, rng) })
	f.respond(w, map[string]any{
		"range":      rangeJSON(rng),
		"categories": finance.ExpensesByCategory(expenses, s.settings.CategoryColors),
	})
}

func (s *Server) handleRevenueTrend(w http.ResponseWriter, r *http.Request) {
	rng, buckets, err := s.trendBuckets(r)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "revenue-trend")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := s.loadPeriod(ctx, f, rng, "period")
	f.respond(w, map[string]any{
		"range":  rangeJSON(rng),
		"points": finance.CashFlowTrend(p.invoices, p.revenues, p.expenses, buckets),
	})
}

func (s *Server) handleRevenueCategories(w http.ResponseWriter, r *http.Request) {
	rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicySummary)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "revenue-categories")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	invoices := loadOr(f, "invoices", func() ([]finance.Invoice, error) { return s.store.InvoicesIn(ctx, rng) })
	f.respond(w, map[string]any{
		"range":      rangeJSON(rng),
		"categories": finance.RevenueByCategory(invoices, s.settings.CategoryColors),
	})
}

// openInvoices loads every unpaid invoice plus everything issued this month,
// which is all the invoice summary and aging views look at.
func (s *Server) openInvoices(ctx context.Context, f *dashboardFetch) []finance.Invoice {
	today := s.today()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	return loadOr(f, "invoices", func() ([]finance.Invoice, error) { return s.store.OpenInvoices(ctx, monthStart) })
}

func (s *Server) handleInvoiceSummary(w http.ResponseWriter, r *http.Request) {
	f, ok := s.beginFetch(w, r, "invoice-summary")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	invoices := s.openInvoices(ctx, f)
	f.respond(w, map[string]any{
		"asOf":    s.formatISODate(s.today()),
		"summary": finance.SummarizeInvoices(invoices, s.today()),
	})
}

func (s *Server) handleInvoiceAging(w http.ResponseWriter, r *http.Request) {
	f, ok := s.beginFetch(w, r, "invoice-aging")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	invoices := s.openInvoices(ctx, f)
	f.respond(w, map[string]any{
		"asOf":    s.formatISODate(s.today()),
		"buckets": finance.AgeInvoices(invoices, s.today()),
	})
}

const defaultTopCustomers = 5

func (s *Server) handleCustomerRanking(w http.ResponseWriter, r *http.Request) {
	topN := defaultTopCustomers
	if raw := strings.TrimSpace(r.URL.Query().Get("top")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			respondError(w, r, apperr.Invalid("top", "must be between 1 and 50"), "")
			return
		}
		topN = n
	}
	rng, err := s.rangeFromQuery(r, finance.RangeYear, finance.PolicySummary)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "customer-ranking")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	customers := loadOr(f, "customers", func() ([]finance.Customer, error) { return s.store.AllCustomers(ctx) })
	invoices := loadOr(f, "invoices", func() ([]finance.Invoice, error) { return s.store.InvoicesIn(ctx, rng) })
	f.respond(w, map[string]any{
		"range":   rangeJSON(rng),
		"ranking": finance.RankCustomers(customers, invoices, topN, s.settings.CategoryColors),
	})
}
