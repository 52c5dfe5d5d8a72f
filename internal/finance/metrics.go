package finance

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PercentageChange reports the change from previous to current, rounded to
// one decimal. Growth from zero is reported as 100, and no change from zero
// as 0.
func PercentageChange(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return math.Round((current-previous)/previous*100*10) / 10
}

func DecimalChange(current, previous decimal.Decimal) float64 {
	return PercentageChange(current.InexactFloat64(), previous.InexactFloat64())
}

type Tally struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (t *Tally) add(amount decimal.Decimal) {
	t.Count++
	t.Amount = t.Amount.Add(amount)
}

// InvoiceSummary is computed in one pass over a snapshot of invoices.
// Outstanding covers every unpaid invoice, Overdue is the subset already past
// its due date, and Current is what remains once overdue ones are moved out.
type InvoiceSummary struct {
	Outstanding     Tally `json:"outstanding"`
	Overdue         Tally `json:"overdue"`
	Current         Tally `json:"current"`
	PaidThisMonth   Tally `json:"paidThisMonth"`
	IssuedThisMonth Tally `json:"issuedThisMonth"`
}

// IsOverdue derives overdue from the due date; the stored status may lag.
func IsOverdue(inv Invoice, today time.Time) bool {
	return inv.Status.Unpaid() && startOfDay(inv.DueDate).Before(startOfDay(today))
}

func SummarizeInvoices(invoices []Invoice, today time.Time) InvoiceSummary {
	s := InvoiceSummary{
		Outstanding:     Tally{Amount: decimal.Zero},
		Overdue:         Tally{Amount: decimal.Zero},
		Current:         Tally{Amount: decimal.Zero},
		PaidThisMonth:   Tally{Amount: decimal.Zero},
		IssuedThisMonth: Tally{Amount: decimal.Zero},
	}
	for _, inv := range invoices {
		sameMonth := inv.Date.Year() == today.Year() && inv.Date.Month() == today.Month()

		if inv.Status.Unpaid() {
			s.Outstanding.add(inv.Amount)
			if IsOverdue(inv, today) {
				s.Overdue.add(inv.Amount)
			}
		}
		if inv.Status == StatusPaid && sameMonth {
			s.PaidThisMonth.add(inv.Amount)
		}
		if sameMonth {
			s.IssuedThisMonth.add(inv.Amount)
		}
	}
	s.Current = Tally{
		Count:  s.Outstanding.Count - s.Overdue.Count,
		Amount: s.Outstanding.Amount.Sub(s.Overdue.Amount),
	}
	return s
}

type AgingBucket struct {
	Period     string          `json:"period"`
	Count      int             `json:"count"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage int             `json:"percentage"`
}

var agingPeriods = []struct {
	label   string
	maxDays int
}{
	{"Current", 0},
	{"1-30 days", 30},
	{"31-60 days", 60},
	{"61-90 days", 90},
	{"90+ days", math.MaxInt},
}

// AgeInvoices spreads unpaid invoices over days-past-due buckets. All five
// buckets are always returned, in ascending age.
func AgeInvoices(invoices []Invoice, today time.Time) []AgingBucket {
	out := make([]AgingBucket, len(agingPeriods))
	for i, p := range agingPeriods {
		out[i] = AgingBucket{Period: p.label, Amount: decimal.Zero}
	}

	day := startOfDay(today)
	for _, inv := range invoices {
		if !inv.Status.Unpaid() {
			continue
		}
		days := int(day.Sub(startOfDay(inv.DueDate.In(day.Location()))).Hours() / 24)
		for i, p := range agingPeriods {
			if days <= p.maxDays {
				out[i].Count++
				out[i].Amount = out[i].Amount.Add(inv.Amount)
				break
			}
		}
	}
	amounts := make([]decimal.Decimal, len(out))
	for i := range out {
		amounts[i] = out[i].Amount
	}
	for i, pct := range Apportion(amounts) {
		out[i].Percentage = pct
	}
	return out
}

// RevenueByCategory flattens the line items of the non-cancelled invoices by
// item category, matching the invoices TotalsFor and RankCustomers count.
func RevenueByCategory(invoices []Invoice, colors map[string]string) []CategoryShare {
	items := make([]InvoiceItem, 0)
	for _, inv := range ActiveInvoices(invoices) {
		items = append(items, inv.Items...)
	}
	groups := GroupSum(items,
		func(it InvoiceItem) string { return CategoryName(it.Category) },
		func(it InvoiceItem) decimal.Decimal { return it.Amount })
	return Shares(groups, colors)
}

type CustomerRevenue struct {
	CustomerID     int64           `json:"customerId"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	InvoiceCount   int             `json:"invoiceCount"`
}

type CustomerRanking struct {
	Top    []CustomerRevenue `json:"top"`
	ByType []CategoryShare   `json:"byType"`
}

const defaultTopCustomers = 5

// RankCustomers sums non-cancelled invoice amounts per customer, keeps the top
// N by total and then breaks those N down by customer type. Invoices for a
// customer no longer on file are ranked under the invoice's customer name.
func RankCustomers(customers []Customer, invoices []Invoice, topN int, colors map[string]string) CustomerRanking {
	if topN <= 0 {
		topN = defaultTopCustomers
	}

	byID := make(map[int64]*CustomerRevenue, len(customers))
	order := make([]int64, 0, len(customers))
	for _, c := range customers {
		byID[c.ID] = &CustomerRevenue{
			CustomerID:     c.ID,
			Name:           c.Name,
			Type:           CategoryName(c.Type),
			TotalPurchases: decimal.Zero,
		}
		order = append(order, c.ID)
	}
	for _, inv := range ActiveInvoices(invoices) {
		cr, ok := byID[inv.CustomerID]
		if !ok {
			name := strings.TrimSpace(inv.CustomerName)
			if name == "" {
				name = "Unknown customer"
			}
			cr = &CustomerRevenue{CustomerID: inv.CustomerID, Name: name, Type: OtherCategory, TotalPurchases: decimal.Zero}
			byID[inv.CustomerID] = cr
			order = append(order, inv.CustomerID)
		}
		cr.TotalPurchases = cr.TotalPurchases.Add(inv.Amount)
		cr.InvoiceCount++
	}

	ranked := make([]CustomerRevenue, 0, len(order))
	for _, id := range order {
		if cr := byID[id]; cr.TotalPurchases.IsPositive() {
			ranked = append(ranked, *cr)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].TotalPurchases.Cmp(ranked[j].TotalPurchases); c != 0 {
			return c > 0
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	groups := GroupSum(ranked,
		func(c CustomerRevenue) string { return c.Type },
		func(c CustomerRevenue) decimal.Decimal { return c.TotalPurchases })
	return CustomerRanking{Top: ranked, ByType: Shares(groups, colors)}
}

type Totals struct {
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// TotalsFor sums non-cancelled records. Callers pass records already scoped to
// one period.
func TotalsFor(invoices []Invoice, revenues []Revenue, expenses []Expense) Totals {
	t := Totals{Revenue: decimal.Zero, Expenses: decimal.Zero}
	for _, inv := range ActiveInvoices(invoices) {
		t.Revenue = t.Revenue.Add(inv.Amount)
	}
	for _, r := range revenues {
		if r.Status != StatusCancelled {
			t.Revenue = t.Revenue.Add(r.Amount)
		}
	}
	for _, e := range countable(expenses) {
		t.Expenses = t.Expenses.Add(e.Amount)
	}
	t.Profit = t.Revenue.Sub(t.Expenses)
	return t
}

type PeriodSummary struct {
	Current       Totals  `json:"current"`
	Previous      Totals  `json:"previous"`
	RevenueChange float64 `json:"revenueChange"`
	ExpenseChange float64 `json:"expenseChange"`
	ProfitChange  float64 `json:"profitChange"`
}

func ComparePeriods(current, previous Totals) PeriodSummary {
	return PeriodSummary{
		Current:       current,
		Previous:      previous,
		RevenueChange: DecimalChange(current.Revenue, previous.Revenue),
		ExpenseChange: DecimalChange(current.Expenses, previous.Expenses),
		ProfitChange:  DecimalChange(current.Profit, previous.Profit),
	}
}
