package finance

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const OtherCategory = "Other"

// ExpenseCategories is the fixed set every expense trend point carries.
var ExpenseCategories = []string{"Feed", "Labor", "Utilities", "Veterinary", "Maintenance"}

var hundredPercent = decimal.NewFromInt(100)

var defaultPalette = []string{"#4CAF50", "#2196F3", "#FFC107", "#F44336", "#9C27B0", "#00BCD4", "#FF9800", "#795548"}

type Group struct {
	Key   string
	Total decimal.Decimal
	Count int
}

// GroupSum sums amount per key in first-seen order.
func GroupSum[T any](records []T, key func(T) string, amount func(T) decimal.Decimal) []Group {
	index := make(map[string]int)
	out := make([]Group, 0)
	for _, rec := range records {
		k := key(rec)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Group{Key: k, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(amount(rec))
		out[i].Count++
	}
	return out
}

// CategoryName trims a category and maps a blank one to Other.
func CategoryName(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return OtherCategory
	}
	return v
}

// canonicalExpenseCategory folds an expense category onto the fixed set,
// sending anything else to Other.
func canonicalExpenseCategory(raw string) string {
	v := strings.TrimSpace(raw)
	for _, c := range ExpenseCategories {
		if strings.EqualFold(v, c) {
			return c
		}
	}
	if strings.EqualFold(v, "labour") {
		return "Labor"
	}
	return OtherCategory
}

type CategoryShare struct {
	Name       string          `json:"name"`
	Value      decimal.Decimal `json:"value"`
	Percentage int             `json:"percentage"`
	Color      string          `json:"color"`
}

// Shares turns groups into percentages of their combined total, sorted by
// value descending. A zero total yields 0% everywhere. Groups are never
// dropped, even when their share rounds to 0.
func Shares(groups []Group, colors map[string]string) []CategoryShare {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Total)
	}

	out := make([]CategoryShare, 0, len(groups))
	for _, g := range groups {
		out = append(out, CategoryShare{Name: g.Key, Value: g.Total})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	values := make([]decimal.Decimal, len(out))
	for i := range out {
		values[i] = out[i].Value
	}
	for i, pct := range Apportion(values) {
		out[i].Percentage = pct
		out[i].Color = colorFor(out[i].Name, i, colors)
	}
	return out
}

// Apportion splits 100 percent across parts by the largest-remainder method,
// so the results sum to exactly 100 whenever the parts have a positive total.
// Leftover points go to the largest remainders, earlier parts winning ties.
// A zero total, or any negative part, falls back to Percent per part.
func Apportion(parts []decimal.Decimal) []int {
	out := make([]int, len(parts))
	total := decimal.Zero
	negative := false
	for _, p := range parts {
		total = total.Add(p)
		negative = negative || p.IsNegative()
	}
	if !total.IsPositive() || negative {
		for i, p := range parts {
			out[i] = Percent(p, total)
		}
		return out
	}

	remainders := make([]decimal.Decimal, len(parts))
	order := make([]int, len(parts))
	left := 100
	for i, p := range parts {
		exact := p.Mul(hundredPercent).Div(total)
		floor := exact.Floor()
		out[i] = int(floor.IntPart())
		remainders[i] = exact.Sub(floor)
		order[i] = i
		left -= out[i]
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for k := 0; k < left && k < len(order); k++ {
		out[order[k]]++
	}
	return out
}

// Percent returns part/total*100 rounded to an integer, or 0 for a zero total.
func Percent(part, total decimal.Decimal) int {
	if total.IsZero() {
		return 0
	}
	return int(math.Round(part.Div(total).Mul(hundredPercent).InexactFloat64()))
}

func colorFor(name string, i int, colors map[string]string) string {
	if c, ok := colors[name]; ok && c != "" {
		return c
	}
	return defaultPalette[i%len(defaultPalette)]
}

// ExpensesByCategory breaks down non-cancelled expenses by their own category
// values. Unlike the trend, categories outside the fixed set keep their names.
func ExpensesByCategory(expenses []Expense, colors map[string]string) []CategoryShare {
	groups := GroupSum(countable(expenses),
		func(e Expense) string { return CategoryName(e.Category) },
		func(e Expense) decimal.Decimal { return e.Amount })
	return Shares(groups, colors)
}

type ExpenseTrendPoint struct {
	Key         string          `json:"key"`
	Label       string          `json:"label"`
	Feed        decimal.Decimal `json:"feed"`
	Labor       decimal.Decimal `json:"labor"`
	Utilities   decimal.Decimal `json:"utilities"`
	Veterinary  decimal.Decimal `json:"veterinary"`
	Maintenance decimal.Decimal `json:"maintenance"`
	Other       decimal.Decimal `json:"other"`
	Total       decimal.Decimal `json:"total"`
}

func (p *ExpenseTrendPoint) add(category string, amount decimal.Decimal) {
	switch category {
	case "Feed":
		p.Feed = p.Feed.Add(amount)
	case "Labor":
		p.Labor = p.Labor.Add(amount)
	case "Utilities":
		p.Utilities = p.Utilities.Add(amount)
	case "Veterinary":
		p.Veterinary = p.Veterinary.Add(amount)
	case "Maintenance":
		p.Maintenance = p.Maintenance.Add(amount)
	default:
		p.Other = p.Other.Add(amount)
	}
	p.Total = p.Total.Add(amount)
}

// ExpenseTrend returns one point per bucket, in bucket order, with every fixed
// category present and zero-filled.
func ExpenseTrend(expenses []Expense, buckets []Bucket) []ExpenseTrendPoint {
	out := make([]ExpenseTrendPoint, len(buckets))
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		out[i] = ExpenseTrendPoint{
			Key:         b.Key,
			Label:       b.Label,
			Feed:        decimal.Zero,
			Labor:       decimal.Zero,
			Utilities:   decimal.Zero,
			Veterinary:  decimal.Zero,
			Maintenance: decimal.Zero,
			Other:       decimal.Zero,
			Total:       decimal.Zero,
		}
		index[b.Key] = i
	}
	if len(buckets) == 0 {
		return out
	}
	g := buckets[0].Granularity
	for _, e := range countable(expenses) {
		i, ok := index[BucketKey(e.Date, g)]
		if !ok {
			continue
		}
		out[i].add(canonicalExpenseCategory(e.Category), e.Amount)
	}
	return out
}

type CashFlowPoint struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Profit   decimal.Decimal `json:"profit"`
}

// CashFlowTrend sums invoiced revenue, other revenue and expenses per bucket.
// Cancelled records are ignored.
func CashFlowTrend(invoices []Invoice, revenues []Revenue, expenses []Expense, buckets []Bucket) []CashFlowPoint {
	out := make([]CashFlowPoint, len(buckets))
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		out[i] = CashFlowPoint{Key: b.Key, Label: b.Label, Revenue: decimal.Zero, Expenses: decimal.Zero, Profit: decimal.Zero}
		index[b.Key] = i
	}
	if len(buckets) == 0 {
		return out
	}
	g := buckets[0].Granularity

	for _, inv := range ActiveInvoices(invoices) {
		if i, ok := index[BucketKey(inv.Date, g)]; ok {
			out[i].Revenue = out[i].Revenue.Add(inv.Amount)
		}
	}
	for _, rev := range revenues {
		if rev.Status == StatusCancelled {
			continue
		}
		if i, ok := index[BucketKey(rev.Date, g)]; ok {
			out[i].Revenue = out[i].Revenue.Add(rev.Amount)
		}
	}
	for _, e := range countable(expenses) {
		if i, ok := index[BucketKey(e.Date, g)]; ok {
			out[i].Expenses = out[i].Expenses.Add(e.Amount)
		}
	}
	for i := range out {
		out[i].Profit = out[i].Revenue.Sub(out[i].Expenses)
	}
	return out
}

func countable(expenses []Expense) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Status != StatusCancelled {
			out = append(out, e)
		}
	}
	return out
}
