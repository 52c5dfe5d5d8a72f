package finance

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
)

func TestPercentageChange(t *testing.T) {
	tests := []struct {
		current, previous, want float64
	}{
		{0, 0, 0},
		{50, 0, 100},
		{5000, 0, 100},
		{-10, 0, 0},
		{0, 50, -100},
		{200, 100, 100},
		{50, 100, -50},
		{110, 90, 22.2},
		{1, 3, -66.7},
	}
	for _, tt := range tests {
		if got := PercentageChange(tt.current, tt.previous); got != tt.want {
			t.Errorf("PercentageChange(%v, %v) = %v, want %v", tt.current, tt.previous, got, tt.want)
		}
	}
}

func TestSummarizeInvoices(t *testing.T) {
	today := day(2024, time.March, 15)
	invoices := []Invoice{
		{InvoiceNumber: "INV-1", Date: day(2024, time.January, 10), DueDate: day(2024, time.February, 9), Amount: amt(1000), Status: StatusPending},
		{InvoiceNumber: "INV-2", Date: day(2024, time.February, 20), DueDate: day(2024, time.March, 1), Amount: amt(400), Status: StatusOverdue},
		{InvoiceNumber: "INV-3", Date: day(2024, time.March, 2), DueDate: day(2024, time.April, 1), Amount: amt(250), Status: StatusPending},
		{InvoiceNumber: "INV-4", Date: day(2024, time.March, 5), DueDate: day(2024, time.April, 4), Amount: amt(600), Status: StatusPaid},
		{InvoiceNumber: "INV-5", Date: day(2024, time.March, 6), DueDate: day(2024, time.March, 7), Amount: amt(90), Status: StatusCancelled},
		{InvoiceNumber: "INV-6", Date: day(2024, time.February, 1), DueDate: day(2024, time.March, 15), Amount: amt(75), Status: StatusPending},
	}

	s := SummarizeInvoices(invoices, today)

	if s.Outstanding.Count != 4 || !s.Outstanding.Amount.Equal(amt(1725)) {
		t.Fatalf("outstanding = %+v", s.Outstanding)
	}
	if s.Overdue.Count != 2 || !s.Overdue.Amount.Equal(amt(1400)) {
		t.Fatalf("overdue = %+v", s.Overdue)
	}
	if s.Current.Count != 2 || !s.Current.Amount.Equal(amt(325)) {
		t.Fatalf("current = %+v", s.Current)
	}
	if s.PaidThisMonth.Count != 1 || !s.PaidThisMonth.Amount.Equal(amt(600)) {
		t.Fatalf("paid this month = %+v", s.PaidThisMonth)
	}
	if s.IssuedThisMonth.Count != 3 || !s.IssuedThisMonth.Amount.Equal(amt(940)) {
		t.Fatalf("issued this month = %+v", s.IssuedThisMonth)
	}
}

func TestSummarizeInvoicesOutstandingCoversOverdue(t *testing.T) {
	today := day(2024, time.June, 30)
	statuses := []Status{StatusPending, StatusOverdue, StatusPaid, StatusCancelled}

	var invoices []Invoice
	for i := 0; i < 40; i++ {
		invoices = append(invoices, Invoice{
			Date:    today.AddDate(0, 0, -i*3),
			DueDate: today.AddDate(0, 0, 20-i*2),
			Amount:  amt(int64(100 + i)),
			Status:  statuses[i%len(statuses)],
		})
	}

	s := SummarizeInvoices(invoices, today)
	if s.Outstanding.Count < s.Overdue.Count {
		t.Fatalf("outstanding %d < overdue %d", s.Outstanding.Count, s.Overdue.Count)
	}

	pendingPastDue := 0
	for _, inv := range invoices {
		if inv.Status == StatusPending && inv.DueDate.Before(today) {
			pendingPastDue++
		}
	}
	overdueFromPending := 0
	for _, inv := range invoices {
		if inv.Status == StatusPending && IsOverdue(inv, today) {
			overdueFromPending++
		}
	}
	if pendingPastDue != overdueFromPending {
		t.Fatalf("every pending past-due invoice must be overdue: %d vs %d", pendingPastDue, overdueFromPending)
	}
	if s.Current.Count+s.Overdue.Count != s.Outstanding.Count {
		t.Fatal("current and overdue must partition outstanding")
	}
}

func TestSummarizeInvoicesEmpty(t *testing.T) {
	s := SummarizeInvoices(nil, day(2024, time.January, 1))
	if s.Outstanding.Count != 0 || !s.Outstanding.Amount.IsZero() || !s.Current.Amount.IsZero() {
		t.Fatalf("expected zeroed summary, got %+v", s)
	}
}

func TestAgeInvoices(t *testing.T) {
	today := day(2024, time.May, 31)
	invoices := []Invoice{
		{DueDate: day(2024, time.June, 10), Amount: amt(100), Status: StatusPending},
		{DueDate: day(2024, time.May, 31), Amount: amt(100), Status: StatusPending},
		{DueDate: day(2024, time.May, 1), Amount: amt(200), Status: StatusPending},
		{DueDate: day(2024, time.April, 1), Amount: amt(300), Status: StatusOverdue},
		{DueDate: day(2024, time.March, 2), Amount: amt(100), Status: StatusOverdue},
		{DueDate: day(2023, time.December, 1), Amount: amt(200), Status: StatusPending},
		{DueDate: day(2023, time.December, 1), Amount: amt(5000), Status: StatusPaid},
	}

	buckets := AgeInvoices(invoices, today)
	want := []struct {
		period string
		count  int
		amount int64
		pct    int
	}{
		{"Current", 2, 200, 20},
		{"1-30 days", 1, 200, 20},
		{"31-60 days", 1, 300, 30},
		{"61-90 days", 1, 100, 10},
		{"90+ days", 1, 200, 20},
	}
	for i, w := range want {
		b := buckets[i]
		if b.Period != w.period || b.Count != w.count || !b.Amount.Equal(amt(w.amount)) || b.Percentage != w.pct {
			t.Errorf("bucket %d = %+v, want %+v", i, b, w)
		}
	}

	empty := AgeInvoices(nil, today)
	if len(empty) != 5 {
		t.Fatalf("expected five buckets on empty input, got %d", len(empty))
	}
	for _, b := range empty {
		if b.Percentage != 0 {
			t.Fatalf("zero total must give 0%%, got %+v", b)
		}
	}
}

func TestRankCustomers(t *testing.T) {
	customers := []Customer{
		{ID: 1, Name: "Sharma Sweets", Type: "Retail"},
		{ID: 2, Name: "City Hotel", Type: "Hospitality"},
		{ID: 3, Name: "Anand Co-op", Type: "Wholesale"},
		{ID: 4, Name: "Idle Buyer", Type: "Retail"},
	}
	invoices := []Invoice{
		{CustomerID: 1, Amount: amt(300), Status: StatusPaid},
		{CustomerID: 2, Amount: amt(500), Status: StatusPending},
		{CustomerID: 3, Amount: amt(200), Status: StatusPaid},
		{CustomerID: 1, Amount: amt(300), Status: StatusPaid},
		{CustomerID: 3, Amount: amt(900), Status: StatusCancelled},
		{CustomerID: 9, CustomerName: "Removed Dairy", Amount: amt(50), Status: StatusPaid},
	}

	ranking := RankCustomers(customers, invoices, 2, nil)
	if len(ranking.Top) != 2 {
		t.Fatalf("expected top 2, got %+v", ranking.Top)
	}
	if ranking.Top[0].Name != "Sharma Sweets" || !ranking.Top[0].TotalPurchases.Equal(amt(600)) || ranking.Top[0].InvoiceCount != 2 {
		t.Fatalf("unexpected leader %+v", ranking.Top[0])
	}
	if ranking.Top[1].Name != "City Hotel" {
		t.Fatalf("unexpected runner-up %+v", ranking.Top[1])
	}
	if len(ranking.ByType) != 2 || ranking.ByType[0].Name != "Retail" || ranking.ByType[0].Percentage != 55 {
		t.Fatalf("unexpected type breakdown %+v", ranking.ByType)
	}

	all := RankCustomers(customers, invoices, 0, nil)
	if len(all.Top) != 4 || all.Top[3].Name != "Removed Dairy" {
		t.Fatalf("expected unknown customer ranked by invoice name, got %+v", all.Top)
	}
}

func TestComparePeriods(t *testing.T) {
	cur := TotalsFor(
		[]Invoice{{Amount: amt(2000), Status: StatusPaid}},
		[]Revenue{{Amount: amt(500), Status: StatusPaid}},
		[]Expense{{Amount: amt(1000), Status: StatusPaid}, {Amount: amt(300), Status: StatusCancelled}},
	)
	prev := TotalsFor(nil, []Revenue{{Amount: amt(1250), Status: StatusPaid}}, nil)

	s := ComparePeriods(cur, prev)
	if !s.Current.Profit.Equal(amt(1500)) {
		t.Fatalf("unexpected profit %s", s.Current.Profit)
	}
	if s.RevenueChange != 100 || s.ExpenseChange != 100 || s.ProfitChange != 20 {
		t.Fatalf("unexpected changes %+v", s)
	}
}

func TestTransitions(t *testing.T) {
	if err := TransactionTransition(StatusPending, StatusPaid); err != nil {
		t.Fatalf("pending->paid: %v", err)
	}
	if err := TransactionTransition(StatusPaid, StatusPending); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("paid is final, got %v", err)
	}
	if err := TransactionTransition(StatusCancelled, StatusPaid); err == nil {
		t.Fatal("cancelled is final")
	}
	if err := InvoiceTransition(StatusOverdue, StatusPaid); err != nil {
		t.Fatalf("overdue->paid: %v", err)
	}
	if err := InvoiceTransition(StatusPaid, StatusOverdue); err == nil {
		t.Fatal("paid invoice cannot become overdue")
	}
}

func TestInvoiceValidateNew(t *testing.T) {
	inv := Invoice{
		InvoiceNumber: "INV-2024-001",
		Date:          day(2024, time.January, 1),
		DueDate:       day(2024, time.January, 31),
		Amount:        decimal.RequireFromString("1550.50"),
		Items: []InvoiceItem{
			{Description: "Milk 500L", Amount: decimal.RequireFromString("1500.50")},
			{Description: "Delivery", Amount: amt(50)},
		},
	}
	if err := inv.ValidateNew(); err != nil {
		t.Fatalf("valid invoice rejected: %v", err)
	}

	inv.Amount = amt(1600)
	err := inv.ValidateNew()
	var ve *apperr.ValidationError
	if !errors.As(err, &ve) || ve.Field != "amount" {
		t.Fatalf("expected amount validation error, got %v", err)
	}
}

func TestFormatINR(t *testing.T) {
	tests := map[string]string{
		"0":          "₹0.00",
		"999":        "₹999.00",
		"1000":       "₹1,000.00",
		"100000":     "₹1,00,000.00",
		"1234567.5":  "₹12,34,567.50",
		"-20000":     "-₹20,000.00",
		"0.005":      "₹0.01",
		"123456789":  "₹12,34,56,789.00",
	}
	for in, want := range tests {
		if got := FormatINR(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatINR(%s) = %q, want %q", in, got, want)
		}
	}
	if got := FormatINRPlain(amt(17000)); got != "INR 17,000.00" {
		t.Errorf("plain = %q", got)
	}
}
