package finance

import (
	"errors"
	"testing"
	"time"

	"dairyfarm/backend/internal/apperr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveRangeNamedKinds(t *testing.T) {
	ref := time.Date(2024, time.February, 14, 17, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		kind      RangeKind
		ref       time.Time
		wantStart string
		wantEnd   string
	}{
		{"month leap year", RangeMonth, ref, "2024-02-01", "2024-02-29"},
		{"first quarter", RangeQuarter, ref, "2024-01-01", "2024-03-31"},
		{"second quarter", RangeQuarter, day(2024, time.May, 15), "2024-04-01", "2024-06-30"},
		{"fourth quarter", RangeQuarter, day(2023, time.December, 31), "2023-10-01", "2023-12-31"},
		{"year", RangeYear, ref, "2024-01-01", "2024-12-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend, err := ResolveRange(tt.kind, tt.ref, PolicyTrend, CustomRange{})
			if err != nil {
				t.Fatalf("trend: %v", err)
			}
			if trend.StartDate() != tt.wantStart || trend.EndDate() != tt.wantEnd {
				t.Fatalf("trend range = %s, want %s..%s", trend, tt.wantStart, tt.wantEnd)
			}

			summary, err := ResolveRange(tt.kind, tt.ref, PolicySummary, CustomRange{})
			if err != nil {
				t.Fatalf("summary: %v", err)
			}
			if summary.StartDate() != tt.wantStart {
				t.Fatalf("summary start = %s, want %s", summary.StartDate(), tt.wantStart)
			}
			if summary.End != nil {
				t.Fatalf("summary range must stay open, got end %s", summary.EndDate())
			}
		})
	}
}

func TestResolveRangeCustom(t *testing.T) {
	ref := day(2024, time.March, 10)

	_, err := ResolveRange(RangeCustom, ref, PolicyTrend, CustomRange{End: "2024-03-31"})
	if !errors.Is(err, ErrMissingRangeStart) {
		t.Fatalf("expected ErrMissingRangeStart, got %v", err)
	}
	if !apperr.IsValidation(err) {
		t.Fatal("missing start must be a validation error")
	}

	r, err := ResolveRange(RangeCustom, ref, PolicySummary, CustomRange{Start: "2024-01-15", End: "2024-02-10"})
	if err != nil {
		t.Fatalf("custom: %v", err)
	}
	if r.String() != "2024-01-15..2024-02-10" {
		t.Fatalf("unexpected range %s", r)
	}

	open, err := ResolveRange(RangeCustom, ref, PolicyTrend, CustomRange{Start: "2024-01-15"})
	if err != nil || open.End != nil {
		t.Fatalf("custom without end should be open: %v %v", open, err)
	}

	if _, err := ResolveRange(RangeCustom, ref, PolicyTrend, CustomRange{Start: "2024-02-10", End: "2024-01-01"}); err == nil {
		t.Fatal("expected error for end before start")
	}
	if _, err := ResolveRange(RangeCustom, ref, PolicyTrend, CustomRange{Start: "15/01/2024"}); err == nil {
		t.Fatal("expected error for malformed start")
	}
}

func TestCustomRangeSpanIsBounded(t *testing.T) {
	ref := day(2024, time.March, 10)
	cases := []struct {
		custom CustomRange
		field  string
	}{
		{CustomRange{Start: "0001-01-01", End: "9999-12-31"}, "end"},
		{CustomRange{Start: "2014-01-01", End: "2024-01-02"}, "end"},
		{CustomRange{Start: "2000-01-01"}, "start"},
	}
	for _, tc := range cases {
		_, err := ResolveRange(RangeCustom, ref, PolicyTrend, tc.custom)
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) || ve.Field != tc.field {
			t.Fatalf("%+v: err = %v, want validation error on %s", tc.custom, err, tc.field)
		}
	}

	r, err := ResolveRange(RangeCustom, ref, PolicyTrend, CustomRange{Start: "2014-01-01", End: "2024-01-01"})
	if err != nil {
		t.Fatalf("ten years exactly: %v", err)
	}
	if n := len(r.Buckets(ByMonth, ref)); n != 121 {
		t.Fatalf("buckets = %d, want 121", n)
	}
}

func TestCheckDaily(t *testing.T) {
	until := day(2024, time.December, 31)
	year, _ := ResolveRange(RangeYear, until, PolicyTrend, CustomRange{})
	if err := year.CheckDaily(until); err != nil {
		t.Fatalf("a leap year fits a daily series: %v", err)
	}
	long, _ := ResolveRange(RangeCustom, until, PolicyTrend, CustomRange{Start: "2023-01-01", End: "2024-01-02"})
	if err := long.CheckDaily(until); !apperr.IsValidation(err) {
		t.Fatalf("367 days: err = %v", err)
	}
	open, _ := ResolveRange(RangeCustom, until, PolicyTrend, CustomRange{Start: "2022-06-01"})
	if err := open.CheckDaily(until); !apperr.IsValidation(err) {
		t.Fatalf("open range measured to today: err = %v", err)
	}
}

func TestResolveRangeFollowsReference(t *testing.T) {
	a, _ := ResolveRange(RangeMonth, day(2024, time.January, 31), PolicyTrend, CustomRange{})
	b, _ := ResolveRange(RangeMonth, day(2024, time.February, 1), PolicyTrend, CustomRange{})
	if a.StartDate() == b.StartDate() {
		t.Fatal("ranges resolved on different days of different months must differ")
	}
}

func TestParseRangeKind(t *testing.T) {
	if k, err := ParseRangeKind(""); err != nil || k != RangeMonth {
		t.Fatalf("empty range should default to month, got %q %v", k, err)
	}
	if k, err := ParseRangeKind(" Quarter "); err != nil || k != RangeQuarter {
		t.Fatalf("got %q %v", k, err)
	}
	if _, err := ParseRangeKind("fortnight"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRangeContainsIsInclusive(t *testing.T) {
	r, _ := ResolveRange(RangeMonth, day(2024, time.April, 10), PolicyTrend, CustomRange{})
	cases := map[time.Time]bool{
		day(2024, time.March, 31):                                false,
		day(2024, time.April, 1):                                 true,
		time.Date(2024, time.April, 30, 23, 59, 0, 0, time.UTC): true,
		day(2024, time.May, 1):                                   false,
	}
	for ts, want := range cases {
		if got := r.Contains(ts); got != want {
			t.Errorf("Contains(%s) = %v, want %v", ts, got, want)
		}
	}

	open, _ := ResolveRange(RangeMonth, day(2024, time.April, 10), PolicySummary, CustomRange{})
	if !open.Contains(day(2025, time.January, 1)) {
		t.Error("open range should include any later date")
	}
}

func TestRangePrevious(t *testing.T) {
	r, _ := ResolveRange(RangeMonth, day(2024, time.March, 31), PolicySummary, CustomRange{})
	prev := r.Previous(day(2024, time.March, 31))
	if prev.String() != "2024-02-01..2024-02-29" {
		t.Fatalf("previous month = %s", prev)
	}

	q, _ := ResolveRange(RangeQuarter, day(2024, time.January, 5), PolicyTrend, CustomRange{})
	if got := q.Previous(day(2024, time.January, 5)).String(); got != "2023-10-01..2023-12-31" {
		t.Fatalf("previous quarter = %s", got)
	}

	c, _ := ResolveRange(RangeCustom, day(2024, time.March, 1), PolicyTrend, CustomRange{Start: "2024-03-11", End: "2024-03-20"})
	if got := c.Previous(day(2024, time.March, 1)).String(); got != "2024-03-01..2024-03-10" {
		t.Fatalf("previous custom = %s", got)
	}
}

func TestBuckets(t *testing.T) {
	year, _ := ResolveRange(RangeYear, day(2024, time.June, 1), PolicyTrend, CustomRange{})
	months := year.Buckets(ByMonth, day(2024, time.June, 1))
	if len(months) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(months))
	}
	if months[0].Key != "2024-01" || months[11].Key != "2024-12" || months[2].Label != "Mar 2024" {
		t.Fatalf("unexpected buckets %+v", months)
	}

	quarters := year.Buckets(ByQuarter, day(2024, time.June, 1))
	if len(quarters) != 4 || quarters[3].Key != "2024-Q4" || quarters[1].Label != "Q2 2024" {
		t.Fatalf("unexpected quarters %+v", quarters)
	}

	open, _ := ResolveRange(RangeYear, day(2024, time.March, 15), PolicySummary, CustomRange{})
	toDate := open.Buckets(ByMonth, day(2024, time.March, 15))
	if len(toDate) != 3 {
		t.Fatalf("open range should stop at the current month, got %d buckets", len(toDate))
	}
}
