package finance

import (
	"fmt"
	"strings"
	"time"

	"dairyfarm/backend/internal/apperr"
)

const isoDate = "2006-01-02"

type RangeKind string

const (
	RangeMonth   RangeKind = "month"
	RangeQuarter RangeKind = "quarter"
	RangeYear    RangeKind = "year"
	RangeCustom  RangeKind = "custom"
)

func ParseRangeKind(raw string) (RangeKind, error) {
	switch RangeKind(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RangeMonth:
		return RangeMonth, nil
	case RangeQuarter:
		return RangeQuarter, nil
	case RangeYear:
		return RangeYear, nil
	case RangeCustom:
		return RangeCustom, nil
	default:
		return "", apperr.Invalid("range", "unknown range %q", raw)
	}
}

// Policy decides whether a named range is closed at the end of its period.
// Summary figures are "to date" and leave the end open; trend series cover the
// whole period so every bucket exists.
type Policy int

const (
	PolicySummary Policy = iota
	PolicyTrend
)

// CustomRange carries caller-supplied YYYY-MM-DD bounds.
type CustomRange struct {
	Start string
	End   string
}

var ErrMissingRangeStart = &apperr.ValidationError{Field: "start", Message: "custom range requires a start date"}

const (
	// MaxCustomYears bounds a custom range, open or closed.
	MaxCustomYears = 10
	// MaxDailyDays bounds a day-by-day series.
	MaxDailyDays = 366
)

// Range is an inclusive day range. A nil End means the range is open and
// only filters with >= on Start.
type Range struct {
	Kind  RangeKind
	Start time.Time
	End   *time.Time
}

// ResolveRange computes the boundaries of kind around reference. It must be
// called on every fetch with the current clock; results are never cached.
func ResolveRange(kind RangeKind, reference time.Time, policy Policy, custom CustomRange) (Range, error) {
	ref := startOfDay(reference)
	var start, end time.Time

	switch kind {
	case RangeMonth:
		start = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		end = start.AddDate(0, 1, -1)
	case RangeQuarter:
		q := (int(ref.Month()) - 1) / 3
		start = time.Date(ref.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, ref.Location())
		end = start.AddDate(0, 3, -1)
	case RangeYear:
		start = time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location())
		end = time.Date(ref.Year(), time.December, 31, 0, 0, 0, 0, ref.Location())
	case RangeCustom:
		return resolveCustom(custom, ref)
	default:
		return Range{}, apperr.Invalid("range", "unknown range %q", string(kind))
	}

	r := Range{Kind: kind, Start: start}
	if policy == PolicyTrend {
		r.End = &end
	}
	return r, nil
}

func resolveCustom(custom CustomRange, ref time.Time) (Range, error) {
	loc := ref.Location()
	if strings.TrimSpace(custom.Start) == "" {
		return Range{}, ErrMissingRangeStart
	}
	start, err := time.ParseInLocation(isoDate, strings.TrimSpace(custom.Start), loc)
	if err != nil {
		return Range{}, apperr.Invalid("start", "must be YYYY-MM-DD")
	}
	r := Range{Kind: RangeCustom, Start: start}
	limit := start.AddDate(MaxCustomYears, 0, 0)
	if strings.TrimSpace(custom.End) == "" {
		if ref.After(limit) {
			return Range{}, apperr.Invalid("start", "an open range may start at most %d years ago", MaxCustomYears)
		}
		return r, nil
	}
	end, err := time.ParseInLocation(isoDate, strings.TrimSpace(custom.End), loc)
	if err != nil {
		return Range{}, apperr.Invalid("end", "must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return Range{}, apperr.Invalid("end", "must not be before start")
	}
	if end.After(limit) {
		return Range{}, apperr.Invalid("end", "a custom range covers at most %d years", MaxCustomYears)
	}
	r.End = &end
	return r, nil
}

// CheckDaily rejects ranges too long for a day-by-day series. An open range
// is measured up to until.
func (r Range) CheckDaily(until time.Time) error {
	closed := r.Closed(until)
	if closed.End.After(closed.Start.AddDate(0, 0, MaxDailyDays-1)) {
		return apperr.Invalid("end", "a daily series covers at most %d days", MaxDailyDays)
	}
	return nil
}

// Previous returns the full period immediately before r. Custom ranges shift
// back by their own length; an open custom range is closed at until first.
func (r Range) Previous(until time.Time) Range {
	switch r.Kind {
	case RangeMonth:
		start := r.Start.AddDate(0, -1, 0)
		end := r.Start.AddDate(0, 0, -1)
		return Range{Kind: r.Kind, Start: start, End: &end}
	case RangeQuarter:
		start := r.Start.AddDate(0, -3, 0)
		end := r.Start.AddDate(0, 0, -1)
		return Range{Kind: r.Kind, Start: start, End: &end}
	case RangeYear:
		start := r.Start.AddDate(-1, 0, 0)
		end := r.Start.AddDate(0, 0, -1)
		return Range{Kind: r.Kind, Start: start, End: &end}
	default:
		last := startOfDay(until)
		if r.End != nil {
			last = *r.End
		}
		days := int(last.Sub(r.Start).Hours()/24) + 1
		if days < 1 {
			days = 1
		}
		end := r.Start.AddDate(0, 0, -1)
		start := r.Start.AddDate(0, 0, -days)
		return Range{Kind: r.Kind, Start: start, End: &end}
	}
}

// Closed returns r with an open end set to until's day.
func (r Range) Closed(until time.Time) Range {
	if r.End != nil {
		return r
	}
	end := startOfDay(until)
	if end.Before(r.Start) {
		end = r.Start
	}
	r.End = &end
	return r
}

// Contains is inclusive on both ends at day granularity.
func (r Range) Contains(t time.Time) bool {
	d := startOfDay(t.In(r.Start.Location()))
	if d.Before(r.Start) {
		return false
	}
	return r.End == nil || !d.After(*r.End)
}

func (r Range) StartDate() string { return r.Start.Format(isoDate) }

// EndDate is empty for an open range.
func (r Range) EndDate() string {
	if r.End == nil {
		return ""
	}
	return r.End.Format(isoDate)
}

func (r Range) String() string {
	if r.End == nil {
		return fmt.Sprintf("%s..", r.StartDate())
	}
	return fmt.Sprintf("%s..%s", r.StartDate(), r.EndDate())
}

type Granularity string

const (
	ByMonth   Granularity = "month"
	ByQuarter Granularity = "quarter"
)

func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ByMonth:
		return ByMonth, nil
	case ByQuarter:
		return ByQuarter, nil
	default:
		return "", apperr.Invalid("granularity", "unknown granularity %q", raw)
	}
}

// Bucket is one period of a trend series.
type Bucket struct {
	Key         string
	Label       string
	Start       time.Time
	End         time.Time
	Granularity Granularity
}

// BucketKey returns the series key of t, e.g. "2024-03" or "2024-Q1".
func BucketKey(t time.Time, g Granularity) string {
	if g == ByQuarter {
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	}
	return t.Format("2006-01")
}

// Buckets enumerates the periods overlapping r in chronological order. An open
// range is closed at until.
func (r Range) Buckets(g Granularity, until time.Time) []Bucket {
	closed := r.Closed(until)
	out := make([]Bucket, 0, 12)

	cur := time.Date(closed.Start.Year(), closed.Start.Month(), 1, 0, 0, 0, 0, closed.Start.Location())
	step := 1
	if g == ByQuarter {
		q := (int(cur.Month()) - 1) / 3
		cur = time.Date(cur.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, cur.Location())
		step = 3
	}
	for !cur.After(*closed.End) {
		end := cur.AddDate(0, step, -1)
		label := cur.Format("Jan 2006")
		if g == ByQuarter {
			label = fmt.Sprintf("Q%d %d", (int(cur.Month())-1)/3+1, cur.Year())
		}
		out = append(out, Bucket{
			Key:         BucketKey(cur, g),
			Label:       label,
			Start:       cur,
			End:         end,
			Granularity: g,
		})
		cur = cur.AddDate(0, step, 0)
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
