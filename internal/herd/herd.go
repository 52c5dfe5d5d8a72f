// Package herd computes the operational dashboards: milk output, herd health
// and the weekly inspection round.
package herd

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
)

type Cow struct {
	ID              int64      `json:"id"`
	TagNumber       string     `json:"tagNumber"`
	Name            string     `json:"name"`
	Breed           string     `json:"breed"`
	DateOfBirth     *time.Time `json:"dateOfBirth"`
	Status          string     `json:"status"`
	HealthStatus    string     `json:"healthStatus"`
	LactationStatus string     `json:"lactationStatus"`
}

func (c Cow) Active() bool {
	return strings.EqualFold(strings.TrimSpace(c.Status), "active")
}

type MilkRecord struct {
	ID         int64            `json:"id"`
	CowID      int64            `json:"cowId"`
	Date       time.Time        `json:"date"`
	Session    string           `json:"session"`
	Liters     decimal.Decimal  `json:"liters"`
	FatPercent *decimal.Decimal `json:"fatPercent"`
}

type Inspection struct {
	ID            int64           `json:"id"`
	CowID         int64           `json:"cowId"`
	WeekStart     time.Time       `json:"weekStart"`
	InspectedOn   time.Time       `json:"inspectedOn"`
	Inspector     string          `json:"inspector"`
	BodyCondition decimal.Decimal `json:"bodyCondition"`
	LamenessScore int             `json:"lamenessScore"`
	MastitisCheck string          `json:"mastitisCheck"`
	Notes         string          `json:"notes"`
}

var (
	minBodyCondition = decimal.NewFromInt(1)
	maxBodyCondition = decimal.NewFromInt(5)
)

const maxLamenessScore = 3

var mastitisResults = map[string]bool{"negative": true, "suspect": true, "positive": true}

// ValidateInspection checks the scores: body condition 1 to 5, lameness 0 to
// 3 and a known mastitis result.
func ValidateInspection(in Inspection) error {
	if in.CowID <= 0 {
		return apperr.Invalid("cowId", "is required")
	}
	if in.InspectedOn.IsZero() {
		return apperr.Invalid("inspectedOn", "is required")
	}
	if in.BodyCondition.LessThan(minBodyCondition) || in.BodyCondition.GreaterThan(maxBodyCondition) {
		return apperr.Invalid("bodyCondition", "must be between 1 and 5")
	}
	if in.LamenessScore < 0 || in.LamenessScore > maxLamenessScore {
		return apperr.Invalid("lamenessScore", "must be between 0 and 3")
	}
	if m := strings.ToLower(strings.TrimSpace(in.MastitisCheck)); m != "" && !mastitisResults[m] {
		return apperr.Invalid("mastitisCheck", "must be negative, suspect or positive")
	}
	return nil
}

var milkSessions = map[string]bool{"morning": true, "evening": true}

func ValidateMilkRecord(m MilkRecord) error {
	if m.CowID <= 0 {
		return apperr.Invalid("cowId", "is required")
	}
	if m.Date.IsZero() {
		return apperr.Invalid("date", "is required")
	}
	if !milkSessions[strings.ToLower(strings.TrimSpace(m.Session))] {
		return apperr.Invalid("session", "must be morning or evening")
	}
	if m.Liters.IsNegative() {
		return apperr.Invalid("liters", "must not be negative")
	}
	return nil
}

// WeekStart is midnight on the Monday of t's ISO week, in t's location.
func WeekStart(t time.Time) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// PendingInspections lists active cows with no inspection recorded for the
// week containing today, ordered by tag number.
func PendingInspections(cows []Cow, inspections []Inspection, today time.Time) []Cow {
	week := WeekStart(today)
	done := make(map[int64]bool, len(inspections))
	for _, in := range inspections {
		if WeekStart(in.WeekStart).Equal(week) {
			done[in.CowID] = true
		}
	}
	out := make([]Cow, 0)
	for _, c := range cows {
		if c.Active() && !done[c.ID] {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TagNumber < out[j].TagNumber })
	return out
}

type MilkSummary struct {
	Today               decimal.Decimal `json:"today"`
	Last7Days           decimal.Decimal `json:"last7Days"`
	Previous7Days       decimal.Decimal `json:"previous7Days"`
	Change              float64         `json:"change"`
	CowsMilked          int             `json:"cowsMilked"`
	AveragePerCowPerDay decimal.Decimal `json:"averagePerCowPerDay"`
}

var daysPerWeek = decimal.NewFromInt(7)

// SummarizeMilk compares the seven days ending today with the seven before.
// The per-cow average divides the week's total by seven and by the number of
// distinct cows milked that week.
func SummarizeMilk(records []MilkRecord, today time.Time) MilkSummary {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	weekFrom := day.AddDate(0, 0, -6)
	prevFrom := day.AddDate(0, 0, -13)

	s := MilkSummary{
		Today:               decimal.Zero,
		Last7Days:           decimal.Zero,
		Previous7Days:       decimal.Zero,
		AveragePerCowPerDay: decimal.Zero,
	}
	cows := map[int64]bool{}
	for _, m := range records {
		d := dayOf(m.Date, day.Location())
		switch {
		case d.After(day) || d.Before(prevFrom):
			continue
		case !d.Before(weekFrom):
			s.Last7Days = s.Last7Days.Add(m.Liters)
			cows[m.CowID] = true
			if d.Equal(day) {
				s.Today = s.Today.Add(m.Liters)
			}
		default:
			s.Previous7Days = s.Previous7Days.Add(m.Liters)
		}
	}
	s.CowsMilked = len(cows)
	s.Change = finance.DecimalChange(s.Last7Days, s.Previous7Days)
	if s.CowsMilked > 0 {
		s.AveragePerCowPerDay = s.Last7Days.Div(daysPerWeek).Div(decimal.NewFromInt(int64(s.CowsMilked))).Round(2)
	}
	return s
}

type DailyMilk struct {
	Date   string          `json:"date"`
	Liters decimal.Decimal `json:"liters"`
}

// DailyMilkTrend totals liters per day across rng, zero-filling days without
// records. An open range ends at the latest record, and never runs past
// finance.MaxDailyDays; callers check closed ranges with Range.CheckDaily.
func DailyMilkTrend(records []MilkRecord, rng finance.Range) []DailyMilk {
	loc := rng.Start.Location()
	totals := map[string]decimal.Decimal{}
	end := rng.Start
	if rng.End != nil {
		end = *rng.End
	}
	last := rng.Start.AddDate(0, 0, finance.MaxDailyDays-1)
	for _, m := range records {
		if !rng.Contains(m.Date) {
			continue
		}
		d := dayOf(m.Date, loc)
		if rng.End == nil && d.After(end) && !d.After(last) {
			end = d
		}
		key := finance.FormatISODate(d)
		totals[key] = totals[key].Add(m.Liters)
	}

	out := make([]DailyMilk, 0)
	for d := rng.Start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := finance.FormatISODate(d)
		v, ok := totals[key]
		if !ok {
			v = decimal.Zero
		}
		out = append(out, DailyMilk{Date: key, Liters: v})
	}
	return out
}

type HealthCount struct {
	Status     string `json:"status"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type HealthSummary struct {
	ActiveCows int           `json:"activeCows"`
	Statuses   []HealthCount `json:"statuses"`
}

var healthOrder = []string{"healthy", "sick", "under treatment", "quarantined"}

// SummarizeHealth counts active cows by health status. Known statuses come
// first in a fixed order, even at zero, followed by any others alphabetically.
func SummarizeHealth(cows []Cow) HealthSummary {
	counts := map[string]int{}
	total := 0
	for _, c := range cows {
		if !c.Active() {
			continue
		}
		status := strings.ToLower(strings.TrimSpace(c.HealthStatus))
		if status == "" {
			status = "healthy"
		}
		counts[status]++
		total++
	}

	known := map[string]bool{}
	statuses := make([]HealthCount, 0, len(healthOrder)+len(counts))
	for _, st := range healthOrder {
		known[st] = true
		statuses = append(statuses, HealthCount{Status: st, Count: counts[st]})
	}
	var extra []string
	for st := range counts {
		if !known[st] {
			extra = append(extra, st)
		}
	}
	sort.Strings(extra)
	for _, st := range extra {
		statuses = append(statuses, HealthCount{Status: st, Count: counts[st]})
	}

	counted := make([]decimal.Decimal, len(statuses))
	for i, st := range statuses {
		counted[i] = decimal.NewFromInt(int64(st.Count))
	}
	for i, pct := range finance.Apportion(counted) {
		statuses[i].Percentage = pct
	}
	return HealthSummary{ActiveCows: total, Statuses: statuses}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
