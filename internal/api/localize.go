package api

import (
	"net/http"
	"strings"
	"time"

	"dairyfarm/backend/internal/finance"
)

func (s *Server) now() time.Time {
	if s.location == nil {
		return s.clock().UTC()
	}
	return s.clock().In(s.location)
}

// today is midnight of the current farm-local day.
func (s *Server) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, n.Location())
}

func (s *Server) formatISODate(d time.Time) string {
	if s.location == nil {
		return d.Format(finance.ISODateLayout)
	}
	return d.In(s.location).Format(finance.ISODateLayout)
}

func (s *Server) loc() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// rangeFromQuery resolves ?range=&start=&end= against the current clock. It
// runs on every request so month boundaries move with the calendar.
func (s *Server) rangeFromQuery(r *http.Request, fallback finance.RangeKind, policy finance.Policy) (finance.Range, error) {
	q := r.URL.Query()
	kind := fallback
	if raw := strings.TrimSpace(q.Get("range")); raw != "" {
		parsed, err := finance.ParseRangeKind(raw)
		if err != nil {
			return finance.Range{}, err
		}
		kind = parsed
	}
	return finance.ResolveRange(kind, s.now(), policy, finance.CustomRange{
		Start: q.Get("start"),
		End:   q.Get("end"),
	})
}

func rangeJSON(rng finance.Range) map[string]any {
	out := map[string]any{"kind": rng.Kind, "start": rng.StartDate(), "end": nil}
	if rng.End != nil {
		out["end"] = rng.EndDate()
	}
	return out
}
