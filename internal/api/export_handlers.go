package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/export"
	"dairyfarm/backend/internal/finance"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleExport serves GET /api/exports/{kind}.xlsx. The range defaults to
// the current month and is closed at today.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(strings.TrimSuffix(r.PathValue("file"), ".xlsx"))
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicyTrend)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	rng = rng.Closed(s.today())

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	book, err := export.Build(ctx, s.store, kind, rng, s.today())
	if err != nil {
		respondError(w, r, err, "failed to build export")
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("kind", string(kind)).Str("range", rng.String()).Int("bytes", len(book)).Msg("export built")

	attachment(w, xlsxContentType, export.Filename(kind, rng))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(book)
}
