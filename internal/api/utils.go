package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/payroll"
	"dairyfarm/backend/internal/store"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps err onto a status code. Backend failures are logged and
// answered with fallback so driver details never reach the client.
func respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		body := map[string]string{"error": ve.Message}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		respondJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, payroll.ErrEmptyRun):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "record not found"})
	case errors.Is(err, apperr.ErrConflict):
		respondJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Bool("backend", apperr.IsBackend(err)).Msg(fallback)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request payload"})
		return false
	}
	return true
}

func parsePagination(r *http.Request) (page int, pageSize int) {
	page = 1
	pageSize = 10

	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("pageSize")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			if n < 1 {
				n = 1
			}
			if n > 100 {
				n = 100
			}
			pageSize = n
		}
	}
	return page, pageSize
}

func parseSearch(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("q"))
}

func listOptions(r *http.Request) store.ListOptions {
	page, pageSize := parsePagination(r)
	return store.ListOptions{
		Search:   parseSearch(r),
		Status:   strings.TrimSpace(r.URL.Query().Get("status")),
		Page:     page,
		PageSize: pageSize,
	}
}

func parsePathID(r *http.Request, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue(field)), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(field, "must be a positive integer")
	}
	return id, nil
}

// optionalDate parses a YYYY-MM-DD value as midnight in loc. Blank input
// yields nil.
func optionalDate(input string, loc *time.Location) (*time.Time, error) {
	v := strings.TrimSpace(input)
	if v == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return nil, fmt.Errorf("must be YYYY-MM-DD")
	}
	return &t, nil
}

func requiredDate(field, input string, loc *time.Location) (time.Time, error) {
	t, err := optionalDate(input, loc)
	if err != nil {
		return time.Time{}, apperr.Invalid(field, "%s", err.Error())
	}
	if t == nil {
		return time.Time{}, apperr.Invalid(field, "is required")
	}
	return *t, nil
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
