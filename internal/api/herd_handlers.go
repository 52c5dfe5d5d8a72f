package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/finance"
	"dairyfarm/backend/internal/herd"
	"dairyfarm/backend/internal/store"
)

type cowInput struct {
	TagNumber       string `json:"tagNumber"`
	Name            string `json:"name"`
	Breed           string `json:"breed"`
	DateOfBirth     string `json:"dateOfBirth"`
	Status          string `json:"status"`
	HealthStatus    string `json:"healthStatus"`
	LactationStatus string `json:"lactationStatus"`
}

func (in cowInput) toCow(loc *time.Location) (herd.Cow, error) {
	tag := strings.TrimSpace(in.TagNumber)
	if tag == "" {
		return herd.Cow{}, apperr.Invalid("tagNumber", "is required")
	}
	dob, err := optionalDate(in.DateOfBirth, loc)
	if err != nil {
		return herd.Cow{}, apperr.Invalid("dateOfBirth", "%s", err.Error())
	}
	return herd.Cow{
		TagNumber:       tag,
		Name:            strings.TrimSpace(in.Name),
		Breed:           strings.TrimSpace(in.Breed),
		DateOfBirth:     dob,
		Status:          in.Status,
		HealthStatus:    in.HealthStatus,
		LactationStatus: in.LactationStatus,
	}, nil
}

func (s *Server) handleCows(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListCows(ctx, listOptions(r))
	if err != nil {
		respondError(w, r, err, "failed to load cows")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetCow(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := s.store.GetCow(ctx, id)
	if err != nil {
		respondError(w, r, err, "failed to load cow")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCow(w http.ResponseWriter, r *http.Request) {
	var in cowInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := in.toCow(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateCow(ctx, c)
	if err != nil {
		respondError(w, r, err, "failed to create cow")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateCow(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	var in cowInput
	if !decodeJSON(w, r, &in) {
		return
	}
	c, err := in.toCow(s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	c.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.UpdateCow(ctx, c); err != nil {
		respondError(w, r, err, "failed to update cow")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleDeleteCow(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, "cow", s.store.DeleteCow)
}

func (s *Server) handleMilkRecords(w http.ResponseWriter, r *http.Request) {
	opts := store.MilkListOptions{ListOptions: listOptions(r)}
	if raw := strings.TrimSpace(r.URL.Query().Get("cowId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, r, apperr.Invalid("cowId", "must be a positive integer"), "")
			return
		}
		opts.CowID = id
	}
	if strings.TrimSpace(r.URL.Query().Get("range")) != "" {
		rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicySummary)
		if err != nil {
			respondError(w, r, err, "")
			return
		}
		opts.Range = &rng
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, err := s.store.ListMilk(ctx, opts)
	if err != nil {
		respondError(w, r, err, "failed to load milk records")
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateMilkRecord(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CowID      int64            `json:"cowId"`
		Date       string           `json:"date"`
		Session    string           `json:"session"`
		Liters     decimal.Decimal  `json:"liters"`
		FatPercent *decimal.Decimal `json:"fatPercent"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	date, err := requiredDate("date", in.Date, s.loc())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	m := herd.MilkRecord{CowID: in.CowID, Date: date, Session: in.Session, Liters: in.Liters, FatPercent: in.FatPercent}
	if err := herd.ValidateMilkRecord(m); err != nil {
		respondError(w, r, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateMilkRecord(ctx, m)
	if err != nil {
		respondError(w, r, err, "failed to record milk")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleMilkSummary(w http.ResponseWriter, r *http.Request) {
	f, ok := s.beginFetch(w, r, "milk-summary")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	today := s.today()
	records := loadOr(f, "milk records", func() ([]herd.MilkRecord, error) { return s.store.MilkSince(ctx, today.AddDate(0, 0, -13)) })
	f.respond(w, map[string]any{
		"asOf":    s.formatISODate(today),
		"summary": herd.SummarizeMilk(records, today),
	})
}

func (s *Server) handleMilkTrend(w http.ResponseWriter, r *http.Request) {
	rng, err := s.rangeFromQuery(r, finance.RangeMonth, finance.PolicyTrend)
	if err == nil {
		err = rng.CheckDaily(s.today())
	}
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	f, ok := s.beginFetch(w, r, "milk-trend")
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	records := loadOr(f, "milk records", func() ([]herd.MilkRecord, error) { return s.store.MilkSince(ctx, rng.Start) })
	f.respond(w, map[string]any{
		"range":  rangeJSON(rng),
		"points": herd.DailyMilkTrend(records, rng),
	})
}

func (s *Server) handleHerdHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cows, err := s.store.AllCows(ctx)
	if err != nil {
		respondError(w, r, err, "failed to load cows")
		return
	}
	respondJSON(w, http.StatusOK, herd.SummarizeHealth(cows))
}

const defaultInspectionLookbackDays = 28

func (s *Server) handleInspections(w http.ResponseWriter, r *http.Request) {
	since, err := optionalDate(r.URL.Query().Get("since"), s.loc())
	if err != nil {
		respondError(w, r, apperr.Invalid("since", "%s", err.Error()), "")
		return
	}
	from := herd.WeekStart(s.today().AddDate(0, 0, -defaultInspectionLookbackDays))
	if since != nil {
		from = *since
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := s.store.InspectionsSince(ctx, from)
	if err != nil {
		respondError(w, r, err, "failed to load inspections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"since": s.formatISODate(from), "items": items})
}

func (s *Server) handleCreateInspection(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CowID         int64           `json:"cowId"`
		InspectedOn   string          `json:"inspectedOn"`
		Inspector     string          `json:"inspector"`
		BodyCondition decimal.Decimal `json:"bodyCondition"`
		LamenessScore int             `json:"lamenessScore"`
		MastitisCheck string          `json:"mastitisCheck"`
		Notes         string          `json:"notes"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	on, err := optionalDate(in.InspectedOn, s.loc())
	if err != nil {
		respondError(w, r, apperr.Invalid("inspectedOn", "%s", err.Error()), "")
		return
	}
	inspectedOn := s.today()
	if on != nil {
		inspectedOn = *on
	}
	if inspectedOn.After(s.today()) {
		respondError(w, r, apperr.Invalid("inspectedOn", "must not be in the future"), "")
		return
	}
	insp := herd.Inspection{
		CowID:         in.CowID,
		InspectedOn:   inspectedOn,
		Inspector:     strings.TrimSpace(in.Inspector),
		BodyCondition: in.BodyCondition,
		LamenessScore: in.LamenessScore,
		MastitisCheck: in.MastitisCheck,
		Notes:         strings.TrimSpace(in.Notes),
	}
	if err := herd.ValidateInspection(insp); err != nil {
		respondError(w, r, err, "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := s.store.CreateInspection(ctx, insp)
	if err != nil {
		respondError(w, r, err, "failed to record inspection")
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handlePendingInspections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	today := s.today()
	cows, err := s.store.AllCows(ctx)
	if err != nil {
		respondError(w, r, err, "failed to load cows")
		return
	}
	done, err := s.store.InspectionsSince(ctx, herd.WeekStart(today))
	if err != nil {
		respondError(w, r, err, "failed to load inspections")
		return
	}
	pending := herd.PendingInspections(cows, done, today)
	respondJSON(w, http.StatusOK, map[string]any{
		"weekStart": s.formatISODate(herd.WeekStart(today)),
		"count":     len(pending),
		"items":     pending,
	})
}
