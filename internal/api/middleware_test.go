package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/config"
	"dairyfarm/backend/internal/payroll"
	"dairyfarm/backend/internal/store"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func newTestServer() *Server {
	return NewServer(Options{
		Settings:       config.DefaultFarmSettings(),
		JWTSecret:      "test-secret",
		Location:       ist,
		AllowedOrigins: []string{"http://app.test"},
		Logger:         zerolog.Nop(),
	})
}

// asUser attaches what authRequired would have put on the context.
func asUser(r *http.Request, uid int64, role string) *http.Request {
	ctx := context.WithValue(r.Context(), userIDContextKey, uid)
	ctx = context.WithValue(ctx, userRoleContextKey, role)
	return r.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	s := newTestServer()
	h := s.Mux()

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 1, "exp": time.Now().Add(time.Hour).Unix()})
	forged, err := other.SignedString([]byte("someone-else"))
	if err != nil {
		t.Fatal(err)
	}

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer not-a-token",
		"forged":  "Bearer " + forged,
		"scheme":  "Basic abc",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}
}

func TestSignTokenCarriesSubject(t *testing.T) {
	s := newTestServer()
	raw, err := s.signToken(42, "owner@farm.test", store.RoleOwner)
	if err != nil {
		t.Fatal(err)
	}
	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.jwtSecret, nil }); err != nil {
		t.Fatalf("parse: %v", err)
	}
	uid, err := parseTokenUserID(claims["sub"])
	if err != nil || uid != 42 {
		t.Fatalf("sub = %v, %v", uid, err)
	}
	exp, _ := claims.GetExpirationTime()
	if d := time.Until(exp.Time); d < 23*time.Hour || d > tokenLifetime {
		t.Fatalf("token lifetime %v", d)
	}
}

func TestParseTokenUserID(t *testing.T) {
	if v, err := parseTokenUserID(float64(3)); err != nil || v != 3 {
		t.Fatalf("float: %v %v", v, err)
	}
	if _, err := parseTokenUserID(3.5); err == nil {
		t.Fatal("expected error for fractional subject")
	}
	if v, err := parseTokenUserID(" 12 "); err != nil || v != 12 {
		t.Fatalf("string: %v %v", v, err)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer().Mux()

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://app.test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.test" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	h := newTestServer().Mux()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("request id = %q", rec.Header().Get("X-Request-ID"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if len(rec.Header().Get("X-Request-ID")) != 36 {
		t.Fatalf("generated id = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("forwarded ip = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:5555"
	if got := clientIP(req); got != "192.0.2.4" {
		t.Fatalf("remote ip = %q", got)
	}
}

func TestRoleRequired(t *testing.T) {
	s := newTestServer()
	h := s.roleRequired(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), store.RoleOwner, store.RoleAccountant)

	cases := []struct {
		role string
		want int
	}{
		{store.RoleOwner, http.StatusOK},
		{store.RoleAccountant, http.StatusOK},
		{store.RoleWorker, http.StatusForbidden},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil), 1, tc.role))
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d", tc.role, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("no role: status = %d", rec.Code)
	}
}

func TestLoginGuard(t *testing.T) {
	now := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	g := newLoginGuard(2, time.Minute)
	g.now = func() time.Time { return now }

	g.fail("ip")
	if g.retryAfter("ip") != 0 {
		t.Fatal("one failure should not lock out")
	}
	now = now.Add(10 * time.Second)
	g.fail("ip")
	if got := g.retryAfter("ip"); got != 50*time.Second {
		t.Fatalf("retry after = %v", got)
	}
	if g.retryAfter("other") != 0 {
		t.Fatal("keys must be independent")
	}

	now = now.Add(50 * time.Second)
	if g.retryAfter("ip") != 0 {
		t.Fatal("window should have expired")
	}

	g.fail("ip")
	g.fail("ip")
	g.clear("ip")
	if g.retryAfter("ip") != 0 {
		t.Fatal("clear should lift the lockout")
	}
}

func TestLoginRefusedWhileLockedOut(t *testing.T) {
	s := newTestServer()
	for i := 0; i < 10; i++ {
		s.loginGuard.fail("203.0.113.9")
	}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@b.co","password":"x"}`))
	req.RemoteAddr = "203.0.113.9:4100"
	rec := httptest.NewRecorder()
	s.handleLogin(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestRegistrationValidation(t *testing.T) {
	cases := map[string]registration{
		"name":     {Email: "a@farm.test", Password: "longenough"},
		"email":    {Name: "Asha", Email: "asha", Password: "longenough"},
		"password": {Name: "Asha", Email: "a@farm.test", Password: "short"},
	}
	for field, in := range cases {
		_, err := in.normalize()
		var ve *apperr.ValidationError
		if !errors.As(err, &ve) || ve.Field != field {
			t.Fatalf("%s: err = %v", field, err)
		}
	}
	got, err := registration{Name: " Asha ", Email: " Asha@Farm.Test ", Password: "longenough"}.normalize()
	if err != nil || got.Name != "Asha" || got.Email != "asha@farm.test" {
		t.Fatalf("normalize = %+v, %v", got, err)
	}
}

func TestFetchSequencer(t *testing.T) {
	q := newFetchSequencer()
	key := sequenceKey(7, "finance-summary")

	if !q.begin(key, 2) {
		t.Fatal("first fetch refused")
	}
	if q.begin(key, 1) {
		t.Fatal("older fetch admitted")
	}
	if !q.current(key, 2) {
		t.Fatal("fetch 2 should be current")
	}
	q.begin(key, 3)
	if q.current(key, 2) {
		t.Fatal("fetch 2 should be overtaken")
	}
	if !q.begin(key, 0) || !q.current(key, 0) {
		t.Fatal("unsequenced fetches are always admitted")
	}
	if !q.begin(sequenceKey(8, "finance-summary"), 1) {
		t.Fatal("users must not share sequences")
	}
}

func TestParseSeq(t *testing.T) {
	if seq, err := parseSeq(httptest.NewRequest(http.MethodGet, "/", nil)); err != nil || seq != 0 {
		t.Fatalf("blank: %d %v", seq, err)
	}
	if _, err := parseSeq(httptest.NewRequest(http.MethodGet, "/?seq=-1", nil)); err == nil {
		t.Fatal("expected error for negative seq")
	}
	if seq, _ := parseSeq(httptest.NewRequest(http.MethodGet, "/?seq=17", nil)); seq != 17 {
		t.Fatalf("seq = %d", seq)
	}
}

func TestParsePagination(t *testing.T) {
	page, size := parsePagination(httptest.NewRequest(http.MethodGet, "/?page=0&pageSize=500", nil))
	if page != 1 || size != 100 {
		t.Fatalf("page=%d size=%d", page, size)
	}
	page, size = parsePagination(httptest.NewRequest(http.MethodGet, "/?page=3&pageSize=25", nil))
	if page != 3 || size != 25 {
		t.Fatalf("page=%d size=%d", page, size)
	}
}

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", apperr.Invalid("date", "must be YYYY-MM-DD"), http.StatusBadRequest},
		{"not found", fmt.Errorf("get expense: %w", apperr.ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: cannot move from Paid to Pending", apperr.ErrConflict), http.StatusConflict},
		{"empty run", payroll.ErrEmptyRun, http.StatusUnprocessableEntity},
		{"backend", apperr.Backend("list expenses", errors.New("connection reset")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err, "failed to load")
			if rec.Code != tc.code {
				t.Fatalf("status = %d", rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperr.Backend("q", errors.New("pq: secret detail")), "failed to load")
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Fatalf("driver detail leaked: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	respondError(rec, httptest.NewRequest(http.MethodGet, "/", nil), apperr.Invalid("amount", "must not be negative"), "")
	if body := decodeBody(t, rec); body["field"] != "amount" {
		t.Fatalf("body = %v", body)
	}
}

func TestOptionalDate(t *testing.T) {
	d, err := optionalDate("  ", ist)
	if err != nil || d != nil {
		t.Fatalf("blank: %v %v", d, err)
	}
	if _, err := optionalDate("2024-02-30", ist); err == nil {
		t.Fatal("expected error for impossible date")
	}
	d, err = optionalDate("2024-03-05", ist)
	if err != nil {
		t.Fatal(err)
	}
	if d.Location() != ist || d.Hour() != 0 || d.Day() != 5 {
		t.Fatalf("date = %v", d)
	}
	if _, err := requiredDate("date", "", ist); !apperr.IsValidation(err) {
		t.Fatalf("required: %v", err)
	}
}

func TestTodayUsesFarmTimezone(t *testing.T) {
	s := newTestServer()
	s.clock = func() time.Time { return time.Date(2024, time.March, 31, 19, 0, 0, 0, time.UTC) }
	today := s.today()
	if today.Month() != time.April || today.Day() != 1 || today.Location() != ist {
		t.Fatalf("today = %v", today)
	}
	if got := s.formatISODate(today); got != "2024-04-01" {
		t.Fatalf("iso = %q", got)
	}
}
