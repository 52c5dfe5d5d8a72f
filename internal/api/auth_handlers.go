package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"dairyfarm/backend/internal/apperr"
	"dairyfarm/backend/internal/store"
)

const minPasswordLength = 8

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in registration) normalize() (registration, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Name == "":
		return in, apperr.Invalid("name", "is required")
	case !emailRe.MatchString(in.Email):
		return in, apperr.Invalid("email", "invalid email format")
	case len(in.Password) < minPasswordLength:
		return in, apperr.Invalid("password", "must be at least %d characters", minPasswordLength)
	}
	return in, nil
}

// respondSession answers a successful register or login with a fresh token.
func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, code int, u store.User) {
	token, err := s.signToken(u.ID, u.Email, u.Role)
	if err != nil {
		respondError(w, r, err, "failed to sign token")
		return
	}
	respondJSON(w, code, map[string]any{
		"token": token,
		"user":  userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
	})
}

// handleRegister creates an account. The first account on an empty farm
// becomes the owner; later ones start as workers until promoted.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var raw registration
	if !decodeJSON(w, r, &raw) {
		return
	}
	in, err := raw.normalize()
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, r, err, "password processing failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := s.store.CreateUser(ctx, in.Name, in.Email, string(hash))
	if errors.Is(err, apperr.ErrConflict) {
		respondJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
		return
	}
	if err != nil {
		respondError(w, r, err, "failed to create user")
		return
	}
	zerolog.Ctx(r.Context()).Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	s.respondSession(w, r, http.StatusCreated, user)
}

// handleLogin checks credentials. Repeated failures from one client address
// lock it out for the rest of the guard window.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	client := clientIP(r)
	if wait := s.loginGuard.retryAfter(client); wait > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many failed logins, try again later"})
		return
	}

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := s.store.ActiveUserByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		respondError(w, r, err, "login failed")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		s.loginGuard.fail(client)
		zerolog.Ctx(r.Context()).Warn().Str("client_ip", client).Msg("failed login")
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid email or password"})
		return
	}
	s.loginGuard.clear(client)
	s.respondSession(w, r, http.StatusOK, user)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid auth context"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		respondError(w, r, err, "failed to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
