package api

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 24 * time.Hour

// signToken issues an HS256 token. The role claim is informational for the
// client; authRequired always reloads the role from the database.
func (s *Server) signToken(userID int64, email, role string) (string, error) {
	now := s.clock()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  role,
		"exp":   now.Add(tokenLifetime).Unix(),
		"iat":   now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
