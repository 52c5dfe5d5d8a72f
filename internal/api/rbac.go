package api

import (
	"net/http"
	"strings"
)

// roleRequired lets the request through only when the caller's role is one
// of roles. It must run inside authRequired.
func (s *Server) roleRequired(next http.Handler, roles ...string) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(userRoleContextKey).(string)
		if !ok {
			respondJSON(w, http.StatusForbidden, map[string]string{"error": "missing role in auth context"})
			return
		}
		if _, permitted := allowed[role]; !permitted {
			respondJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUserID(r *http.Request) (int64, bool) {
	uid, ok := r.Context().Value(userIDContextKey).(int64)
	return uid, ok && uid > 0
}
