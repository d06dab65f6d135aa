package rest

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const callerIDKey contextKey = "callerID"

// authMiddleware resolves the verified caller identity from the bearer token
// and injects it into the request context.
func (that *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			that.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		callerID, err := that.auth.VerifyToken(token)
		if err != nil {
			that.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), callerIDKey, callerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerID returns the authenticated user id placed by authMiddleware.
func callerID(r *http.Request) string {
	id, _ := r.Context().Value(callerIDKey).(string)
	return id
}
