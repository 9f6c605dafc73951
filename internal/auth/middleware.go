package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"rentalstation/internal/db"
	"rentalstation/internal/entities"
)

type contextKey struct{}

// TokenParser turns a bearer token into the caller it was issued to.
type TokenParser interface {
	ParseToken(token string) (*entities.Caller, error)
}

// Middleware rejects requests without a valid bearer token and stores the caller in the request context.
func Middleware(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing bearer token")
				return
			}
			caller, err := parser.ParseToken(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// AdminOnly must run after Middleware.
func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		if caller.Role != db.RoleAdmin {
			writeError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithCaller(ctx context.Context, caller *entities.Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

func CallerFromContext(ctx context.Context) (*entities.Caller, bool) {
	caller, ok := ctx.Value(contextKey{}).(*entities.Caller)
	return caller, ok && caller != nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(entities.Response{Success: false, Message: message})
}
