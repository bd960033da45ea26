package middleware

import (
	"net/http"
	"strings"

	"github.com/vitalsentry/vitalsentry-backend/internal/auth"
	"github.com/vitalsentry/vitalsentry-backend/internal/config"
)

// Auth returns middleware that enforces auth mode (disabled | optional | required)
// and sets claims in context. Health and metrics endpoints are always public.
func Auth(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if path == "/health" || path == "/metrics" || path == "/healthz/live" || path == "/healthz/ready" {
				next.ServeHTTP(w, r)
				return
			}
			mode := strings.ToLower(strings.TrimSpace(cfg.AuthMode))
			if mode == "" {
				mode = "disabled"
			}
			if mode == "disabled" {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearer(r)
			if token == "" {
				if mode == "required" {
					unauthorized(w, "Authentication required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ValidateToken(cfg.AuthJWTSecret, token)
			if err != nil {
				if mode == "required" {
					unauthorized(w, "Invalid or expired token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if claims.Refresh {
				if mode == "required" {
					unauthorized(w, "Use access token for this request")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			ctx := auth.WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

func extractBearer(r *http.Request) string {
	s := r.Header.Get("Authorization")
	if s == "" {
		return r.URL.Query().Get("token")
	}
	const prefix = "Bearer "
	if len(s) > len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return strings.TrimSpace(s[len(prefix):])
	}
	return ""
}
