package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/domain/model"
)

// Validator turns a presented credential into a session.
type Validator interface {
	ValidateCredential(token string) (auth.Session, error)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}

// ExtractToken extracts the bearer token from cookie or Authorization header
func ExtractToken(r *http.Request) string {
	// Try cookie first (for browser)
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	// Fall back to Authorization header (for API clients)
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func withSession(r *http.Request, s auth.Session) *http.Request {
	ctx := auth.WithSession(r.Context(), s)
	logger := zerolog.Ctx(ctx).With().Str("user_id", s.UserID).Logger()
	return r.WithContext(logger.WithContext(ctx))
}

// AuthMiddleware validates the credential and adds the session to context
func AuthMiddleware(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := ExtractToken(r)
			if tokenString == "" {
				respondError(w, "unauthorized", "Unauthorized", http.StatusUnauthorized)
				return
			}

			s, err := v.ValidateCredential(tokenString)
			if err != nil {
				respondError(w, "invalid token", "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, withSession(r, s))
		})
	}
}

// OptionalAuthMiddleware adds the session to context if a valid token is present, but doesn't require it
func OptionalAuthMiddleware(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				if s, err := v.ValidateCredential(tokenString); err == nil {
					r = withSession(r, s)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole checks if the user has one of the required roles
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := auth.SessionFrom(r.Context())
			if !ok {
				respondError(w, "unauthorized", "Unauthorized", http.StatusUnauthorized)
				return
			}

			for _, role := range roles {
				if s.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			respondError(w, "forbidden", "Forbidden", http.StatusForbidden)
		})
	}
}
