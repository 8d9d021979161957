package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"digilib/internal/models"
)

// Klucze do przechowywania wartości w context
type contextKey string

const identityKey contextKey = "identity"

// ErrUnauthenticated zwracany gdy w kontekście brak tożsamości
var ErrUnauthenticated = errors.New("brak uwierzytelnionego użytkownika")

// Authenticator zamienia token okaziciela na tożsamość użytkownika
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, error)
}

// RequireAuth weryfikuje token z nagłówka Authorization i dodaje tożsamość do kontekstu
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Brak lub nieprawidłowy nagłówek Authorization")
				return
			}
			id, err := a.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Nieprawidłowy token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth próbuje uwierzytelnić użytkownika, ale tego nie wymaga
func OptionalAuth(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if id, err := a.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), id))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole zwraca middleware, który wymaga określonej roli
func RequireRole(role models.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := IdentityFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Brak danych o roli użytkownika")
				return
			}

			// Admin ma dostęp do wszystkiego
			if id.Role == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			if id.Role != role {
				writeError(w, http.StatusForbidden, "Brak uprawnień")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin wymaga roli administratora
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)(next)
}

// WithIdentity zapisuje tożsamość w kontekście
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext pobiera tożsamość użytkownika z kontekstu
func IdentityFromContext(ctx context.Context) (models.Identity, error) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	if !ok || id.UserID == "" {
		return models.Identity{}, ErrUnauthenticated
	}
	return id, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	// Sprawdź format: "Bearer <token>"
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	jsoniter.ConfigFastest.NewEncoder(w).Encode(map[string]string{"error": msg})
}
