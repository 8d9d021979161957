package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"digilib/internal/models"
)

const issuer = "digilib"

// Claims to zawartość lokalnie podpisanego tokenu
type Claims struct {
	Role  models.UserRole `json:"role"`
	Email string          `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator weryfikuje tokeny HS256 wystawione przez IssueToken.
// Używany gdy Firebase Auth nie jest skonfigurowany.
type JWTAuthenticator struct {
	secret []byte
	now    func() time.Time
}

// NewJWTAuthenticator tworzy weryfikator ze współdzielonym sekretem
func NewJWTAuthenticator(secret string) (*JWTAuthenticator, error) {
	if len(secret) < 16 {
		return nil, errors.New("sekret JWT musi mieć co najmniej 16 znaków")
	}
	return &JWTAuthenticator{secret: []byte(secret), now: time.Now}, nil
}

// IssueToken wystawia token dla tożsamości, ważny przez ttl
func (a *JWTAuthenticator) IssueToken(id models.Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("brak identyfikatora użytkownika")
	}
	if !id.Role.Valid() {
		return "", fmt.Errorf("nieznana rola: %q", id.Role)
	}
	now := a.now()
	claims := Claims{
		Role:  id.Role,
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        strconv.FormatInt(now.UnixNano(), 36),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("błąd podpisywania tokenu: %w", err)
	}
	return signed, nil
}

// Authenticate weryfikuje podpis, wystawcę i ważność tokenu
func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (models.Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return models.Identity{}, fmt.Errorf("nieprawidłowy token: %w", err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return models.Identity{}, errors.New("nieprawidłowy token: brak użytkownika lub roli")
	}
	return models.Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}
