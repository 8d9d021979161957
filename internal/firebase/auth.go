package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"digilib/internal/models"
)

// RoleClaim to nazwa custom claim z rolą użytkownika
const RoleClaim = "role"

// TokenVerifier weryfikuje tokeny ID Firebase Auth
type TokenVerifier struct {
	auth *auth.Client
}

// NewTokenVerifier tworzy weryfikator tokenów
func NewTokenVerifier(client *auth.Client) *TokenVerifier {
	return &TokenVerifier{auth: client}
}

// Authenticate weryfikuje token i zwraca tożsamość. Rola pochodzi z custom claims,
// brak claimu oznacza czytelnika.
func (v *TokenVerifier) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	decoded, err := v.auth.VerifyIDToken(ctx, token)
	if err != nil {
		return models.Identity{}, fmt.Errorf("nieprawidłowy token: %w", err)
	}
	return identityFromToken(decoded), nil
}

func identityFromToken(t *auth.Token) models.Identity {
	id := models.Identity{UserID: t.UID, Role: models.RoleReader}
	if role, ok := t.Claims[RoleClaim].(string); ok && models.UserRole(role).Valid() {
		id.Role = models.UserRole(role)
	}
	if email, ok := t.Claims["email"].(string); ok {
		id.Email = email
	}
	return id
}

// SetRole zapisuje rolę jako custom claim użytkownika
func (c *Client) SetRole(ctx context.Context, uid string, role models.UserRole) error {
	if !role.Valid() {
		return fmt.Errorf("nieznana rola: %q", role)
	}
	if err := c.Auth.SetCustomUserClaims(ctx, uid, map[string]interface{}{RoleClaim: string(role)}); err != nil {
		return fmt.Errorf("błąd ustawiania roli: %w", err)
	}
	return nil
}
