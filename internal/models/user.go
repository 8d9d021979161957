package models

// UserRole określa rolę użytkownika w systemie
type UserRole string

const (
	RoleReader UserRole = "reader" // Czytelnik - może wypożyczać książki
	RoleAdmin  UserRole = "admin"  // Bibliotekarz - obsługuje wypożyczenia i katalog
)

// Valid sprawdza czy rola jest znana
func (r UserRole) Valid() bool {
	return r == RoleReader || r == RoleAdmin
}

// Identity to tożsamość wywołującego, dostarczona przez warstwę uwierzytelniania
type Identity struct {
	UserID string   `json:"user_id"`
	Email  string   `json:"email,omitempty"`
	Role   UserRole `json:"role"`
}

// IsAdmin sprawdza czy użytkownik jest bibliotekarzem
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
