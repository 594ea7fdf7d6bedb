package auth

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// Account is the identity and credential record of a user. PasswordHash is
// never serialized.
type Account struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Role           Role       `json:"role"`
	Status         Status     `json:"status"`
	ProfilePicture string     `json:"profile_picture,omitempty"`
	LastLoginAt    *time.Time `json:"last_login,omitempty"`
	CurrentLoginAt *time.Time `json:"current_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Public returns a copy of the account without credential material.
func (a Account) Public() Account {
	a.PasswordHash = ""
	return a
}

type SignupResult struct {
	Account     Account `json:"user"`
	AccessToken string  `json:"access_token"`
}

type SigninResult struct {
	Account      Account `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int64   `json:"expires_in"`
}
