package user

import "time"

// User is an account that can own files. PasswordHash is nil for accounts
// created through an OAuth provider that never set a password.
type User struct {
	ID              int64
	Email           string
	PasswordHash    *string
	OAuthProvider   *string
	OAuthProviderID *string
	EmailVerified   bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
