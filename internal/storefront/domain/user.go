package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Avatar references an image hosted by an external media service. Requests
// may send either the object form or a bare URL string; responses always use
// the object form.
type Avatar struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

func (a *Avatar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var url string
		if err := json.Unmarshal(data, &url); err != nil {
			return err
		}
		*a = Avatar{URL: strings.TrimSpace(url)}
		return nil
	}

	type plain Avatar
	return json.Unmarshal(data, (*plain)(a))
}

type User struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"` // argon2id PHC string or bcrypt
	Role         Role   `json:"role"`
	Avatar       Avatar `json:"avatar"`

	// Pending password reset. Only the fingerprint of the emailed token is
	// kept; both fields are set or cleared together.
	ResetTokenHash      string     `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPendingReset reports whether an unexpired reset token is outstanding.
func (u User) HasPendingReset(now time.Time) bool {
	return u.ResetTokenHash != "" && u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
}

// NormalizeEmail is applied on every write and lookup so that email
// uniqueness and login are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
