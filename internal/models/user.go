package models

import (
	"time"

	"github.com/google/uuid"
)

// UserDB represents a user record in the database
type UserDB struct {
	ID           uuid.UUID `db:"id"`            // Primary key
	Username     string    `db:"username"`      // Unique, lower-cased username
	Email        string    `db:"email"`         // Unique email
	FullName     string    `db:"full_name"`     // Display name
	PasswordHash string    `db:"password_hash"` // bcrypt hash
	Avatar       string    `db:"avatar"`        // Media store URL
	CoverImage   string    `db:"cover_image"`   // Media store URL, empty when not set
	RefreshToken *string   `db:"refresh_token"` // Current refresh token, nil when logged out
	CreatedAt    time.Time `db:"created_at"`    // Creation timestamp
	UpdatedAt    time.Time `db:"updated_at"`    // Last update timestamp
}

// User is the sanitized view of a user returned to clients.
// It has no password or refresh token fields.
// swagger:model User
type User struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Sanitize strips credentials from a database record.
func (u *UserDB) Sanitize() *User {
	if u == nil {
		return nil
	}
	return &User{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FullName:   u.FullName,
		Avatar:     u.Avatar,
		CoverImage: u.CoverImage,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
