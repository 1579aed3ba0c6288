package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
)

// User represents a user in the system.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Signature    string    `db:"signature" json:"signature"`
	AvatarURL    string    `db:"avatar_url" json:"avatar_url"`
	Roles        []string  `db:"roles" json:"roles"`
	IsBanned     bool      `db:"is_banned" json:"is_banned"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PublicProfile - то, что видят другие пользователи (без email и ролей).
type PublicProfile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Signature   string    `json:"signature"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Public returns the profile subset visible to other users.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Signature:   u.Signature,
		AvatarURL:   u.AvatarURL,
		CreatedAt:   u.CreatedAt,
	}
}

// ProfileUpdate holds editable profile fields. Nil means "leave unchanged".
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
	Signature   *string `json:"signature"`
	AvatarURL   *string `json:"avatar_url"`
}

// HasRole проверяет, есть ли у пользователя указанная роль.
func HasRole(userRoles []string, targetRole string) bool {
	for _, role := range userRoles {
		if role == targetRole {
			return true
		}
	}
	return false
}
