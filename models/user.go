package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user entity
type User struct {
	ID           uuid.UUID       `json:"_id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"` // Never serialize password hash
	ProfileImage *string         `json:"profileImage,omitempty"`
	ScanHistory  []uuid.UUID     `json:"scanHistory"`
	ChatHistory  []uuid.UUID     `json:"chatHistory"`
	Preferences  UserPreferences `json:"preferences"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// UserPreferences represents user preferences
type UserPreferences struct {
	Notifications bool   `json:"notifications"`
	Language      string `json:"language"`
	DarkMode      bool   `json:"darkMode"`
}

// DefaultPreferences returns the preferences a new account starts with
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		Notifications: true,
		Language:      "en",
		DarkMode:      false,
	}
}

// PublicUser is the projection returned by the auth endpoints
type PublicUser struct {
	ID          uuid.UUID       `json:"_id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Preferences UserPreferences `json:"preferences"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Public strips everything but the fields safe to hand back after login
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt,
	}
}

// ProfileUpdate holds the optional fields of a profile edit.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	ProfileImage *string
	Preferences  *PreferencesUpdate
}

// PreferencesUpdate carries individually optional preference fields
type PreferencesUpdate struct {
	Notifications *bool
	Language      *string
	DarkMode      *bool
}
