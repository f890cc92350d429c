package model

import (
	"time"
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	GoogleSub *string   `db:"google_sub" json:"-"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Bio       string    `db:"bio" json:"bio"`
	Picture   string    `db:"picture" json:"picture"`
	Level     int       `db:"level" json:"level"`
	Streak    int       `db:"streak" json:"streak"`
	Onboarded bool      `db:"onboarded" json:"onboarded"`
	Theme     string    `db:"theme" json:"theme"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Computed fields (not in database)
	AvatarURL string `db:"-" json:"avatar_url,omitempty"`
}

// Identity returns the session snapshot for this user
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.Name}
}

func ValidTheme(theme string) bool {
	return theme == ThemeLight || theme == ThemeDark || theme == ThemeSystem
}

// UserUpdate is a partial profile update; nil fields are left untouched
type UserUpdate struct {
	Name      *string `json:"name"`
	Bio       *string `json:"bio"`
	Theme     *string `json:"theme"`
	Onboarded *bool   `json:"onboarded"`
}
