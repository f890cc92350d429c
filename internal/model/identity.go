package model

// Identity is the authenticated user snapshot carried by the session cookie
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
