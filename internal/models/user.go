package models

import "time"

// User roles.
const (
	RoleAdmin    = "admin"
	RoleRetailer = "retailer"
)

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         string    `json:"role"` // admin or retailer
	RetailerID   *int64    `json:"retailer_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
