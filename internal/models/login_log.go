package models

import "time"

// LoginLog is one dashboard session: when a user signed in, from where, and
// when they signed out again.
type LoginLog struct {
	ID         int64      `json:"id"`
	UserID     int        `json:"user_id"`
	Email      string     `json:"email,omitempty"`
	LoginTime  time.Time  `json:"login_time"`
	LogoutTime *time.Time `json:"logout_time,omitempty"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
}
