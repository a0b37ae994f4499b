package models

import "time"

// Table actions recorded in the audit trail.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ActionLog is one mutation made through the tables API.
type ActionLog struct {
	ID        int64     `json:"id"`
	UserID    int       `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Action    string    `json:"action"`
	TableName string    `json:"table"`
	RowID     int64     `json:"row_id"`
	Changes   Row       `json:"changes,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
