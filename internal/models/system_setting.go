package models

// SystemSettings is the system configuration tab of the settings screen.
// It lives only in the dashboard's memory; nothing persists it.
type SystemSettings struct {
	MaintenanceMode    bool `json:"maintenance_mode"`
	SessionTimeout     int  `json:"session_timeout"`
	EmailNotifications bool `json:"email_notifications"`
	SMSNotifications   bool `json:"sms_notifications"`
}

// DefaultSystemSettings matches the values the settings screen opens with.
func DefaultSystemSettings() SystemSettings {
	return SystemSettings{
		SessionTimeout:     30,
		EmailNotifications: true,
	}
}
