// Package settings holds the settings screen: system configuration, user
// roles and third-party integrations. None of it is persisted; every process
// starts from the same defaults.
package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cast"

	"unifield-backend/internal/crud"
	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

// localUser is the identity reported for local-only edits.
const localUser = "local"

var defaultRoles = []models.Row{
	{"id": int64(1), "name": "Admin", "description": "Full system access", "permissions": "all"},
	{"id": int64(2), "name": "Manager", "description": "Manage retailers and field agents", "permissions": "manage_retailers,manage_field_agents,view_reports"},
	{"id": int64(3), "name": "Field Agent", "description": "Manage assigned retailers", "permissions": "view_retailers,update_retailer_info"},
	{"id": int64(4), "name": "Finance", "description": "Manage financial operations", "permissions": "view_finances,manage_payments,generate_invoices"},
}

var defaultIntegrations = []models.Row{
	{"id": int64(1), "name": "PayPal", "type": "payment", "status": "active", "api_key": "pk_test_123456"},
	{"id": int64(2), "name": "Stripe", "type": "payment", "status": "inactive", "api_key": ""},
	{"id": int64(3), "name": "DHL", "type": "logistics", "status": "active", "api_key": "dhl_api_789012"},
	{"id": int64(4), "name": "FedEx", "type": "logistics", "status": "inactive", "api_key": ""},
}

type Settings struct {
	mu     sync.RWMutex
	system models.SystemSettings

	Roles        *crud.Page
	Integrations *crud.Page
}

// New builds the screen with its default data loaded.
func New(ctx context.Context, reg *models.Registry) (*Settings, error) {
	mem := gateway.NewMemory(models.EntityRoles, models.EntityIntegrations)
	mem.Seed(models.EntityRoles, defaultRoles...)
	mem.Seed(models.EntityIntegrations, defaultIntegrations...)
	mem.SetUser(localUser)

	s := &Settings{system: models.DefaultSystemSettings()}
	for _, p := range []struct {
		name string
		dst  **crud.Page
	}{
		{models.EntityRoles, &s.Roles},
		{models.EntityIntegrations, &s.Integrations},
	} {
		entity, err := reg.Get(p.name)
		if err != nil {
			return nil, err
		}
		page := crud.NewPage(mem, entity)
		if err := page.Open(ctx); err != nil {
			return nil, err
		}
		*p.dst = page
	}
	return s, nil
}

// Page returns the roles or integrations page.
func (s *Settings) Page(entity string) (*crud.Page, error) {
	switch entity {
	case models.EntityRoles:
		return s.Roles, nil
	case models.EntityIntegrations:
		return s.Integrations, nil
	}
	return nil, fmt.Errorf("%s is not a settings list", entity)
}

func (s *Settings) System() models.SystemSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.system
}

// Set changes one system setting by its json name. value may be a string
// from the command line or an already typed value.
func (s *Settings) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.system
	var err error
	switch key {
	case "maintenance_mode":
		next.MaintenanceMode, err = cast.ToBoolE(value)
	case "session_timeout":
		next.SessionTimeout, err = cast.ToIntE(value)
		if err == nil && next.SessionTimeout <= 0 {
			err = fmt.Errorf("must be positive")
		}
	case "email_notifications":
		next.EmailNotifications, err = cast.ToBoolE(value)
	case "sms_notifications":
		next.SMSNotifications, err = cast.ToBoolE(value)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	s.system = next
	return nil
}

func (s *Settings) Close() error {
	s.Roles.Close()
	s.Integrations.Close()
	return nil
}
