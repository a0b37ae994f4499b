package models

import (
	"fmt"
	"sort"
)

// Entity describes one management table: which columns the search box
// matches, which fields a create/update dialog requires and how the list is
// ordered when it is fetched.
type Entity struct {
	Name           string   `json:"name"`
	Table          string   `json:"table"`
	SearchFields   []string `json:"search_fields"`
	RequiredFields []string `json:"required_fields"`
	OrderBy        string   `json:"order_by,omitempty"`
	Descending     bool     `json:"descending,omitempty"`

	// StampUser adds created_by/created_at on insert and updated_by/updated_at
	// on update, and requires an authenticated user to mutate.
	StampUser bool `json:"stamp_user,omitempty"`

	// Versioned rows carry a version column; updates that send it are
	// conditional on it matching.
	Versioned bool `json:"versioned,omitempty"`

	// PageSize > 0 makes the list screen fetch a single page with a total
	// count instead of the whole table.
	PageSize int `json:"page_size,omitempty"`

	// Realtime screens refetch on every change notification for the table.
	Realtime bool `json:"realtime,omitempty"`

	// LocalOnly entities are never sent to the gateway service.
	LocalOnly bool `json:"local_only,omitempty"`

	// SkipIncomplete hides fetched rows with a blank required field.
	SkipIncomplete bool `json:"skip_incomplete,omitempty"`
}

// Stamp and version columns.
const (
	CreatedByField = "created_by"
	CreatedAtField = "created_at"
	UpdatedByField = "updated_by"
	UpdatedAtField = "updated_at"
	VersionField   = "version"
)

// Entity names.
const (
	EntityRetailers       = "retailers"
	EntityProducts        = "products"
	EntitySuppliers       = "suppliers"
	EntityOrders          = "orders"
	EntityReturns         = "returns"
	EntityInvoices        = "invoices"
	EntityCampaigns       = "campaigns"
	EntityPromotions      = "promotions"
	EntityFieldAgents     = "field_agents"
	EntityTerritories     = "territories"
	EntityTrainingModules = "training_modules"
	EntityRoles           = "roles"
	EntityIntegrations    = "integrations"
)

var entities = []Entity{
	{
		Name:           EntityRetailers,
		Table:          "retailers",
		SearchFields:   []string{"name", "location"},
		RequiredFields: []string{"name", "location"},
		OrderBy:        "name",
		StampUser:      true,
		SkipIncomplete: true,
	},
	{
		Name:           EntityProducts,
		Table:          "products",
		SearchFields:   []string{"name", "sku", "category"},
		RequiredFields: []string{"name", "sku"},
		OrderBy:        "name",
	},
	{
		Name:           EntitySuppliers,
		Table:          "suppliers",
		SearchFields:   []string{"name"},
		RequiredFields: []string{"name"},
		OrderBy:        "name",
	},
	{
		Name:           EntityOrders,
		Table:          "orders",
		SearchFields:   []string{"customer_name", "status"},
		RequiredFields: []string{"customer_name", "status"},
		OrderBy:        "id",
		PageSize:       10,
		Realtime:       true,
	},
	{
		Name:           EntityReturns,
		Table:          "returns",
		SearchFields:   []string{"customer_name", "status"},
		RequiredFields: []string{"customer_name", "status"},
	},
	{
		Name:           EntityInvoices,
		Table:          "invoices",
		SearchFields:   []string{"retailer", "status"},
		RequiredFields: []string{"retailer", "status"},
		OrderBy:        "id",
		Versioned:      true,
	},
	{
		Name:           EntityCampaigns,
		Table:          "campaigns",
		SearchFields:   []string{"name", "target", "status"},
		RequiredFields: []string{"name"},
	},
	{
		Name:           EntityPromotions,
		Table:          "promotions",
		SearchFields:   []string{"name", "type", "status"},
		RequiredFields: []string{"name"},
		Versioned:      true,
	},
	{
		Name:           EntityFieldAgents,
		Table:          "field_agents",
		SearchFields:   []string{"name", "territory"},
		RequiredFields: []string{"name", "territory"},
	},
	{
		Name:           EntityTerritories,
		Table:          "territories",
		SearchFields:   []string{"name", "region"},
		RequiredFields: []string{"name"},
	},
	{
		Name:           EntityTrainingModules,
		Table:          "training_modules",
		SearchFields:   []string{"title"},
		RequiredFields: []string{"title"},
	},
	{
		Name:           EntityRoles,
		Table:          "roles",
		SearchFields:   []string{"name", "description"},
		RequiredFields: []string{"name"},
		LocalOnly:      true,
	},
	{
		Name:           EntityIntegrations,
		Table:          "integrations",
		SearchFields:   []string{"name", "type", "status"},
		RequiredFields: []string{"name"},
		LocalOnly:      true,
	},
}

// Registry resolves entity definitions by name or table.
type Registry struct {
	byName  map[string]Entity
	byTable map[string]Entity
}

// NewRegistry builds a registry from the given definitions.
func NewRegistry(defs ...Entity) *Registry {
	r := &Registry{
		byName:  make(map[string]Entity, len(defs)),
		byTable: make(map[string]Entity, len(defs)),
	}
	for _, e := range defs {
		r.byName[e.Name] = e
		r.byTable[e.Table] = e
	}
	return r
}

// DefaultRegistry returns the UniField entity set.
func DefaultRegistry() *Registry {
	return NewRegistry(entities...)
}

// Get returns the entity with the given name.
func (r *Registry) Get(name string) (Entity, error) {
	e, ok := r.byName[name]
	if !ok {
		return Entity{}, fmt.Errorf("unknown entity %q", name)
	}
	return e, nil
}

// ByTable returns the entity backed by the given table.
func (r *Registry) ByTable(table string) (Entity, bool) {
	e, ok := r.byTable[table]
	return e, ok
}

// Remote returns every entity persisted by the gateway service, sorted by name.
func (r *Registry) Remote() []Entity {
	var out []Entity
	for _, e := range r.byName {
		if !e.LocalOnly {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names lists all entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
