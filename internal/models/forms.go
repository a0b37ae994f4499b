package models

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Form is the typed input of a create/edit dialog. Fields are pointers so an
// unset field is distinguishable from a zero value, which is what makes
// partial updates possible.
type Form interface {
	EntityName() string
}

type defaulter interface {
	ApplyDefaults()
}

type RetailerForm struct {
	Name               *string  `form:"name"`
	Location           *string  `form:"location"`
	BusinessType       *string  `form:"business_type"`
	ContactPerson      *string  `form:"contact_person"`
	Email              *string  `form:"email"`
	Phone              *string  `form:"phone"`
	RegistrationNumber *string  `form:"registration_number"`
	YearEstablished    *int     `form:"year_established"`
	AnnualRevenue      *float64 `form:"annual_revenue"`
	EmployeeCount      *int     `form:"employee_count"`
	Description        *string  `form:"description"`
	SalesVolume        *float64 `form:"sales_volume"`
	CreditStatus       *string  `form:"credit_status"`
	CreditScore        *int     `form:"credit_score"`
	CreditLimit        *float64 `form:"credit_limit"`
	UserID             *int64   `form:"user_id"`
}

func (RetailerForm) EntityName() string { return EntityRetailers }

// ApplyDefaults fills the values a new retailer gets when the dialog leaves
// them blank.
func (f *RetailerForm) ApplyDefaults() {
	if f.CreditStatus == nil || *f.CreditStatus == "" {
		s := "Good"
		f.CreditStatus = &s
	}
	if f.SalesVolume == nil {
		v := 0.0
		f.SalesVolume = &v
	}
}

type ProductForm struct {
	Name        *string  `form:"name"`
	SKU         *string  `form:"sku"`
	Category    *string  `form:"category"`
	Price       *float64 `form:"price"`
	Stock       *int     `form:"stock"`
	SupplierID  *int64   `form:"supplier_id"`
	Description *string  `form:"description"`
}

func (ProductForm) EntityName() string { return EntityProducts }

type SupplierForm struct {
	Name         *string `form:"name"`
	ContactEmail *string `form:"contact_email"`
	Phone        *string `form:"phone"`
	Address      *string `form:"address"`
}

func (SupplierForm) EntityName() string { return EntitySuppliers }

type OrderForm struct {
	CustomerName *string  `form:"customer_name"`
	Status       *string  `form:"status"`
	Total        *float64 `form:"total"`
	ItemsCount   *int     `form:"items_count"`
	RetailerID   *int64   `form:"retailer_id"`
}

func (OrderForm) EntityName() string { return EntityOrders }

type ReturnForm struct {
	OrderID      *int64  `form:"order_id"`
	CustomerName *string `form:"customer_name"`
	Status       *string `form:"status"`
	Reason       *string `form:"reason"`
}

func (ReturnForm) EntityName() string { return EntityReturns }

type InvoiceForm struct {
	Retailer *string  `form:"retailer"`
	Amount   *float64 `form:"amount"`
	Status   *string  `form:"status"`
	DueDate  *string  `form:"due_date"`
	Version  *int64   `form:"version"`
}

func (InvoiceForm) EntityName() string { return EntityInvoices }

type CampaignForm struct {
	Name      *string  `form:"name"`
	Target    *string  `form:"target"`
	Status    *string  `form:"status"`
	Budget    *float64 `form:"budget"`
	StartDate *string  `form:"start_date"`
	EndDate   *string  `form:"end_date"`
}

func (CampaignForm) EntityName() string { return EntityCampaigns }

type PromotionForm struct {
	Name     *string  `form:"name"`
	Type     *string  `form:"type"`
	Status   *string  `form:"status"`
	Discount *float64 `form:"discount"`
	Version  *int64   `form:"version"`
}

func (PromotionForm) EntityName() string { return EntityPromotions }

type FieldAgentForm struct {
	Name      *string `form:"name"`
	Territory *string `form:"territory"`
	Email     *string `form:"email"`
	Phone     *string `form:"phone"`
	Status    *string `form:"status"`
}

func (FieldAgentForm) EntityName() string { return EntityFieldAgents }

type TerritoryForm struct {
	Name   *string `form:"name"`
	Region *string `form:"region"`
}

func (TerritoryForm) EntityName() string { return EntityTerritories }

type TrainingModuleForm struct {
	Title           *string `form:"title"`
	Description     *string `form:"description"`
	DurationMinutes *int    `form:"duration_minutes"`
}

func (TrainingModuleForm) EntityName() string { return EntityTrainingModules }

type RoleForm struct {
	Name        *string `form:"name"`
	Description *string `form:"description"`
	Permissions *string `form:"permissions"`
}

func (RoleForm) EntityName() string { return EntityRoles }

type IntegrationForm struct {
	Name   *string `form:"name"`
	Type   *string `form:"type"`
	Status *string `form:"status"`
	APIKey *string `form:"api_key"`
}

func (IntegrationForm) EntityName() string { return EntityIntegrations }

// NewForm returns an empty typed form for the entity.
func NewForm(entity string) (Form, error) {
	switch entity {
	case EntityRetailers:
		return &RetailerForm{}, nil
	case EntityProducts:
		return &ProductForm{}, nil
	case EntitySuppliers:
		return &SupplierForm{}, nil
	case EntityOrders:
		return &OrderForm{}, nil
	case EntityReturns:
		return &ReturnForm{}, nil
	case EntityInvoices:
		return &InvoiceForm{}, nil
	case EntityCampaigns:
		return &CampaignForm{}, nil
	case EntityPromotions:
		return &PromotionForm{}, nil
	case EntityFieldAgents:
		return &FieldAgentForm{}, nil
	case EntityTerritories:
		return &TerritoryForm{}, nil
	case EntityTrainingModules:
		return &TrainingModuleForm{}, nil
	case EntityRoles:
		return &RoleForm{}, nil
	case EntityIntegrations:
		return &IntegrationForm{}, nil
	}
	return nil, fmt.Errorf("no form for entity %q", entity)
}

// FormFields lists the column names a form accepts, sorted.
func FormFields(f Form) []string {
	v := formValue(f)
	t := v.Type()
	var names []string
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("form"); tag != "" {
			names = append(names, tag)
		}
	}
	sort.Strings(names)
	return names
}

// BindForm sets form fields from string values keyed by column name.
// Unknown keys are an error so typos do not silently drop input.
func BindForm(f Form, values map[string]string) error {
	v := formValue(f)
	t := v.Type()
	fields := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("form"); tag != "" {
			fields[tag] = i
		}
	}

	for key, raw := range values {
		idx, ok := fields[key]
		if !ok {
			return fmt.Errorf("%s: unknown field %q", f.EntityName(), key)
		}
		field := v.Field(idx)
		val, err := coerce(field.Type().Elem().Kind(), strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: field %q: %w", f.EntityName(), key, err)
		}
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(reflect.ValueOf(val).Convert(field.Type().Elem()))
		field.Set(ptr)
	}
	return nil
}

// FormRow converts a form into a row holding only the fields that are set.
func FormRow(f Form) Row {
	if d, ok := f.(defaulter); ok {
		d.ApplyDefaults()
	}
	return PatchRow(f)
}

// PatchRow is FormRow without defaults, for partial updates.
func PatchRow(f Form) Row {
	v := formValue(f)
	t := v.Type()
	row := Row{}
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("form")
		field := v.Field(i)
		if tag == "" || field.IsNil() {
			continue
		}
		row[tag] = field.Elem().Interface()
	}
	return row
}

func formValue(f Form) reflect.Value {
	v := reflect.ValueOf(f)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func coerce(kind reflect.Kind, raw string) (any, error) {
	switch kind {
	case reflect.String:
		return raw, nil
	case reflect.Int:
		return cast.ToIntE(raw)
	case reflect.Int64:
		return cast.ToInt64E(raw)
	case reflect.Float64:
		return cast.ToFloat64E(raw)
	case reflect.Bool:
		return cast.ToBoolE(raw)
	}
	return nil, fmt.Errorf("unsupported kind %s", kind)
}
