package gateway

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/models"
)

var (
	invoiceColumns = map[string]string{
		"id":       "bigint",
		"retailer": "text",
		"amount":   "numeric",
		"status":   "text",
		"due_date": "text",
		"version":  "integer",
	}
	productColumns = map[string]string{
		"id":         "bigint",
		"name":       "text",
		"price":      "numeric",
		"stock":      "integer",
		"active":     "boolean",
		"created_at": "timestamp with time zone",
	}
)

// cachedPostgres has its column cache filled so nothing before the query
// touches the pool.
func cachedPostgres() *Postgres {
	p := NewPostgres(nil, nil, nil, models.EntityInvoices, models.EntityProducts)
	p.columns[models.EntityInvoices] = invoiceColumns
	p.columns[models.EntityProducts] = productColumns
	return p
}

func TestPostgresRejectsEmptyRows(t *testing.T) {
	p := cachedPostgres()
	ctx := context.Background()

	for _, row := range []models.Row{nil, {}, {"id": int64(4)}, {"version": 2}} {
		assert.NotPanics(t, func() {
			_, err := p.Insert(ctx, models.EntityInvoices, row)
			assert.ErrorIs(t, err, ErrEmptyRow)
		})
		assert.NotPanics(t, func() {
			_, err := p.Update(ctx, models.EntityInvoices, row, 1)
			assert.ErrorIs(t, err, ErrEmptyRow)
		})
	}

	_, err := p.Insert(ctx, "payroll", models.Row{"name": "x"})
	assert.ErrorIs(t, err, ErrUnknownTable)
	_, err = p.Select(ctx, "payroll", Query{})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestWhereClause(t *testing.T) {
	where, args, err := whereClause(productColumns, nil)
	require.NoError(t, err)
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args, err = whereClause(productColumns, []Filter{
		{Column: "name", Value: "Paracetamol"},
		{Column: "stock", Value: int64(40)},
	})
	require.NoError(t, err)
	assert.Equal(t, ` WHERE "name"::text = $1 AND "stock"::text = $2`, where)
	assert.Equal(t, []any{"Paracetamol", "40"}, args)

	_, _, err = whereClause(productColumns, []Filter{{Column: "name; DROP TABLE products", Value: "x"}})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestCoerceColumn(t *testing.T) {
	tests := []struct {
		column string
		in     any
		want   any
	}{
		{"stock", "12", int64(12)},
		{"stock", 12.0, int64(12)},
		{"price", "1500.50", 1500.5},
		{"price", 1750, 1750.0},
		{"active", "true", true},
		{"name", 42, "42"},
		{"created_at", "2026-03-01T09:30:00Z", time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)},
		{"name", nil, nil},
	}
	for _, tt := range tests {
		got, err := coerceColumn(productColumns, "products", tt.column, tt.in)
		require.NoError(t, err, "%s=%v", tt.column, tt.in)
		if want, ok := tt.want.(time.Time); ok {
			assert.True(t, want.Equal(got.(time.Time)), "%s=%v", tt.column, tt.in)
			continue
		}
		assert.Equal(t, tt.want, got, "%s=%v", tt.column, tt.in)
	}

	for _, bad := range []struct {
		column string
		in     any
	}{
		{"stock", "twelve"},
		{"stock", "12.5"},
		{"price", "cheap"},
		{"active", "maybe"},
		{"created_at", "yesterday"},
	} {
		_, err := coerceColumn(productColumns, "products", bad.column, bad.in)
		assert.ErrorIs(t, err, ErrInvalidValue, "%s=%v", bad.column, bad.in)
	}

	_, err := coerceColumn(productColumns, "products", "colour", "red")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestNormalize(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.FixedZone("WAT", 3600))
	row := normalize(map[string]any{
		"amount":  pgtype.Numeric{Int: big.NewInt(4000050), Exp: -2, Valid: true},
		"missing": pgtype.Numeric{},
		"stock":   int32(40),
		"rank":    int16(2),
		"id":      int64(7),
		"at":      at,
		"name":    "Pharma Plus",
	})

	assert.Equal(t, 40000.5, row["amount"])
	assert.Nil(t, row["missing"])
	assert.Equal(t, int64(40), row["stock"])
	assert.Equal(t, int64(2), row["rank"])
	assert.Equal(t, int64(7), row["id"])
	assert.Equal(t, time.UTC, row["at"].(time.Time).Location())
	assert.True(t, at.Equal(row["at"].(time.Time)))
	assert.Equal(t, "Pharma Plus", row["name"])
}

func TestInsertQuery(t *testing.T) {
	query, args, err := insertQuery(invoiceColumns, "invoices", models.Row{
		"id":       int64(9),
		"retailer": "Pharma Plus",
		"amount":   "40000",
		"version":  5,
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "invoices" ("amount", "retailer", "version") VALUES ($1, $2, $3) RETURNING *`, query)
	assert.Equal(t, []any{40000.0, "Pharma Plus", int64(1)}, args)

	query, args, err = insertQuery(productColumns, "products", models.Row{"name": "Paracetamol"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "products" ("name") VALUES ($1) RETURNING *`, query)
	assert.Equal(t, []any{"Paracetamol"}, args)

	_, _, err = insertQuery(productColumns, "products", models.Row{"name": "x", "colour": "red"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestUpdateQuery(t *testing.T) {
	tests := []struct {
		name        string
		cols        map[string]string
		table       string
		row         models.Row
		query       string
		args        []any
		conditional bool
	}{
		{
			name:        "versioned with caller version",
			cols:        invoiceColumns,
			table:       "invoices",
			row:         models.Row{"status": "Paid", "version": 3},
			query:       `UPDATE "invoices" SET "status" = $1, version = version + 1 WHERE id = $2 AND version = $3 RETURNING *`,
			args:        []any{"Paid", int64(7), int64(3)},
			conditional: true,
		},
		{
			name:  "versioned without version",
			cols:  invoiceColumns,
			table: "invoices",
			row:   models.Row{"status": "Overdue"},
			query: `UPDATE "invoices" SET "status" = $1, version = version + 1 WHERE id = $2 RETURNING *`,
			args:  []any{"Overdue", int64(7)},
		},
		{
			name:  "unversioned ignores version",
			cols:  productColumns,
			table: "products",
			row:   models.Row{"price": 1750, "stock": "40", "version": 1, "id": int64(99)},
			query: `UPDATE "products" SET "price" = $1, "stock" = $2 WHERE id = $3 RETURNING *`,
			args:  []any{1750.0, int64(40), int64(7)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, conditional, err := updateQuery(tt.cols, tt.table, tt.row, 7)
			require.NoError(t, err)
			assert.Equal(t, tt.query, query)
			assert.Equal(t, tt.args, args)
			assert.Equal(t, tt.conditional, conditional)
		})
	}

	_, _, _, err := updateQuery(invoiceColumns, "invoices", models.Row{"status": "Paid", "version": "stale"}, 7)
	assert.ErrorIs(t, err, ErrConflict)
	_, _, _, err = updateQuery(invoiceColumns, "invoices", models.Row{"amount": "lots"}, 7)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestMissingRow(t *testing.T) {
	checked := false
	exists := func(found bool) func() bool {
		return func() bool {
			checked = true
			return found
		}
	}

	assert.ErrorIs(t, missingRow("invoices", 7, true, exists(true)), ErrConflict)
	assert.ErrorIs(t, missingRow("invoices", 7, true, exists(false)), ErrNotFound)

	checked = false
	assert.ErrorIs(t, missingRow("products", 7, false, exists(true)), ErrNotFound)
	assert.False(t, checked, "unconditional updates never look the row up")
}
