package reports

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

func seeded(t *testing.T) *InvoiceService {
	t.Helper()
	mem := gateway.NewMemory(models.EntityInvoices, models.EntityRetailers)
	mem.Seed(models.EntityRetailers,
		models.Row{"id": int64(1), "name": "SuperMart Plus", "location": "Lagos, Nigeria", "phone": "+234 801 000 0001"},
	)
	mem.Seed(models.EntityInvoices,
		models.Row{"id": int64(7), "retailer": "SuperMart Plus", "amount": 125000.5, "status": "Overdue", "due_date": "2026-11-01"},
		models.Row{"id": int64(8), "retailer": "Unknown Stores", "amount": 900.0, "status": "Paid"},
	)
	return NewInvoiceService(mem, "UniField", "NGN")
}

func TestLoadInvoice(t *testing.T) {
	s := seeded(t)

	data, err := s.Load(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "SuperMart Plus", data.Invoice.String("retailer"))
	require.NotNil(t, data.Retailer)
	assert.Equal(t, "Lagos, Nigeria", data.Retailer.String("location"))

	data, err = s.Load(context.Background(), 8)
	require.NoError(t, err)
	assert.Nil(t, data.Retailer)

	_, err = s.Load(context.Background(), 99)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestGenerateInvoicePDF(t *testing.T) {
	s := seeded(t)
	for _, id := range []int64{7, 8} {
		data, err := s.Load(context.Background(), id)
		require.NoError(t, err)

		pdf, err := s.GeneratePDF(data)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	}
}

func TestMoney(t *testing.T) {
	s := &InvoiceService{Currency: "NGN"}
	assert.Equal(t, "NGN 125000.50", s.money(125000.5))
	assert.Equal(t, "NGN 0.00", s.money(nil))
}
