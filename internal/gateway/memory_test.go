package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/models"
)

func seededMemory() *Memory {
	m := NewMemory("retailers", "invoices")
	m.Seed("retailers",
		models.Row{"name": "SuperMart Plus", "location": "Lagos", "sales_volume": 1500000.0},
		models.Row{"name": "MediMart", "location": "Abuja", "sales_volume": 50000.0},
		models.Row{"name": "Pharma Plus", "location": "Lagos", "sales_volume": 980000.0},
	)
	return m
}

func TestMemorySelect(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	res, err := m.Select(ctx, "retailers", Query{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	assert.Equal(t, -1, res.Count)

	res, err = m.Select(ctx, "retailers", Query{}.Eq("location", "Lagos"))
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)

	res, err = m.Select(ctx, "retailers", Query{
		OrderBy: &Order{Column: "sales_volume"},
		Range:   &Range{From: 0, To: 1},
		Count:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "SuperMart Plus", res.Rows[0]["name"])
	assert.Equal(t, "Pharma Plus", res.Rows[1]["name"])

	res, err = m.Select(ctx, "retailers", Query{Range: &Range{From: 10, To: 19}})
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)

	_, err = m.Select(ctx, "customers", Query{})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestMemorySelectReturnsCopies(t *testing.T) {
	m := seededMemory()
	res, err := m.Select(context.Background(), "retailers", Query{})
	require.NoError(t, err)
	res.Rows[0]["name"] = "changed"

	res, err = m.Select(context.Background(), "retailers", Query{})
	require.NoError(t, err)
	assert.Equal(t, "SuperMart Plus", res.Rows[0]["name"])
}

func TestMemoryInsertUpdateDelete(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	row, err := m.Insert(ctx, "retailers", models.Row{"id": int64(99), "name": "New"})
	require.NoError(t, err)
	id, _ := row.ID()
	assert.Equal(t, int64(4), id, "insert ignores a client supplied id")

	_, err = m.Insert(ctx, "retailers", models.Row{})
	assert.ErrorIs(t, err, ErrEmptyRow)

	row, err = m.Update(ctx, "retailers", models.Row{"location": "Kano"}, 4)
	require.NoError(t, err)
	assert.Equal(t, "New", row["name"])
	assert.Equal(t, "Kano", row["location"])

	_, err = m.Update(ctx, "retailers", models.Row{"location": "Kano"}, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Update(ctx, "retailers", models.Row{"id": int64(4)}, 4)
	assert.ErrorIs(t, err, ErrEmptyRow)

	require.NoError(t, m.Delete(ctx, "retailers", 4))
	assert.ErrorIs(t, m.Delete(ctx, "retailers", 4), ErrNotFound)
}

func TestMemoryVersionedUpdate(t *testing.T) {
	m := NewMemory("invoices")
	m.Versioned("invoices")
	ctx := context.Background()

	row, err := m.Insert(ctx, "invoices", models.Row{"retailer": "MediMart", "status": "Pending"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), row["version"])

	row, err = m.Update(ctx, "invoices", models.Row{"status": "Paid", "version": json.Number("1")}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row["version"])

	_, err = m.Update(ctx, "invoices", models.Row{"status": "Overdue", "version": 1}, 1)
	assert.ErrorIs(t, err, ErrConflict)

	// without a version the update is unconditional
	row, err = m.Update(ctx, "invoices", models.Row{"status": "Overdue"}, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row["version"])
}

func TestMemorySubscribe(t *testing.T) {
	m := seededMemory()
	ctx := context.Background()

	_, err := m.Subscribe(ctx, "customers")
	assert.ErrorIs(t, err, ErrUnknownTable)

	deletes, err := m.Subscribe(ctx, "retailers", EventDelete)
	require.NoError(t, err)
	all, err := m.Subscribe(ctx, "retailers")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Subscribers())

	_, err = m.Insert(ctx, "retailers", models.Row{"name": "x"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "retailers", 4))

	next := func(s Subscription) ChangeEvent {
		select {
		case ev := <-s.Events():
			return ev
		case <-time.After(time.Second):
			t.Fatal("no event")
			return ChangeEvent{}
		}
	}
	assert.Equal(t, ChangeEvent{Table: "retailers", Kind: EventInsert, ID: 4}, next(all))
	assert.Equal(t, ChangeEvent{Table: "retailers", Kind: EventDelete, ID: 4}, next(all))
	assert.Equal(t, ChangeEvent{Table: "retailers", Kind: EventDelete, ID: 4}, next(deletes))

	require.NoError(t, all.Close())
	require.NoError(t, all.Close())
	_, open := <-all.Events()
	assert.False(t, open)
	assert.Equal(t, 1, m.Subscribers())
	deletes.Close()
}

func TestMemoryCurrentUser(t *testing.T) {
	m := NewMemory()
	_, ok := m.CurrentUser(context.Background())
	assert.False(t, ok)

	m.SetUser("12")
	user, ok := m.CurrentUser(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "12", user)
}
