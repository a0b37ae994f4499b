package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/metrics"
	"unifield-backend/internal/models"
)

func TestTableKey(t *testing.T) {
	q := gateway.Query{OrderBy: &gateway.Order{Column: "id", Ascending: true}, Range: &gateway.Range{From: 0, To: 9}, Count: true}

	k1 := TableKey("orders", q)
	assert.True(t, strings.HasPrefix(k1, "tables:orders:"))
	assert.Equal(t, k1, TableKey("orders", q))
	assert.NotEqual(t, k1, TableKey("orders", gateway.Query{}))
	assert.NotEqual(t, k1, TableKey("returns", q))
}

func TestTableCache_WithoutRedisPassesThrough(t *testing.T) {
	SetClient(nil)
	mem := gateway.NewMemory("products")
	c := NewTableCache(mem, time.Minute)
	ctx := context.Background()

	row, err := c.Insert(ctx, "products", models.Row{"name": "Rice 50kg", "sku": "RC-50"})
	require.NoError(t, err)
	id, _ := row.ID()

	res, err := c.Select(ctx, "products", gateway.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)

	_, err = c.Update(ctx, "products", models.Row{"stock": 4}, id)
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "products", id))

	res, err = c.Select(ctx, "products", gateway.Query{})
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.False(t, IsHealthy())
}

// racingGateway invalidates its table in the middle of a select, the way a
// concurrent write would.
type racingGateway struct {
	gateway.Gateway
	race bool
}

func (g *racingGateway) Select(ctx context.Context, table string, q gateway.Query) (*gateway.Result, error) {
	res, err := g.Gateway.Select(ctx, table, q)
	if g.race {
		InvalidateTable(ctx, table)
	}
	return res, err
}

func TestTableCache_SkipsStoreAfterConcurrentWrite(t *testing.T) {
	// Nothing listens on port 1, so every Redis call fails fast and the
	// cache behaves as a permanent miss.
	SetClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond}))
	t.Cleanup(func() {
		GetClient().Close()
		SetClient(nil)
	})

	mem := gateway.NewMemory("orders")
	mem.Seed("orders", models.Row{"customer_name": "Ada", "status": "pending"})
	inner := &racingGateway{Gateway: mem}
	c := NewTableCache(inner, time.Minute)
	ctx := context.Background()
	stale := metrics.CacheLookupsTotal.WithLabelValues("stale")

	before := counterValue(t, stale)
	_, err := c.Select(ctx, "orders", gateway.Query{})
	require.NoError(t, err)
	assert.Equal(t, before, counterValue(t, stale))

	inner.race = true
	gen := generation("orders")
	res, err := c.Select(ctx, "orders", gateway.Query{})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, gen+1, generation("orders"))
	assert.Equal(t, before+1, counterValue(t, stale))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
