package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"sync"
	"time"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/metrics"
	"unifield-backend/internal/models"
)

// TableKey is the cache key of one select: tables:<table>:<hash of query>.
func TableKey(table string, q gateway.Query) string {
	h := sha256.Sum256([]byte(gateway.EncodeQuery(q).Encode()))
	return "tables:" + table + ":" + hex.EncodeToString(h[:])[:24]
}

var (
	genMu       sync.Mutex
	generations = map[string]uint64{}
)

// generation counts the invalidations of table seen by this process.
func generation(table string) uint64 {
	genMu.Lock()
	defer genMu.Unlock()
	return generations[table]
}

// InvalidateTable drops every cached select of table.
// Called when: Insert, Update, Delete, or a change notification for the table.
func InvalidateTable(ctx context.Context, table string) {
	genMu.Lock()
	generations[table]++
	genMu.Unlock()
	InvalidatePattern(ctx, "tables:"+table+":*")
}

// TableCache serves repeated selects from Redis and invalidates a table's
// entries on every write through it.
type TableCache struct {
	gateway.Gateway
	ttl time.Duration
}

func NewTableCache(gw gateway.Gateway, ttl time.Duration) *TableCache {
	return &TableCache{Gateway: gw, ttl: ttl}
}

func (c *TableCache) Select(ctx context.Context, table string, q gateway.Query) (*gateway.Result, error) {
	key := TableKey(table, q)
	if data, ok := GetCached(ctx, key); ok {
		var res gateway.Result
		if err := json.Unmarshal(data, &res); err == nil {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return &res, nil
		}
	}
	if client != nil {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	gen := generation(table)
	res, err := c.Gateway.Select(ctx, table, q)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return res, nil
	}
	// A write invalidated the table while we read; res may predate it.
	// Only invalidations seen by this process count, the TTL bounds the rest.
	if generation(table) != gen {
		metrics.CacheLookupsTotal.WithLabelValues("stale").Inc()
		return res, nil
	}
	if data, err := json.Marshal(res); err == nil {
		SetCached(ctx, key, data, c.ttl)
	} else {
		log.Printf("[Redis] encode %s failed: %v", key, err)
	}
	return res, nil
}

func (c *TableCache) Insert(ctx context.Context, table string, row models.Row) (models.Row, error) {
	out, err := c.Gateway.Insert(ctx, table, row)
	if err == nil {
		InvalidateTable(ctx, table)
	}
	return out, err
}

func (c *TableCache) Update(ctx context.Context, table string, row models.Row, id int64) (models.Row, error) {
	out, err := c.Gateway.Update(ctx, table, row, id)
	if err == nil {
		InvalidateTable(ctx, table)
	}
	return out, err
}

func (c *TableCache) Delete(ctx context.Context, table string, id int64) error {
	err := c.Gateway.Delete(ctx, table, id)
	if err == nil {
		InvalidateTable(ctx, table)
	}
	return err
}
