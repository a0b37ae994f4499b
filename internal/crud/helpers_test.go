package crud

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

var errBackend = errors.New("backend unavailable")

// countingGateway wraps Memory, counts selects and can fail chosen operations.
type countingGateway struct {
	*gateway.Memory

	selects atomic.Int32

	mu   sync.Mutex
	fail map[string]error
}

func newCountingGateway(t *testing.T, tables ...string) *countingGateway {
	t.Helper()
	return &countingGateway{
		Memory: gateway.NewMemory(tables...),
		fail:   make(map[string]error),
	}
}

func (g *countingGateway) failOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.fail, op)
		return
	}
	g.fail[op] = err
}

func (g *countingGateway) injected(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fail[op]
}

func (g *countingGateway) Select(ctx context.Context, table string, q gateway.Query) (*gateway.Result, error) {
	g.selects.Add(1)
	if err := g.injected("select"); err != nil {
		return nil, err
	}
	return g.Memory.Select(ctx, table, q)
}

func (g *countingGateway) Insert(ctx context.Context, table string, row models.Row) (models.Row, error) {
	if err := g.injected("insert"); err != nil {
		return nil, err
	}
	return g.Memory.Insert(ctx, table, row)
}

func (g *countingGateway) Update(ctx context.Context, table string, row models.Row, id int64) (models.Row, error) {
	if err := g.injected("update"); err != nil {
		return nil, err
	}
	return g.Memory.Update(ctx, table, row, id)
}

func (g *countingGateway) Delete(ctx context.Context, table string, id int64) error {
	if err := g.injected("delete"); err != nil {
		return err
	}
	return g.Memory.Delete(ctx, table, id)
}

func entity(t *testing.T, name string) models.Entity {
	t.Helper()
	e, err := models.DefaultRegistry().Get(name)
	if err != nil {
		t.Fatalf("entity %s: %v", name, err)
	}
	return e
}

func ids(rows []models.Row) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		id, _ := r.ID()
		out = append(out, id)
	}
	return out
}

func retailerRows() []models.Row {
	return []models.Row{
		{"id": int64(1), "name": "SuperMart", "location": "Lagos"},
		{"id": int64(2), "name": "QuickStop", "location": "Abuja"},
	}
}
