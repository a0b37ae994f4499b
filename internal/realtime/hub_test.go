package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unifield-backend/internal/gateway"
)

func receive(t *testing.T, sub gateway.Subscription) (gateway.ChangeEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		return ev, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return gateway.ChangeEvent{}, false
	}
}

func TestHub_DispatchFiltersByTableAndKind(t *testing.T) {
	h := NewHub(nil)

	orders, err := h.Subscribe(context.Background(), "orders", gateway.EventInsert)
	require.NoError(t, err)
	defer orders.Close()
	all, err := h.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	defer all.Close()

	h.Dispatch(gateway.ChangeEvent{Table: "products", Kind: gateway.EventInsert, ID: 1})
	h.Dispatch(gateway.ChangeEvent{Table: "orders", Kind: gateway.EventUpdate, ID: 2})
	h.Dispatch(gateway.ChangeEvent{Table: "orders", Kind: gateway.EventInsert, ID: 3})

	ev, ok := receive(t, orders)
	require.True(t, ok)
	assert.Equal(t, gateway.ChangeEvent{Table: "orders", Kind: gateway.EventInsert, ID: 3}, ev)

	ev, _ = receive(t, all)
	assert.Equal(t, int64(2), ev.ID)
	ev, _ = receive(t, all)
	assert.Equal(t, int64(3), ev.ID)
}

func TestHub_HooksSeeEveryEvent(t *testing.T) {
	h := NewHub(nil)
	var seen []string
	h.OnEvent(func(ev gateway.ChangeEvent) { seen = append(seen, ev.Table) })

	h.Dispatch(gateway.ChangeEvent{Table: "retailers", Kind: gateway.EventDelete})
	h.Dispatch(gateway.ChangeEvent{Table: "orders", Kind: gateway.EventInsert})

	assert.Equal(t, []string{"retailers", "orders"}, seen)
}

func TestHub_CloseAndContextCancel(t *testing.T) {
	h := NewHub(nil)

	sub, err := h.Subscribe(context.Background(), "orders")
	require.NoError(t, err)
	require.Equal(t, 1, h.Subscribers())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Zero(t, h.Subscribers())
	_, ok := <-sub.Events()
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err = h.Subscribe(ctx, "orders")
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	// dispatching after close must not panic
	h.Dispatch(gateway.ChangeEvent{Table: "orders", Kind: gateway.EventInsert})
}
