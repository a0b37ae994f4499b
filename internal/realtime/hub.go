package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/metrics"
)

// Channel is the NOTIFY channel the table triggers publish on.
const Channel = "table_changes"

// Hub fans Postgres change notifications out to per-table subscribers.
type Hub struct {
	pool    *pgxpool.Pool
	channel string

	mu    sync.RWMutex
	subs  map[string]*subscription
	hooks []func(gateway.ChangeEvent)
}

func NewHub(pool *pgxpool.Pool) *Hub {
	return &Hub{
		pool:    pool,
		channel: Channel,
		subs:    make(map[string]*subscription),
	}
}

// OnEvent registers a callback run for every notification before it is
// delivered to subscribers. Register hooks before Run.
func (h *Hub) OnEvent(fn func(gateway.ChangeEvent)) {
	h.mu.Lock()
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// Run listens until ctx is cancelled, reconnecting after connection loss.
func (h *Hub) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := h.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[Realtime] listener stopped: %v (retrying in %s)", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (h *Hub) listen(ctx context.Context) error {
	conn, err := h.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{h.channel}.Sanitize()); err != nil {
		return err
	}
	log.Printf("[Realtime] listening on channel %s", h.channel)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var ev gateway.ChangeEvent
		if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
			log.Printf("[Realtime] bad payload %q: %v", n.Payload, err)
			continue
		}
		h.Dispatch(ev)
	}
}

// Dispatch delivers ev to hooks and matching subscribers. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Dispatch(ev gateway.ChangeEvent) {
	metrics.RealtimeEventsTotal.WithLabelValues(ev.Table, string(ev.Kind)).Inc()

	h.mu.RLock()
	hooks := h.hooks
	var targets []*subscription
	for _, s := range h.subs {
		if s.table == ev.Table && wantsKind(s.kinds, ev.Kind) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, fn := range hooks {
		fn(ev)
	}
	for _, s := range targets {
		if !s.send(ev) {
			log.Printf("[Realtime] subscriber %s is behind, dropped %s on %s", s.id, ev.Kind, ev.Table)
		}
	}
}

// Subscribe implements gateway.Feed. The subscription is closed when ctx is
// done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, table string, kinds ...gateway.EventKind) (gateway.Subscription, error) {
	if len(kinds) == 0 {
		kinds = gateway.AllEvents
	}
	s := &subscription{
		id:     uuid.NewString(),
		table:  table,
		kinds:  kinds,
		events: make(chan gateway.ChangeEvent, 32),
		hub:    h,
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	metrics.RealtimeSubscribers.Inc()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

// Subscribers is the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; !ok {
		return false
	}
	delete(h.subs, id)
	return true
}

type subscription struct {
	id     string
	table  string
	kinds  []gateway.EventKind
	events chan gateway.ChangeEvent
	hub    *Hub

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (s *subscription) Events() <-chan gateway.ChangeEvent { return s.events }

func (s *subscription) send(ev gateway.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *subscription) Close() error {
	if s.hub.remove(s.id) {
		metrics.RealtimeSubscribers.Dec()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.events)
	return nil
}

func wantsKind(kinds []gateway.EventKind, kind gateway.EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
