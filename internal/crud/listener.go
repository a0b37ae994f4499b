package crud

import (
	"context"
	"log"
	"sync"

	"unifield-backend/internal/gateway"
)

type ListenerState int

const (
	Unsubscribed ListenerState = iota
	Subscribed
)

func (s ListenerState) String() string {
	if s == Subscribed {
		return "subscribed"
	}
	return "unsubscribed"
}

// Listener refetches a table whenever the gateway reports a change to it.
// Each event triggers exactly one load; bursts are not coalesced.
type Listener struct {
	gw    gateway.Gateway
	table string
	load  func(context.Context) error

	mu     sync.Mutex
	sub    gateway.Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(gw gateway.Gateway, table string, load func(context.Context) error) *Listener {
	return &Listener{gw: gw, table: table, load: load}
}

// Subscribe opens the change subscription. Loads triggered by events run with
// a context derived from ctx. Calling Subscribe while subscribed does nothing.
func (l *Listener) Subscribe(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	sub, err := l.gw.Subscribe(loopCtx, l.table, gateway.AllEvents...)
	if err != nil {
		cancel()
		return wrap("subscribe", l.table, err)
	}
	l.sub, l.cancel, l.done = sub, cancel, make(chan struct{})
	go l.run(loopCtx, sub, l.done)
	log.Printf("[Realtime] subscribed to %s changes", l.table)
	return nil
}

func (l *Listener) run(ctx context.Context, sub gateway.Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Events() {
		if ctx.Err() != nil {
			break
		}
		if err := l.load(ctx); err != nil {
			log.Printf("[Realtime] refetch of %s after %s failed: %v", l.table, ev.Kind, err)
		}
	}

	// The feed ended on its own; there is no reconnect.
	l.mu.Lock()
	if l.sub == sub {
		l.sub = nil
		l.cancel()
	}
	l.mu.Unlock()
}

// Unsubscribe closes the subscription and waits for the refetch loop to stop.
func (l *Listener) Unsubscribe() error {
	l.mu.Lock()
	sub, cancel, done := l.sub, l.cancel, l.done
	l.sub = nil
	l.mu.Unlock()
	if sub == nil {
		return nil
	}

	cancel()
	err := sub.Close()
	<-done
	log.Printf("[Realtime] unsubscribed from %s changes", l.table)
	return err
}

// Done is closed when the current refetch loop stops, either because the
// feed ended or because of Unsubscribe. Before the first Subscribe it is
// already closed.
func (l *Listener) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.done
}

func (l *Listener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return Subscribed
	}
	return Unsubscribed
}
