package crud

import (
	"context"
	"errors"
	"log"
	"sync"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

// Status of the last fetch of a page.
type Status int

const (
	Loading Status = iota
	Error
	Ready
)

func (s Status) String() string {
	switch s {
	case Error:
		return "error"
	case Ready:
		return "ready"
	default:
		return "loading"
	}
}

// Page is one management screen: a store, an edit session, a dispatcher, the
// search box and, for realtime entities, a change listener.
type Page struct {
	entity     models.Entity
	store      *Store
	session    *Session
	dispatcher *Dispatcher
	listener   *Listener

	mu       sync.RWMutex
	status   Status
	loadErr  error
	mutErr   error
	query    string
	closed   bool
	inflight int
}

// NewPage wires the components for entity. Nothing is fetched until Open or
// Load is called.
func NewPage(gw gateway.Gateway, entity models.Entity) *Page {
	p := &Page{
		entity:  entity,
		store:   NewStore(gw, entity),
		session: &Session{},
		status:  Loading,
	}
	p.dispatcher = NewDispatcher(gw, entity, p.store, p.session)
	p.dispatcher.report = p.recordMutation
	if entity.Realtime {
		p.listener = NewListener(gw, entity.Table, p.Load)
	}
	return p
}

// Open performs the initial load and, on realtime pages, subscribes to
// changes. The subscription lives until Close.
func (p *Page) Open(ctx context.Context) error {
	loadErr := p.Load(ctx)
	if p.listener != nil {
		if err := p.listener.Subscribe(ctx); err != nil {
			log.Printf("[Page:%s] realtime subscribe failed: %v", p.entity.Name, err)
			p.recordMutation(err)
			if loadErr == nil {
				return err
			}
		}
	}
	return loadErr
}

// Load refetches the store and updates the page status.
func (p *Page) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.inflight++
	p.status = Loading
	p.mu.Unlock()

	err := p.store.Load(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight--
	if p.closed {
		return nil
	}
	if err != nil {
		log.Printf("[Page:%s] load failed: %v", p.entity.Name, err)
		p.status, p.loadErr = Error, err
		return err
	}
	p.loadErr = nil
	if p.inflight == 0 {
		p.status = Ready
	}
	return nil
}

func (p *Page) recordMutation(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.mutErr = err
}

// Close releases the realtime subscription and detaches the page. Requests
// that complete afterwards leave no trace.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.store.detach()
	if p.listener != nil {
		return p.listener.Unsubscribe()
	}
	return nil
}

// Status is exactly one of Loading, Error or Ready.
func (p *Page) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Err is the error to show: the load error while in Error, otherwise the
// last failed mutation, if any.
func (p *Page) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status == Error {
		return p.loadErr
	}
	return p.mutErr
}

// SetQuery sets the search box text.
func (p *Page) SetQuery(q string) {
	p.mu.Lock()
	p.query = q
	p.mu.Unlock()
}

func (p *Page) Query() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.query
}

// Filtered projects the current rows through the current query.
func (p *Page) Filtered() []models.Row {
	return Project(p.store.Rows(), p.Query(), p.entity.SearchFields)
}

func (p *Page) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Page) Entity() models.Entity { return p.entity }
func (p *Page) Store() *Store { return p.store }
func (p *Page) Session() *Session { return p.session }
func (p *Page) Dispatcher() *Dispatcher { return p.dispatcher }
func (p *Page) Listener() *Listener { return p.listener }
func (p *Page) Rows() []models.Row { return p.store.Rows() }

// Submit dispatches the open edit session: an update when editing an
// existing row, a create otherwise.
func (p *Page) Submit(ctx context.Context, fields models.Row) (models.Row, error) {
	if id, ok := p.session.EditingID(); ok {
		return p.dispatcher.Update(ctx, id, fields)
	}
	return p.dispatcher.Create(ctx, fields)
}

// IsValidation reports whether err is a required-field failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
