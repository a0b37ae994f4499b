package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"unifield-backend/internal/models"
)

// Memory is an in-process Gateway. Rows are kept per table in insertion order
// and ids are assigned from a per-table sequence. Every mutation is published
// to the table's subscribers.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	user   string
	subs   map[string]*memSubscription
}

type memTable struct {
	rows      []models.Row
	nextID    int64
	versioned bool
}

// NewMemory creates an empty in-memory gateway with the given tables.
// Selecting from a table that was never declared or seeded fails with
// ErrUnknownTable, like the database does.
func NewMemory(tables ...string) *Memory {
	m := &Memory{
		tables: make(map[string]*memTable),
		subs:   make(map[string]*memSubscription),
	}
	for _, t := range tables {
		m.tables[t] = &memTable{nextID: 1}
	}
	return m
}

// SetUser sets the id CurrentUser reports. An empty id means signed out.
func (m *Memory) SetUser(id string) {
	m.mu.Lock()
	m.user = id
	m.mu.Unlock()
}

// Seed appends rows to a table without publishing events. Rows without an id
// get the next one from the sequence.
func (m *Memory) Seed(table string, rows ...models.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(table)
	for _, r := range rows {
		r = r.Clone()
		if id, ok := r.ID(); ok {
			r[models.IDField] = id
			if id >= t.nextID {
				t.nextID = id + 1
			}
		} else {
			r[models.IDField] = t.nextID
			t.nextID++
		}
		t.rows = append(t.rows, r)
	}
}

// Versioned makes inserts into table start a version column at 1.
func (m *Memory) Versioned(tables ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range tables {
		m.table(name).versioned = true
	}
}

func (m *Memory) table(name string) *memTable {
	t, ok := m.tables[name]
	if !ok {
		t = &memTable{nextID: 1}
		m.tables[name] = t
	}
	return t
}

func (m *Memory) lookup(name string) (*memTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

func (m *Memory) Select(ctx context.Context, table string, q Query) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.lookup(table)
	if err != nil {
		return nil, err
	}

	var matched []models.Row
	for _, r := range t.rows {
		if matches(r, q.Filters) {
			matched = append(matched, r.Clone())
		}
	}

	if q.OrderBy != nil {
		col, asc := q.OrderBy.Column, q.OrderBy.Ascending
		sort.SliceStable(matched, func(i, j int) bool {
			c := compare(matched[i][col], matched[j][col])
			if asc {
				return c < 0
			}
			return c > 0
		})
	}

	res := &Result{Count: -1}
	if q.Count {
		res.Count = len(matched)
	}
	if q.Range != nil {
		from, to := q.Range.From, q.Range.To+1
		if from > len(matched) {
			from = len(matched)
		}
		if to > len(matched) {
			to = len(matched)
		}
		if from < 0 {
			from = 0
		}
		if to < from {
			to = from
		}
		matched = matched[from:to]
	}
	if matched == nil {
		matched = []models.Row{}
	}
	res.Rows = matched
	return res, nil
}

func (m *Memory) Insert(ctx context.Context, table string, row models.Row) (models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(row.Without(models.IDField)) == 0 {
		return nil, ErrEmptyRow
	}

	m.mu.Lock()
	t, err := m.lookup(table)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	stored := row.Without(models.IDField)
	stored[models.IDField] = t.nextID
	if _, ok := stored[models.VersionField]; ok || t.versioned {
		stored[models.VersionField] = int64(1)
	}
	t.nextID++
	t.rows = append(t.rows, stored)
	id, _ := stored.ID()
	out := stored.Clone()
	m.mu.Unlock()

	m.publish(ChangeEvent{Table: table, Kind: EventInsert, ID: id})
	return out, nil
}

// Update merges row into the stored row. When the stored row has a version
// and row carries one, the update only applies if they match.
func (m *Memory) Update(ctx context.Context, table string, row models.Row, id int64) (models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	patch := row.Without(models.IDField)
	if len(patch) == 0 {
		return nil, ErrEmptyRow
	}

	m.mu.Lock()
	t, err := m.lookup(table)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	idx := indexOf(t.rows, id)
	if idx < 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
	}
	current := t.rows[idx]
	if v, ok := current[models.VersionField]; ok {
		have, _ := models.ToID(v)
		if sent, ok := patch[models.VersionField]; ok {
			if want, _ := models.ToID(sent); want != have {
				m.mu.Unlock()
				return nil, fmt.Errorf("%w: %s/%d", ErrConflict, table, id)
			}
		}
		patch[models.VersionField] = have + 1
	}
	updated := current.Merge(patch)
	t.rows[idx] = updated
	out := updated.Clone()
	m.mu.Unlock()

	m.publish(ChangeEvent{Table: table, Kind: EventUpdate, ID: id})
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, table string, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	t, err := m.lookup(table)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	idx := indexOf(t.rows, id)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s/%d", ErrNotFound, table, id)
	}
	t.rows = append(t.rows[:idx], t.rows[idx+1:]...)
	m.mu.Unlock()

	m.publish(ChangeEvent{Table: table, Kind: EventDelete, ID: id})
	return nil
}

func (m *Memory) CurrentUser(ctx context.Context) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user, m.user != ""
}

// Subscribe registers for change events on table.
func (m *Memory) Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(kinds) == 0 {
		kinds = AllEvents
	}
	sub := &memSubscription{
		id:     uuid.NewString(),
		table:  table,
		kinds:  kinds,
		events: make(chan ChangeEvent, 64),
		owner:  m,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(table); err != nil {
		return nil, err
	}
	m.subs[sub.id] = sub
	return sub, nil
}

// Publish delivers an event to the table's subscribers, as if another client
// had changed the table.
func (m *Memory) Publish(ev ChangeEvent) {
	m.publish(ev)
}

// Subscribers returns the number of open subscriptions.
func (m *Memory) Subscribers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Memory) publish(ev ChangeEvent) {
	m.mu.RLock()
	var targets []*memSubscription
	for _, s := range m.subs {
		if s.table == ev.Table && wants(s.kinds, ev.Kind) {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		s.deliver(ev)
	}
}

type memSubscription struct {
	id     string
	table  string
	kinds  []EventKind
	events chan ChangeEvent
	owner  *Memory

	mu     sync.Mutex
	closed bool
}

func (s *memSubscription) Events() <-chan ChangeEvent { return s.events }

func (s *memSubscription) deliver(ev ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	case <-time.After(time.Second):
	}
}

func (s *memSubscription) Close() error {
	s.owner.mu.Lock()
	delete(s.owner.subs, s.id)
	s.owner.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

func indexOf(rows []models.Row, id int64) int {
	for i, r := range rows {
		if rid, ok := r.ID(); ok && rid == id {
			return i
		}
	}
	return -1
}

func matches(r models.Row, filters []Filter) bool {
	for _, f := range filters {
		if r.String(f.Column) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

// compare orders numbers numerically and everything else as text.
func compare(a, b any) int {
	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil && a != nil && b != nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
