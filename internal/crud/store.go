package crud

import (
	"context"
	"sync"

	"unifield-backend/internal/gateway"
	"unifield-backend/internal/models"
)

// Store mirrors one entity table for a single page. Rows are unique by id and
// kept in fetch order.
type Store struct {
	gw     gateway.Gateway
	entity models.Entity

	mu       sync.RWMutex
	rows     []models.Row
	total    int
	page     int
	size     int
	detached bool
}

// NewStore creates an empty store. Entities with a page size start on page 1.
func NewStore(gw gateway.Gateway, entity models.Entity) *Store {
	return &Store{
		gw:     gw,
		entity: entity,
		page:   1,
		size:   entity.PageSize,
	}
}

// SetPage selects the page Load fetches. A size of 0 fetches every row.
func (s *Store) SetPage(number, size int) {
	if number < 1 {
		number = 1
	}
	if size < 0 {
		size = 0
	}
	s.mu.Lock()
	s.page, s.size = number, size
	s.mu.Unlock()
}

// Page returns the current page number and size.
func (s *Store) Page() (number, size int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page, s.size
}

// Pages is the number of pages at the current size, at least 1.
func (s *Store) Pages() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.size == 0 || s.total <= 0 {
		return 1
	}
	return (s.total + s.size - 1) / s.size
}

func (s *Store) query() gateway.Query {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var q gateway.Query
	if s.entity.OrderBy != "" {
		q.OrderBy = &gateway.Order{Column: s.entity.OrderBy, Ascending: !s.entity.Descending}
	}
	if s.size > 0 {
		q.Range = &gateway.Range{From: (s.page - 1) * s.size, To: s.page*s.size - 1}
		q.Count = true
	}
	return q
}

// Load replaces the contents with a fresh select. On failure the contents are
// left as they were.
func (s *Store) Load(ctx context.Context) error {
	res, err := s.gw.Select(ctx, s.entity.Table, s.query())
	if err != nil {
		return wrap("select", s.entity.Table, err)
	}

	rows := make([]models.Row, 0, len(res.Rows))
	seen := make(map[int64]bool, len(res.Rows))
	skipped := 0
	for _, r := range res.Rows {
		if s.entity.SkipIncomplete && len(missingFields(r, s.entity.RequiredFields, true)) > 0 {
			skipped++
			continue
		}
		if id, ok := r.ID(); ok {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		rows = append(rows, r)
	}
	total := res.Count - skipped
	if res.Count < 0 {
		total = len(rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return nil
	}
	s.rows = rows
	s.total = total
	return nil
}

// UpsertLocal replaces the row with the same id, or appends it.
func (s *Store) UpsertLocal(row models.Row) {
	id, ok := row.ID()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return
	}
	for i, r := range s.rows {
		if rid, ok := r.ID(); ok && rid == id {
			s.rows[i] = row
			return
		}
	}
	s.rows = append(s.rows, row)
	s.total++
}

// RemoveLocal drops the row with id. It reports whether a row was removed.
func (s *Store) RemoveLocal(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detached {
		return false
	}
	for i, r := range s.rows {
		if rid, ok := r.ID(); ok && rid == id {
			s.rows = append(s.rows[:i:i], s.rows[i+1:]...)
			if s.total > 0 {
				s.total--
			}
			return true
		}
	}
	return false
}

// Rows returns a copy of the current contents.
func (s *Store) Rows() []models.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Row, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Get returns the row with id.
func (s *Store) Get(id int64) (models.Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rows {
		if rid, ok := r.ID(); ok && rid == id {
			return r, true
		}
	}
	return nil, false
}

// Total is the exact row count reported by the last paged load, or the
// number of rows held when the store is not paged.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// detach makes every later write a no-op.
func (s *Store) detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}
