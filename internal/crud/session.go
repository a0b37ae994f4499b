package crud

import (
	"sync"

	"unifield-backend/internal/models"
)

// SessionState is the state of a create/edit dialog.
type SessionState int

const (
	Closed SessionState = iota
	CreatingNew
	EditingExisting
)

func (s SessionState) String() string {
	switch s {
	case CreatingNew:
		return "creating"
	case EditingExisting:
		return "editing"
	default:
		return "closed"
	}
}

// Session is the create/edit dialog state of a page. At most one is open at
// a time; opening another replaces it.
type Session struct {
	mu         sync.Mutex
	state      SessionState
	row        models.Row
	submitting bool
}

func (s *Session) OpenCreate() {
	s.mu.Lock()
	s.state, s.row = CreatingNew, nil
	s.mu.Unlock()
}

// OpenEdit opens the dialog prefilled with row.
func (s *Session) OpenEdit(row models.Row) {
	s.mu.Lock()
	s.state, s.row = EditingExisting, row.Clone()
	s.mu.Unlock()
}

func (s *Session) Close() {
	s.mu.Lock()
	s.state, s.row = Closed, nil
	s.mu.Unlock()
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Row is the row being edited, nil unless EditingExisting.
func (s *Session) Row() models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.row.Clone()
}

// EditingID returns the id of the row being edited.
func (s *Session) EditingID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != EditingExisting {
		return 0, false
	}
	return s.row.ID()
}

// Defaults are the values the dialog's fields start with.
func (s *Session) Defaults() models.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == EditingExisting {
		return s.row.Clone()
	}
	return models.Row{}
}

// Submitting reports whether a mutation from this session is pending.
func (s *Session) Submitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitting {
		return ErrSubmitInFlight
	}
	s.submitting = true
	return nil
}

func (s *Session) finish() {
	s.mu.Lock()
	s.submitting = false
	s.mu.Unlock()
}
