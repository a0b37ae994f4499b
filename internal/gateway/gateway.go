// Package gateway defines the Data Gateway: table storage, the current user
// and per-table change notifications. Postgres backs it on the server, Client
// reaches that server over HTTP, and Memory keeps everything in process.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"unifield-backend/internal/models"
)

// Gateway is the storage surface every management screen works against.
type Gateway interface {
	Select(ctx context.Context, table string, q Query) (*Result, error)
	Insert(ctx context.Context, table string, row models.Row) (models.Row, error)
	Update(ctx context.Context, table string, row models.Row, id int64) (models.Row, error)
	Delete(ctx context.Context, table string, id int64) error
	Subscribe(ctx context.Context, table string, kinds ...EventKind) (Subscription, error)
	CurrentUser(ctx context.Context) (string, bool)
}

// Filter is an equality condition on one column.
type Filter struct {
	Column string
	Value  any
}

// Order sorts a select by one column.
type Order struct {
	Column    string
	Ascending bool
}

// Range selects rows From..To inclusive, zero-based.
type Range struct {
	From int
	To   int
}

// Limit is the number of rows the range covers.
func (r Range) Limit() int {
	return r.To - r.From + 1
}

type Query struct {
	Filters []Filter
	OrderBy *Order
	Range   *Range
	// Count asks for the exact number of matching rows, ignoring Range.
	Count bool
}

// Eq appends an equality filter.
func (q Query) Eq(column string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Value: value})
	return q
}

// Result holds the selected rows. Count is the exact match count when the
// query asked for it and -1 otherwise.
type Result struct {
	Rows  []models.Row `json:"rows"`
	Count int          `json:"count"`
}

// EventKind is the type of change carried by a notification.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// AllEvents is insert, update and delete.
var AllEvents = []EventKind{EventInsert, EventUpdate, EventDelete}

// ParseEventKinds parses a comma separated list; "" and "*" mean all kinds.
func ParseEventKinds(s string) ([]EventKind, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return AllEvents, nil
	}
	var kinds []EventKind
	for _, part := range strings.Split(s, ",") {
		k := EventKind(strings.ToLower(strings.TrimSpace(part)))
		switch k {
		case EventInsert, EventUpdate, EventDelete:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown event kind %q", part)
		}
	}
	return kinds, nil
}

// ChangeEvent is one change notification for a table.
type ChangeEvent struct {
	Table string    `json:"table"`
	Kind  EventKind `json:"kind"`
	ID    int64     `json:"id,omitempty"`
}

// Subscription delivers change events until Close is called. The events
// channel is closed once the subscription ends.
type Subscription interface {
	Events() <-chan ChangeEvent
	Close() error
}

var (
	ErrNotFound      = errors.New("row not found")
	ErrConflict      = errors.New("version mismatch")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrUnauthorized  = errors.New("not authenticated")
	ErrEmptyRow      = errors.New("row has no fields")
	ErrInvalidValue  = errors.New("invalid value")
	ErrClosed        = errors.New("subscription closed")
)

// StatusError is a non-2xx answer from the gateway service that does not map
// to one of the sentinel errors.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.Status, e.Message)
}

// wants reports whether kind is in kinds.
func wants(kinds []EventKind, kind EventKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
