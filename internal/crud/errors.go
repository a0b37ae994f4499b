package crud

import (
	"errors"
	"fmt"
	"strings"

	"unifield-backend/internal/gateway"
)

var (
	// ErrNotAuthenticated is returned when a mutation needs the current user
	// and there is none.
	ErrNotAuthenticated = errors.New("user not authenticated")

	// ErrConflict is returned when a versioned row was changed since it was read.
	ErrConflict = gateway.ErrConflict

	// ErrSubmitInFlight is returned when a mutation is dispatched while the
	// previous one from the same edit session is still pending.
	ErrSubmitInFlight = errors.New("a submit is already in progress")
)

// GatewayError wraps a failed gateway call.
type GatewayError struct {
	Op    string
	Table string
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ValidationError lists required fields that were left empty.
type ValidationError struct {
	Entity string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: required fields missing: %s", e.Entity, strings.Join(e.Fields, ", "))
}

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &GatewayError{Op: op, Table: table, Err: err}
}
