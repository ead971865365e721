package sale

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a sale order does not exist.
	ErrNotFound = errors.New("sale order not found")
	// ErrInvalidState is returned for transitions the order state forbids.
	ErrInvalidState = errors.New("invalid sale order state")
	// ErrExpectedSingleton is returned when an operation defined on exactly
	// one line receives zero or several.
	ErrExpectedSingleton = errors.New("expected singleton")
	// ErrMissingLocation is returned when a field service order is needed but
	// the sale order has no service location.
	ErrMissingLocation = errors.New("sale order has no field service location")
	// ErrInvalidQuantity is returned for negative line quantities.
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// SingletonError reports how many records were received where one was required.
type SingletonError struct {
	Count int
}

func (e *SingletonError) Error() string {
	return fmt.Sprintf("expected singleton: got %d records", e.Count)
}

func (e *SingletonError) Unwrap() error { return ErrExpectedSingleton }

// StateError reports an action refused by the order's current state.
type StateError struct {
	OrderID string
	State   State
	Action  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s sale order %s in state %q", e.Action, e.OrderID, e.State)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// MissingLocationError names the order lacking a service location.
type MissingLocationError struct {
	OrderID string
}

func (e *MissingLocationError) Error() string {
	return fmt.Sprintf("sale order %s: no field service location set", e.OrderID)
}

func (e *MissingLocationError) Unwrap() error { return ErrMissingLocation }
