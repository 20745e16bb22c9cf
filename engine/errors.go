/*
errors.go - Centralized error types for the front-desk engine

PURPOSE:
  All business-rule failures in one place. Callers match them with
  errors.Is against the sentinels or errors.As against the structured
  types when they need the details (which booking conflicts, how much
  stock is left).

ERROR CATEGORIES:
  1. Validation  - malformed input (inverted dates, non-positive amounts)
  2. Lifecycle   - illegal booking state change or room transition
  3. Inventory   - overbooking, insufficient stock
  4. Cashier     - session open/closed violations, foreign sessions
  5. Infrastructure - anything the store failed on; retry the whole operation

PROPAGATION:
  Business errors are returned from inside the WithTx callback so the
  transaction rolls back. Anything else escaping WithTx is wrapped in
  InfrastructureError by Engine.withTx.

SEE ALSO:
  - store.go: stores return ErrNotFound, ErrProtected, ErrConcurrentModification
  - api/errors.go: HTTP status mapping
*/
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")

	// ErrOverbooking is returned when a room already has a live allocation
	// overlapping the requested stay.
	ErrOverbooking = errors.New("room already allocated for overlapping dates")

	// ErrInvalidState is returned for an illegal booking lifecycle change.
	ErrInvalidState = errors.New("invalid booking state")

	// ErrInvalidTransition is returned when a room transition's source set
	// doesn't contain the room's current status.
	ErrInvalidTransition = errors.New("invalid room transition")

	ErrClosedSession      = errors.New("cash register session is closed")
	ErrAlreadyClosed      = errors.New("cash register session already closed")
	ErrSessionAlreadyOpen = errors.New("operator already has an open session")

	// ErrForeignSession is returned when an operator acts on a register
	// session opened by someone else.
	ErrForeignSession = errors.New("cash register session belongs to another operator")

	// ErrNoOpenSession is returned when an operation needs the operator's
	// open register and there is none.
	ErrNoOpenSession = errors.New("operator has no open session")

	ErrInsufficientStock = errors.New("insufficient stock")

	ErrNotFound = errors.New("not found")

	// ErrProtected is returned when deleting a room or guest still
	// referenced by bookings.
	ErrProtected = errors.New("record is referenced and cannot be deleted")

	// ErrConcurrentModification is returned when a compare-and-set update
	// finds the row changed underneath it.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInfrastructure marks persistence failures (lock timeout, lost
	// connection). The operation left nothing behind and may be retried.
	ErrInfrastructure = errors.New("infrastructure failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Conflict is one allocation blocking a requested stay.
type Conflict struct {
	AllocationID  AllocationID
	BookingID     BookingID
	BookingStatus BookingStatus
	GuestID       GuestID
	RoomID        RoomID
	Stay          DateRange
}

// OverbookingError names the bookings that already hold the room.
type OverbookingError struct {
	RoomID    RoomID
	Stay      DateRange
	Conflicts []Conflict
}

func (e *OverbookingError) Error() string {
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, string(c.BookingID))
	}
	return fmt.Sprintf("room %s is already allocated for %s by booking(s) %s",
		e.RoomID, e.Stay, strings.Join(ids, ", "))
}

func (e *OverbookingError) Unwrap() error { return ErrOverbooking }

// ConflictingBookings returns the ids of the blocking bookings.
func (e *OverbookingError) ConflictingBookings() []BookingID {
	ids := make([]BookingID, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.BookingID
	}
	return ids
}

type InvalidStateError struct {
	BookingID BookingID
	Status    BookingStatus
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s booking %s in status %s", e.Operation, e.BookingID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

type InvalidTransitionError struct {
	RoomID     RoomID
	From       RoomStatus
	Transition RoomTransition
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("room %s: transition %s not allowed from %s", e.RoomID, e.Transition, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type InsufficientStockError struct {
	ProductID ProductID
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, only %d left",
		e.Name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// SessionOwnerError names the operator who owns the session.
type SessionOwnerError struct {
	SessionID SessionID
	Owner     OperatorID
	Operator  OperatorID
}

func (e *SessionOwnerError) Error() string {
	return fmt.Sprintf("session %s is operated by %s, not %s", e.SessionID, e.Owner, e.Operator)
}

func (e *SessionOwnerError) Unwrap() error { return ErrForeignSession }

// InfrastructureError wraps a store failure so callers can tell it apart
// from a business-rule rejection.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsBusinessError reports whether err is one of the engine's business-rule
// failures (including not-found).
func IsBusinessError(err error) bool {
	return IsClientError(err) || IsNotFound(err)
}

// IsClientError returns true if the request itself was rejected by a rule.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverbooking) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrClosedSession) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrSessionAlreadyOpen) ||
		errors.Is(err, ErrForeignSession) ||
		errors.Is(err, ErrNoOpenSession) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrProtected)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable returns true if the whole operation may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrInfrastructure)
}

func notFound(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, ErrNotFound)
}

func positive(field string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return &ValidationError{Field: field, Message: "must be greater than zero"}
	}
	return nil
}
