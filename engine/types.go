/*
Package engine provides the front-desk reservation and ledger core.

PURPOSE:
  This package owns every rule in the hotel front desk that has a real
  invariant behind it: rooms cannot be double-booked, room and booking
  lifecycles move only along declared transitions, and money is recorded
  in an append-only ledger that must reconcile at the end of each shift.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: typed string IDs so a RoomID can't be passed as a GuestID
  - Date / DateRange: calendar days and half-open stays [start, end)
  - Room, Booking, Allocation: the physical and contractual side
  - Transaction, Session: the financial side

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, never float64
  2. Derivation: balances are computed from the ledger, never stored
  3. One write path: all mutations run inside TxStore.WithTx

SEE ALSO:
  - store.go: persistence contract
  - room.go, booking.go: state machines
  - ledger.go, cashier.go: financial side
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RoomID string
type CategoryID string
type GuestID string
type BookingID string
type AllocationID string
type TransactionID string
type SessionID string
type ProductID string
type PaymentMethodID string

// OperatorID identifies the front-desk employee running a cash register.
// Authentication is outside the engine; callers pass whatever identity
// their auth layer resolved.
type OperatorID string

// =============================================================================
// DATE - A calendar day, always UTC midnight
// =============================================================================

const dateLayout = "2006-01-02"

type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AddDays(n int) Date        { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) IsZero() bool              { return d.t.IsZero() }
func (d Date) Time() time.Time           { return d.t }
func (d Date) String() string            { return d.t.Format(dateLayout) }

// DaysUntil returns the number of nights from d to o.
func (d Date) DaysUntil(o Date) int {
	return int(o.t.Sub(d.t).Hours() / 24)
}

// =============================================================================
// DATE RANGE - Half-open stay interval
// =============================================================================

// DateRange is the half-open interval [Start, End). A guest checking out on
// day X and another checking in on day X do not overlap.
type DateRange struct {
	Start Date
	End   Date
}

func NewDateRange(start, end Date) DateRange {
	return DateRange{Start: start, End: end}
}

// Validate checks Start < End.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return &ValidationError{Field: "dates", Message: "start and end dates are required"}
	}
	if !r.Start.Before(r.End) {
		return &ValidationError{
			Field:   "end_date",
			Message: fmt.Sprintf("end date %s must be after start date %s", r.End, r.Start),
		}
	}
	return nil
}

// Overlaps reports whether two half-open ranges share at least one night.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether day falls on a night of the range.
func (r DateRange) Contains(day Date) bool {
	return !day.Before(r.Start) && day.Before(r.End)
}

func (r DateRange) Nights() int { return r.Start.DaysUntil(r.End) }

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + ")"
}

// =============================================================================
// ROOMS
// =============================================================================

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "AVAILABLE"
	RoomOccupied    RoomStatus = "OCCUPIED"
	RoomDirty       RoomStatus = "DIRTY"
	RoomMaintenance RoomStatus = "MAINTENANCE"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomOccupied, RoomDirty, RoomMaintenance:
		return true
	}
	return false
}

// RoomCategory is immutable reference data. BasePrice seeds the agreed
// price of new allocations.
type RoomCategory struct {
	ID          CategoryID
	Name        string
	Description string
	MaxAdults   int
	MaxChildren int
	BasePrice   decimal.Decimal
	CreatedAt   time.Time
}

// Room is a physical room. Status is read-only outside RoomRegistry: the
// store only exposes a compare-and-set update and the registry is its only
// caller.
type Room struct {
	ID         RoomID
	Number     string
	Floor      string
	CategoryID CategoryID
	Status     RoomStatus
	CreatedAt  time.Time
}

// =============================================================================
// GUESTS
// =============================================================================

type Guest struct {
	ID        GuestID
	Name      string
	Email     string
	Phone     string
	Document  string // national id (CPF)
	Passport  string
	Address   string
	City      string
	State     string
	Country   string
	CreatedAt time.Time
}

// =============================================================================
// BOOKINGS
// =============================================================================

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCheckedIn BookingStatus = "CHECKED_IN"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCanceled  BookingStatus = "CANCELED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCompleted, BookingCanceled:
		return true
	}
	return false
}

// Booking is the financial contract. Money owed is never stored on it;
// see Balance.
type Booking struct {
	ID          BookingID
	GuestID     GuestID
	Status      BookingStatus
	Notes       string
	CreatedAt   time.Time
	Allocations []Allocation
}

// PrimaryAllocation returns the allocation used as the booking's room in
// the single-room flows (check-in, check-out).
func (b Booking) PrimaryAllocation() (Allocation, bool) {
	if len(b.Allocations) == 0 {
		return Allocation{}, false
	}
	return b.Allocations[0], true
}

// Allocation reserves one room for one booking over Stay. AgreedPrice is
// frozen at creation.
type Allocation struct {
	ID          AllocationID
	BookingID   BookingID
	RoomID      RoomID
	Stay        DateRange
	AgreedPrice decimal.Decimal
}

// =============================================================================
// FINANCIAL REFERENCE DATA
// =============================================================================

type PaymentMethod struct {
	ID        PaymentMethodID
	Name      string
	Slug      string
	Active    bool
	CreatedAt time.Time
}

type Product struct {
	ID        ProductID
	Name      string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	CreatedAt time.Time
}

// =============================================================================
// TRANSACTIONS - Immutable ledger entries
// =============================================================================

type TransactionType string

const (
	TxIncome      TransactionType = "INCOME"      // payment received
	TxExpense     TransactionType = "EXPENSE"     // cash leaving the register
	TxRefund      TransactionType = "REFUND"      // money returned to a guest
	TxConsumption TransactionType = "CONSUMPTION" // charge added to a booking, no cash moves
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxIncome, TxExpense, TxRefund, TxConsumption:
		return true
	}
	return false
}

// IsOutflow reports whether entries of this type are stored negative.
func (t TransactionType) IsOutflow() bool {
	return t == TxExpense || t == TxRefund
}

type Transaction struct {
	ID              TransactionID
	SessionID       *SessionID
	BookingID       *BookingID
	PaymentMethodID *PaymentMethodID
	ProductID       *ProductID
	Type            TransactionType
	Amount          decimal.Decimal // signed
	Description     string
	CreatedAt       time.Time
}

// =============================================================================
// CASH REGISTER SESSIONS
// =============================================================================

type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

// Session is one operator's shift at the cash register. The closing fields
// are nil until CloseSession stamps them.
type Session struct {
	ID                SessionID
	OperatorID        OperatorID
	Status            SessionStatus
	OpeningBalance    decimal.Decimal
	ClosingBalance    *decimal.Decimal // declared by the operator
	CalculatedBalance *decimal.Decimal
	Difference        *decimal.Decimal // declared - calculated
	Notes             string
	OpenedAt          time.Time
	ClosedAt          *time.Time
}

func (s Session) IsOpen() bool { return s.Status == SessionOpen }
