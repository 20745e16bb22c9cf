/*
store.go - Persistence interface for the front-desk engine

PURPOSE:
  Defines the contract between the engine and its database. All five
  components share ONE TxStore; every mutation the engine performs runs
  inside TxStore.WithTx so multi-step operations commit together or not
  at all.

KEY INTERFACES:
  RoomStore:     categories, rooms, compare-and-set room status
  GuestStore:    guests (protected delete)
  BookingStore:  bookings, allocations, overlap queries, room lock
  LedgerStore:   append-only transactions, products, payment methods
  SessionStore:  cash register sessions
  Store:         all of the above
  TxStore:       Store + WithTx

SERIALIZATION CONTRACT:
  WithTx MUST serialize writers that touch the same room. LockRoom is called
  first inside every booking write; after it returns, no other transaction
  can insert an allocation for that room until this one commits or rolls
  back. SQLite gets this from BEGIN IMMEDIATE, the memory store from holding
  its mutex for the whole callback. A store that can't provide this is not
  a valid TxStore.

APPEND-ONLY CONTRACT:
  LedgerStore has AppendTransaction and no update or delete.

UNIQUENESS CONTRACT:
  InsertSession returns ErrSessionAlreadyOpen when the operator already has
  an OPEN session. The store enforces this itself (unique index / keyed map),
  the engine's own check is only the friendly path.

IMPLEMENTATIONS:
  - engine/store/memory.go: in-memory, for tests and demos
  - store/sqlite/sqlite.go: SQLite (WAL, BEGIN IMMEDIATE)
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROOMS & GUESTS
// =============================================================================

type RoomStore interface {
	InsertCategory(ctx context.Context, c RoomCategory) error
	GetCategory(ctx context.Context, id CategoryID) (RoomCategory, error)
	ListCategories(ctx context.Context) ([]RoomCategory, error)

	InsertRoom(ctx context.Context, r Room) error
	GetRoom(ctx context.Context, id RoomID) (Room, error)
	// ListRooms returns rooms ordered by number; status "" means all.
	ListRooms(ctx context.Context, status RoomStatus) ([]Room, error)
	// UpdateRoomStatus sets status to next only if it is still from.
	// Returns ErrConcurrentModification otherwise. Only RoomRegistry calls it.
	UpdateRoomStatus(ctx context.Context, id RoomID, from, next RoomStatus) error
	// DeleteRoom returns ErrProtected while allocations reference the room.
	DeleteRoom(ctx context.Context, id RoomID) error
}

type GuestStore interface {
	InsertGuest(ctx context.Context, g Guest) error
	GetGuest(ctx context.Context, id GuestID) (Guest, error)
	ListGuests(ctx context.Context) ([]Guest, error)
	// DeleteGuest returns ErrProtected while bookings reference the guest.
	DeleteGuest(ctx context.Context, id GuestID) error
}

// =============================================================================
// BOOKINGS & AVAILABILITY
// =============================================================================

// OverlapQuery selects allocations on RoomID whose stay overlaps Stay.
type OverlapQuery struct {
	RoomID  RoomID
	Stay    DateRange
	Exclude AllocationID    // skip this allocation (editing itself)
	Ignore  []BookingStatus // bookings in these statuses release the room
}

// AllocationWindow selects allocations overlapping a date window across all
// rooms, for calendar rendering.
type AllocationWindow struct {
	Window DateRange
	Ignore []BookingStatus
}

// AllocationView is an allocation joined with its booking.
type AllocationView struct {
	Allocation
	BookingStatus BookingStatus
	GuestID       GuestID
}

type BookingStore interface {
	InsertBooking(ctx context.Context, b Booking) error
	InsertAllocation(ctx context.Context, a Allocation) error
	// GetBooking returns the booking with its allocations ordered by start.
	GetBooking(ctx context.Context, id BookingID) (Booking, error)
	// UpdateBookingStatus is a compare-and-set on the status column.
	UpdateBookingStatus(ctx context.Context, id BookingID, from, next BookingStatus) error

	// LockRoom takes the write lock scoped to the room's allocation set.
	// Returns ErrNotFound if the room doesn't exist.
	LockRoom(ctx context.Context, id RoomID) error
	FindOverlapping(ctx context.Context, q OverlapQuery) ([]AllocationView, error)
	ListAllocations(ctx context.Context, w AllocationWindow) ([]AllocationView, error)
}

// =============================================================================
// LEDGER
// =============================================================================

// TransactionFilter narrows ListTransactions. Nil fields match anything.
type TransactionFilter struct {
	SessionID *SessionID
	BookingID *BookingID
	Types     []TransactionType
}

type LedgerStore interface {
	// AppendTransaction is the ONLY write on transactions.
	AppendTransaction(ctx context.Context, tx Transaction) error
	// ListTransactions returns entries ordered by creation time.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)

	InsertProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id ProductID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// AdjustStock adds delta to stock. A result below zero is rejected with
	// ErrInsufficientStock and nothing changes.
	AdjustStock(ctx context.Context, id ProductID, delta int) error

	InsertPaymentMethod(ctx context.Context, m PaymentMethod) error
	GetPaymentMethod(ctx context.Context, id PaymentMethodID) (PaymentMethod, error)
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
}

// =============================================================================
// CASH REGISTER SESSIONS
// =============================================================================

// SessionClose carries the reconciliation figures written by CloseSession.
type SessionClose struct {
	ClosingBalance    decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	Notes             string
	ClosedAt          time.Time
}

type SessionStore interface {
	// InsertSession returns ErrSessionAlreadyOpen if the operator already
	// has an OPEN session.
	InsertSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id SessionID) (Session, error)
	// GetOpenSession returns ErrNotFound when the operator has none.
	GetOpenSession(ctx context.Context, operator OperatorID) (Session, error)
	// CloseSession flips an OPEN session to CLOSED with the reconciliation
	// figures. Returns ErrAlreadyClosed if it was no longer OPEN.
	CloseSession(ctx context.Context, id SessionID, c SessionClose) error
}

// =============================================================================
// COMPOSED STORES
// =============================================================================

type Store interface {
	RoomStore
	GuestStore
	BookingStore
	LedgerStore
	SessionStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
