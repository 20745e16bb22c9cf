/*
booking.go - Booking lifecycle

PURPOSE:
  Owns the Booking/Allocation aggregate. Every operation here is a single
  unit of work: the booking status change, the allocation insert and the
  room transition it drives either all commit or none do.

STATE MACHINE:
  confirm    PENDING                        -> CONFIRMED
  check_in   CONFIRMED                      -> CHECKED_IN   (room: check_in)
  check_out  PENDING, CONFIRMED, CHECKED_IN -> COMPLETED    (room: mark_as_dirty)
  cancel     PENDING, CONFIRMED             -> CANCELED

  COMPLETED and CANCELED are terminal. Check-out from PENDING or CONFIRMED
  exists because the desk sometimes closes out a stay that was never
  formally checked in (walk-in paid at the counter, no-show settled).

OVERBOOKING:
  CreateBooking locks the room's allocation set before reading it, so two
  desks booking the same room for overlapping nights serialize: the second
  one sees the first one's allocation and gets an OverbookingError.

SEE ALSO:
  - availability.go: conflict query and release policy
  - room.go: room transitions driven from here
  - balance.go: what CheckOut reports as still owed
*/
package engine

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BOOKING STATE MACHINE
// =============================================================================

type BookingOperation string

const (
	OpConfirm  BookingOperation = "confirm"
	OpCheckIn  BookingOperation = "check_in"
	OpCheckOut BookingOperation = "check_out"
	OpCancel   BookingOperation = "cancel"
)

type bookingEdge struct {
	from   []BookingStatus
	target BookingStatus
}

var bookingTransitions = map[BookingOperation]bookingEdge{
	OpConfirm:  {from: []BookingStatus{BookingPending}, target: BookingConfirmed},
	OpCheckIn:  {from: []BookingStatus{BookingConfirmed}, target: BookingCheckedIn},
	OpCheckOut: {from: []BookingStatus{BookingPending, BookingConfirmed, BookingCheckedIn}, target: BookingCompleted},
	OpCancel:   {from: []BookingStatus{BookingPending, BookingConfirmed}, target: BookingCanceled},
}

// NextBookingStatus returns the status b moves to under op, or an
// InvalidStateError.
func NextBookingStatus(b Booking, op BookingOperation) (BookingStatus, error) {
	edge, ok := bookingTransitions[op]
	if !ok {
		return "", &ValidationError{Field: "operation", Message: "unknown booking operation " + string(op)}
	}
	for _, s := range edge.from {
		if s == b.Status {
			return edge.target, nil
		}
	}
	return "", &InvalidStateError{BookingID: b.ID, Status: b.Status, Operation: string(op)}
}

// IsTerminal reports whether no operation can move a booking out of s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCanceled
}

// =============================================================================
// BOOKING LIFECYCLE
// =============================================================================

type BookingLifecycle struct {
	rt           *runtime
	availability *AvailabilityLedger
}

type CreateBookingRequest struct {
	GuestID GuestID
	RoomID  RoomID
	Stay    DateRange
	// InitialStatus is PENDING or CONFIRMED. Empty means PENDING, or
	// CONFIRMED for quick bookings.
	InitialStatus BookingStatus
	// AgreedPrice overrides the category base price when set.
	AgreedPrice *decimal.Decimal
	Notes       string
	// Quick marks the counter's one-step booking path, which refuses
	// stays starting in the past.
	Quick bool
}

func (l *BookingLifecycle) CreateBooking(ctx context.Context, req CreateBookingRequest) (Booking, error) {
	if err := l.validateCreate(&req); err != nil {
		return Booking{}, err
	}

	now := l.rt.now()
	booking := Booking{
		ID:        BookingID(l.rt.newID()),
		GuestID:   req.GuestID,
		Status:    req.InitialStatus,
		Notes:     req.Notes,
		CreatedAt: now,
	}

	err := l.rt.withTx(ctx, "create booking", func(s Store) error {
		if _, err := s.GetGuest(ctx, req.GuestID); err != nil {
			return err
		}

		conflicts, err := l.availability.lockConflicts(ctx, s, req.RoomID, req.Stay, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &OverbookingError{RoomID: req.RoomID, Stay: req.Stay, Conflicts: conflicts}
		}

		price, err := agreedPrice(ctx, s, req)
		if err != nil {
			return err
		}

		alloc := Allocation{
			ID:          AllocationID(l.rt.newID()),
			BookingID:   booking.ID,
			RoomID:      req.RoomID,
			Stay:        req.Stay,
			AgreedPrice: price,
		}
		if err := s.InsertBooking(ctx, booking); err != nil {
			return err
		}
		if err := s.InsertAllocation(ctx, alloc); err != nil {
			return err
		}
		booking.Allocations = []Allocation{alloc}
		return nil
	})
	if err != nil {
		var oe *OverbookingError
		if errors.As(err, &oe) {
			l.rt.log.Info("booking rejected: overbooking",
				"room", req.RoomID, "stay", req.Stay.String(), "conflicts", len(oe.Conflicts))
		}
		return Booking{}, err
	}

	l.rt.log.Info("booking created",
		"booking", booking.ID, "guest", booking.GuestID, "room", req.RoomID,
		"stay", req.Stay.String(), "status", booking.Status)
	return booking, nil
}

func (l *BookingLifecycle) validateCreate(req *CreateBookingRequest) error {
	if req.GuestID == "" {
		return &ValidationError{Field: "guest_id", Message: "is required"}
	}
	if req.RoomID == "" {
		return &ValidationError{Field: "room_id", Message: "is required"}
	}
	if err := req.Stay.Validate(); err != nil {
		return err
	}
	if req.Quick && req.Stay.Start.Before(l.rt.today()) {
		return &ValidationError{Field: "start_date", Message: "cannot book a stay starting in the past"}
	}
	if req.InitialStatus == "" {
		req.InitialStatus = BookingPending
		if req.Quick {
			req.InitialStatus = BookingConfirmed
		}
	}
	if req.InitialStatus != BookingPending && req.InitialStatus != BookingConfirmed {
		return &ValidationError{Field: "status", Message: "new bookings must be PENDING or CONFIRMED"}
	}
	if req.AgreedPrice != nil && req.AgreedPrice.IsNegative() {
		return &ValidationError{Field: "agreed_price", Message: "must not be negative"}
	}
	return nil
}

// agreedPrice freezes the price for the new allocation. Without an explicit
// price the category's current base price is copied in.
func agreedPrice(ctx context.Context, s Store, req CreateBookingRequest) (decimal.Decimal, error) {
	if req.AgreedPrice != nil {
		return *req.AgreedPrice, nil
	}
	room, err := s.GetRoom(ctx, req.RoomID)
	if err != nil {
		return decimal.Zero, err
	}
	cat, err := s.GetCategory(ctx, room.CategoryID)
	if err != nil {
		return decimal.Zero, err
	}
	return cat.BasePrice, nil
}

// Confirm moves a PENDING booking to CONFIRMED.
func (l *BookingLifecycle) Confirm(ctx context.Context, id BookingID) (Booking, error) {
	return l.apply(ctx, id, OpConfirm, nil)
}

// CheckIn requires a CONFIRMED booking and occupies its room.
func (l *BookingLifecycle) CheckIn(ctx context.Context, id BookingID) (Booking, error) {
	return l.apply(ctx, id, OpCheckIn, func(s Store, b Booking) error {
		alloc, ok := b.PrimaryAllocation()
		if !ok {
			return &InvalidStateError{BookingID: b.ID, Status: b.Status, Operation: "check_in without allocation"}
		}
		_, err := applyRoomTransition(ctx, s, alloc.RoomID, TransitionCheckIn)
		return err
	})
}

type CheckOutResult struct {
	Booking Booking
	Balance Balance
}

// CheckOut completes the booking and leaves its room DIRTY whatever state
// it was in. An unpaid balance is reported in the result, never refused.
func (l *BookingLifecycle) CheckOut(ctx context.Context, id BookingID) (CheckOutResult, error) {
	var bal Balance
	b, err := l.apply(ctx, id, OpCheckOut, func(s Store, b Booking) error {
		if alloc, ok := b.PrimaryAllocation(); ok {
			if _, err := applyRoomTransition(ctx, s, alloc.RoomID, TransitionMarkDirty); err != nil {
				return err
			}
		}
		var err error
		bal, err = bookingBalance(ctx, s, b)
		return err
	})
	if err != nil {
		return CheckOutResult{}, err
	}
	if bal.HasDebt() {
		l.rt.log.Warn("checked out with balance due",
			"booking", id, "balance_due", bal.BalanceDue.StringFixed(2))
	}
	return CheckOutResult{Booking: b, Balance: bal}, nil
}

// Cancel releases the booking's dates. Checked-in, completed and already
// canceled bookings are rejected.
func (l *BookingLifecycle) Cancel(ctx context.Context, id BookingID) (Booking, error) {
	return l.apply(ctx, id, OpCancel, nil)
}

func (l *BookingLifecycle) Booking(ctx context.Context, id BookingID) (Booking, error) {
	b, err := l.rt.store.GetBooking(ctx, id)
	return b, l.rt.read("get booking", err)
}

// apply is the single write path for booking status. sideEffect runs in
// the same unit of work, after the status flip.
func (l *BookingLifecycle) apply(ctx context.Context, id BookingID, op BookingOperation, sideEffect func(Store, Booking) error) (Booking, error) {
	var out Booking
	err := l.rt.withTx(ctx, "booking "+string(op), func(s Store) error {
		b, err := s.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		next, err := NextBookingStatus(b, op)
		if err != nil {
			return err
		}
		if err := s.UpdateBookingStatus(ctx, id, b.Status, next); err != nil {
			return err
		}
		b.Status = next
		if sideEffect != nil {
			if err := sideEffect(s, b); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return Booking{}, err
	}
	l.rt.log.Info("booking updated", "booking", id, "op", op, "status", out.Status)
	return out, nil
}
