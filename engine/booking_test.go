package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/frontdesk-engine/engine"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreateBooking_DefaultsPriceFromCategory(t *testing.T) {
	f := newFixture(t)

	b := f.book(t, stay(10, 12), "")

	assert.Equal(t, engine.BookingPending, b.Status)
	require.Len(t, b.Allocations, 1)
	requireDecimal(t, "200.00", b.Allocations[0].AgreedPrice)

	stored, err := f.eng.Bookings.Booking(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Allocations, stored.Allocations)
}

func TestCreateBooking_ExplicitPrice(t *testing.T) {
	f := newFixture(t)
	price := dec("150.50")

	b, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
		GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(10, 11), AgreedPrice: &price,
	})
	require.NoError(t, err)
	requireDecimal(t, "150.50", b.Allocations[0].AgreedPrice)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	negative := dec("-1")

	tests := []struct {
		name string
		req  engine.CreateBookingRequest
	}{
		{"inverted range", engine.CreateBookingRequest{GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(12, 10)}},
		{"empty range", engine.CreateBookingRequest{GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(12, 12)}},
		{"quick in the past", engine.CreateBookingRequest{GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(9, 11), Quick: true}},
		{"checked-in initial status", engine.CreateBookingRequest{GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(10, 11), InitialStatus: engine.BookingCheckedIn}},
		{"negative price", engine.CreateBookingRequest{GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(10, 11), AgreedPrice: &negative}},
		{"missing guest id", engine.CreateBookingRequest{RoomID: f.room.ID, Stay: stay(10, 11)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.Bookings.CreateBooking(f.ctx, tt.req)
			assert.ErrorIs(t, err, engine.ErrValidation)
		})
	}
}

func TestCreateBooking_PastDatesAllowedOutsideQuickPath(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, stay(1, 3), engine.BookingConfirmed)
	assert.Equal(t, engine.BookingConfirmed, b.Status)
}

func TestCreateBooking_QuickDefaultsToConfirmed(t *testing.T) {
	f := newFixture(t)
	b, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
		GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(10, 11), Quick: true,
	})
	require.NoError(t, err)
	assert.Equal(t, engine.BookingConfirmed, b.Status)
}

func TestCreateBooking_UnknownGuestOrRoom(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
		GuestID: "ghost", RoomID: f.room.ID, Stay: stay(10, 11),
	})
	assert.True(t, engine.IsNotFound(err))

	_, err = f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
		GuestID: f.guest.ID, RoomID: "ghost", Stay: stay(10, 11),
	})
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestNextBookingStatus(t *testing.T) {
	ok := map[engine.BookingStatus][]engine.BookingOperation{
		engine.BookingPending:   {engine.OpConfirm, engine.OpCheckOut, engine.OpCancel},
		engine.BookingConfirmed: {engine.OpCheckIn, engine.OpCheckOut, engine.OpCancel},
		engine.BookingCheckedIn: {engine.OpCheckOut},
		engine.BookingCompleted: nil,
		engine.BookingCanceled:  nil,
	}
	all := []engine.BookingOperation{engine.OpConfirm, engine.OpCheckIn, engine.OpCheckOut, engine.OpCancel}

	for status, allowed := range ok {
		for _, op := range all {
			_, err := engine.NextBookingStatus(engine.Booking{ID: "b", Status: status}, op)
			if contains(allowed, op) {
				assert.NoError(t, err, "%s from %s", op, status)
			} else {
				assert.ErrorIs(t, err, engine.ErrInvalidState, "%s from %s", op, status)
			}
		}
	}
}

func contains(ops []engine.BookingOperation, op engine.BookingOperation) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func TestConfirm(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, stay(10, 12), engine.BookingPending)

	b, err := f.eng.Bookings.Confirm(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.BookingConfirmed, b.Status)

	_, err = f.eng.Bookings.Confirm(f.ctx, b.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestCheckIn_OccupiesRoom(t *testing.T) {
	f := newFixture(t)
	b := f.checkedIn(t)

	assert.Equal(t, engine.BookingCheckedIn, b.Status)
	assert.Equal(t, engine.RoomOccupied, f.roomStatus(t))
}

func TestCheckIn_RequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, stay(10, 12), engine.BookingPending)

	_, err := f.eng.Bookings.CheckIn(f.ctx, b.ID)

	var ise *engine.InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, engine.BookingPending, ise.Status)
	assert.Equal(t, engine.RoomAvailable, f.roomStatus(t))
}

func TestCheckIn_DirtyRoomRollsBack(t *testing.T) {
	// GIVEN: a confirmed booking whose room is still DIRTY
	// WHEN: checking in
	// THEN: the room transition fails and the booking stays CONFIRMED
	f := newFixture(t)
	b := f.book(t, stay(10, 12), engine.BookingConfirmed)
	_, err := f.eng.Rooms.Transition(f.ctx, f.room.ID, engine.TransitionMarkDirty)
	require.NoError(t, err)

	_, err = f.eng.Bookings.CheckIn(f.ctx, b.ID)

	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
	assert.Equal(t, engine.BookingConfirmed, f.bookingStatus(t, b.ID))
	assert.Equal(t, engine.RoomDirty, f.roomStatus(t))
}

func TestCheckOut_AlwaysLeavesRoomDirty(t *testing.T) {
	// The room is moved away from OCCUPIED behind the booking's back to
	// check that check-out doesn't care where it starts from.
	setups := map[engine.RoomStatus][]engine.RoomTransition{
		engine.RoomOccupied:    nil,
		engine.RoomMaintenance: {engine.TransitionBlockMaintenance},
		engine.RoomAvailable:   {engine.TransitionBlockMaintenance, engine.TransitionFinishMaintenance},
	}
	for before, path := range setups {
		t.Run(string(before), func(t *testing.T) {
			f := newFixture(t)
			b := f.checkedIn(t)
			for _, tr := range path {
				_, err := f.eng.Rooms.Transition(f.ctx, f.room.ID, tr)
				require.NoError(t, err)
			}
			require.Equal(t, before, f.roomStatus(t))

			res, err := f.eng.Bookings.CheckOut(f.ctx, b.ID)

			require.NoError(t, err)
			assert.Equal(t, engine.BookingCompleted, res.Booking.Status)
			assert.Equal(t, engine.RoomDirty, f.roomStatus(t))
		})
	}
}

func TestCheckOut_UnpaidBalanceIsReportedNotBlocking(t *testing.T) {
	f := newFixture(t)
	b := f.checkedIn(t)

	res, err := f.eng.Bookings.CheckOut(f.ctx, b.ID)

	require.NoError(t, err)
	assert.True(t, res.Balance.HasDebt())
	requireDecimal(t, "200", res.Balance.BalanceDue)
}

func TestCheckOut_TerminalRejected(t *testing.T) {
	f := newFixture(t)
	b := f.checkedIn(t)
	_, err := f.eng.Bookings.CheckOut(f.ctx, b.ID)
	require.NoError(t, err)

	_, err = f.eng.Bookings.CheckOut(f.ctx, b.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestCancel_CheckedInRejectedNothingChanges(t *testing.T) {
	f := newFixture(t)
	b := f.checkedIn(t)

	_, err := f.eng.Bookings.Cancel(f.ctx, b.ID)

	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.Equal(t, engine.BookingCheckedIn, f.bookingStatus(t, b.ID))
	assert.Equal(t, engine.RoomOccupied, f.roomStatus(t))
}

func TestCancel_TwiceIsRejected(t *testing.T) {
	// GIVEN: a canceled booking
	// WHEN: canceling again
	// THEN: rejected with InvalidState, status untouched
	f := newFixture(t)
	b := f.book(t, stay(10, 12), engine.BookingConfirmed)
	b, err := f.eng.Bookings.Cancel(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.BookingCanceled, b.Status)

	_, err = f.eng.Bookings.Cancel(f.ctx, b.ID)

	assert.ErrorIs(t, err, engine.ErrInvalidState)
	assert.Equal(t, engine.BookingCanceled, f.bookingStatus(t, b.ID))
}

func TestCancel_CompletedRejected(t *testing.T) {
	f := newFixture(t)
	b := f.checkedIn(t)
	_, err := f.eng.Bookings.CheckOut(f.ctx, b.ID)
	require.NoError(t, err)

	_, err = f.eng.Bookings.Cancel(f.ctx, b.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidState)
}

func TestBooking_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Bookings.CheckIn(f.ctx, "missing")
	assert.True(t, engine.IsNotFound(err))
	assert.False(t, engine.IsRetryable(err))
}
