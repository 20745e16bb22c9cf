package engine_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/frontdesk-engine/engine"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// OVERLAP SEMANTICS
// =============================================================================

func TestDateRange_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b engine.DateRange
		want bool
	}{
		{"identical", stay(10, 12), stay(10, 12), true},
		{"contained", stay(10, 15), stay(11, 12), true},
		{"partial", stay(10, 12), stay(11, 14), true},
		{"checkout day is checkin day", stay(10, 12), stay(12, 14), false},
		{"disjoint", stay(10, 12), stay(20, 22), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap is symmetric")
		})
	}
}

func TestDateRange_Validate(t *testing.T) {
	assert.NoError(t, stay(10, 11).Validate())
	assert.ErrorIs(t, stay(12, 10).Validate(), engine.ErrValidation)
	assert.ErrorIs(t, stay(10, 10).Validate(), engine.ErrValidation)
	assert.Equal(t, 3, stay(10, 13).Nights())
}

func TestAvailability_FindConflicts(t *testing.T) {
	// GIVEN: room 101 booked for [10, 12)
	f := newFixture(t)
	b := f.book(t, stay(10, 12), engine.BookingConfirmed)

	// WHEN/THEN: an overlapping stay conflicts with that booking
	conflicts, err := f.eng.Availability.FindConflicts(f.ctx, f.room.ID, stay(11, 13), "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, b.ID, conflicts[0].BookingID)

	// AND: a stay starting on the checkout day does not
	ok, err := f.eng.Availability.IsAvailable(f.ctx, f.room.ID, stay(12, 14))
	require.NoError(t, err)
	assert.True(t, ok)

	// AND: excluding the allocation itself clears the conflict
	conflicts, err = f.eng.Availability.FindConflicts(f.ctx, f.room.ID, stay(11, 13), b.Allocations[0].ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestAvailability_UnknownRoom(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Availability.IsAvailable(f.ctx, "nope", stay(10, 12))
	assert.True(t, engine.IsNotFound(err))
}

func TestAvailability_CanceledBookingReleasesRoom(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, stay(10, 12), engine.BookingPending)
	_, err := f.eng.Bookings.Cancel(f.ctx, b.ID)
	require.NoError(t, err)

	again := f.book(t, stay(10, 12), engine.BookingPending)
	assert.NotEqual(t, b.ID, again.ID)
}

func TestAvailability_ReleasePolicy(t *testing.T) {
	// GIVEN: a stay [10, 14) checked out early
	// THEN: the default policy frees the dates, the strict one keeps them
	for _, tc := range []struct {
		policy    engine.ReleasePolicy
		available bool
	}{
		{engine.ReleaseCanceledAndCompleted, true},
		{engine.ReleaseCanceled, false},
	} {
		t.Run(tc.policy.String(), func(t *testing.T) {
			f := newFixture(t, engine.WithReleasePolicy(tc.policy))
			b := f.book(t, stay(10, 14), engine.BookingConfirmed)
			_, err := f.eng.Bookings.CheckOut(f.ctx, b.ID)
			require.NoError(t, err)

			ok, err := f.eng.Availability.IsAvailable(f.ctx, f.room.ID, stay(11, 14))
			require.NoError(t, err)
			assert.Equal(t, tc.available, ok)
		})
	}
}

// =============================================================================
// OVERBOOKING PREVENTION
// =============================================================================

func TestCreateBooking_OverbookingNamesConflict(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, stay(10, 13), engine.BookingConfirmed)

	_, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
		GuestID: f.guest.ID, RoomID: f.room.ID, Stay: stay(12, 15),
	})

	var oe *engine.OverbookingError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, []engine.BookingID{first.ID}, oe.ConflictingBookings())
	assert.ErrorIs(t, err, engine.ErrOverbooking)
	assert.True(t, engine.IsClientError(err))
	assert.False(t, engine.IsRetryable(err))
}

func TestCreateBooking_ConcurrentSameRoom(t *testing.T) {
	// GIVEN: N desks booking room 101 for overlapping dates at once
	// THEN: exactly one succeeds, every other one gets an OverbookingError
	f := newFixture(t)
	assertOneWinner(t, f, 32)
}

func assertOneWinner(t *testing.T, f *fixture, n int) {
	t.Helper()
	var (
		mu       sync.Mutex
		wins     int
		overbook int
		other    []error
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		start := 10 + i%3
		g.Go(func() error {
			_, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
				GuestID: f.guest.ID,
				RoomID:  f.room.ID,
				Stay:    stay(start, start+3),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, engine.ErrOverbooking):
				overbook++
			default:
				other = append(other, err)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Empty(t, other)
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, overbook)
	assertNoStoredOverlap(t, f)
}

// assertNoStoredOverlap checks the core invariant directly on stored data.
func assertNoStoredOverlap(t *testing.T, f *fixture) {
	t.Helper()
	views, err := f.store.ListAllocations(f.ctx, engine.AllocationWindow{
		Window: engine.NewDateRange(day(1), day(31)),
		Ignore: []engine.BookingStatus{engine.BookingCanceled},
	})
	require.NoError(t, err)
	for i := range views {
		for j := i + 1; j < len(views); j++ {
			a, b := views[i], views[j]
			if a.RoomID != b.RoomID {
				continue
			}
			if a.BookingStatus == engine.BookingCompleted || b.BookingStatus == engine.BookingCompleted {
				continue
			}
			assert.False(t, a.Stay.Overlaps(b.Stay),
				fmt.Sprintf("allocations %s %s and %s %s overlap", a.ID, a.Stay, b.ID, b.Stay))
		}
	}
}

func TestCreateBooking_SequenceNeverOverlaps(t *testing.T) {
	// Every start/length combination in the month, two rooms, some cancels.
	f := newFixture(t)
	second := f.addRoom(t, "102")
	rooms := []engine.RoomID{f.room.ID, second.ID}

	n := 0
	for start := 1; start < 28; start++ {
		for length := 1; length <= 3; length++ {
			n++
			b, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
				GuestID: f.guest.ID,
				RoomID:  rooms[n%2],
				Stay:    stay(start, start+length),
			})
			if err != nil {
				require.ErrorIs(t, err, engine.ErrOverbooking)
				continue
			}
			if n%5 == 0 {
				_, err := f.eng.Bookings.Cancel(f.ctx, b.ID)
				require.NoError(t, err)
			}
		}
	}
	assertNoStoredOverlap(t, f)
}
