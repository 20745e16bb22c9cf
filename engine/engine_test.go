package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/frontdesk-engine/engine"
	"github.com/warp/frontdesk-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// now is pinned so "today" is 2025-03-10 in every test.
var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func day(d int) engine.Date {
	return engine.NewDate(2025, time.March, d)
}

func stay(from, to int) engine.DateRange {
	return engine.NewDateRange(day(from), day(to))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	ctx      context.Context
	eng      *engine.Engine
	store    engine.TxStore
	category engine.RoomCategory
	room     engine.Room
	guest    engine.Guest
	cash     engine.PaymentMethod
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemory(), opts...)
}

func newFixtureWithStore(t *testing.T, s engine.TxStore, opts ...engine.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	opts = append([]engine.Option{engine.WithClock(func() time.Time { return now })}, opts...)
	eng := engine.New(s, opts...)

	cat, err := eng.Rooms.AddCategory(ctx, engine.NewCategory{
		Name: "Standard", MaxAdults: 2, BasePrice: dec("200.00"),
	})
	require.NoError(t, err)
	room, err := eng.Rooms.AddRoom(ctx, engine.NewRoom{Number: "101", Floor: "1", CategoryID: cat.ID})
	require.NoError(t, err)
	guest, err := eng.Catalog.AddGuest(ctx, engine.NewGuest{Name: "Ana Souza", Email: "ana@example.com"})
	require.NoError(t, err)
	cash, err := eng.Catalog.AddPaymentMethod(ctx, "Cash", true)
	require.NoError(t, err)

	return &fixture{ctx: ctx, eng: eng, store: s, category: cat, room: room, guest: guest, cash: cash}
}

func (f *fixture) addRoom(t *testing.T, number string) engine.Room {
	t.Helper()
	r, err := f.eng.Rooms.AddRoom(f.ctx, engine.NewRoom{Number: number, CategoryID: f.category.ID})
	require.NoError(t, err)
	return r
}

func (f *fixture) book(t *testing.T, r engine.DateRange, status engine.BookingStatus) engine.Booking {
	t.Helper()
	b, err := f.eng.Bookings.CreateBooking(f.ctx, engine.CreateBookingRequest{
		GuestID:       f.guest.ID,
		RoomID:        f.room.ID,
		Stay:          r,
		InitialStatus: status,
	})
	require.NoError(t, err)
	return b
}

// checkedIn returns a booking for f.room that is CHECKED_IN, room OCCUPIED.
func (f *fixture) checkedIn(t *testing.T) engine.Booking {
	t.Helper()
	b := f.book(t, stay(10, 12), engine.BookingConfirmed)
	b, err := f.eng.Bookings.CheckIn(f.ctx, b.ID)
	require.NoError(t, err)
	return b
}

func (f *fixture) openSession(t *testing.T, opening string) engine.Session {
	t.Helper()
	s, err := f.eng.Cashier.OpenSession(f.ctx, "op-1", dec(opening))
	require.NoError(t, err)
	return s
}

func (f *fixture) roomStatus(t *testing.T) engine.RoomStatus {
	t.Helper()
	r, err := f.eng.Rooms.Room(f.ctx, f.room.ID)
	require.NoError(t, err)
	return r.Status
}

func (f *fixture) bookingStatus(t *testing.T, id engine.BookingID) engine.BookingStatus {
	t.Helper()
	b, err := f.eng.Bookings.Booking(f.ctx, id)
	require.NoError(t, err)
	return b.Status
}

// requireDecimal compares money by value so "50" and "50.00" are equal.
func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}
