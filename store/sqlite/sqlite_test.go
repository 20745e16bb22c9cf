package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/frontdesk-engine/engine"
	"github.com/warp/frontdesk-engine/store/sqlite"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func day(d int) engine.Date { return engine.NewDate(2025, time.March, d) }

func stay(from, to int) engine.DateRange { return engine.NewDateRange(day(from), day(to)) }

func newTestStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(path, sqlite.WithBusyTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

type seeded struct {
	ctx   context.Context
	store *sqlite.Store
	eng   *engine.Engine
	room  engine.Room
	guest engine.Guest
	cash  engine.PaymentMethod
}

func seed(t *testing.T, path string) *seeded {
	t.Helper()
	ctx := context.Background()
	store := newTestStore(t, path)
	eng := engine.New(store, engine.WithClock(func() time.Time { return now }))

	cat, err := eng.Rooms.AddCategory(ctx, engine.NewCategory{Name: "Standard", BasePrice: decimal.NewFromInt(200)})
	require.NoError(t, err)
	room, err := eng.Rooms.AddRoom(ctx, engine.NewRoom{Number: "101", CategoryID: cat.ID})
	require.NoError(t, err)
	guest, err := eng.Catalog.AddGuest(ctx, engine.NewGuest{Name: "Ana Souza"})
	require.NoError(t, err)
	cash, err := eng.Catalog.AddPaymentMethod(ctx, "Cash", true)
	require.NoError(t, err)

	return &seeded{ctx: ctx, store: store, eng: eng, room: room, guest: guest, cash: cash}
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_BookingRoundTrip(t *testing.T) {
	s := seed(t, ":memory:")

	b, err := s.eng.Bookings.CreateBooking(s.ctx, engine.CreateBookingRequest{
		GuestID: s.guest.ID, RoomID: s.room.ID, Stay: stay(10, 13), Notes: "late arrival",
	})
	require.NoError(t, err)

	got, err := s.store.GetBooking(s.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.BookingPending, got.Status)
	assert.Equal(t, "late arrival", got.Notes)
	assert.True(t, got.CreatedAt.Equal(now))
	require.Len(t, got.Allocations, 1)
	a := got.Allocations[0]
	assert.Equal(t, stay(10, 13), a.Stay)
	assert.True(t, a.AgreedPrice.Equal(decimal.NewFromInt(200)))
}

func TestStore_NotFound(t *testing.T) {
	s := seed(t, ":memory:")

	_, err := s.store.GetRoom(s.ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	_, err = s.store.GetBooking(s.ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	_, err = s.store.GetOpenSession(s.ctx, "nobody")
	assert.ErrorIs(t, err, engine.ErrNotFound)
	assert.ErrorIs(t, s.store.LockRoom(s.ctx, "missing"), engine.ErrNotFound)
}

func TestStore_CompareAndSetRoomStatus(t *testing.T) {
	s := seed(t, ":memory:")

	err := s.store.UpdateRoomStatus(s.ctx, s.room.ID, engine.RoomDirty, engine.RoomAvailable)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)

	require.NoError(t, s.store.UpdateRoomStatus(s.ctx, s.room.ID, engine.RoomAvailable, engine.RoomOccupied))
	r, err := s.store.GetRoom(s.ctx, s.room.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.RoomOccupied, r.Status)
}

func TestStore_OverlapQueryIsHalfOpen(t *testing.T) {
	s := seed(t, ":memory:")
	_, err := s.eng.Bookings.CreateBooking(s.ctx, engine.CreateBookingRequest{
		GuestID: s.guest.ID, RoomID: s.room.ID, Stay: stay(10, 12),
	})
	require.NoError(t, err)

	touching, err := s.store.FindOverlapping(s.ctx, engine.OverlapQuery{RoomID: s.room.ID, Stay: stay(12, 14)})
	require.NoError(t, err)
	assert.Empty(t, touching)

	overlapping, err := s.store.FindOverlapping(s.ctx, engine.OverlapQuery{RoomID: s.room.ID, Stay: stay(11, 14)})
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)
}

// =============================================================================
// SCHEMA-LEVEL INVARIANTS
// =============================================================================

func TestStore_OneOpenSessionPerOperator(t *testing.T) {
	// The partial unique index rejects the second OPEN row even when the
	// engine's own check is skipped.
	s := seed(t, ":memory:")
	open := func(id string) engine.Session {
		return engine.Session{
			ID: engine.SessionID(id), OperatorID: "op-1", Status: engine.SessionOpen,
			OpeningBalance: decimal.Zero, OpenedAt: now,
		}
	}

	require.NoError(t, s.store.InsertSession(s.ctx, open("s1")))
	err := s.store.InsertSession(s.ctx, open("s2"))
	assert.ErrorIs(t, err, engine.ErrSessionAlreadyOpen)

	require.NoError(t, s.store.CloseSession(s.ctx, "s1", engine.SessionClose{ClosedAt: now}))
	assert.NoError(t, s.store.InsertSession(s.ctx, open("s3")))

	err = s.store.CloseSession(s.ctx, "s1", engine.SessionClose{ClosedAt: now})
	assert.ErrorIs(t, err, engine.ErrAlreadyClosed)
}

func TestStore_ClosedSessionRejectsInsert(t *testing.T) {
	s := seed(t, ":memory:")
	sess, err := s.eng.Cashier.OpenSession(s.ctx, "op-1", decimal.Zero)
	require.NoError(t, err)
	_, err = s.eng.Cashier.CloseSession(s.ctx, sess.ID, "op-1", decimal.Zero, "")
	require.NoError(t, err)

	err = s.store.AppendTransaction(s.ctx, engine.Transaction{
		ID: "tx-late", SessionID: &sess.ID, Type: engine.TxIncome,
		Amount: decimal.NewFromInt(5), CreatedAt: now,
	})
	assert.ErrorIs(t, err, engine.ErrClosedSession)
}

func TestStore_StockNeverNegative(t *testing.T) {
	s := seed(t, ":memory:")
	p, err := s.eng.Catalog.AddProduct(s.ctx, engine.NewProduct{Name: "Water", Price: decimal.NewFromInt(3), Stock: 3})
	require.NoError(t, err)

	err = s.store.AdjustStock(s.ctx, p.ID, -5)
	var ise *engine.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 3, ise.Available)

	require.NoError(t, s.store.AdjustStock(s.ctx, p.ID, -3))
	got, err := s.store.GetProduct(s.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestStore_ProtectedDeletes(t *testing.T) {
	s := seed(t, ":memory:")
	_, err := s.eng.Bookings.CreateBooking(s.ctx, engine.CreateBookingRequest{
		GuestID: s.guest.ID, RoomID: s.room.ID, Stay: stay(10, 12),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, s.store.DeleteRoom(s.ctx, s.room.ID), engine.ErrProtected)
	assert.ErrorIs(t, s.store.DeleteGuest(s.ctx, s.guest.ID), engine.ErrProtected)
}

func TestStore_DuplicatePaymentMethod(t *testing.T) {
	s := seed(t, ":memory:")
	_, err := s.eng.Catalog.AddPaymentMethod(s.ctx, "cash", true)
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestStore_WithTxRollsBack(t *testing.T) {
	s := seed(t, ":memory:")
	boom := errors.New("boom")

	err := s.store.WithTx(s.ctx, func(tx engine.Store) error {
		require.NoError(t, tx.UpdateRoomStatus(s.ctx, s.room.ID, engine.RoomAvailable, engine.RoomMaintenance))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	r, err := s.store.GetRoom(s.ctx, s.room.ID)
	require.NoError(t, err)
	assert.Equal(t, engine.RoomAvailable, r.Status)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestStore_ConcurrentBookingsOneWinner(t *testing.T) {
	// GIVEN: a file-backed database (real WAL, several connections)
	// WHEN: 16 goroutines book room 101 for overlapping stays
	// THEN: exactly one commits, the rest see its allocation
	s := seed(t, filepath.Join(t.TempDir(), "frontdesk.db"))

	const n = 16
	var (
		mu       sync.Mutex
		wins     int
		overbook int
	)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		start := 10 + i%4
		g.Go(func() error {
			_, err := s.eng.Bookings.CreateBooking(s.ctx, engine.CreateBookingRequest{
				GuestID: s.guest.ID, RoomID: s.room.ID, Stay: stay(start, start+4),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, engine.ErrOverbooking):
				overbook++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, overbook)

	views, err := s.store.ListAllocations(s.ctx, engine.AllocationWindow{Window: stay(1, 31)})
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontdesk.db")
	s := seed(t, path)
	require.NoError(t, s.store.Close())

	reopened := newTestStore(t, path)
	rooms, err := reopened.ListRooms(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "101", rooms[0].Number)
}
