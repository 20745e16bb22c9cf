// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/frontdesk-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements engine.TxStore. WithTx holds the write lock for the
// whole callback, so units of work are fully serialized; that is the
// room-scoped lock the engine asks for, just coarser.
type Memory struct {
	mu sync.RWMutex
	st *state
}

func NewMemory() *Memory {
	return &Memory{st: newState()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(m.st); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) read() (*state, func()) {
	m.mu.RLock()
	return m.st, m.mu.RUnlock
}

func (m *Memory) write() (*state, func()) {
	m.mu.Lock()
	return m.st, m.mu.Unlock
}

// =============================================================================
// STATE - Unlocked data; the tx view and the locked wrappers share it
// =============================================================================

type state struct {
	categories map[engine.CategoryID]engine.RoomCategory
	rooms      map[engine.RoomID]engine.Room
	guests     map[engine.GuestID]engine.Guest
	bookings   map[engine.BookingID]engine.Booking // Allocations left nil
	allocs     []engine.Allocation
	products   map[engine.ProductID]engine.Product
	methods    map[engine.PaymentMethodID]engine.PaymentMethod
	sessions   map[engine.SessionID]engine.Session
	txs        []engine.Transaction

	// openSessions is the operator -> OPEN session key. Insert refuses a
	// second entry for the same operator.
	openSessions map[engine.OperatorID]engine.SessionID
}

func newState() *state {
	return &state{
		categories:   make(map[engine.CategoryID]engine.RoomCategory),
		rooms:        make(map[engine.RoomID]engine.Room),
		guests:       make(map[engine.GuestID]engine.Guest),
		bookings:     make(map[engine.BookingID]engine.Booking),
		products:     make(map[engine.ProductID]engine.Product),
		methods:      make(map[engine.PaymentMethodID]engine.PaymentMethod),
		sessions:     make(map[engine.SessionID]engine.Session),
		openSessions: make(map[engine.OperatorID]engine.SessionID),
	}
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		categories:   cloneMap(s.categories),
		rooms:        cloneMap(s.rooms),
		guests:       cloneMap(s.guests),
		bookings:     cloneMap(s.bookings),
		allocs:       append([]engine.Allocation(nil), s.allocs...),
		products:     cloneMap(s.products),
		methods:      cloneMap(s.methods),
		sessions:     cloneMap(s.sessions),
		txs:          append([]engine.Transaction(nil), s.txs...),
		openSessions: cloneMap(s.openSessions),
	}
}

func missing(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, engine.ErrNotFound)
}

func duplicate(field, value string) error {
	return &engine.ValidationError{Field: field, Message: fmt.Sprintf("%q already exists", value)}
}

// --- Rooms ---

func (s *state) InsertCategory(_ context.Context, c engine.RoomCategory) error {
	s.categories[c.ID] = c
	return nil
}

func (s *state) GetCategory(_ context.Context, id engine.CategoryID) (engine.RoomCategory, error) {
	c, ok := s.categories[id]
	if !ok {
		return engine.RoomCategory{}, missing("category", id)
	}
	return c, nil
}

func (s *state) ListCategories(_ context.Context) ([]engine.RoomCategory, error) {
	out := make([]engine.RoomCategory, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) InsertRoom(_ context.Context, r engine.Room) error {
	if _, ok := s.categories[r.CategoryID]; !ok {
		return missing("category", r.CategoryID)
	}
	for _, existing := range s.rooms {
		if existing.Number == r.Number {
			return duplicate("number", r.Number)
		}
	}
	s.rooms[r.ID] = r
	return nil
}

func (s *state) GetRoom(_ context.Context, id engine.RoomID) (engine.Room, error) {
	r, ok := s.rooms[id]
	if !ok {
		return engine.Room{}, missing("room", id)
	}
	return r, nil
}

func (s *state) ListRooms(_ context.Context, status engine.RoomStatus) ([]engine.Room, error) {
	out := make([]engine.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *state) UpdateRoomStatus(_ context.Context, id engine.RoomID, from, next engine.RoomStatus) error {
	r, ok := s.rooms[id]
	if !ok {
		return missing("room", id)
	}
	if r.Status != from {
		return fmt.Errorf("room %s is %s, expected %s: %w", id, r.Status, from, engine.ErrConcurrentModification)
	}
	r.Status = next
	s.rooms[id] = r
	return nil
}

func (s *state) DeleteRoom(_ context.Context, id engine.RoomID) error {
	if _, ok := s.rooms[id]; !ok {
		return missing("room", id)
	}
	for _, a := range s.allocs {
		if a.RoomID == id {
			return fmt.Errorf("room %s has allocations: %w", id, engine.ErrProtected)
		}
	}
	delete(s.rooms, id)
	return nil
}

// --- Guests ---

func (s *state) InsertGuest(_ context.Context, g engine.Guest) error {
	s.guests[g.ID] = g
	return nil
}

func (s *state) GetGuest(_ context.Context, id engine.GuestID) (engine.Guest, error) {
	g, ok := s.guests[id]
	if !ok {
		return engine.Guest{}, missing("guest", id)
	}
	return g, nil
}

func (s *state) ListGuests(_ context.Context) ([]engine.Guest, error) {
	out := make([]engine.Guest, 0, len(s.guests))
	for _, g := range s.guests {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) DeleteGuest(_ context.Context, id engine.GuestID) error {
	if _, ok := s.guests[id]; !ok {
		return missing("guest", id)
	}
	for _, b := range s.bookings {
		if b.GuestID == id {
			return fmt.Errorf("guest %s has bookings: %w", id, engine.ErrProtected)
		}
	}
	delete(s.guests, id)
	return nil
}

// --- Bookings ---

func (s *state) InsertBooking(_ context.Context, b engine.Booking) error {
	if _, ok := s.guests[b.GuestID]; !ok {
		return missing("guest", b.GuestID)
	}
	b.Allocations = nil
	s.bookings[b.ID] = b
	return nil
}

func (s *state) InsertAllocation(_ context.Context, a engine.Allocation) error {
	if _, ok := s.bookings[a.BookingID]; !ok {
		return missing("booking", a.BookingID)
	}
	if _, ok := s.rooms[a.RoomID]; !ok {
		return missing("room", a.RoomID)
	}
	s.allocs = append(s.allocs, a)
	return nil
}

func (s *state) GetBooking(_ context.Context, id engine.BookingID) (engine.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return engine.Booking{}, missing("booking", id)
	}
	for _, a := range s.allocs {
		if a.BookingID == id {
			b.Allocations = append(b.Allocations, a)
		}
	}
	sort.SliceStable(b.Allocations, func(i, j int) bool {
		return b.Allocations[i].Stay.Start.Before(b.Allocations[j].Stay.Start)
	})
	return b, nil
}

func (s *state) UpdateBookingStatus(_ context.Context, id engine.BookingID, from, next engine.BookingStatus) error {
	b, ok := s.bookings[id]
	if !ok {
		return missing("booking", id)
	}
	if b.Status != from {
		return fmt.Errorf("booking %s is %s, expected %s: %w", id, b.Status, from, engine.ErrConcurrentModification)
	}
	b.Status = next
	s.bookings[id] = b
	return nil
}

// LockRoom only checks existence: the caller already holds the store's
// write lock for the whole unit of work.
func (s *state) LockRoom(_ context.Context, id engine.RoomID) error {
	if _, ok := s.rooms[id]; !ok {
		return missing("room", id)
	}
	return nil
}

func ignored(status engine.BookingStatus, ignore []engine.BookingStatus) bool {
	for _, st := range ignore {
		if st == status {
			return true
		}
	}
	return false
}

func (s *state) view(a engine.Allocation) engine.AllocationView {
	b := s.bookings[a.BookingID]
	return engine.AllocationView{Allocation: a, BookingStatus: b.Status, GuestID: b.GuestID}
}

func (s *state) FindOverlapping(_ context.Context, q engine.OverlapQuery) ([]engine.AllocationView, error) {
	var out []engine.AllocationView
	for _, a := range s.allocs {
		if a.RoomID != q.RoomID || a.ID == q.Exclude || !a.Stay.Overlaps(q.Stay) {
			continue
		}
		v := s.view(a)
		if ignored(v.BookingStatus, q.Ignore) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *state) ListAllocations(_ context.Context, w engine.AllocationWindow) ([]engine.AllocationView, error) {
	var out []engine.AllocationView
	for _, a := range s.allocs {
		if !a.Stay.Overlaps(w.Window) {
			continue
		}
		v := s.view(a)
		if ignored(v.BookingStatus, w.Ignore) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// --- Ledger ---

func (s *state) AppendTransaction(_ context.Context, tx engine.Transaction) error {
	if tx.SessionID != nil {
		sess, ok := s.sessions[*tx.SessionID]
		if !ok {
			return missing("session", *tx.SessionID)
		}
		if !sess.IsOpen() {
			return fmt.Errorf("session %s: %w", sess.ID, engine.ErrClosedSession)
		}
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *state) ListTransactions(_ context.Context, f engine.TransactionFilter) ([]engine.Transaction, error) {
	var out []engine.Transaction
	for _, tx := range s.txs {
		if f.SessionID != nil && (tx.SessionID == nil || *tx.SessionID != *f.SessionID) {
			continue
		}
		if f.BookingID != nil && (tx.BookingID == nil || *tx.BookingID != *f.BookingID) {
			continue
		}
		if len(f.Types) > 0 && !hasType(f.Types, tx.Type) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func hasType(types []engine.TransactionType, t engine.TransactionType) bool {
	for _, tt := range types {
		if tt == t {
			return true
		}
	}
	return false
}

func (s *state) InsertProduct(_ context.Context, p engine.Product) error {
	s.products[p.ID] = p
	return nil
}

func (s *state) GetProduct(_ context.Context, id engine.ProductID) (engine.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return engine.Product{}, missing("product", id)
	}
	return p, nil
}

func (s *state) ListProducts(_ context.Context) ([]engine.Product, error) {
	out := make([]engine.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) AdjustStock(_ context.Context, id engine.ProductID, delta int) error {
	p, ok := s.products[id]
	if !ok {
		return missing("product", id)
	}
	if p.Stock+delta < 0 {
		return &engine.InsufficientStockError{ProductID: id, Name: p.Name, Available: p.Stock, Requested: -delta}
	}
	p.Stock += delta
	s.products[id] = p
	return nil
}

func (s *state) InsertPaymentMethod(_ context.Context, m engine.PaymentMethod) error {
	for _, existing := range s.methods {
		if existing.Slug == m.Slug {
			return duplicate("name", m.Name)
		}
	}
	s.methods[m.ID] = m
	return nil
}

func (s *state) GetPaymentMethod(_ context.Context, id engine.PaymentMethodID) (engine.PaymentMethod, error) {
	m, ok := s.methods[id]
	if !ok {
		return engine.PaymentMethod{}, missing("payment method", id)
	}
	return m, nil
}

func (s *state) ListPaymentMethods(_ context.Context) ([]engine.PaymentMethod, error) {
	out := make([]engine.PaymentMethod, 0, len(s.methods))
	for _, m := range s.methods {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Sessions ---

func (s *state) InsertSession(_ context.Context, sess engine.Session) error {
	if sess.IsOpen() {
		if _, taken := s.openSessions[sess.OperatorID]; taken {
			return fmt.Errorf("operator %s: %w", sess.OperatorID, engine.ErrSessionAlreadyOpen)
		}
		s.openSessions[sess.OperatorID] = sess.ID
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *state) GetSession(_ context.Context, id engine.SessionID) (engine.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return engine.Session{}, missing("session", id)
	}
	return sess, nil
}

func (s *state) GetOpenSession(_ context.Context, operator engine.OperatorID) (engine.Session, error) {
	id, ok := s.openSessions[operator]
	if !ok {
		return engine.Session{}, missing("open session for operator", operator)
	}
	return s.sessions[id], nil
}

func (s *state) CloseSession(_ context.Context, id engine.SessionID, c engine.SessionClose) error {
	sess, ok := s.sessions[id]
	if !ok {
		return missing("session", id)
	}
	if !sess.IsOpen() {
		return fmt.Errorf("session %s: %w", id, engine.ErrAlreadyClosed)
	}
	sess.Status = engine.SessionClosed
	sess.ClosingBalance = &c.ClosingBalance
	sess.CalculatedBalance = &c.CalculatedBalance
	sess.Difference = &c.Difference
	sess.Notes = c.Notes
	sess.ClosedAt = &c.ClosedAt
	s.sessions[id] = sess
	delete(s.openSessions, sess.OperatorID)
	return nil
}

// =============================================================================
// LOCKED ACCESS - Memory satisfies engine.Store outside WithTx too
// =============================================================================

func (m *Memory) InsertCategory(ctx context.Context, c engine.RoomCategory) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertCategory(ctx, c)
}

func (m *Memory) GetCategory(ctx context.Context, id engine.CategoryID) (engine.RoomCategory, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetCategory(ctx, id)
}

func (m *Memory) ListCategories(ctx context.Context) ([]engine.RoomCategory, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListCategories(ctx)
}

func (m *Memory) InsertRoom(ctx context.Context, r engine.Room) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertRoom(ctx, r)
}

func (m *Memory) GetRoom(ctx context.Context, id engine.RoomID) (engine.Room, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetRoom(ctx, id)
}

func (m *Memory) ListRooms(ctx context.Context, status engine.RoomStatus) ([]engine.Room, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListRooms(ctx, status)
}

func (m *Memory) UpdateRoomStatus(ctx context.Context, id engine.RoomID, from, next engine.RoomStatus) error {
	s, unlock := m.write()
	defer unlock()
	return s.UpdateRoomStatus(ctx, id, from, next)
}

func (m *Memory) DeleteRoom(ctx context.Context, id engine.RoomID) error {
	s, unlock := m.write()
	defer unlock()
	return s.DeleteRoom(ctx, id)
}

func (m *Memory) InsertGuest(ctx context.Context, g engine.Guest) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertGuest(ctx, g)
}

func (m *Memory) GetGuest(ctx context.Context, id engine.GuestID) (engine.Guest, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetGuest(ctx, id)
}

func (m *Memory) ListGuests(ctx context.Context) ([]engine.Guest, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListGuests(ctx)
}

func (m *Memory) DeleteGuest(ctx context.Context, id engine.GuestID) error {
	s, unlock := m.write()
	defer unlock()
	return s.DeleteGuest(ctx, id)
}

func (m *Memory) InsertBooking(ctx context.Context, b engine.Booking) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertBooking(ctx, b)
}

func (m *Memory) InsertAllocation(ctx context.Context, a engine.Allocation) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertAllocation(ctx, a)
}

func (m *Memory) GetBooking(ctx context.Context, id engine.BookingID) (engine.Booking, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetBooking(ctx, id)
}

func (m *Memory) UpdateBookingStatus(ctx context.Context, id engine.BookingID, from, next engine.BookingStatus) error {
	s, unlock := m.write()
	defer unlock()
	return s.UpdateBookingStatus(ctx, id, from, next)
}

func (m *Memory) LockRoom(ctx context.Context, id engine.RoomID) error {
	s, unlock := m.read()
	defer unlock()
	return s.LockRoom(ctx, id)
}

func (m *Memory) FindOverlapping(ctx context.Context, q engine.OverlapQuery) ([]engine.AllocationView, error) {
	s, unlock := m.read()
	defer unlock()
	return s.FindOverlapping(ctx, q)
}

func (m *Memory) ListAllocations(ctx context.Context, w engine.AllocationWindow) ([]engine.AllocationView, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListAllocations(ctx, w)
}

func (m *Memory) AppendTransaction(ctx context.Context, tx engine.Transaction) error {
	s, unlock := m.write()
	defer unlock()
	return s.AppendTransaction(ctx, tx)
}

func (m *Memory) ListTransactions(ctx context.Context, f engine.TransactionFilter) ([]engine.Transaction, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListTransactions(ctx, f)
}

func (m *Memory) InsertProduct(ctx context.Context, p engine.Product) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertProduct(ctx, p)
}

func (m *Memory) GetProduct(ctx context.Context, id engine.ProductID) (engine.Product, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetProduct(ctx, id)
}

func (m *Memory) ListProducts(ctx context.Context) ([]engine.Product, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListProducts(ctx)
}

func (m *Memory) AdjustStock(ctx context.Context, id engine.ProductID, delta int) error {
	s, unlock := m.write()
	defer unlock()
	return s.AdjustStock(ctx, id, delta)
}

func (m *Memory) InsertPaymentMethod(ctx context.Context, pm engine.PaymentMethod) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertPaymentMethod(ctx, pm)
}

func (m *Memory) GetPaymentMethod(ctx context.Context, id engine.PaymentMethodID) (engine.PaymentMethod, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetPaymentMethod(ctx, id)
}

func (m *Memory) ListPaymentMethods(ctx context.Context) ([]engine.PaymentMethod, error) {
	s, unlock := m.read()
	defer unlock()
	return s.ListPaymentMethods(ctx)
}

func (m *Memory) InsertSession(ctx context.Context, sess engine.Session) error {
	s, unlock := m.write()
	defer unlock()
	return s.InsertSession(ctx, sess)
}

func (m *Memory) GetSession(ctx context.Context, id engine.SessionID) (engine.Session, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetSession(ctx, id)
}

func (m *Memory) GetOpenSession(ctx context.Context, operator engine.OperatorID) (engine.Session, error) {
	s, unlock := m.read()
	defer unlock()
	return s.GetOpenSession(ctx, operator)
}

func (m *Memory) CloseSession(ctx context.Context, id engine.SessionID, c engine.SessionClose) error {
	s, unlock := m.write()
	defer unlock()
	return s.CloseSession(ctx, id, c)
}

var (
	_ engine.TxStore = (*Memory)(nil)
	_ engine.Store   = (*state)(nil)
)
