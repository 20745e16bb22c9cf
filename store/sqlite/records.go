package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/frontdesk-engine/engine"
)

// =============================================================================
// ROOM STORE
// =============================================================================

func (s *sqlStore) InsertCategory(ctx context.Context, c engine.RoomCategory) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO room_categories (id, name, description, max_adults, max_children, base_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.MaxAdults, c.MaxChildren, c.BasePrice, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

const categoryColumns = `id, name, description, max_adults, max_children, base_price, created_at`

func scanCategory(row interface{ Scan(...any) error }) (engine.RoomCategory, error) {
	var c engine.RoomCategory
	var createdAt string
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.MaxAdults, &c.MaxChildren, &c.BasePrice, &createdAt); err != nil {
		return c, err
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func (s *sqlStore) GetCategory(ctx context.Context, id engine.CategoryID) (engine.RoomCategory, error) {
	c, err := scanCategory(s.q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM room_categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, missing("category", id)
	}
	return c, err
}

func (s *sqlStore) ListCategories(ctx context.Context) ([]engine.RoomCategory, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM room_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []engine.RoomCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) InsertRoom(ctx context.Context, r engine.Room) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO rooms (id, number, floor, category_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Number, r.Floor, r.CategoryID, r.Status, formatTime(r.CreatedAt),
	)
	switch {
	case err == nil:
		return nil
	case isUniqueConstraintError(err):
		return duplicate("number", r.Number)
	case isForeignKeyError(err):
		return missing("category", r.CategoryID)
	}
	return fmt.Errorf("failed to insert room: %w", err)
}

const roomColumns = `id, number, floor, category_id, status, created_at`

func scanRoom(row interface{ Scan(...any) error }) (engine.Room, error) {
	var r engine.Room
	var createdAt string
	if err := row.Scan(&r.ID, &r.Number, &r.Floor, &r.CategoryID, &r.Status, &createdAt); err != nil {
		return r, err
	}
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

func (s *sqlStore) GetRoom(ctx context.Context, id engine.RoomID) (engine.Room, error) {
	r, err := scanRoom(s.q.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, missing("room", id)
	}
	return r, err
}

func (s *sqlStore) ListRooms(ctx context.Context, status engine.RoomStatus) ([]engine.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY number`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var out []engine.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) UpdateRoomStatus(ctx context.Context, id engine.RoomID, from, next engine.RoomStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE rooms SET status = ? WHERE id = ? AND status = ?`, next, id, from)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.GetRoom(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("room %s is no longer %s: %w", id, from, engine.ErrConcurrentModification)
}

func (s *sqlStore) DeleteRoom(ctx context.Context, id engine.RoomID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if isForeignKeyError(err) {
		return fmt.Errorf("room %s has allocations: %w", id, engine.ErrProtected)
	}
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missing("room", id)
	}
	return nil
}

// =============================================================================
// GUEST STORE
// =============================================================================

const guestColumns = `id, name, email, phone, document, passport, address, city, state, country, created_at`

func (s *sqlStore) InsertGuest(ctx context.Context, g engine.Guest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO guests (`+guestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.Email, g.Phone, g.Document, g.Passport,
		g.Address, g.City, g.State, g.Country, formatTime(g.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert guest: %w", err)
	}
	return nil
}

func scanGuest(row interface{ Scan(...any) error }) (engine.Guest, error) {
	var g engine.Guest
	var createdAt string
	err := row.Scan(&g.ID, &g.Name, &g.Email, &g.Phone, &g.Document, &g.Passport,
		&g.Address, &g.City, &g.State, &g.Country, &createdAt)
	if err != nil {
		return g, err
	}
	g.CreatedAt = parseTime(createdAt)
	return g, nil
}

func (s *sqlStore) GetGuest(ctx context.Context, id engine.GuestID) (engine.Guest, error) {
	g, err := scanGuest(s.q.QueryRowContext(ctx, `SELECT `+guestColumns+` FROM guests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return g, missing("guest", id)
	}
	return g, err
}

func (s *sqlStore) ListGuests(ctx context.Context) ([]engine.Guest, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+guestColumns+` FROM guests ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guests: %w", err)
	}
	defer rows.Close()

	var out []engine.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqlStore) DeleteGuest(ctx context.Context, id engine.GuestID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM guests WHERE id = ?`, id)
	if isForeignKeyError(err) {
		return fmt.Errorf("guest %s has bookings: %w", id, engine.ErrProtected)
	}
	if err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missing("guest", id)
	}
	return nil
}

// =============================================================================
// BOOKING STORE
// =============================================================================

func (s *sqlStore) InsertBooking(ctx context.Context, b engine.Booking) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO bookings (id, guest_id, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.GuestID, b.Status, b.Notes, formatTime(b.CreatedAt),
	)
	if isForeignKeyError(err) {
		return missing("guest", b.GuestID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (s *sqlStore) InsertAllocation(ctx context.Context, a engine.Allocation) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO allocations (id, booking_id, room_id, start_date, end_date, agreed_price)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.BookingID, a.RoomID, a.Stay.Start.String(), a.Stay.End.String(), a.AgreedPrice,
	)
	if isForeignKeyError(err) {
		return missing("booking or room", a.BookingID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

func (s *sqlStore) GetBooking(ctx context.Context, id engine.BookingID) (engine.Booking, error) {
	var b engine.Booking
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, guest_id, status, notes, created_at FROM bookings WHERE id = ?`, id,
	).Scan(&b.ID, &b.GuestID, &b.Status, &b.Notes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, missing("booking", id)
	}
	if err != nil {
		return b, fmt.Errorf("failed to get booking: %w", err)
	}
	b.CreatedAt = parseTime(createdAt)

	rows, err := s.q.QueryContext(ctx, `
		SELECT id, booking_id, room_id, start_date, end_date, agreed_price
		FROM allocations WHERE booking_id = ?
		ORDER BY start_date, id`, id)
	if err != nil {
		return b, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return b, err
		}
		b.Allocations = append(b.Allocations, a)
	}
	return b, rows.Err()
}

func scanAllocation(row interface{ Scan(...any) error }, extra ...any) (engine.Allocation, error) {
	var a engine.Allocation
	var start, end string
	dest := append([]any{&a.ID, &a.BookingID, &a.RoomID, &start, &end, &a.AgreedPrice}, extra...)
	if err := row.Scan(dest...); err != nil {
		return a, fmt.Errorf("failed to scan allocation: %w", err)
	}
	var err error
	if a.Stay.Start, err = parseDate(start); err != nil {
		return a, err
	}
	if a.Stay.End, err = parseDate(end); err != nil {
		return a, err
	}
	return a, nil
}

func (s *sqlStore) UpdateBookingStatus(ctx context.Context, id engine.BookingID, from, next engine.BookingStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, next, id, from)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	var exists int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return missing("booking", id)
	}
	return fmt.Errorf("booking %s is no longer %s: %w", id, from, engine.ErrConcurrentModification)
}

func (s *sqlStore) LockRoom(ctx context.Context, id engine.RoomID) error {
	res, err := s.q.ExecContext(ctx, `UPDATE rooms SET lock_version = lock_version + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to lock room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return missing("room", id)
	}
	return nil
}

const allocationViewQuery = `
	SELECT a.id, a.booking_id, a.room_id, a.start_date, a.end_date, a.agreed_price,
	       b.status, b.guest_id
	FROM allocations a
	JOIN bookings b ON b.id = a.booking_id`

func (s *sqlStore) queryViews(ctx context.Context, query string, args ...any) ([]engine.AllocationView, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var out []engine.AllocationView
	for rows.Next() {
		var v engine.AllocationView
		a, err := scanAllocation(rows, &v.BookingStatus, &v.GuestID)
		if err != nil {
			return nil, err
		}
		v.Allocation = a
		out = append(out, v)
	}
	return out, rows.Err()
}

func statusFilter(ignore []engine.BookingStatus) (string, []any) {
	if len(ignore) == 0 {
		return "", nil
	}
	args := make([]any, len(ignore))
	for i, st := range ignore {
		args[i] = st
	}
	return ` AND b.status NOT IN (` + placeholders(len(ignore)) + `)`, args
}

// FindOverlapping uses the half-open test start < other.end AND other.start < end.
func (s *sqlStore) FindOverlapping(ctx context.Context, q engine.OverlapQuery) ([]engine.AllocationView, error) {
	query := allocationViewQuery + `
	WHERE a.room_id = ? AND a.start_date < ? AND ? < a.end_date AND a.id != ?`
	args := []any{q.RoomID, q.Stay.End.String(), q.Stay.Start.String(), q.Exclude}
	clause, extra := statusFilter(q.Ignore)
	query += clause + ` ORDER BY a.start_date`
	return s.queryViews(ctx, query, append(args, extra...)...)
}

func (s *sqlStore) ListAllocations(ctx context.Context, w engine.AllocationWindow) ([]engine.AllocationView, error) {
	query := allocationViewQuery + `
	WHERE a.start_date < ? AND ? < a.end_date`
	args := []any{w.Window.End.String(), w.Window.Start.String()}
	clause, extra := statusFilter(w.Ignore)
	query += clause + ` ORDER BY a.room_id, a.start_date`
	return s.queryViews(ctx, query, append(args, extra...)...)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (s *sqlStore) AppendTransaction(ctx context.Context, tx engine.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, session_id, booking_id, payment_method_id, product_id, tx_type, amount, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID,
		nullString(tx.SessionID),
		nullString(tx.BookingID),
		nullString(tx.PaymentMethodID),
		nullString(tx.ProductID),
		tx.Type,
		tx.Amount,
		tx.Description,
		formatTime(tx.CreatedAt),
	)
	switch {
	case err == nil:
		return nil
	case isClosedSessionError(err):
		return fmt.Errorf("session %v: %w", *tx.SessionID, engine.ErrClosedSession)
	case isForeignKeyError(err):
		return missing("transaction reference", tx.ID)
	}
	return fmt.Errorf("failed to append transaction: %w", err)
}

func (s *sqlStore) ListTransactions(ctx context.Context, f engine.TransactionFilter) ([]engine.Transaction, error) {
	var where []string
	var args []any
	if f.SessionID != nil {
		where = append(where, `session_id = ?`)
		args = append(args, *f.SessionID)
	}
	if f.BookingID != nil {
		where = append(where, `booking_id = ?`)
		args = append(args, *f.BookingID)
	}
	if len(f.Types) > 0 {
		where = append(where, `tx_type IN (`+placeholders(len(f.Types))+`)`)
		for _, t := range f.Types {
			args = append(args, t)
		}
	}

	query := `
		SELECT id, session_id, booking_id, payment_method_id, product_id, tx_type, amount, description, created_at
		FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []engine.Transaction
	for rows.Next() {
		var (
			tx                                engine.Transaction
			session, booking, method, product sql.NullString
			createdAt                         string
		)
		err := rows.Scan(&tx.ID, &session, &booking, &method, &product,
			&tx.Type, &tx.Amount, &tx.Description, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.SessionID = ptr[engine.SessionID](session)
		tx.BookingID = ptr[engine.BookingID](booking)
		tx.PaymentMethodID = ptr[engine.PaymentMethodID](method)
		tx.ProductID = ptr[engine.ProductID](product)
		tx.CreatedAt = parseTime(createdAt)
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *sqlStore) InsertProduct(ctx context.Context, p engine.Product) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Price, p.Stock, p.Active, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

const productColumns = `id, name, price, stock, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (engine.Product, error) {
	var p engine.Product
	var createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Active, &createdAt); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(createdAt)
	return p, nil
}

func (s *sqlStore) GetProduct(ctx context.Context, id engine.ProductID) (engine.Product, error) {
	p, err := scanProduct(s.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, missing("product", id)
	}
	return p, err
}

func (s *sqlStore) ListProducts(ctx context.Context) ([]engine.Product, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []engine.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AdjustStock is a conditional update: the row only changes if the result
// stays non-negative.
func (s *sqlStore) AdjustStock(ctx context.Context, id engine.ProductID, delta int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE products SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`, delta, id, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	return &engine.InsufficientStockError{ProductID: id, Name: p.Name, Available: p.Stock, Requested: -delta}
}

func (s *sqlStore) InsertPaymentMethod(ctx context.Context, m engine.PaymentMethod) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO payment_methods (id, name, slug, active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Slug, m.Active, formatTime(m.CreatedAt),
	)
	if isUniqueConstraintError(err) {
		return duplicate("name", m.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to insert payment method: %w", err)
	}
	return nil
}

const methodColumns = `id, name, slug, active, created_at`

func scanMethod(row interface{ Scan(...any) error }) (engine.PaymentMethod, error) {
	var m engine.PaymentMethod
	var createdAt string
	if err := row.Scan(&m.ID, &m.Name, &m.Slug, &m.Active, &createdAt); err != nil {
		return m, err
	}
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

func (s *sqlStore) GetPaymentMethod(ctx context.Context, id engine.PaymentMethodID) (engine.PaymentMethod, error) {
	m, err := scanMethod(s.q.QueryRowContext(ctx, `SELECT `+methodColumns+` FROM payment_methods WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return m, missing("payment method", id)
	}
	return m, err
}

func (s *sqlStore) ListPaymentMethods(ctx context.Context) ([]engine.PaymentMethod, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+methodColumns+` FROM payment_methods ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment methods: %w", err)
	}
	defer rows.Close()

	var out []engine.PaymentMethod
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// SESSION STORE
// =============================================================================

func (s *sqlStore) InsertSession(ctx context.Context, sess engine.Session) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO cash_sessions (id, operator_id, status, opening_balance, notes, opened_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.OperatorID, sess.Status, sess.OpeningBalance, sess.Notes, formatTime(sess.OpenedAt),
	)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("operator %s: %w", sess.OperatorID, engine.ErrSessionAlreadyOpen)
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, operator_id, status, opening_balance, closing_balance,
	calculated_balance, difference, notes, opened_at, closed_at`

func scanSession(row interface{ Scan(...any) error }) (engine.Session, error) {
	var (
		sess                            engine.Session
		closing, calculated, difference decimal.NullDecimal
		openedAt                        string
		closedAt                        sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.OperatorID, &sess.Status, &sess.OpeningBalance,
		&closing, &calculated, &difference, &sess.Notes, &openedAt, &closedAt)
	if err != nil {
		return sess, err
	}
	sess.ClosingBalance = nullDecimal(closing)
	sess.CalculatedBalance = nullDecimal(calculated)
	sess.Difference = nullDecimal(difference)
	sess.OpenedAt = parseTime(openedAt)
	sess.ClosedAt = nullTime(closedAt)
	return sess, nil
}

func nullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func (s *sqlStore) GetSession(ctx context.Context, id engine.SessionID) (engine.Session, error) {
	sess, err := scanSession(s.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return sess, missing("session", id)
	}
	return sess, err
}

func (s *sqlStore) GetOpenSession(ctx context.Context, operator engine.OperatorID) (engine.Session, error) {
	sess, err := scanSession(s.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM cash_sessions WHERE operator_id = ? AND status = 'OPEN'`, operator))
	if errors.Is(err, sql.ErrNoRows) {
		return sess, missing("open session for operator", operator)
	}
	return sess, err
}

func (s *sqlStore) CloseSession(ctx context.Context, id engine.SessionID, c engine.SessionClose) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE cash_sessions
		SET status = 'CLOSED', closing_balance = ?, calculated_balance = ?, difference = ?,
		    notes = ?, closed_at = ?
		WHERE id = ? AND status = 'OPEN'`,
		c.ClosingBalance, c.CalculatedBalance, c.Difference, c.Notes, formatTime(c.ClosedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.GetSession(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("session %s: %w", id, engine.ErrAlreadyClosed)
}
