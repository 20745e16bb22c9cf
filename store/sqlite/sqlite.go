/*
Package sqlite provides a SQLite-backed implementation of engine.TxStore.

PURPOSE:
  Persists rooms, bookings, allocations, the transaction ledger and cash
  register sessions. The schema carries the invariants the engine relies
  on, so a caller bypassing the engine still can't break them.

WRITER SERIALIZATION:
  Every WithTx opens with BEGIN IMMEDIATE (_txlock=immediate), which takes
  SQLite's reserved lock before the first statement. Two units of work that
  both want to book room 101 therefore run one after the other, and the
  second one's overlap query sees the first one's allocation. An in-process
  mutex sits in front of it so goroutines in this process queue on the
  mutex instead of spinning on SQLITE_BUSY; other processes wait up to
  _busy_timeout and then fail with an infrastructure error.

  LockRoom bumps rooms.lock_version. Under BEGIN IMMEDIATE that is redundant
  but it is the explicit room-scoped lock point, and it is what makes the
  same code correct on a backend with row locks.

APPEND-ONLY ENFORCEMENT:
  - triggers abort any UPDATE or DELETE on transactions
  - a trigger aborts INSERTs referencing a CLOSED session
  - corrections are new entries (REFUND against INCOME)

KEY CONSTRAINTS:
  idx_cash_sessions_one_open:  partial unique index, one OPEN session per operator
  idx_allocations_room_dates:  overlap query (hot path)
  products.stock CHECK >= 0
  FOREIGN KEY ... ON DELETE RESTRICT: rooms and guests with history are protected

ENCODING:
  Money is TEXT via decimal.Decimal's Valuer/Scanner, never REAL.
  Dates are TEXT YYYY-MM-DD so string comparison is date comparison.
  Timestamps are fixed-width UTC TEXT so they sort.

USAGE:
  store, err := sqlite.New("./data/frontdesk.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(store)

SEE ALSO:
  - engine/store.go: interface definitions
  - engine/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/frontdesk-engine/engine"
)

const (
	tsLayout   = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout = "2006-01-02"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	sqlStore
	db *sql.DB
	mu sync.Mutex // queues writers from this process
}

type Option func(*options)

type options struct {
	busyTimeout time.Duration
}

// WithBusyTimeout bounds how long a writer waits for another process's
// lock before giving up.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=%d",
		dbPath, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{sqlStore: sqlStore{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS room_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		max_adults INTEGER NOT NULL DEFAULT 0,
		max_children INTEGER NOT NULL DEFAULT 0,
		base_price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		floor TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL REFERENCES room_categories(id) ON DELETE RESTRICT,
		status TEXT NOT NULL
			CHECK (status IN ('AVAILABLE', 'OCCUPIED', 'DIRTY', 'MAINTENANCE')),
		lock_version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);

	CREATE TABLE IF NOT EXISTS guests (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL DEFAULT '',
		passport TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		guest_id TEXT NOT NULL REFERENCES guests(id) ON DELETE RESTRICT,
		status TEXT NOT NULL
			CHECK (status IN ('PENDING', 'CONFIRMED', 'CHECKED_IN', 'COMPLETED', 'CANCELED')),
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_guest ON bookings(guest_id);

	-- Half-open [start_date, end_date)
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE RESTRICT,
		room_id TEXT NOT NULL REFERENCES rooms(id) ON DELETE RESTRICT,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		agreed_price TEXT NOT NULL,
		CHECK (start_date < end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_room_dates
		ON allocations(room_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_allocations_booking
		ON allocations(booking_id);

	CREATE TABLE IF NOT EXISTS payment_methods (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cash_sessions (
		id TEXT PRIMARY KEY,
		operator_id TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('OPEN', 'CLOSED')),
		opening_balance TEXT NOT NULL,
		closing_balance TEXT,
		calculated_balance TEXT,
		difference TEXT,
		notes TEXT NOT NULL DEFAULT '',
		opened_at TEXT NOT NULL,
		closed_at TEXT
	);

	-- CRITICAL: at most one OPEN session per operator
	CREATE UNIQUE INDEX IF NOT EXISTS idx_cash_sessions_one_open
		ON cash_sessions(operator_id) WHERE status = 'OPEN';

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		session_id TEXT REFERENCES cash_sessions(id) ON DELETE RESTRICT,
		booking_id TEXT REFERENCES bookings(id) ON DELETE RESTRICT,
		payment_method_id TEXT REFERENCES payment_methods(id) ON DELETE RESTRICT,
		product_id TEXT REFERENCES products(id) ON DELETE RESTRICT,
		tx_type TEXT NOT NULL CHECK (tx_type IN ('INCOME', 'EXPENSE', 'REFUND', 'CONSUMPTION')),
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_session
		ON transactions(session_id, created_at) WHERE session_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_transactions_booking
		ON transactions(booking_id, created_at) WHERE booking_id IS NOT NULL;

	CREATE TRIGGER IF NOT EXISTS trg_transactions_no_update
		BEFORE UPDATE ON transactions
	BEGIN
		SELECT RAISE(ABORT, 'transactions are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_transactions_no_delete
		BEFORE DELETE ON transactions
	BEGIN
		SELECT RAISE(ABORT, 'transactions are append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_transactions_closed_session
		BEFORE INSERT ON transactions
		WHEN NEW.session_id IS NOT NULL
		 AND (SELECT status FROM cash_sessions WHERE id = NEW.session_id) = 'CLOSED'
	BEGIN
		SELECT RAISE(ABORT, 'cash register session is closed');
	END;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
// The store handed to fn uses only the *sql.Tx.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&sqlStore{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqlStore implements engine.Store over a queryer.
type sqlStore struct {
	q queryer
}

var (
	_ engine.TxStore = (*Store)(nil)
	_ engine.Store   = (*sqlStore)(nil)
)

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(tsLayout, s)
	return t
}

func nullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func parseDate(s string) (engine.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return engine.Date{}, fmt.Errorf("corrupt date %q: %w", s, err)
	}
	return engine.DateOf(t), nil
}

func nullString[T ~string](v *T) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*v), Valid: true}
}

func ptr[T ~string](s sql.NullString) *T {
	if !s.Valid {
		return nil
	}
	v := T(s.String)
	return &v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func sqliteCode(err error) (sqlite3.ErrNoExtended, bool) {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode, true
	}
	return 0, false
}

func isUniqueConstraintError(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlite3.ErrConstraintUnique || code == sqlite3.ErrConstraintPrimaryKey)
}

func isForeignKeyError(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.ErrConstraintForeignKey
}

func isClosedSessionError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "cash register session is closed")
}

func duplicate(field, value string) error {
	return &engine.ValidationError{Field: field, Message: fmt.Sprintf("%q already exists", value)}
}

func missing(kind string, id any) error {
	return fmt.Errorf("%s %v: %w", kind, id, engine.ErrNotFound)
}
