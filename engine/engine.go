package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ENGINE - Wires the components over one shared store
// =============================================================================

// Engine bundles the front-desk components. They all share the same TxStore
// and configuration; construct it with New.
type Engine struct {
	Rooms        *RoomRegistry
	Availability *AvailabilityLedger
	Bookings     *BookingLifecycle
	Ledger       *FinancialLedger
	Cashier      *CashierSessionManager
	Catalog      *Catalog
	FrontDesk    *FrontDesk
}

type Option func(*runtime)

// WithClock replaces time.Now. Tests pin it to a fixed instant.
func WithClock(now func() time.Time) Option {
	return func(r *runtime) { r.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *runtime) { r.log = l }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(r *runtime) { r.newID = gen }
}

// WithReleasePolicy decides which finished bookings stop blocking a room.
func WithReleasePolicy(p ReleasePolicy) Option {
	return func(r *runtime) { r.release = p }
}

func New(store TxStore, opts ...Option) *Engine {
	rt := &runtime{
		store:   store,
		now:     func() time.Time { return time.Now().UTC() },
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:   uuid.NewString,
		release: ReleaseCanceledAndCompleted,
	}
	for _, opt := range opts {
		opt(rt)
	}

	availability := &AvailabilityLedger{rt: rt}
	return &Engine{
		Rooms:        &RoomRegistry{rt: rt},
		Availability: availability,
		Bookings:     &BookingLifecycle{rt: rt, availability: availability},
		Ledger:       &FinancialLedger{rt: rt},
		Cashier:      &CashierSessionManager{rt: rt},
		Catalog:      &Catalog{rt: rt},
		FrontDesk:    &FrontDesk{rt: rt},
	}
}

// runtime is the state shared by every component.
type runtime struct {
	store   TxStore
	now     func() time.Time
	log     *slog.Logger
	newID   func() string
	release ReleasePolicy
}

func (rt *runtime) today() Date { return DateOf(rt.now()) }

// withTx runs fn as one unit of work. Business errors pass through
// untouched; anything else is reported as an InfrastructureError so the
// caller knows to retry the whole operation.
func (rt *runtime) withTx(ctx context.Context, op string, fn func(Store) error) error {
	err := rt.store.WithTx(ctx, fn)
	if err == nil || IsBusinessError(err) {
		return err
	}
	rt.log.Error("operation aborted", "op", op, "error", err)
	return &InfrastructureError{Op: op, Err: err}
}

// read wraps plain reads the same way.
func (rt *runtime) read(op string, err error) error {
	if err == nil || IsBusinessError(err) {
		return err
	}
	return &InfrastructureError{Op: op, Err: err}
}
