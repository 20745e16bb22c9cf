package engine

import "context"

// =============================================================================
// RELEASE POLICY - Which finished bookings stop blocking a room
// =============================================================================

type ReleasePolicy int

const (
	// ReleaseCanceled frees a room only when the booking is canceled. A
	// COMPLETED stay keeps its dates blocked.
	ReleaseCanceled ReleasePolicy = iota
	// ReleaseCanceledAndCompleted also frees the dates of completed stays,
	// so an early check-out can be resold for the remaining nights.
	ReleaseCanceledAndCompleted
)

func (p ReleasePolicy) ignored() []BookingStatus {
	if p == ReleaseCanceled {
		return []BookingStatus{BookingCanceled}
	}
	return []BookingStatus{BookingCanceled, BookingCompleted}
}

func (p ReleasePolicy) String() string {
	if p == ReleaseCanceled {
		return "canceled"
	}
	return "canceled+completed"
}

// =============================================================================
// AVAILABILITY LEDGER
// =============================================================================

// AvailabilityLedger answers "is this room free for these nights". Its
// public reads are advisory: between the answer and a booking write another
// operator may take the room. The authoritative check is lockConflicts,
// which CreateBooking runs inside its own unit of work.
type AvailabilityLedger struct {
	rt *runtime
}

// FindConflicts returns the live allocations on roomID overlapping stay.
// exclude skips one allocation, for edits of an existing stay.
func (a *AvailabilityLedger) FindConflicts(ctx context.Context, roomID RoomID, stay DateRange, exclude AllocationID) ([]Conflict, error) {
	if err := stay.Validate(); err != nil {
		return nil, err
	}
	if _, err := a.rt.store.GetRoom(ctx, roomID); err != nil {
		return nil, a.rt.read("find conflicts", err)
	}
	conflicts, err := a.conflicts(ctx, a.rt.store, roomID, stay, exclude)
	return conflicts, a.rt.read("find conflicts", err)
}

func (a *AvailabilityLedger) IsAvailable(ctx context.Context, roomID RoomID, stay DateRange) (bool, error) {
	conflicts, err := a.FindConflicts(ctx, roomID, stay, "")
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// lockConflicts serializes against other writers on roomID, then checks.
// Must run inside WithTx; the lock lasts until that unit commits.
func (a *AvailabilityLedger) lockConflicts(ctx context.Context, s Store, roomID RoomID, stay DateRange, exclude AllocationID) ([]Conflict, error) {
	if err := s.LockRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return a.conflicts(ctx, s, roomID, stay, exclude)
}

func (a *AvailabilityLedger) conflicts(ctx context.Context, s Store, roomID RoomID, stay DateRange, exclude AllocationID) ([]Conflict, error) {
	views, err := s.FindOverlapping(ctx, OverlapQuery{
		RoomID:  roomID,
		Stay:    stay,
		Exclude: exclude,
		Ignore:  a.rt.release.ignored(),
	})
	if err != nil {
		return nil, err
	}
	conflicts := make([]Conflict, 0, len(views))
	for _, v := range views {
		// Half-open: a stay ending on our start day is not a conflict.
		if !v.Stay.Overlaps(stay) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			AllocationID:  v.ID,
			BookingID:     v.BookingID,
			BookingStatus: v.BookingStatus,
			GuestID:       v.GuestID,
			RoomID:        v.RoomID,
			Stay:          v.Stay,
		})
	}
	return conflicts, nil
}
