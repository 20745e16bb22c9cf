/*
room.go - Room housekeeping state machine and registry

PURPOSE:
  Rooms move through a small, explicit set of named transitions. The table
  below is the single source of truth: no code path writes a room status
  without going through NextRoomStatus.

TRANSITIONS:
  check_in               AVAILABLE    -> OCCUPIED
  check_out              OCCUPIED     -> DIRTY
  finish_cleaning        DIRTY        -> AVAILABLE
  block_for_maintenance  *            -> MAINTENANCE
  finish_maintenance     MAINTENANCE  -> AVAILABLE
  mark_as_dirty          *            -> DIRTY

  "*" is a wildcard source. mark_as_dirty is what check-out uses, so a room
  that was never checked in (or went to maintenance mid-stay) still ends up
  waiting for housekeeping.

PERSISTENCE:
  Status writes are compare-and-set on the current status. If another
  transaction moved the room first, the write fails with
  ErrConcurrentModification rather than silently overwriting it.
*/
package engine

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type RoomTransition string

const (
	TransitionCheckIn           RoomTransition = "check_in"
	TransitionCheckOut          RoomTransition = "check_out"
	TransitionFinishCleaning    RoomTransition = "finish_cleaning"
	TransitionBlockMaintenance  RoomTransition = "block_for_maintenance"
	TransitionFinishMaintenance RoomTransition = "finish_maintenance"
	TransitionMarkDirty         RoomTransition = "mark_as_dirty"
)

type roomEdge struct {
	from   []RoomStatus // nil means any status
	target RoomStatus
}

var roomTransitions = map[RoomTransition]roomEdge{
	TransitionCheckIn:           {from: []RoomStatus{RoomAvailable}, target: RoomOccupied},
	TransitionCheckOut:          {from: []RoomStatus{RoomOccupied}, target: RoomDirty},
	TransitionFinishCleaning:    {from: []RoomStatus{RoomDirty}, target: RoomAvailable},
	TransitionBlockMaintenance:  {target: RoomMaintenance},
	TransitionFinishMaintenance: {from: []RoomStatus{RoomMaintenance}, target: RoomAvailable},
	TransitionMarkDirty:         {target: RoomDirty},
}

func (t RoomTransition) Valid() bool {
	_, ok := roomTransitions[t]
	return ok
}

// RoomTransitions lists every known transition name.
func RoomTransitions() []RoomTransition {
	return []RoomTransition{
		TransitionCheckIn, TransitionCheckOut, TransitionFinishCleaning,
		TransitionBlockMaintenance, TransitionFinishMaintenance, TransitionMarkDirty,
	}
}

// NextRoomStatus returns the status a room in current ends up in after t.
func NextRoomStatus(current RoomStatus, t RoomTransition) (RoomStatus, error) {
	edge, ok := roomTransitions[t]
	if !ok {
		return "", &ValidationError{Field: "transition", Message: "unknown room transition " + string(t)}
	}
	if edge.from == nil {
		return edge.target, nil
	}
	for _, s := range edge.from {
		if s == current {
			return edge.target, nil
		}
	}
	return "", &InvalidTransitionError{From: current, Transition: t}
}

// =============================================================================
// ROOM REGISTRY
// =============================================================================

type RoomRegistry struct {
	rt *runtime
}

// Transition applies t to the room in its own unit of work.
func (r *RoomRegistry) Transition(ctx context.Context, id RoomID, t RoomTransition) (Room, error) {
	var room Room
	err := r.rt.withTx(ctx, "room transition", func(s Store) error {
		var err error
		room, err = applyRoomTransition(ctx, s, id, t)
		return err
	})
	if err != nil {
		return Room{}, err
	}
	r.rt.log.Info("room transition", "room", id, "transition", t, "status", room.Status)
	return room, nil
}

// applyRoomTransition is the only place a room status is written. Callers
// already inside a unit of work (check-in, check-out) use it directly.
func applyRoomTransition(ctx context.Context, s Store, id RoomID, t RoomTransition) (Room, error) {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}
	next, err := NextRoomStatus(room.Status, t)
	if err != nil {
		if ite, ok := err.(*InvalidTransitionError); ok {
			ite.RoomID = id
		}
		return Room{}, err
	}
	if next == room.Status {
		return room, nil
	}
	if err := s.UpdateRoomStatus(ctx, id, room.Status, next); err != nil {
		return Room{}, err
	}
	room.Status = next
	return room, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type NewCategory struct {
	Name        string
	Description string
	MaxAdults   int
	MaxChildren int
	BasePrice   decimal.Decimal
}

func (r *RoomRegistry) AddCategory(ctx context.Context, req NewCategory) (RoomCategory, error) {
	if strings.TrimSpace(req.Name) == "" {
		return RoomCategory{}, &ValidationError{Field: "name", Message: "is required"}
	}
	if req.BasePrice.IsNegative() {
		return RoomCategory{}, &ValidationError{Field: "base_price", Message: "must not be negative"}
	}
	if req.MaxAdults < 0 || req.MaxChildren < 0 {
		return RoomCategory{}, &ValidationError{Field: "capacity", Message: "must not be negative"}
	}
	c := RoomCategory{
		ID:          CategoryID(r.rt.newID()),
		Name:        req.Name,
		Description: req.Description,
		MaxAdults:   req.MaxAdults,
		MaxChildren: req.MaxChildren,
		BasePrice:   req.BasePrice,
		CreatedAt:   r.rt.now(),
	}
	err := r.rt.withTx(ctx, "add category", func(s Store) error {
		return s.InsertCategory(ctx, c)
	})
	if err != nil {
		return RoomCategory{}, err
	}
	return c, nil
}

func (r *RoomRegistry) Categories(ctx context.Context) ([]RoomCategory, error) {
	cs, err := r.rt.store.ListCategories(ctx)
	return cs, r.rt.read("list categories", err)
}

type NewRoom struct {
	Number     string
	Floor      string
	CategoryID CategoryID
	Status     RoomStatus // defaults to AVAILABLE
}

func (r *RoomRegistry) AddRoom(ctx context.Context, req NewRoom) (Room, error) {
	if strings.TrimSpace(req.Number) == "" {
		return Room{}, &ValidationError{Field: "number", Message: "is required"}
	}
	status := req.Status
	if status == "" {
		status = RoomAvailable
	}
	if !status.Valid() {
		return Room{}, &ValidationError{Field: "status", Message: "unknown room status " + string(status)}
	}
	room := Room{
		ID:         RoomID(r.rt.newID()),
		Number:     req.Number,
		Floor:      req.Floor,
		CategoryID: req.CategoryID,
		Status:     status,
		CreatedAt:  r.rt.now(),
	}
	err := r.rt.withTx(ctx, "add room", func(s Store) error {
		if _, err := s.GetCategory(ctx, req.CategoryID); err != nil {
			return err
		}
		return s.InsertRoom(ctx, room)
	})
	if err != nil {
		return Room{}, err
	}
	r.rt.log.Info("room added", "room", room.ID, "number", room.Number)
	return room, nil
}

func (r *RoomRegistry) Room(ctx context.Context, id RoomID) (Room, error) {
	room, err := r.rt.store.GetRoom(ctx, id)
	return room, r.rt.read("get room", err)
}

// Rooms lists rooms ordered by number. An empty status lists all of them;
// Rooms(ctx, RoomDirty) is the housekeeping queue.
func (r *RoomRegistry) Rooms(ctx context.Context, status RoomStatus) ([]Room, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown room status " + string(status)}
	}
	rooms, err := r.rt.store.ListRooms(ctx, status)
	return rooms, r.rt.read("list rooms", err)
}

// RemoveRoom deletes a room. Rooms with allocations are protected.
func (r *RoomRegistry) RemoveRoom(ctx context.Context, id RoomID) error {
	err := r.rt.withTx(ctx, "remove room", func(s Store) error {
		return s.DeleteRoom(ctx, id)
	})
	if err == nil {
		r.rt.log.Info("room removed", "room", id)
	}
	return err
}
