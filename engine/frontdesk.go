package engine

import (
	"context"
	"sort"
)

// =============================================================================
// FRONT DESK VIEWS - Read-only projections for the calendar and dashboard
// =============================================================================

type FrontDesk struct {
	rt *runtime
}

// CalendarEntry is one allocation on the occupancy grid.
type CalendarEntry struct {
	AllocationID  AllocationID
	BookingID     BookingID
	BookingStatus BookingStatus
	RoomID        RoomID
	RoomNumber    string
	GuestID       GuestID
	GuestName     string
	Stay          DateRange
}

type Calendar struct {
	Window  DateRange
	Rooms   []Room
	Entries []CalendarEntry
}

// Calendar returns every room and the non-canceled allocations touching
// window, ordered by room number then start date.
func (f *FrontDesk) Calendar(ctx context.Context, window DateRange) (Calendar, error) {
	if err := window.Validate(); err != nil {
		return Calendar{}, err
	}
	rooms, err := f.rt.store.ListRooms(ctx, "")
	if err != nil {
		return Calendar{}, f.rt.read("calendar", err)
	}
	views, err := f.rt.store.ListAllocations(ctx, AllocationWindow{
		Window: window,
		Ignore: []BookingStatus{BookingCanceled},
	})
	if err != nil {
		return Calendar{}, f.rt.read("calendar", err)
	}

	numbers := make(map[RoomID]string, len(rooms))
	for _, r := range rooms {
		numbers[r.ID] = r.Number
	}
	guests := make(map[GuestID]string)
	cal := Calendar{Window: window, Rooms: rooms}
	for _, v := range views {
		name, ok := guests[v.GuestID]
		if !ok {
			g, err := f.rt.store.GetGuest(ctx, v.GuestID)
			if err != nil {
				return Calendar{}, f.rt.read("calendar", err)
			}
			name = g.Name
			guests[v.GuestID] = name
		}
		cal.Entries = append(cal.Entries, CalendarEntry{
			AllocationID:  v.ID,
			BookingID:     v.BookingID,
			BookingStatus: v.BookingStatus,
			RoomID:        v.RoomID,
			RoomNumber:    numbers[v.RoomID],
			GuestID:       v.GuestID,
			GuestName:     name,
			Stay:          v.Stay,
		})
	}
	sort.SliceStable(cal.Entries, func(i, j int) bool {
		a, b := cal.Entries[i], cal.Entries[j]
		if a.RoomNumber != b.RoomNumber {
			return a.RoomNumber < b.RoomNumber
		}
		return a.Stay.Start.Before(b.Stay.Start)
	})
	return cal, nil
}

// Dashboard is the desk's view of one day.
type Dashboard struct {
	Day          Date
	RoomsByState map[RoomStatus]int
	TotalRooms   int
	Arrivals     []CalendarEntry // CONFIRMED or PENDING stays starting on Day
	Departures   []CalendarEntry // CHECKED_IN stays ending on Day
	InHouse      []CalendarEntry // CHECKED_IN stays covering Day
	EndingSoon   []CalendarEntry // CHECKED_IN stays ending on Day or the day after

	// OccupancyRate is the whole-number percentage of rooms OCCUPIED.
	OccupancyRate int
}

func (f *FrontDesk) Dashboard(ctx context.Context, day Date) (Dashboard, error) {
	if day.IsZero() {
		day = f.rt.today()
	}
	// Window covers the night before so stays ending today are included.
	cal, err := f.Calendar(ctx, NewDateRange(day.AddDays(-1), day.AddDays(1)))
	if err != nil {
		return Dashboard{}, err
	}

	d := Dashboard{
		Day:          day,
		RoomsByState: map[RoomStatus]int{RoomAvailable: 0, RoomOccupied: 0, RoomDirty: 0, RoomMaintenance: 0},
		TotalRooms:   len(cal.Rooms),
	}
	for _, r := range cal.Rooms {
		d.RoomsByState[r.Status]++
	}
	if d.TotalRooms > 0 {
		d.OccupancyRate = d.RoomsByState[RoomOccupied] * 100 / d.TotalRooms
	}
	tomorrow := day.AddDays(1)
	for _, e := range cal.Entries {
		switch e.BookingStatus {
		case BookingPending, BookingConfirmed:
			if e.Stay.Start.Equal(day) {
				d.Arrivals = append(d.Arrivals, e)
			}
		case BookingCheckedIn:
			if e.Stay.End.Equal(day) {
				d.Departures = append(d.Departures, e)
			}
			if e.Stay.Contains(day) {
				d.InHouse = append(d.InHouse, e)
			}
			if e.Stay.End.Equal(day) || e.Stay.End.Equal(tomorrow) {
				d.EndingSoon = append(d.EndingSoon, e)
			}
		}
	}
	return d, nil
}
