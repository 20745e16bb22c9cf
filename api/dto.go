/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP API. They keep the engine types free of JSON
  concerns and let the API rename fields without touching the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Requests accept amounts as JSON strings or numbers ("80.00" or 80).
  Responses always render them as strings with two decimals.

DATES:
  Calendar days as "YYYY-MM-DD"; stays are half-open [start, end).

VALIDATION:
  Request types carry go-playground/validator tags for shape checks.
  Business rules (positive amounts, legal transitions) stay in the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: ErrorResponse
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/frontdesk-engine/engine"
)

// =============================================================================
// REQUESTS
// =============================================================================

type CreateCategoryRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	MaxAdults   int             `json:"max_adults" validate:"gte=0"`
	MaxChildren int             `json:"max_children" validate:"gte=0"`
	BasePrice   decimal.Decimal `json:"base_price"`
}

type CreateRoomRequest struct {
	Number     string `json:"number" validate:"required"`
	Floor      string `json:"floor"`
	CategoryID string `json:"category_id" validate:"required"`
	Status     string `json:"status" validate:"omitempty,oneof=AVAILABLE OCCUPIED DIRTY MAINTENANCE"`
}

type RoomTransitionRequest struct {
	Transition string `json:"transition" validate:"required"`
}

type CreateGuestRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
	Passport string `json:"passport"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
}

type CreateBookingRequest struct {
	GuestID     string           `json:"guest_id" validate:"required"`
	RoomID      string           `json:"room_id" validate:"required"`
	Start       string           `json:"start" validate:"required,datetime=2006-01-02"`
	End         string           `json:"end" validate:"required,datetime=2006-01-02"`
	Status      string           `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED"`
	AgreedPrice *decimal.Decimal `json:"agreed_price,omitempty"`
	Notes       string           `json:"notes"`
	Quick       bool             `json:"quick"`
}

type ConsumptionRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gt=0"`
	SessionID *string `json:"session_id,omitempty"`
}

type CreateProductRequest struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock" validate:"gte=0"`
}

type RestockRequest struct {
	Quantity int `json:"quantity" validate:"gt=0"`
}

type CreatePaymentMethodRequest struct {
	Name   string `json:"name" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

type OpenSessionRequest struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type CloseSessionRequest struct {
	// DeclaredBalance is what the operator counted. It has no default: a
	// close without a count would record the whole register as missing.
	DeclaredBalance *decimal.Decimal `json:"declared_balance" validate:"required"`
	Notes           string           `json:"notes"`
}

type RecordTransactionRequest struct {
	Type            string          `json:"type" validate:"required,oneof=INCOME EXPENSE REFUND CONSUMPTION"`
	Amount          decimal.Decimal `json:"amount"`
	BookingID       *string         `json:"booking_id,omitempty"`
	PaymentMethodID *string         `json:"payment_method_id,omitempty"`
	// ProductID is refused; products are sold through the consumptions
	// endpoint so stock moves with the charge.
	ProductID       *string         `json:"product_id,omitempty"`
	Description     string          `json:"description"`
}

type ReceivePaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id" validate:"required"`
	Description     string          `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type CategoryDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxAdults   int    `json:"max_adults"`
	MaxChildren int    `json:"max_children"`
	BasePrice   string `json:"base_price"`
}

type RoomDTO struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	Floor      string `json:"floor,omitempty"`
	CategoryID string `json:"category_id"`
	Status     string `json:"status"`
}

type GuestDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
	Passport string `json:"passport,omitempty"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
}

type AllocationDTO struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Nights      int    `json:"nights"`
	AgreedPrice string `json:"agreed_price"`
}

type BookingDTO struct {
	ID          string          `json:"id"`
	GuestID     string          `json:"guest_id"`
	Status      string          `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   string          `json:"created_at"`
	Allocations []AllocationDTO `json:"allocations"`
}

type BalanceDTO struct {
	BookingID  string `json:"booking_id"`
	TotalValue string `json:"total_value"`
	AmountPaid string `json:"amount_paid"`
	BalanceDue string `json:"balance_due"`
}

type CheckOutDTO struct {
	Booking BookingDTO `json:"booking"`
	Balance BalanceDTO `json:"balance"`
}

type AvailabilityDTO struct {
	RoomID    string   `json:"room_id"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	Available bool     `json:"available"`
	Conflicts []string `json:"conflicting_bookings"`
}

type ProductDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Price  string `json:"price"`
	Stock  int    `json:"stock"`
	Active bool   `json:"active"`
}

type PaymentMethodDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Active bool   `json:"active"`
}

type TransactionDTO struct {
	ID              string  `json:"id"`
	SessionID       *string `json:"session_id,omitempty"`
	BookingID       *string `json:"booking_id,omitempty"`
	PaymentMethodID *string `json:"payment_method_id,omitempty"`
	ProductID       *string `json:"product_id,omitempty"`
	Type            string  `json:"type"`
	Amount          string  `json:"amount"`
	Description     string  `json:"description,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type SessionDTO struct {
	ID                string  `json:"id"`
	OperatorID        string  `json:"operator_id"`
	Status            string  `json:"status"`
	OpeningBalance    string  `json:"opening_balance"`
	ClosingBalance    *string `json:"closing_balance,omitempty"`
	CalculatedBalance *string `json:"calculated_balance,omitempty"`
	Difference        *string `json:"difference,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	OpenedAt          string  `json:"opened_at"`
	ClosedAt          *string `json:"closed_at,omitempty"`
}

type MethodTotalDTO struct {
	PaymentMethodID string `json:"payment_method_id,omitempty"`
	Name            string `json:"name"`
	Total           string `json:"total"`
}

type SessionReportDTO struct {
	Session           SessionDTO        `json:"session"`
	Transactions      []TransactionDTO  `json:"transactions"`
	ByType            map[string]string `json:"by_type"`
	ByPaymentMethod   []MethodTotalDTO  `json:"by_payment_method"`
	CalculatedBalance string            `json:"calculated_balance"`
	Verdict           string            `json:"verdict"`
}

type CalendarEntryDTO struct {
	AllocationID  string `json:"allocation_id"`
	BookingID     string `json:"booking_id"`
	BookingStatus string `json:"booking_status"`
	RoomID        string `json:"room_id"`
	RoomNumber    string `json:"room_number"`
	GuestID       string `json:"guest_id"`
	GuestName     string `json:"guest_name"`
	Start         string `json:"start"`
	End           string `json:"end"`
}

type CalendarDTO struct {
	From    string             `json:"from"`
	To      string             `json:"to"`
	Rooms   []RoomDTO          `json:"rooms"`
	Entries []CalendarEntryDTO `json:"entries"`
}

type DashboardDTO struct {
	Date         string             `json:"date"`
	TotalRooms   int                `json:"total_rooms"`
	RoomsByState map[string]int     `json:"rooms_by_status"`
	Arrivals     []CalendarEntryDTO `json:"arrivals"`
	Departures   []CalendarEntryDTO `json:"departures"`
	InHouse      []CalendarEntryDTO `json:"in_house"`
	EndingSoon   []CalendarEntryDTO `json:"ending_soon"`
	Occupancy    int                `json:"occupancy_rate"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func idPtr[T ~string](id *T) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func toCategoryDTO(c engine.RoomCategory) CategoryDTO {
	return CategoryDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		Description: c.Description,
		MaxAdults:   c.MaxAdults,
		MaxChildren: c.MaxChildren,
		BasePrice:   money(c.BasePrice),
	}
}

func toRoomDTO(r engine.Room) RoomDTO {
	return RoomDTO{
		ID:         string(r.ID),
		Number:     r.Number,
		Floor:      r.Floor,
		CategoryID: string(r.CategoryID),
		Status:     string(r.Status),
	}
}

func toRoomDTOs(rooms []engine.Room) []RoomDTO {
	out := make([]RoomDTO, len(rooms))
	for i, r := range rooms {
		out[i] = toRoomDTO(r)
	}
	return out
}

func toGuestDTO(g engine.Guest) GuestDTO {
	return GuestDTO{
		ID:       string(g.ID),
		Name:     g.Name,
		Email:    g.Email,
		Phone:    g.Phone,
		Document: g.Document,
		Passport: g.Passport,
		Address:  g.Address,
		City:     g.City,
		State:    g.State,
		Country:  g.Country,
	}
}

func toBookingDTO(b engine.Booking) BookingDTO {
	dto := BookingDTO{
		ID:          string(b.ID),
		GuestID:     string(b.GuestID),
		Status:      string(b.Status),
		Notes:       b.Notes,
		CreatedAt:   timestamp(b.CreatedAt),
		Allocations: make([]AllocationDTO, len(b.Allocations)),
	}
	for i, a := range b.Allocations {
		dto.Allocations[i] = AllocationDTO{
			ID:          string(a.ID),
			RoomID:      string(a.RoomID),
			Start:       a.Stay.Start.String(),
			End:         a.Stay.End.String(),
			Nights:      a.Stay.Nights(),
			AgreedPrice: money(a.AgreedPrice),
		}
	}
	return dto
}

func toBalanceDTO(b engine.Balance) BalanceDTO {
	return BalanceDTO{
		BookingID:  string(b.BookingID),
		TotalValue: money(b.TotalValue),
		AmountPaid: money(b.AmountPaid),
		BalanceDue: money(b.BalanceDue),
	}
}

func toProductDTO(p engine.Product) ProductDTO {
	return ProductDTO{ID: string(p.ID), Name: p.Name, Price: money(p.Price), Stock: p.Stock, Active: p.Active}
}

func toPaymentMethodDTO(m engine.PaymentMethod) PaymentMethodDTO {
	return PaymentMethodDTO{ID: string(m.ID), Name: m.Name, Slug: m.Slug, Active: m.Active}
}

func toTransactionDTO(tx engine.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:              string(tx.ID),
		SessionID:       idPtr(tx.SessionID),
		BookingID:       idPtr(tx.BookingID),
		PaymentMethodID: idPtr(tx.PaymentMethodID),
		ProductID:       idPtr(tx.ProductID),
		Type:            string(tx.Type),
		Amount:          money(tx.Amount),
		Description:     tx.Description,
		CreatedAt:       timestamp(tx.CreatedAt),
	}
}

func toTransactionDTOs(txs []engine.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	return out
}

func toSessionDTO(s engine.Session) SessionDTO {
	dto := SessionDTO{
		ID:                string(s.ID),
		OperatorID:        string(s.OperatorID),
		Status:            string(s.Status),
		OpeningBalance:    money(s.OpeningBalance),
		ClosingBalance:    moneyPtr(s.ClosingBalance),
		CalculatedBalance: moneyPtr(s.CalculatedBalance),
		Difference:        moneyPtr(s.Difference),
		Notes:             s.Notes,
		OpenedAt:          timestamp(s.OpenedAt),
	}
	if s.ClosedAt != nil {
		ts := timestamp(*s.ClosedAt)
		dto.ClosedAt = &ts
	}
	return dto
}

func toSessionReportDTO(r engine.SessionReport) SessionReportDTO {
	dto := SessionReportDTO{
		Session:           toSessionDTO(r.Session),
		Transactions:      toTransactionDTOs(r.Transactions),
		ByType:            make(map[string]string, len(r.ByType)),
		ByPaymentMethod:   make([]MethodTotalDTO, len(r.ByPaymentMethod)),
		CalculatedBalance: money(r.CalculatedBalance),
		Verdict:           string(r.Verdict),
	}
	for t, total := range r.ByType {
		dto.ByType[string(t)] = money(total)
	}
	for i, m := range r.ByPaymentMethod {
		dto.ByPaymentMethod[i] = MethodTotalDTO{PaymentMethodID: string(m.PaymentMethodID), Name: m.Name, Total: money(m.Total)}
	}
	return dto
}

func toCalendarEntryDTOs(entries []engine.CalendarEntry) []CalendarEntryDTO {
	out := make([]CalendarEntryDTO, len(entries))
	for i, e := range entries {
		out[i] = CalendarEntryDTO{
			AllocationID:  string(e.AllocationID),
			BookingID:     string(e.BookingID),
			BookingStatus: string(e.BookingStatus),
			RoomID:        string(e.RoomID),
			RoomNumber:    e.RoomNumber,
			GuestID:       string(e.GuestID),
			GuestName:     e.GuestName,
			Start:         e.Stay.Start.String(),
			End:           e.Stay.End.String(),
		}
	}
	return out
}

func toDashboardDTO(d engine.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		Date:         d.Day.String(),
		TotalRooms:   d.TotalRooms,
		RoomsByState: make(map[string]int, len(d.RoomsByState)),
		Arrivals:     toCalendarEntryDTOs(d.Arrivals),
		Departures:   toCalendarEntryDTOs(d.Departures),
		InHouse:      toCalendarEntryDTOs(d.InHouse),
		EndingSoon:   toCalendarEntryDTOs(d.EndingSoon),
		Occupancy:    d.OccupancyRate,
	}
	for s, n := range d.RoomsByState {
		dto.RoomsByState[string(s)] = n
	}
	return dto
}
