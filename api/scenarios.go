/*
scenarios.go - Demo data loaders

PURPOSE:
  Populates an empty database with a realistic hotel so the desk UI and
  the API can be tried without typing reference data by hand. Every
  record goes through the engine, so the demo data obeys the same rules
  as real traffic.

AVAILABLE SCENARIOS:
  reference-data:  categories, rooms, payment methods and minibar products
  small-hotel:     reference-data plus guests, a stay in progress, today's
                   arrival, a future reservation, a dirty room, a room in
                   maintenance and an open register session with payments

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "small-hotel"}

NOTE:
  Scenarios refuse to load into a database that already has rooms.
  Nothing is deleted.

SEE ALSO:
  - handlers.go: the engine calls used here are the same ones the API makes
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/frontdesk-engine/engine"
)

// ErrNotEmpty is returned when a scenario would mix with existing data.
var ErrNotEmpty = errors.New("database already has rooms")

// DemoOperator is the register operator used by the demo session.
const DemoOperator engine.OperatorID = "front-desk-demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "reference-data",
		Name:        "Reference Data",
		Description: "Two room categories, six rooms, payment methods and minibar products",
	},
	{
		ID:          "small-hotel",
		Name:        "Small Hotel",
		Description: "Reference data plus guests, stays in every lifecycle state and an open register",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}

	err := LoadDemo(r.Context(), h.Engine, req.ScenarioID, engine.DateOf(h.Now()))
	switch {
	case errors.Is(err, ErrNotEmpty):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "not_empty"})
		return
	case err != nil:
		h.writeEngineError(w, r, err)
		return
	}

	h.log.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// LoadDemo seeds eng with the named scenario, dated around today.
func LoadDemo(ctx context.Context, eng *engine.Engine, id string, today engine.Date) error {
	rooms, err := eng.Rooms.Rooms(ctx, "")
	if err != nil {
		return err
	}
	if len(rooms) > 0 {
		return ErrNotEmpty
	}

	switch id {
	case "reference-data":
		_, err = loadReferenceData(ctx, eng)
		return err
	case "small-hotel":
		return loadSmallHotel(ctx, eng, today)
	}
	return &engine.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
}

// =============================================================================
// LOADERS
// =============================================================================

type referenceData struct {
	rooms    map[string]engine.Room
	methods  map[string]engine.PaymentMethod
	products map[string]engine.Product
}

func loadReferenceData(ctx context.Context, eng *engine.Engine) (referenceData, error) {
	ref := referenceData{
		rooms:    make(map[string]engine.Room),
		methods:  make(map[string]engine.PaymentMethod),
		products: make(map[string]engine.Product),
	}

	standard, err := eng.Rooms.AddCategory(ctx, engine.NewCategory{
		Name: "Standard", Description: "Double bed, garden view", MaxAdults: 2, MaxChildren: 1,
		BasePrice: decimal.RequireFromString("180.00"),
	})
	if err != nil {
		return ref, err
	}
	suite, err := eng.Rooms.AddCategory(ctx, engine.NewCategory{
		Name: "Suite", Description: "King bed, sea view, balcony", MaxAdults: 2, MaxChildren: 2,
		BasePrice: decimal.RequireFromString("320.00"),
	})
	if err != nil {
		return ref, err
	}

	for _, r := range []struct {
		number, floor string
		category      engine.CategoryID
	}{
		{"101", "1", standard.ID},
		{"102", "1", standard.ID},
		{"103", "1", standard.ID},
		{"201", "2", standard.ID},
		{"202", "2", suite.ID},
		{"203", "2", suite.ID},
	} {
		room, err := eng.Rooms.AddRoom(ctx, engine.NewRoom{Number: r.number, Floor: r.floor, CategoryID: r.category})
		if err != nil {
			return ref, err
		}
		ref.rooms[r.number] = room
	}

	for _, name := range []string{"Cash", "Credit Card", "Debit Card", "PIX"} {
		m, err := eng.Catalog.AddPaymentMethod(ctx, name, true)
		if err != nil {
			return ref, err
		}
		ref.methods[m.Slug] = m
	}

	for _, p := range []engine.NewProduct{
		{Name: "Water", Price: decimal.RequireFromString("4.50"), Stock: 48},
		{Name: "Beer", Price: decimal.RequireFromString("12.00"), Stock: 24},
		{Name: "Chocolate", Price: decimal.RequireFromString("8.00"), Stock: 10},
	} {
		prod, err := eng.Catalog.AddProduct(ctx, p)
		if err != nil {
			return ref, err
		}
		ref.products[prod.Name] = prod
	}
	return ref, nil
}

func loadSmallHotel(ctx context.Context, eng *engine.Engine, today engine.Date) error {
	ref, err := loadReferenceData(ctx, eng)
	if err != nil {
		return err
	}

	guests := make(map[string]engine.Guest)
	for _, g := range []engine.NewGuest{
		{Name: "Ana Souza", Email: "ana@example.com", Document: "123.456.789-00", City: "Recife", Country: "Brazil"},
		{Name: "John Miller", Email: "john@example.com", Passport: "X1234567", Country: "USA"},
		{Name: "Marie Dubois", Email: "marie@example.com", Passport: "FR998877", Country: "France"},
	} {
		guest, err := eng.Catalog.AddGuest(ctx, g)
		if err != nil {
			return err
		}
		guests[g.Name] = guest
	}

	sess, err := eng.Cashier.OpenSession(ctx, DemoOperator, decimal.RequireFromString("200.00"))
	if err != nil {
		return err
	}

	// Ana arrived two days ago in 101 and is staying two more nights at
	// the standard rate, half paid up front.
	stayPrice := decimal.RequireFromString("720.00")
	inHouse, err := eng.Bookings.CreateBooking(ctx, engine.CreateBookingRequest{
		GuestID: guests["Ana Souza"].ID, RoomID: ref.rooms["101"].ID,
		Stay: engine.NewDateRange(today.AddDays(-2), today.AddDays(2)), InitialStatus: engine.BookingConfirmed,
		AgreedPrice: &stayPrice,
	})
	if err != nil {
		return err
	}
	if _, err := eng.Bookings.CheckIn(ctx, inHouse.ID); err != nil {
		return err
	}
	if _, err := eng.Ledger.ReceivePayment(ctx, engine.PaymentRequest{
		BookingID: inHouse.ID, OperatorID: DemoOperator, PaymentMethodID: ref.methods["pix"].ID,
		Amount: decimal.RequireFromString("360.00"), Description: "Deposit",
	}); err != nil {
		return err
	}
	if _, err := eng.Ledger.RegisterConsumption(ctx, engine.ConsumptionRequest{
		BookingID: inHouse.ID, ProductID: ref.products["Beer"].ID, Quantity: 2,
		SessionID: &sess.ID, OperatorID: DemoOperator,
	}); err != nil {
		return err
	}

	// John arrives today in the suite.
	if _, err := eng.Bookings.CreateBooking(ctx, engine.CreateBookingRequest{
		GuestID: guests["John Miller"].ID, RoomID: ref.rooms["202"].ID,
		Stay: engine.NewDateRange(today, today.AddDays(3)), Quick: true,
		Notes: "Late arrival, around 23:00",
	}); err != nil {
		return err
	}

	// Marie has an unconfirmed reservation next week.
	if _, err := eng.Bookings.CreateBooking(ctx, engine.CreateBookingRequest{
		GuestID: guests["Marie Dubois"].ID, RoomID: ref.rooms["203"].ID,
		Stay: engine.NewDateRange(today.AddDays(7), today.AddDays(10)),
	}); err != nil {
		return err
	}

	if _, err := eng.Rooms.Transition(ctx, ref.rooms["102"].ID, engine.TransitionMarkDirty); err != nil {
		return err
	}
	if _, err := eng.Rooms.Transition(ctx, ref.rooms["103"].ID, engine.TransitionBlockMaintenance); err != nil {
		return err
	}

	_, err = eng.Ledger.RecordTransaction(ctx, engine.RecordTransactionRequest{
		SessionID: sess.ID, OperatorID: DemoOperator, Type: engine.TxExpense, Amount: decimal.RequireFromString("35.00"),
		Description: "Laundry pickup",
	})
	return err
}
