/*
handlers.go - HTTP API handlers for the front-desk engine

PURPOSE:
  Exposes the engine over JSON. Handlers parse and shape-check input,
  call exactly one engine operation, and render the result. No business
  rule lives here.

ENDPOINTS:
  Rooms:
    POST   /api/categories                     Add room category
    GET    /api/categories                     List categories
    POST   /api/rooms                          Add room
    GET    /api/rooms?status=DIRTY             List rooms (housekeeping queue)
    GET    /api/rooms/{id}                     Get room
    DELETE /api/rooms/{id}                     Remove room (409 while booked)
    POST   /api/rooms/{id}/transitions         Apply a room transition
    GET    /api/rooms/{id}/availability        Advisory availability check

  Guests:
    POST   /api/guests, GET /api/guests, GET|DELETE /api/guests/{id}

  Bookings:
    POST   /api/bookings                       Create (409 on overbooking)
    GET    /api/bookings/{id}
    POST   /api/bookings/{id}/confirm|check-in|check-out|cancel
    GET    /api/bookings/{id}/balance
    GET    /api/bookings/{id}/transactions
    POST   /api/bookings/{id}/consumptions     Minibar and the like
    POST   /api/bookings/{id}/payments         Payment into the caller's register

  Catalog:
    POST|GET /api/products, POST /api/products/{id}/restock
    POST|GET /api/payment-methods

  Cashier (operator in X-Operator-ID):
    POST   /api/cashier/sessions               Open a register session
    GET    /api/cashier/sessions/current       The operator's open session
    GET    /api/cashier/sessions/{id}          Session report
    POST   /api/cashier/sessions/{id}/close    Close and reconcile (owner only)
    POST   /api/cashier/sessions/{id}/transactions  Manual entry (owner only)

  Front desk:
    GET    /api/calendar?from=&to=
    GET    /api/dashboard?date=

ERROR HANDLING:
  See errors.go for the status mapping.

SECURITY NOTE:
  No authentication. The operator header is trusted as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/frontdesk-engine/engine"
)

// OperatorHeader carries the identity of the person at the register.
const OperatorHeader = "X-Operator-ID"

// defaultCalendarDays is the window used when /api/calendar has no "to".
const defaultCalendarDays = 14

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine

	// Now is the handler's clock for defaulted query windows.
	Now func() time.Time

	validate *validator.Validate
	metrics  *Metrics
	log      *slog.Logger
}

func NewHandler(eng *engine.Engine, metrics *Metrics, log *slog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Engine:   eng,
		Now:      time.Now,
		validate: v,
		metrics:  metrics,
		log:      log,
	}
}

// bind decodes the JSON body into dst and runs its validate tags.
func (h *Handler) bind(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func operatorID(r *http.Request) (engine.OperatorID, error) {
	op := strings.TrimSpace(r.Header.Get(OperatorHeader))
	if op == "" {
		return "", &engine.ValidationError{Field: OperatorHeader, Message: "header is required"}
	}
	return engine.OperatorID(op), nil
}

func parseDay(field, s string) (engine.Date, error) {
	d, err := engine.ParseDate(s)
	if err != nil {
		return engine.Date{}, &engine.ValidationError{Field: field, Message: "must be a date formatted YYYY-MM-DD"}
	}
	return d, nil
}

func parseStay(start, end string) (engine.DateRange, error) {
	s, err := parseDay("start", start)
	if err != nil {
		return engine.DateRange{}, err
	}
	e, err := parseDay("end", end)
	if err != nil {
		return engine.DateRange{}, err
	}
	return engine.NewDateRange(s, e), nil
}

// =============================================================================
// ROOMS
// =============================================================================

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	c, err := h.Engine.Rooms.AddCategory(r.Context(), engine.NewCategory{
		Name:        req.Name,
		Description: req.Description,
		MaxAdults:   req.MaxAdults,
		MaxChildren: req.MaxChildren,
		BasePrice:   req.BasePrice,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Engine.Rooms.Categories(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	out := make([]CategoryDTO, len(cs))
	for i, c := range cs {
		out[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	room, err := h.Engine.Rooms.AddRoom(r.Context(), engine.NewRoom{
		Number:     req.Number,
		Floor:      req.Floor,
		CategoryID: engine.CategoryID(req.CategoryID),
		Status:     engine.RoomStatus(req.Status),
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoomDTO(room))
}

// ListRooms lists rooms, optionally only those in ?status=.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	status := engine.RoomStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		h.writeEngineError(w, r, &engine.ValidationError{Field: "status", Message: "unknown room status"})
		return
	}
	rooms, err := h.Engine.Rooms.Rooms(r.Context(), status)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomDTOs(rooms))
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.Engine.Rooms.Room(r.Context(), engine.RoomID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomDTO(room))
}

func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Rooms.RemoveRoom(r.Context(), engine.RoomID(chi.URLParam(r, "id"))); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TransitionRoom(w http.ResponseWriter, r *http.Request) {
	var req RoomTransitionRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	room, err := h.Engine.Rooms.Transition(r.Context(), engine.RoomID(chi.URLParam(r, "id")), engine.RoomTransition(req.Transition))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomDTO(room))
}

// RoomAvailability is advisory: CreateBooking re-checks under the room lock.
func (h *Handler) RoomAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stay, err := parseStay(q.Get("start"), q.Get("end"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	id := engine.RoomID(chi.URLParam(r, "id"))
	conflicts, err := h.Engine.Availability.FindConflicts(r.Context(), id, stay, "")
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	dto := AvailabilityDTO{
		RoomID:    string(id),
		Start:     stay.Start.String(),
		End:       stay.End.String(),
		Available: len(conflicts) == 0,
		Conflicts: make([]string, len(conflicts)),
	}
	for i, c := range conflicts {
		dto.Conflicts[i] = string(c.BookingID)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// GUESTS
// =============================================================================

func (h *Handler) CreateGuest(w http.ResponseWriter, r *http.Request) {
	var req CreateGuestRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	g, err := h.Engine.Catalog.AddGuest(r.Context(), engine.NewGuest{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Document: req.Document,
		Passport: req.Passport,
		Address:  req.Address,
		City:     req.City,
		State:    req.State,
		Country:  req.Country,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGuestDTO(g))
}

func (h *Handler) ListGuests(w http.ResponseWriter, r *http.Request) {
	guests, err := h.Engine.Catalog.Guests(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	out := make([]GuestDTO, len(guests))
	for i, g := range guests {
		out[i] = toGuestDTO(g)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetGuest(w http.ResponseWriter, r *http.Request) {
	g, err := h.Engine.Catalog.Guest(r.Context(), engine.GuestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGuestDTO(g))
}

func (h *Handler) DeleteGuest(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Catalog.RemoveGuest(r.Context(), engine.GuestID(chi.URLParam(r, "id"))); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// BOOKINGS
// =============================================================================

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	stay, err := parseStay(req.Start, req.End)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	b, err := h.Engine.Bookings.CreateBooking(r.Context(), engine.CreateBookingRequest{
		GuestID:       engine.GuestID(req.GuestID),
		RoomID:        engine.RoomID(req.RoomID),
		Stay:          stay,
		InitialStatus: engine.BookingStatus(req.Status),
		AgreedPrice:   req.AgreedPrice,
		Notes:         req.Notes,
		Quick:         req.Quick,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.metrics.observeBooking()
	writeJSON(w, http.StatusCreated, toBookingDTO(b))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.Engine.Bookings.Booking(r.Context(), engine.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.Engine.Bookings.Confirm)
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.Engine.Bookings.CheckIn)
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.Engine.Bookings.Cancel)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, engine.BookingID) (engine.Booking, error)) {
	b, err := op(r.Context(), engine.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(b))
}

// CheckOut always succeeds for a live booking; an unpaid balance comes
// back in the response for the desk to settle.
func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Bookings.CheckOut(r.Context(), engine.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckOutDTO{Booking: toBookingDTO(res.Booking), Balance: toBalanceDTO(res.Balance)})
}

func (h *Handler) GetBookingBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.Engine.Ledger.Balance(r.Context(), engine.BookingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(bal))
}

func (h *Handler) GetBookingTransactions(w http.ResponseWriter, r *http.Request) {
	id := engine.BookingID(chi.URLParam(r, "id"))
	if _, err := h.Engine.Bookings.Booking(r.Context(), id); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	txs, err := h.Engine.Ledger.Transactions(r.Context(), engine.TransactionFilter{BookingID: &id})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// RegisterConsumption charges a product to the booking. Charging it to a
// register session needs the operator header.
func (h *Handler) RegisterConsumption(w http.ResponseWriter, r *http.Request) {
	var req ConsumptionRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	creq := engine.ConsumptionRequest{
		BookingID: engine.BookingID(chi.URLParam(r, "id")),
		ProductID: engine.ProductID(req.ProductID),
		Quantity:  req.Quantity,
	}
	if req.SessionID != nil {
		op, err := operatorID(r)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		sid := engine.SessionID(*req.SessionID)
		creq.SessionID = &sid
		creq.OperatorID = op
	}
	tx, err := h.Engine.Ledger.RegisterConsumption(r.Context(), creq)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.metrics.observeEntry(tx.Type)
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// ReceivePayment takes a payment for the booking into the caller's open
// register.
func (h *Handler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	var req ReceivePaymentRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	tx, err := h.Engine.Ledger.ReceivePayment(r.Context(), engine.PaymentRequest{
		BookingID:       engine.BookingID(chi.URLParam(r, "id")),
		OperatorID:      op,
		PaymentMethodID: engine.PaymentMethodID(req.PaymentMethodID),
		Amount:          req.Amount,
		Description:     req.Description,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.metrics.observeEntry(tx.Type)
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// CATALOG
// =============================================================================

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	p, err := h.Engine.Catalog.AddProduct(r.Context(), engine.NewProduct{Name: req.Name, Price: req.Price, Stock: req.Stock})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Engine.Catalog.Products(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	out := make([]ProductDTO, len(ps))
	for i, p := range ps {
		out[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RestockProduct(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	p, err := h.Engine.Catalog.Restock(r.Context(), engine.ProductID(chi.URLParam(r, "id")), req.Quantity)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) CreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentMethodRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	m, err := h.Engine.Catalog.AddPaymentMethod(r.Context(), req.Name, active)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentMethodDTO(m))
}

func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	ms, err := h.Engine.Catalog.PaymentMethods(r.Context())
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	out := make([]PaymentMethodDTO, len(ms))
	for i, m := range ms {
		out[i] = toPaymentMethodDTO(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// CASHIER
// =============================================================================

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	var req OpenSessionRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	sess, err := h.Engine.Cashier.OpenSession(r.Context(), op, req.OpeningBalance)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess))
}

// CurrentSession returns the operator's open session, or null.
func (h *Handler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	sess, err := h.Engine.Cashier.CurrentSession(r.Context(), op)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*sess))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.Cashier.Report(r.Context(), engine.SessionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionReportDTO(report))
}

// CloseSession closes the caller's own register. declared_balance is
// required.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	var req CloseSessionRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	id := engine.SessionID(chi.URLParam(r, "id"))
	if _, err := h.Engine.Cashier.CloseSession(r.Context(), id, op, *req.DeclaredBalance, req.Notes); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	report, err := h.Engine.Cashier.Report(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionReportDTO(report))
}

func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	op, err := operatorID(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	var req RecordTransactionRequest
	if err := h.bind(r, &req); err != nil {
		writeBindError(w, err)
		return
	}
	if req.ProductID != nil {
		h.writeEngineError(w, r, &engine.ValidationError{
			Field:   "product_id",
			Message: "products are charged through /api/bookings/{id}/consumptions",
		})
		return
	}
	treq := engine.RecordTransactionRequest{
		SessionID:   engine.SessionID(chi.URLParam(r, "id")),
		OperatorID:  op,
		Type:        engine.TransactionType(req.Type),
		Amount:      req.Amount,
		Description: req.Description,
	}
	if req.BookingID != nil {
		id := engine.BookingID(*req.BookingID)
		treq.BookingID = &id
	}
	if req.PaymentMethodID != nil {
		id := engine.PaymentMethodID(*req.PaymentMethodID)
		treq.PaymentMethodID = &id
	}
	tx, err := h.Engine.Ledger.RecordTransaction(r.Context(), treq)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	h.metrics.observeEntry(tx.Type)
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// =============================================================================
// FRONT DESK VIEWS
// =============================================================================

// Calendar defaults to two weeks from today when from/to are missing.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := engine.DateOf(h.Now())
	if s := q.Get("from"); s != "" {
		d, err := parseDay("from", s)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		from = d
	}
	to := from.AddDays(defaultCalendarDays)
	if s := q.Get("to"); s != "" {
		d, err := parseDay("to", s)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		to = d
	}

	cal, err := h.Engine.FrontDesk.Calendar(r.Context(), engine.NewDateRange(from, to))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarDTO{
		From:    cal.Window.Start.String(),
		To:      cal.Window.End.String(),
		Rooms:   toRoomDTOs(cal.Rooms),
		Entries: toCalendarEntryDTOs(cal.Entries),
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var day engine.Date
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := parseDay("date", s)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		day = d
	}
	d, err := h.Engine.FrontDesk.Dashboard(r.Context(), day)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
