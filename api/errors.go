/*
errors.go - Engine errors to HTTP responses

STATUS MAPPING:
  400  validation (bad JSON, failed struct tags, engine ValidationError)
  403  acting on another operator's register session
  404  unknown room, guest, booking, product, session
  409  business conflicts: overbooking, illegal booking or room change,
       session open/closed violations, no open register, protected
       deletes, concurrent modification
  422  insufficient stock
  503  infrastructure; the operation left nothing behind, retry it
  500  anything else

SEE ALSO:
  - engine/errors.go: the error types
*/
package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/warp/frontdesk-engine/engine"
)

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type FieldErrorDTO struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type OverbookingDetailsDTO struct {
	RoomID              string   `json:"room_id"`
	Start               string   `json:"start"`
	End                 string   `json:"end"`
	ConflictingBookings []string `json:"conflicting_bookings"`
}

type StockDetailsDTO struct {
	ProductID string `json:"product_id"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// classify returns the HTTP status and a stable machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest, "validation"
	case engine.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrInsufficientStock):
		return http.StatusUnprocessableEntity, "insufficient_stock"
	case errors.Is(err, engine.ErrOverbooking):
		return http.StatusConflict, "overbooking"
	case errors.Is(err, engine.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, engine.ErrClosedSession):
		return http.StatusConflict, "session_closed"
	case errors.Is(err, engine.ErrAlreadyClosed):
		return http.StatusConflict, "already_closed"
	case errors.Is(err, engine.ErrSessionAlreadyOpen):
		return http.StatusConflict, "session_already_open"
	case errors.Is(err, engine.ErrNoOpenSession):
		return http.StatusConflict, "no_open_session"
	case errors.Is(err, engine.ErrForeignSession):
		return http.StatusForbidden, "foreign_session"
	case errors.Is(err, engine.ErrProtected):
		return http.StatusConflict, "protected"
	case errors.Is(err, engine.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, engine.ErrInfrastructure):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func details(err error) any {
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return []FieldErrorDTO{{Field: ve.Field, Message: ve.Message}}
	}
	var oe *engine.OverbookingError
	if errors.As(err, &oe) {
		ids := oe.ConflictingBookings()
		out := OverbookingDetailsDTO{
			RoomID:              string(oe.RoomID),
			Start:               oe.Stay.Start.String(),
			End:                 oe.Stay.End.String(),
			ConflictingBookings: make([]string, len(ids)),
		}
		for i, id := range ids {
			out.ConflictingBookings[i] = string(id)
		}
		return out
	}
	var se *engine.InsufficientStockError
	if errors.As(err, &se) {
		return StockDetailsDTO{ProductID: string(se.ProductID), Available: se.Available, Requested: se.Requested}
	}
	return nil
}

// writeEngineError reports err from an engine call. Server-side failures
// are logged; their internals are not echoed to the client.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	h.metrics.observeRejection(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Code: code})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, Details: details(err)})
}

// writeBindError reports a malformed body or failed struct validation.
func writeBindError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]FieldErrorDTO, len(verrs))
		for i, fe := range verrs {
			fields[i] = FieldErrorDTO{Field: fe.Field(), Message: tagMessage(fe)}
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request", Code: "validation", Details: fields})
		return
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "validation", Details: err.Error()})
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a date formatted " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "email":
		return "must be an email address"
	}
	return "failed " + fe.Tag()
}
