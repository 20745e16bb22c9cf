/*
ledger.go - Append-only financial ledger

PURPOSE:
  Records money movements against cash register sessions and bookings.
  Entries are written once and never changed; a mistake is corrected with
  an opposite entry (a REFUND against an INCOME), not an edit.

SIGN CONVENTION:
  INCOME, CONSUMPTION  stored positive
  EXPENSE, REFUND      stored negative (positive input is negated)

  Summing a session's amounts therefore gives the cash the register should
  hold on top of the opening balance. CONSUMPTION entries without a
  session are charges on a booking and never touch a register.

OWNERSHIP:
  Entries posted into a register must come from the operator who opened
  it. ReceivePayment finds that register itself from the operator.

SEE ALSO:
  - balance.go: booking balance derived from these entries
  - cashier.go: session reconciliation
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type FinancialLedger struct {
	rt *runtime
}

// RecordTransactionRequest posts a manual entry into the operator's own
// register. Product sales go through RegisterConsumption so stock moves
// with the charge.
type RecordTransactionRequest struct {
	SessionID       SessionID
	OperatorID      OperatorID
	BookingID       *BookingID
	PaymentMethodID *PaymentMethodID
	Type            TransactionType
	Amount          decimal.Decimal
	Description     string
}

// NormalizeAmount applies the sign convention for t.
func NormalizeAmount(t TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	if !t.Valid() {
		return decimal.Zero, &ValidationError{Field: "type", Message: "unknown transaction type " + string(t)}
	}
	if amount.IsZero() {
		return decimal.Zero, &ValidationError{Field: "amount", Message: "must not be zero"}
	}
	if t.IsOutflow() {
		return amount.Abs().Neg(), nil
	}
	if amount.IsNegative() {
		return decimal.Zero, &ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("%s amounts must be positive", t),
		}
	}
	return amount, nil
}

// RecordTransaction appends an entry to an OPEN session owned by
// req.OperatorID.
func (l *FinancialLedger) RecordTransaction(ctx context.Context, req RecordTransactionRequest) (Transaction, error) {
	if req.SessionID == "" {
		return Transaction{}, &ValidationError{Field: "session_id", Message: "is required"}
	}
	if strings.TrimSpace(string(req.OperatorID)) == "" {
		return Transaction{}, &ValidationError{Field: "operator", Message: "is required"}
	}
	amount, err := NormalizeAmount(req.Type, req.Amount)
	if err != nil {
		return Transaction{}, err
	}

	sessionID := req.SessionID
	tx := Transaction{
		ID:              TransactionID(l.rt.newID()),
		SessionID:       &sessionID,
		BookingID:       req.BookingID,
		PaymentMethodID: req.PaymentMethodID,
		Type:            req.Type,
		Amount:          amount,
		Description:     strings.TrimSpace(req.Description),
		CreatedAt:       l.rt.now(),
	}

	err = l.rt.withTx(ctx, "record transaction", func(s Store) error {
		if _, err := requireOwnedSession(ctx, s, sessionID, req.OperatorID); err != nil {
			return err
		}
		if req.BookingID != nil {
			if _, err := s.GetBooking(ctx, *req.BookingID); err != nil {
				return err
			}
		}
		if req.PaymentMethodID != nil {
			if err := requireActiveMethod(ctx, s, *req.PaymentMethodID); err != nil {
				return err
			}
		}
		return s.AppendTransaction(ctx, tx)
	})
	if err != nil {
		return Transaction{}, err
	}

	l.rt.log.Info("transaction recorded",
		"transaction", tx.ID, "session", sessionID, "operator", req.OperatorID,
		"type", tx.Type, "amount", tx.Amount.StringFixed(2))
	return tx, nil
}

func requireOpenSession(ctx context.Context, s Store, id SessionID) (Session, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if !sess.IsOpen() {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrClosedSession)
	}
	return sess, nil
}

// requireOwnedSession loads an OPEN session and checks operator runs it.
func requireOwnedSession(ctx context.Context, s Store, id SessionID, operator OperatorID) (Session, error) {
	sess, err := requireOpenSession(ctx, s, id)
	if err != nil {
		return Session{}, err
	}
	if sess.OperatorID != operator {
		return Session{}, &SessionOwnerError{SessionID: id, Owner: sess.OperatorID, Operator: operator}
	}
	return sess, nil
}

func requireActiveMethod(ctx context.Context, s Store, id PaymentMethodID) error {
	m, err := s.GetPaymentMethod(ctx, id)
	if err != nil {
		return err
	}
	if !m.Active {
		return &ValidationError{Field: "payment_method_id", Message: "payment method " + m.Name + " is inactive"}
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentTolerance absorbs rounding when a guest settles the exact balance.
var PaymentTolerance = decimal.RequireFromString("0.01")

type PaymentRequest struct {
	BookingID       BookingID
	OperatorID      OperatorID
	PaymentMethodID PaymentMethodID
	Amount          decimal.Decimal
	Description     string
}

// ReceivePayment takes money for a booking into the operator's open
// register. The amount may not exceed the balance due by more than
// PaymentTolerance.
func (l *FinancialLedger) ReceivePayment(ctx context.Context, req PaymentRequest) (Transaction, error) {
	if strings.TrimSpace(string(req.OperatorID)) == "" {
		return Transaction{}, &ValidationError{Field: "operator", Message: "is required"}
	}
	if req.PaymentMethodID == "" {
		return Transaction{}, &ValidationError{Field: "payment_method_id", Message: "is required"}
	}
	if err := positive("amount", req.Amount); err != nil {
		return Transaction{}, err
	}

	var tx Transaction
	err := l.rt.withTx(ctx, "receive payment", func(s Store) error {
		sess, err := s.GetOpenSession(ctx, req.OperatorID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("operator %s: %w", req.OperatorID, ErrNoOpenSession)
		}
		if err != nil {
			return err
		}
		b, err := s.GetBooking(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if b.Status == BookingCanceled {
			return &InvalidStateError{BookingID: b.ID, Status: b.Status, Operation: "receive payment for"}
		}
		if err := requireActiveMethod(ctx, s, req.PaymentMethodID); err != nil {
			return err
		}
		bal, err := bookingBalance(ctx, s, b)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(bal.BalanceDue.Add(PaymentTolerance)) {
			return &ValidationError{
				Field:   "amount",
				Message: fmt.Sprintf("%s exceeds the balance due of %s", req.Amount.StringFixed(2), bal.BalanceDue.StringFixed(2)),
			}
		}

		desc := strings.TrimSpace(req.Description)
		if desc == "" {
			g, err := s.GetGuest(ctx, b.GuestID)
			if err != nil {
				return err
			}
			desc = "Payment for booking of " + g.Name
		}
		sessionID, bookingID, methodID := sess.ID, b.ID, req.PaymentMethodID
		tx = Transaction{
			ID:              TransactionID(l.rt.newID()),
			SessionID:       &sessionID,
			BookingID:       &bookingID,
			PaymentMethodID: &methodID,
			Type:            TxIncome,
			Amount:          req.Amount,
			Description:     desc,
			CreatedAt:       l.rt.now(),
		}
		return s.AppendTransaction(ctx, tx)
	})
	if err != nil {
		return Transaction{}, err
	}

	l.rt.log.Info("payment received",
		"booking", req.BookingID, "session", *tx.SessionID, "operator", req.OperatorID, "amount", tx.Amount.StringFixed(2))
	return tx, nil
}

// =============================================================================
// CONSUMPTION
// =============================================================================

type ConsumptionRequest struct {
	BookingID BookingID
	ProductID ProductID
	Quantity  int
	// SessionID ties the charge to a register. Optional: a minibar charge
	// posted by housekeeping has no shift behind it. When set, OperatorID
	// must be the operator running that register.
	SessionID  *SessionID
	OperatorID OperatorID
}

// RegisterConsumption charges price*quantity to the booking and takes the
// items out of stock, both in one unit of work.
func (l *FinancialLedger) RegisterConsumption(ctx context.Context, req ConsumptionRequest) (Transaction, error) {
	if req.Quantity <= 0 {
		return Transaction{}, &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if req.BookingID == "" || req.ProductID == "" {
		return Transaction{}, &ValidationError{Field: "booking_id", Message: "booking and product are required"}
	}
	if req.SessionID != nil && strings.TrimSpace(string(req.OperatorID)) == "" {
		return Transaction{}, &ValidationError{Field: "operator", Message: "is required when charging to a session"}
	}

	var tx Transaction
	err := l.rt.withTx(ctx, "register consumption", func(s Store) error {
		if req.SessionID != nil {
			if _, err := requireOwnedSession(ctx, s, *req.SessionID, req.OperatorID); err != nil {
				return err
			}
		}
		b, err := s.GetBooking(ctx, req.BookingID)
		if err != nil {
			return err
		}
		if b.Status == BookingCanceled {
			return &InvalidStateError{BookingID: b.ID, Status: b.Status, Operation: "register consumption on"}
		}
		p, err := s.GetProduct(ctx, req.ProductID)
		if err != nil {
			return err
		}
		if !p.Active {
			return &ValidationError{Field: "product_id", Message: "product " + p.Name + " is inactive"}
		}
		if p.Stock < req.Quantity {
			return &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock, Requested: req.Quantity}
		}

		bookingID, productID := b.ID, p.ID
		tx = Transaction{
			ID:          TransactionID(l.rt.newID()),
			SessionID:   req.SessionID,
			BookingID:   &bookingID,
			ProductID:   &productID,
			Type:        TxConsumption,
			Amount:      p.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
			Description: fmt.Sprintf("Consumption: %dx %s", req.Quantity, p.Name),
			CreatedAt:   l.rt.now(),
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			return err
		}
		return s.AdjustStock(ctx, p.ID, -req.Quantity)
	})
	if err != nil {
		return Transaction{}, err
	}

	l.rt.log.Info("consumption registered",
		"booking", req.BookingID, "product", req.ProductID, "quantity", req.Quantity, "amount", tx.Amount.StringFixed(2))
	return tx, nil
}

// =============================================================================
// READS
// =============================================================================

// Balance recomputes the booking's figures from scratch.
func (l *FinancialLedger) Balance(ctx context.Context, id BookingID) (Balance, error) {
	b, err := l.rt.store.GetBooking(ctx, id)
	if err != nil {
		return Balance{}, l.rt.read("balance", err)
	}
	bal, err := bookingBalance(ctx, l.rt.store, b)
	return bal, l.rt.read("balance", err)
}

func (l *FinancialLedger) Transactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	txs, err := l.rt.store.ListTransactions(ctx, f)
	return txs, l.rt.read("list transactions", err)
}
