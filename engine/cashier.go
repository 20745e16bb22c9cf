package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CASHIER SESSIONS - One operator, one open register
// =============================================================================

type CashierSessionManager struct {
	rt *runtime
}

// OpenSession starts a shift. The store rejects a second OPEN session for
// the same operator even if two requests race past the check below.
func (c *CashierSessionManager) OpenSession(ctx context.Context, operator OperatorID, opening decimal.Decimal) (Session, error) {
	if strings.TrimSpace(string(operator)) == "" {
		return Session{}, &ValidationError{Field: "operator", Message: "is required"}
	}
	if opening.IsNegative() {
		return Session{}, &ValidationError{Field: "opening_balance", Message: "must not be negative"}
	}
	sess := Session{
		ID:             SessionID(c.rt.newID()),
		OperatorID:     operator,
		Status:         SessionOpen,
		OpeningBalance: opening,
		OpenedAt:       c.rt.now(),
	}
	err := c.rt.withTx(ctx, "open session", func(s Store) error {
		_, err := s.GetOpenSession(ctx, operator)
		switch {
		case err == nil:
			return fmt.Errorf("operator %s: %w", operator, ErrSessionAlreadyOpen)
		case !errors.Is(err, ErrNotFound):
			return err
		}
		return s.InsertSession(ctx, sess)
	})
	if err != nil {
		return Session{}, err
	}
	c.rt.log.Info("session opened", "session", sess.ID, "operator", operator, "opening", opening.StringFixed(2))
	return sess, nil
}

// CurrentSession returns the operator's OPEN session, or nil.
func (c *CashierSessionManager) CurrentSession(ctx context.Context, operator OperatorID) (*Session, error) {
	sess, err := c.rt.store.GetOpenSession(ctx, operator)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, c.rt.read("current session", err)
	}
	return &sess, nil
}

func (c *CashierSessionManager) Session(ctx context.Context, id SessionID) (Session, error) {
	sess, err := c.rt.store.GetSession(ctx, id)
	return sess, c.rt.read("get session", err)
}

// CalculatedBalance is opening balance plus every signed amount recorded
// in the session.
func CalculatedBalance(opening decimal.Decimal, txs []Transaction) decimal.Decimal {
	total := opening
	for _, tx := range txs {
		total = total.Add(tx.Amount)
	}
	return total
}

// CloseSession reconciles the register against what the operator counted.
// Only the operator who opened the session may close it. A difference is
// recorded and reported; it never blocks the close.
func (c *CashierSessionManager) CloseSession(ctx context.Context, id SessionID, operator OperatorID, declared decimal.Decimal, notes string) (Session, error) {
	if strings.TrimSpace(string(operator)) == "" {
		return Session{}, &ValidationError{Field: "operator", Message: "is required"}
	}
	if declared.IsNegative() {
		return Session{}, &ValidationError{Field: "closing_balance", Message: "must not be negative"}
	}
	var out Session
	err := c.rt.withTx(ctx, "close session", func(s Store) error {
		sess, err := s.GetSession(ctx, id)
		if err != nil {
			return err
		}
		if !sess.IsOpen() {
			return fmt.Errorf("session %s: %w", id, ErrAlreadyClosed)
		}
		if sess.OperatorID != operator {
			return &SessionOwnerError{SessionID: id, Owner: sess.OperatorID, Operator: operator}
		}
		txs, err := s.ListTransactions(ctx, TransactionFilter{SessionID: &id})
		if err != nil {
			return err
		}
		calculated := CalculatedBalance(sess.OpeningBalance, txs)
		closing := SessionClose{
			ClosingBalance:    declared,
			CalculatedBalance: calculated,
			Difference:        declared.Sub(calculated),
			Notes:             notes,
			ClosedAt:          c.rt.now(),
		}
		if err := s.CloseSession(ctx, id, closing); err != nil {
			return err
		}
		sess.Status = SessionClosed
		sess.ClosingBalance = &closing.ClosingBalance
		sess.CalculatedBalance = &closing.CalculatedBalance
		sess.Difference = &closing.Difference
		sess.Notes = notes
		sess.ClosedAt = &closing.ClosedAt
		out = sess
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	attrs := []any{"session", id, "calculated", out.CalculatedBalance.StringFixed(2), "difference", out.Difference.StringFixed(2)}
	if out.Difference.IsZero() {
		c.rt.log.Info("session closed", attrs...)
	} else {
		c.rt.log.Warn("session closed with cash difference", attrs...)
	}
	return out, nil
}

// =============================================================================
// SESSION REPORT
// =============================================================================

type Verdict string

const (
	VerdictOpen     Verdict = "open"
	VerdictBalanced Verdict = "balanced"
	VerdictShortage Verdict = "shortage"
	VerdictSurplus  Verdict = "surplus"
)

func VerdictFor(difference decimal.Decimal) Verdict {
	switch {
	case difference.IsNegative():
		return VerdictShortage
	case difference.IsPositive():
		return VerdictSurplus
	}
	return VerdictBalanced
}

type MethodTotal struct {
	PaymentMethodID PaymentMethodID // empty for entries without a method
	Name            string
	Total           decimal.Decimal
}

// SessionReport summarizes a shift. For an OPEN session the balance is the
// running figure and the verdict is "open".
type SessionReport struct {
	Session           Session
	Transactions      []Transaction
	ByType            map[TransactionType]decimal.Decimal
	ByPaymentMethod   []MethodTotal
	CalculatedBalance decimal.Decimal
	Verdict           Verdict
}

func (c *CashierSessionManager) Report(ctx context.Context, id SessionID) (SessionReport, error) {
	sess, err := c.rt.store.GetSession(ctx, id)
	if err != nil {
		return SessionReport{}, c.rt.read("session report", err)
	}
	txs, err := c.rt.store.ListTransactions(ctx, TransactionFilter{SessionID: &id})
	if err != nil {
		return SessionReport{}, c.rt.read("session report", err)
	}
	methods, err := c.rt.store.ListPaymentMethods(ctx)
	if err != nil {
		return SessionReport{}, c.rt.read("session report", err)
	}
	names := make(map[PaymentMethodID]string, len(methods))
	for _, m := range methods {
		names[m.ID] = m.Name
	}

	report := SessionReport{
		Session:      sess,
		Transactions: txs,
		ByType:       make(map[TransactionType]decimal.Decimal),
		Verdict:      VerdictOpen,
	}
	byMethod := make(map[PaymentMethodID]decimal.Decimal)
	for _, tx := range txs {
		report.ByType[tx.Type] = report.ByType[tx.Type].Add(tx.Amount)
		var mid PaymentMethodID
		if tx.PaymentMethodID != nil {
			mid = *tx.PaymentMethodID
		}
		byMethod[mid] = byMethod[mid].Add(tx.Amount)
	}
	for mid, total := range byMethod {
		name := names[mid]
		if mid == "" {
			name = "unspecified"
		}
		report.ByPaymentMethod = append(report.ByPaymentMethod, MethodTotal{PaymentMethodID: mid, Name: name, Total: total})
	}
	sort.Slice(report.ByPaymentMethod, func(i, j int) bool {
		return report.ByPaymentMethod[i].Name < report.ByPaymentMethod[j].Name
	})

	if sess.IsOpen() {
		report.CalculatedBalance = CalculatedBalance(sess.OpeningBalance, txs)
	} else {
		report.CalculatedBalance = *sess.CalculatedBalance
		report.Verdict = VerdictFor(*sess.Difference)
	}
	return report, nil
}
