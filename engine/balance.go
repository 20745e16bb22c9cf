package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE - What a booking owes, derived from allocations and the ledger
// =============================================================================

// Balance is never stored. Every read recomputes it from the allocations
// and the booking's transactions through ComputeBalance.
type Balance struct {
	BookingID  BookingID
	TotalValue decimal.Decimal // agreed prices + consumption charges
	AmountPaid decimal.Decimal // income received
	BalanceDue decimal.Decimal // negative means the guest holds credit
}

// HasDebt reports whether the guest still owes money.
func (b Balance) HasDebt() bool { return b.BalanceDue.IsPositive() }

// HasCredit reports whether the guest paid more than the total.
func (b Balance) HasCredit() bool { return b.BalanceDue.IsNegative() }

// ComputeBalance is the one derivation of a booking's figures. EXPENSE and
// REFUND entries tied to the booking do not move it: refunds leave the
// register but the stay's value and payments received stay what they were.
func ComputeBalance(id BookingID, allocations []Allocation, txs []Transaction) Balance {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.AgreedPrice)
	}
	paid := decimal.Zero
	for _, tx := range txs {
		switch tx.Type {
		case TxConsumption:
			total = total.Add(tx.Amount)
		case TxIncome:
			paid = paid.Add(tx.Amount)
		}
	}
	return Balance{
		BookingID:  id,
		TotalValue: total,
		AmountPaid: paid,
		BalanceDue: total.Sub(paid),
	}
}

func bookingBalance(ctx context.Context, s Store, b Booking) (Balance, error) {
	id := b.ID
	txs, err := s.ListTransactions(ctx, TransactionFilter{
		BookingID: &id,
		Types:     []TransactionType{TxIncome, TxConsumption},
	})
	if err != nil {
		return Balance{}, err
	}
	return ComputeBalance(b.ID, b.Allocations, txs), nil
}
