package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/frontdesk-engine/engine"
)

func (f *fixture) pay(t *testing.T, sess engine.Session, b engine.Booking, amount string) engine.Transaction {
	t.Helper()
	tx, err := f.eng.Ledger.RecordTransaction(f.ctx, engine.RecordTransactionRequest{
		SessionID:       sess.ID,
		OperatorID:      "op-1",
		BookingID:       &b.ID,
		PaymentMethodID: &f.cash.ID,
		Type:            engine.TxIncome,
		Amount:          dec(amount),
		Description:     "payment",
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) addProduct(t *testing.T, price string, stock int) engine.Product {
	t.Helper()
	p, err := f.eng.Catalog.AddProduct(f.ctx, engine.NewProduct{Name: "Water", Price: dec(price), Stock: stock})
	require.NoError(t, err)
	return p
}

// =============================================================================
// SIGN CONVENTION
// =============================================================================

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		typ    engine.TransactionType
		in     string
		want   string
		reject bool
	}{
		{engine.TxIncome, "80", "80", false},
		{engine.TxConsumption, "12.50", "12.50", false},
		{engine.TxExpense, "20", "-20", false},
		{engine.TxExpense, "-20", "-20", false},
		{engine.TxRefund, "35", "-35", false},
		{engine.TxIncome, "-5", "", true},
		{engine.TxConsumption, "-5", "", true},
		{engine.TxIncome, "0", "", true},
		{"GIFT", "10", "", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ)+" "+tt.in, func(t *testing.T) {
			got, err := engine.NormalizeAmount(tt.typ, dec(tt.in))
			if tt.reject {
				assert.ErrorIs(t, err, engine.ErrValidation)
				return
			}
			require.NoError(t, err)
			requireDecimal(t, tt.want, got)
		})
	}
}

func TestRecordTransaction_StoresExpenseNegative(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "100")

	tx, err := f.eng.Ledger.RecordTransaction(f.ctx, engine.RecordTransactionRequest{
		SessionID: sess.ID, OperatorID: "op-1", Type: engine.TxExpense, Amount: dec("20"), Description: "taxi",
	})
	require.NoError(t, err)
	requireDecimal(t, "-20", tx.Amount)

	txs, err := f.eng.Ledger.Transactions(f.ctx, engine.TransactionFilter{SessionID: &sess.ID})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	requireDecimal(t, "-20", txs[0].Amount)
}

func TestRecordTransaction_ClosedSessionRejected(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	_, err := f.eng.Cashier.CloseSession(f.ctx, sess.ID, "op-1", decimal.Zero, "")
	require.NoError(t, err)

	_, err = f.eng.Ledger.RecordTransaction(f.ctx, engine.RecordTransactionRequest{
		SessionID: sess.ID, OperatorID: "op-1", Type: engine.TxIncome, Amount: dec("10"),
	})

	assert.ErrorIs(t, err, engine.ErrClosedSession)
	txs, err := f.eng.Ledger.Transactions(f.ctx, engine.TransactionFilter{SessionID: &sess.ID})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRecordTransaction_InactivePaymentMethod(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	cheque, err := f.eng.Catalog.AddPaymentMethod(f.ctx, "Cheque", false)
	require.NoError(t, err)

	_, err = f.eng.Ledger.RecordTransaction(f.ctx, engine.RecordTransactionRequest{
		SessionID: sess.ID, OperatorID: "op-1", PaymentMethodID: &cheque.ID, Type: engine.TxIncome, Amount: dec("10"),
	})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestRecordTransaction_ForeignOperatorRejected(t *testing.T) {
	// GIVEN: op-1's open register
	// WHEN: op-2 posts an expense into it
	// THEN: rejected and nothing is written
	f := newFixture(t)
	sess := f.openSession(t, "100")

	_, err := f.eng.Ledger.RecordTransaction(f.ctx, engine.RecordTransactionRequest{
		SessionID: sess.ID, OperatorID: "op-2", Type: engine.TxExpense, Amount: dec("50"),
	})
	assert.ErrorIs(t, err, engine.ErrForeignSession)

	_, err = f.eng.Ledger.RecordTransaction(f.ctx, engine.RecordTransactionRequest{
		SessionID: sess.ID, Type: engine.TxExpense, Amount: dec("50"),
	})
	assert.ErrorIs(t, err, engine.ErrValidation)

	txs, err := f.eng.Ledger.Transactions(f.ctx, engine.TransactionFilter{SessionID: &sess.ID})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (f *fixture) receive(booking engine.BookingID, operator engine.OperatorID, amount string) (engine.Transaction, error) {
	return f.eng.Ledger.ReceivePayment(f.ctx, engine.PaymentRequest{
		BookingID:       booking,
		OperatorID:      operator,
		PaymentMethodID: f.cash.ID,
		Amount:          dec(amount),
	})
}

func TestReceivePayment_UsesOperatorsOpenSession(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	b := f.book(t, stay(10, 11), engine.BookingConfirmed)

	tx, err := f.receive(b.ID, "op-1", "150.00")

	require.NoError(t, err)
	assert.Equal(t, engine.TxIncome, tx.Type)
	require.NotNil(t, tx.SessionID)
	assert.Equal(t, sess.ID, *tx.SessionID)
	require.NotNil(t, tx.BookingID)
	assert.Equal(t, b.ID, *tx.BookingID)
	assert.Equal(t, "Payment for booking of Ana Souza", tx.Description)

	bal, err := f.eng.Ledger.Balance(f.ctx, b.ID)
	require.NoError(t, err)
	requireDecimal(t, "50.00", bal.BalanceDue)
}

func TestReceivePayment_CappedAtBalanceDue(t *testing.T) {
	// GIVEN: 50.00 still due on a 200.00 stay
	// WHEN: paying 50.02, then 50.01
	// THEN: the first is rejected, the second is within the one-cent tolerance
	f := newFixture(t)
	f.openSession(t, "0")
	b := f.book(t, stay(10, 11), engine.BookingConfirmed)
	_, err := f.receive(b.ID, "op-1", "150.00")
	require.NoError(t, err)

	_, err = f.receive(b.ID, "op-1", "50.02")
	assert.ErrorIs(t, err, engine.ErrValidation)

	_, err = f.receive(b.ID, "op-1", "50.01")
	require.NoError(t, err)

	bal, err := f.eng.Ledger.Balance(f.ctx, b.ID)
	require.NoError(t, err)
	requireDecimal(t, "-0.01", bal.BalanceDue)
}

func TestReceivePayment_NoOpenSession(t *testing.T) {
	f := newFixture(t)
	f.openSession(t, "0")
	b := f.book(t, stay(10, 11), engine.BookingConfirmed)

	_, err := f.receive(b.ID, "op-2", "10")

	assert.ErrorIs(t, err, engine.ErrNoOpenSession)
	txs, err := f.eng.Ledger.Transactions(f.ctx, engine.TransactionFilter{BookingID: &b.ID})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestReceivePayment_Rejections(t *testing.T) {
	f := newFixture(t)
	f.openSession(t, "0")
	b := f.book(t, stay(10, 11), engine.BookingPending)
	cheque, err := f.eng.Catalog.AddPaymentMethod(f.ctx, "Cheque", false)
	require.NoError(t, err)

	_, err = f.receive(b.ID, "op-1", "0")
	assert.ErrorIs(t, err, engine.ErrValidation, "zero amount")

	_, err = f.receive(b.ID, "", "10")
	assert.ErrorIs(t, err, engine.ErrValidation, "missing operator")

	_, err = f.eng.Ledger.ReceivePayment(f.ctx, engine.PaymentRequest{
		BookingID: b.ID, OperatorID: "op-1", PaymentMethodID: cheque.ID, Amount: dec("10"),
	})
	assert.ErrorIs(t, err, engine.ErrValidation, "inactive method")

	_, err = f.receive("missing", "op-1", "10")
	assert.True(t, engine.IsNotFound(err))

	_, err = f.eng.Bookings.Cancel(f.ctx, b.ID)
	require.NoError(t, err)
	_, err = f.receive(b.ID, "op-1", "10")
	assert.ErrorIs(t, err, engine.ErrInvalidState, "canceled booking")
}

// =============================================================================
// BALANCE
// =============================================================================

func TestBalance_RoundTrip(t *testing.T) {
	// GIVEN: a 200.00 stay and a 150.00 payment
	// THEN: 50.00 is due; after another 50.00 nothing is due
	f := newFixture(t)
	sess := f.openSession(t, "0")
	b := f.book(t, stay(10, 11), engine.BookingConfirmed)

	f.pay(t, sess, b, "150.00")
	bal, err := f.eng.Ledger.Balance(f.ctx, b.ID)
	require.NoError(t, err)
	requireDecimal(t, "200.00", bal.TotalValue)
	requireDecimal(t, "150.00", bal.AmountPaid)
	requireDecimal(t, "50.00", bal.BalanceDue)

	f.pay(t, sess, b, "50.00")
	bal, err = f.eng.Ledger.Balance(f.ctx, b.ID)
	require.NoError(t, err)
	requireDecimal(t, "0", bal.BalanceDue)
	assert.False(t, bal.HasDebt())
}

func TestBalance_OverpaymentIsCredit(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	b := f.book(t, stay(10, 11), engine.BookingConfirmed)
	f.pay(t, sess, b, "250")

	bal, err := f.eng.Ledger.Balance(f.ctx, b.ID)
	require.NoError(t, err)
	requireDecimal(t, "-50", bal.BalanceDue)
	assert.True(t, bal.HasCredit())
}

func TestComputeBalance_IgnoresOutflows(t *testing.T) {
	id := engine.BookingID("b")
	allocs := []engine.Allocation{{AgreedPrice: dec("100")}, {AgreedPrice: dec("60")}}
	txs := []engine.Transaction{
		{Type: engine.TxConsumption, Amount: dec("15")},
		{Type: engine.TxIncome, Amount: dec("100")},
		{Type: engine.TxRefund, Amount: dec("-30")},
		{Type: engine.TxExpense, Amount: dec("-5")},
	}

	bal := engine.ComputeBalance(id, allocs, txs)

	requireDecimal(t, "175", bal.TotalValue)
	requireDecimal(t, "100", bal.AmountPaid)
	requireDecimal(t, "75", bal.BalanceDue)
}

// =============================================================================
// CONSUMPTION
// =============================================================================

func TestRegisterConsumption_ChargesAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	b := f.checkedIn(t)
	p := f.addProduct(t, "4.50", 10)

	tx, err := f.eng.Ledger.RegisterConsumption(f.ctx, engine.ConsumptionRequest{
		BookingID: b.ID, ProductID: p.ID, Quantity: 2, SessionID: &sess.ID, OperatorID: "op-1",
	})
	require.NoError(t, err)

	assert.Equal(t, engine.TxConsumption, tx.Type)
	requireDecimal(t, "9.00", tx.Amount)
	assert.Equal(t, "Consumption: 2x Water", tx.Description)

	p, err = f.eng.Catalog.Product(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)

	bal, err := f.eng.Ledger.Balance(f.ctx, b.ID)
	require.NoError(t, err)
	requireDecimal(t, "209.00", bal.TotalValue)
}

func TestRegisterConsumption_InsufficientStock(t *testing.T) {
	// GIVEN: 3 in stock
	// WHEN: 5 are consumed
	// THEN: InsufficientStock, stock stays 3, no transaction written
	f := newFixture(t)
	b := f.checkedIn(t)
	p := f.addProduct(t, "4.50", 3)

	_, err := f.eng.Ledger.RegisterConsumption(f.ctx, engine.ConsumptionRequest{
		BookingID: b.ID, ProductID: p.ID, Quantity: 5,
	})

	var ise *engine.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 3, ise.Available)
	assert.Equal(t, 5, ise.Requested)

	p, err = f.eng.Catalog.Product(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	txs, err := f.eng.Ledger.Transactions(f.ctx, engine.TransactionFilter{BookingID: &b.ID})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestRegisterConsumption_ClosedSessionLeavesStock(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	_, err := f.eng.Cashier.CloseSession(f.ctx, sess.ID, "op-1", decimal.Zero, "")
	require.NoError(t, err)
	b := f.checkedIn(t)
	p := f.addProduct(t, "1", 5)

	_, err = f.eng.Ledger.RegisterConsumption(f.ctx, engine.ConsumptionRequest{
		BookingID: b.ID, ProductID: p.ID, Quantity: 1, SessionID: &sess.ID, OperatorID: "op-1",
	})

	assert.ErrorIs(t, err, engine.ErrClosedSession)
	p, err = f.eng.Catalog.Product(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestRegisterConsumption_ForeignSessionLeavesStock(t *testing.T) {
	f := newFixture(t)
	sess := f.openSession(t, "0")
	b := f.checkedIn(t)
	p := f.addProduct(t, "1", 5)

	_, err := f.eng.Ledger.RegisterConsumption(f.ctx, engine.ConsumptionRequest{
		BookingID: b.ID, ProductID: p.ID, Quantity: 1, SessionID: &sess.ID, OperatorID: "op-2",
	})
	assert.ErrorIs(t, err, engine.ErrForeignSession)

	_, err = f.eng.Ledger.RegisterConsumption(f.ctx, engine.ConsumptionRequest{
		BookingID: b.ID, ProductID: p.ID, Quantity: 1, SessionID: &sess.ID,
	})
	assert.ErrorIs(t, err, engine.ErrValidation)

	p, err = f.eng.Catalog.Product(f.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)
}

func TestRegisterConsumption_Validation(t *testing.T) {
	f := newFixture(t)
	b := f.checkedIn(t)
	p := f.addProduct(t, "1", 5)

	_, err := f.eng.Ledger.RegisterConsumption(f.ctx, engine.ConsumptionRequest{
		BookingID: b.ID, ProductID: p.ID, Quantity: 0,
	})
	assert.ErrorIs(t, err, engine.ErrValidation)
}

func TestCatalog_Restock(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "1", 0)

	p, err := f.eng.Catalog.Restock(f.ctx, p.ID, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, p.Stock)

	_, err = f.eng.Catalog.Restock(f.ctx, "missing", 1)
	assert.True(t, engine.IsNotFound(err))
}

func TestCatalog_GuestWithBookingsProtected(t *testing.T) {
	f := newFixture(t)
	f.book(t, stay(10, 11), engine.BookingPending)

	err := f.eng.Catalog.RemoveGuest(f.ctx, f.guest.ID)
	assert.ErrorIs(t, err, engine.ErrProtected)

	loner, err := f.eng.Catalog.AddGuest(f.ctx, engine.NewGuest{Name: "Walk In"})
	require.NoError(t, err)
	assert.NoError(t, f.eng.Catalog.RemoveGuest(f.ctx, loner.ID))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "credit-card", engine.Slugify("Credit Card"))
	assert.Equal(t, "pix", engine.Slugify("  PIX! "))
}
