package billing

import (
	"testing"
	"time"

	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBill(t *testing.T) *Bill {
	t.Helper()
	period, err := valueobject.ParseBillingPeriod("2025-11")
	require.NoError(t, err)

	b, err := NewBill(
		uuid.New(), uuid.New(), uuid.New(), uuid.New(),
		period,
		decimal.NewFromInt(800), decimal.Zero,
	)
	require.NoError(t, err)
	return b
}

func TestNewBill(t *testing.T) {
	t.Run("creates pending bill with derived dates", func(t *testing.T) {
		b := newTestBill(t)

		assert.Equal(t, BillStatusPending, b.Status)
		assert.Equal(t, time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC), b.BillDate)
		assert.Equal(t, time.Date(2025, time.November, 15, 0, 0, 0, 0, time.UTC), b.DueDate)
		assert.Nil(t, b.PaymentDate)
		assert.True(t, b.TotalAmount.Equal(decimal.NewFromInt(800)))
		assert.True(t, b.Amount.Equal(b.TotalAmount), "legacy amount must mirror total")
	})

	t.Run("sums rent and charges into total", func(t *testing.T) {
		period, _ := valueobject.ParseBillingPeriod("2025-11")
		b, err := NewBill(uuid.New(), uuid.New(), uuid.New(), uuid.New(),
			period, decimal.NewFromInt(650), decimal.NewFromFloat(42.50))
		require.NoError(t, err)
		assert.True(t, b.TotalAmount.Equal(decimal.NewFromFloat(692.50)))
	})

	t.Run("rejects non-positive rent", func(t *testing.T) {
		period, _ := valueobject.ParseBillingPeriod("2025-11")
		_, err := NewBill(uuid.New(), uuid.New(), uuid.New(), uuid.New(),
			period, decimal.Zero, decimal.Zero)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_AMOUNT", domainErr.Code)
	})

	t.Run("rejects negative charges", func(t *testing.T) {
		period, _ := valueobject.ParseBillingPeriod("2025-11")
		_, err := NewBill(uuid.New(), uuid.New(), uuid.New(), uuid.New(),
			period, decimal.NewFromInt(800), decimal.NewFromInt(-1))
		assert.Error(t, err)
	})

	t.Run("rejects empty identifiers", func(t *testing.T) {
		period, _ := valueobject.ParseBillingPeriod("2025-11")
		_, err := NewBill(uuid.Nil, uuid.New(), uuid.New(), uuid.New(),
			period, decimal.NewFromInt(800), decimal.Zero)
		assert.Error(t, err)
	})

	t.Run("records a created event", func(t *testing.T) {
		b := newTestBill(t)
		events := b.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeBillCreated, events[0].EventType())
	})
}

func TestBillMarkPaid(t *testing.T) {
	t.Run("pending to paid sets payment date", func(t *testing.T) {
		b := newTestBill(t)
		paidAt := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)

		require.NoError(t, b.MarkPaid(paidAt))
		assert.Equal(t, BillStatusPaid, b.Status)
		require.NotNil(t, b.PaymentDate)
		assert.Equal(t, paidAt, *b.PaymentDate)
	})

	t.Run("overdue to paid is legal", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkOverdue(b.DueDate.AddDate(0, 0, 1)))
		require.NoError(t, b.MarkPaid(time.Now()))
		assert.Equal(t, BillStatusPaid, b.Status)
	})

	t.Run("paying twice is rejected and state unchanged", func(t *testing.T) {
		b := newTestBill(t)
		paidAt := time.Now()
		require.NoError(t, b.MarkPaid(paidAt))
		versionBefore := b.GetVersion()

		err := b.MarkPaid(time.Now())
		assert.ErrorIs(t, err, ErrBillAlreadyPaid)
		assert.Equal(t, BillStatusPaid, b.Status)
		assert.Equal(t, versionBefore, b.GetVersion())
	})

	t.Run("paying again after receipt sent is rejected", func(t *testing.T) {
		b := newTestBill(t)
		paidAt := time.Date(2025, time.November, 10, 12, 0, 0, 0, time.UTC)
		require.NoError(t, b.MarkPaid(paidAt))
		require.NoError(t, b.MarkReceiptSent())
		versionBefore := b.GetVersion()

		err := b.MarkPaid(time.Now())
		assert.ErrorIs(t, err, ErrBillAlreadyPaid)
		assert.Equal(t, BillStatusReceiptSent, b.Status)
		require.NotNil(t, b.PaymentDate)
		assert.Equal(t, paidAt, *b.PaymentDate)
		assert.Equal(t, versionBefore, b.GetVersion())
	})

	t.Run("receipt sent before payment does not block paying", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkReceiptSent())

		require.NoError(t, b.MarkPaid(time.Now()))
		assert.Equal(t, BillStatusPaid, b.Status)
		require.NotNil(t, b.PaymentDate)
	})
}

func TestBillUndoPayment(t *testing.T) {
	t.Run("paid back to pending clears payment date", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkPaid(time.Now()))

		require.NoError(t, b.UndoPayment())
		assert.Equal(t, BillStatusPending, b.Status)
		assert.Nil(t, b.PaymentDate)
	})

	t.Run("undo on a pending bill is rejected", func(t *testing.T) {
		b := newTestBill(t)
		versionBefore := b.GetVersion()

		err := b.UndoPayment()
		assert.ErrorIs(t, err, ErrBillNotPaid)
		assert.Equal(t, BillStatusPending, b.Status)
		assert.Equal(t, versionBefore, b.GetVersion())
	})

	t.Run("undo on an overdue bill is rejected", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkOverdue(b.DueDate.AddDate(0, 0, 1)))
		assert.ErrorIs(t, b.UndoPayment(), ErrBillNotPaid)
	})

	t.Run("undo after receipt sent reverts a paid bill", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkPaid(time.Now()))
		require.NoError(t, b.MarkReceiptSent())

		require.NoError(t, b.UndoPayment())
		assert.Equal(t, BillStatusPending, b.Status)
		assert.Nil(t, b.PaymentDate)
	})

	t.Run("undo on an unpaid receipt-sent bill is rejected", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkReceiptSent())
		assert.ErrorIs(t, b.UndoPayment(), ErrBillNotPaid)
	})
}

func TestBillMarkOverdue(t *testing.T) {
	t.Run("pending past due becomes overdue", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkOverdue(b.DueDate.AddDate(0, 0, 1)))
		assert.Equal(t, BillStatusOverdue, b.Status)
	})

	t.Run("not yet due is rejected", func(t *testing.T) {
		b := newTestBill(t)
		err := b.MarkOverdue(b.DueDate.AddDate(0, 0, -1))
		assert.Error(t, err)
		assert.Equal(t, BillStatusPending, b.Status)
	})

	t.Run("paid bill is never marked overdue", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkPaid(time.Now()))
		assert.Error(t, b.MarkOverdue(b.DueDate.AddDate(0, 0, 30)))
	})
}

func TestBillMarkReceiptSent(t *testing.T) {
	t.Run("from pending", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkReceiptSent())
		assert.Equal(t, BillStatusReceiptSent, b.Status)
	})

	t.Run("from paid", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkPaid(time.Now()))
		require.NoError(t, b.MarkReceiptSent())
		assert.Equal(t, BillStatusReceiptSent, b.Status)
	})

	t.Run("from overdue is rejected", func(t *testing.T) {
		b := newTestBill(t)
		require.NoError(t, b.MarkOverdue(b.DueDate.AddDate(0, 0, 1)))
		assert.Error(t, b.MarkReceiptSent())
	})
}

func TestBillStatusTransitionTable(t *testing.T) {
	assert.True(t, BillStatusPending.CanTransitionTo(BillStatusOverdue))
	assert.True(t, BillStatusPending.CanTransitionTo(BillStatusPaid))
	assert.True(t, BillStatusOverdue.CanTransitionTo(BillStatusPaid))
	assert.True(t, BillStatusPaid.CanTransitionTo(BillStatusPending))

	assert.False(t, BillStatusOverdue.CanTransitionTo(BillStatusPending))
	assert.False(t, BillStatusPaid.CanTransitionTo(BillStatusOverdue))
	assert.False(t, BillStatusOverdue.CanTransitionTo(BillStatusReceiptSent))
}

func TestBillIsOverdue(t *testing.T) {
	b := newTestBill(t)
	assert.False(t, b.IsOverdue(b.DueDate))
	assert.True(t, b.IsOverdue(b.DueDate.AddDate(0, 0, 1)))

	require.NoError(t, b.MarkPaid(time.Now()))
	assert.False(t, b.IsOverdue(b.DueDate.AddDate(0, 0, 1)))
}
