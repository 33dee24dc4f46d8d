package persistence

import (
	"context"
	"sync"
	"testing"

	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormProfitLedgerRepository_Increment_CreatesEntryLazily(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	total, err := repo.Increment(ctx, ownerID, decimal.NewFromFloat(800.00))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromFloat(800.00)), "got %s", total)

	ledger, err := repo.FindByOwner(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, ownerID, ledger.OwnerID)
	assert.True(t, ledger.TotalProfit.Equal(decimal.NewFromFloat(800.00)))
}

func TestGormProfitLedgerRepository_Increment_Accumulates(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	_, err := repo.Increment(ctx, ownerID, decimal.NewFromFloat(800.00))
	require.NoError(t, err)
	total, err := repo.Increment(ctx, ownerID, decimal.NewFromFloat(650.00))
	require.NoError(t, err)

	assert.True(t, total.Equal(decimal.NewFromFloat(1450.00)), "got %s", total)
}

func TestGormProfitLedgerRepository_Increment_NegativeDeltaRoundTrip(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	_, err := repo.Increment(ctx, ownerID, decimal.NewFromFloat(325.50))
	require.NoError(t, err)
	total, err := repo.Increment(ctx, ownerID, decimal.NewFromFloat(-325.50))
	require.NoError(t, err)

	assert.True(t, total.IsZero(), "pay then undo must restore the prior total, got %s", total)
}

func TestGormProfitLedgerRepository_OwnersAreIsolated(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)
	ctx := context.Background()
	ownerA := uuid.New()
	ownerB := uuid.New()

	_, err := repo.Increment(ctx, ownerA, decimal.NewFromFloat(800.00))
	require.NoError(t, err)
	_, err = repo.Increment(ctx, ownerB, decimal.NewFromFloat(650.00))
	require.NoError(t, err)

	totalA, err := repo.GetTotal(ctx, ownerA)
	require.NoError(t, err)
	totalB, err := repo.GetTotal(ctx, ownerB)
	require.NoError(t, err)

	assert.True(t, totalA.Equal(decimal.NewFromFloat(800.00)))
	assert.True(t, totalB.Equal(decimal.NewFromFloat(650.00)))
}

func TestGormProfitLedgerRepository_GetTotal_AbsentOwnerIsZero(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)

	total, err := repo.GetTotal(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestGormProfitLedgerRepository_FindByOwner_Absent(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)

	_, err := repo.FindByOwner(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormProfitLedgerRepository_ConcurrentIncrementsAllLand(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormProfitLedgerRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Increment(ctx, ownerID, decimal.NewFromInt(10))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	total, err := repo.GetTotal(ctx, ownerID)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(10*workers)), "got %s", total)
}
