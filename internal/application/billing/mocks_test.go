package billing

import (
	"context"
	"sync"
	"time"

	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/leasing"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockLeaseRepository is a mock implementation of leasing.LeaseRepository
type MockLeaseRepository struct {
	mock.Mock
}

func (m *MockLeaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*leasing.Lease, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*leasing.Lease), args.Error(1)
}

func (m *MockLeaseRepository) FindActive(ctx context.Context, filter leasing.ActiveLeaseFilter) ([]leasing.Lease, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]leasing.Lease), args.Error(1)
}

func (m *MockLeaseRepository) CountActive(ctx context.Context, filter leasing.ActiveLeaseFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockBillRepository is a mock implementation of billing.BillRepository
type MockBillRepository struct {
	mock.Mock
}

func (m *MockBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*domainbilling.Bill, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainbilling.Bill), args.Error(1)
}

func (m *MockBillRepository) FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*domainbilling.Bill, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainbilling.Bill), args.Error(1)
}

func (m *MockBillRepository) FindByTenantAndPeriod(ctx context.Context, tenantID uuid.UUID, period valueobject.BillingPeriod) (*domainbilling.Bill, error) {
	args := m.Called(ctx, tenantID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainbilling.Bill), args.Error(1)
}

func (m *MockBillRepository) ExistsByTenantAndPeriod(ctx context.Context, tenantID uuid.UUID, period valueobject.BillingPeriod) (bool, error) {
	args := m.Called(ctx, tenantID, period)
	return args.Bool(0), args.Error(1)
}

func (m *MockBillRepository) FindAll(ctx context.Context, filter domainbilling.BillFilter) ([]domainbilling.Bill, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainbilling.Bill), args.Error(1)
}

func (m *MockBillRepository) FindOverduePending(ctx context.Context, asOf time.Time) ([]domainbilling.Bill, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainbilling.Bill), args.Error(1)
}

func (m *MockBillRepository) Create(ctx context.Context, bill *domainbilling.Bill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

func (m *MockBillRepository) Save(ctx context.Context, bill *domainbilling.Bill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

func (m *MockBillRepository) CountForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (int64, error) {
	args := m.Called(ctx, period, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBillRepository) SumTotalForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, period, ownerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockBillRepository) CountByStatusForPeriod(ctx context.Context, period valueobject.BillingPeriod, ownerID *uuid.UUID) ([]domainbilling.StatusCount, error) {
	args := m.Called(ctx, period, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainbilling.StatusCount), args.Error(1)
}

func (m *MockBillRepository) CountByOwnerForPeriod(ctx context.Context, period valueobject.BillingPeriod) ([]domainbilling.OwnerCount, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domainbilling.OwnerCount), args.Error(1)
}

func (m *MockBillRepository) TenantsWithBillForPeriod(ctx context.Context, period valueobject.BillingPeriod) (map[uuid.UUID]struct{}, error) {
	args := m.Called(ctx, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]struct{}), args.Error(1)
}

// MockProfitLedgerRepository is a mock implementation of billing.ProfitLedgerRepository
type MockProfitLedgerRepository struct {
	mock.Mock
}

func (m *MockProfitLedgerRepository) Increment(ctx context.Context, ownerID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, ownerID, delta)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockProfitLedgerRepository) GetTotal(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockProfitLedgerRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*domainbilling.ProfitLedger, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainbilling.ProfitLedger), args.Error(1)
}

// =============================================================================
// Test Doubles
// =============================================================================

// decimalEq matches a decimal argument by numeric value rather than
// internal representation
func decimalEq(expected decimal.Decimal) interface{} {
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(expected)
	})
}

// passthroughTxManager runs the function directly without a real transaction
type passthroughTxManager struct{}

func (passthroughTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fixedClock reports a fixed instant
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// memoryStatsCache is an in-memory StatsCache for cache behavior tests
type memoryStatsCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
	gets    int
	deletes int
}

func newMemoryStatsCache() *memoryStatsCache {
	return &memoryStatsCache{entries: make(map[string][]byte)}
}

func (c *memoryStatsCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	return raw, ok
}

func (c *memoryStatsCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
}

func (c *memoryStatsCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.entries, key)
}
