package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	billingapp "github.com/gestloc/backend/internal/application/billing"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/gestloc/backend/internal/infrastructure/config"
	"github.com/gestloc/backend/internal/infrastructure/notification"
)

// =============================================================================
// Mocks
// =============================================================================

type MockBillGenerator struct {
	mock.Mock
}

func (m *MockBillGenerator) GenerateForPeriod(ctx context.Context, period string, ownerID *uuid.UUID) (*billingapp.BatchResult, error) {
	args := m.Called(ctx, period, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.BatchResult), args.Error(1)
}

func (m *MockBillGenerator) MissingBillCount(ctx context.Context, period valueobject.BillingPeriod) (int, error) {
	args := m.Called(ctx, period)
	return args.Int(0), args.Error(1)
}

func (m *MockBillGenerator) CurrentPeriod() valueobject.BillingPeriod {
	args := m.Called()
	return args.Get(0).(valueobject.BillingPeriod)
}

type MockOverdueSweeper struct {
	mock.Mock
}

func (m *MockOverdueSweeper) SweepOverdue(ctx context.Context) (*billingapp.SweepResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingapp.SweepResult), args.Error(1)
}

// memoryRecorder collects job records in memory
type memoryRecorder struct {
	mu      sync.Mutex
	records []JobRecord
}

func (r *memoryRecorder) Record(_ context.Context, record *JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *memoryRecorder) all() []JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobRecord, len(r.records))
	copy(out, r.records)
	return out
}

// movableClock is a Clock whose time the test controls
type movableClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *movableClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func mustBillingPeriod(t *testing.T, s string) valueobject.BillingPeriod {
	t.Helper()
	p, err := valueobject.ParseBillingPeriod(s)
	require.NoError(t, err)
	return p
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:          true,
		TickInterval:     5 * time.Millisecond,
		MonthlyRunHour:   6,
		BackupSweepHour:  23,
		OverdueSweepHour: 23,
		RunOnStartup:     false,
		JobTimeout:       time.Minute,
	}
}

func newTestScheduler(t *testing.T, cfg config.SchedulerConfig, gen *MockBillGenerator, sweeper *MockOverdueSweeper, recorder JobRecorder, clock billingapp.Clock) *BillingScheduler {
	t.Helper()
	s, err := NewBillingScheduler(cfg, gen, sweeper, recorder, clock, zap.NewNop())
	require.NoError(t, err)
	return s
}

// =============================================================================
// Construction
// =============================================================================

func TestNewBillingScheduler_RejectsInvalidConfig(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.TickInterval = 0
	_, err := NewBillingScheduler(cfg, &MockBillGenerator{}, &MockOverdueSweeper{}, nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testSchedulerConfig()
	cfg.JobTimeout = 0
	_, err = NewBillingScheduler(cfg, &MockBillGenerator{}, &MockOverdueSweeper{}, nil, nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// =============================================================================
// Manual triggers
// =============================================================================

func TestTriggerGeneration_RunsAndRecords(t *testing.T) {
	gen := new(MockBillGenerator)
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11", BillsGenerated: 2, BillsSkipped: 1}, nil)

	s := newTestScheduler(t, testSchedulerConfig(), gen, sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	result, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.BillsGenerated)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, JobTypeGeneration, records[0].JobType)
	assert.Equal(t, TriggerManual, records[0].Trigger)
	assert.Equal(t, JobStatusSuccess, records[0].Status)
	assert.Equal(t, "2025-11", records[0].Period)
	assert.Equal(t, 2, records[0].BillsGenerated)
	assert.Equal(t, 1, records[0].BillsSkipped)
	require.NotNil(t, records[0].CompletedAt)

	status := s.Status()
	assert.True(t, status.Running)
	assert.False(t, status.JobRunning)
	require.NotNil(t, status.LastJob)
	assert.Equal(t, JobStatusSuccess, status.LastJob.Status)
}

func TestTriggerGeneration_EmptyPeriodDefaultsToCurrentMonth(t *testing.T) {
	gen := new(MockBillGenerator)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	gen.On("CurrentPeriod").Return(mustBillingPeriod(t, "2025-11"))
	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11"}, nil)

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	_, err := s.TriggerGeneration(context.Background(), "", nil)
	require.NoError(t, err)
	gen.AssertExpectations(t)
}

func TestTriggerGeneration_SchedulerStopped(t *testing.T) {
	s := newTestScheduler(t, testSchedulerConfig(), new(MockBillGenerator), new(MockOverdueSweeper), nil, nil)

	_, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestTriggerGeneration_WhileBusyReturnsRunInProgress(t *testing.T) {
	gen := new(MockBillGenerator)
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	block := make(chan struct{})
	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Run(func(mock.Arguments) { <-block }).
		Return(&billingapp.BatchResult{Period: "2025-11"}, nil)

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), nil, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
		firstDone <- err
	}()

	require.Eventually(t, func() bool {
		return s.Status().JobRunning
	}, time.Second, time.Millisecond)

	_, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(block)
	require.NoError(t, <-firstDone)
}

func TestTriggerGeneration_FailureRecordedAsFailed(t *testing.T) {
	gen := new(MockBillGenerator)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(nil, errors.New("lease store unavailable"))

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	_, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
	require.Error(t, err)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, JobStatusFailed, records[0].Status)
	assert.Contains(t, records[0].Detail, "lease store unavailable")
}

func TestTriggerOverdueSweep_RunsAndRecords(t *testing.T) {
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)}

	sweeper.On("SweepOverdue", mock.Anything).
		Return(&billingapp.SweepResult{Checked: 5, MarkedCount: 2}, nil)

	s := newTestScheduler(t, testSchedulerConfig(), new(MockBillGenerator), sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	result, err := s.TriggerOverdueSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.MarkedCount)

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, JobTypeOverdueSweep, records[0].JobType)
	assert.Equal(t, JobStatusSuccess, records[0].Status)
}

// =============================================================================
// Scheduled runs
// =============================================================================

func TestScheduledGeneration_FiresOnFirstOfMonthOnce(t *testing.T) {
	gen := new(MockBillGenerator)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 1, 6, 0, 5, 0, time.UTC)}

	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11", BillsGenerated: 3}, nil).
		Once()

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(recorder.all()) == 1
	}, time.Second, time.Millisecond)

	// More ticks pass for the same period; the run must not repeat.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, recorder.all(), 1)
	gen.AssertExpectations(t)
}

func TestScheduledGeneration_SkippedBeforeRunHour(t *testing.T) {
	gen := new(MockBillGenerator)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 1, 5, 0, 0, 0, time.UTC)}

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recorder.all())
	gen.AssertNotCalled(t, "GenerateForPeriod", mock.Anything, mock.Anything, mock.Anything)
}

func TestScheduledOverdueSweep_FiresOncePerDay(t *testing.T) {
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 20, 5, 30, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.OverdueSweepHour = 5

	sweeper.On("SweepOverdue", mock.Anything).
		Return(&billingapp.SweepResult{Checked: 1, MarkedCount: 1}, nil).
		Once()

	s := newTestScheduler(t, cfg, new(MockBillGenerator), sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(recorder.all()) == 1
	}, time.Second, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, recorder.all(), 1)

	// The next day the sweep fires again.
	sweeper.On("SweepOverdue", mock.Anything).
		Return(&billingapp.SweepResult{Checked: 0}, nil).
		Once()
	clock.set(time.Date(2025, 11, 21, 5, 30, 0, 0, time.UTC))

	require.Eventually(t, func() bool {
		return len(recorder.all()) == 2
	}, time.Second, time.Millisecond)
	sweeper.AssertExpectations(t)
}

func TestBackupSweep_RegeneratesWhenBillsMissing(t *testing.T) {
	gen := new(MockBillGenerator)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 20, 7, 15, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.BackupSweepHour = 7

	period := mustBillingPeriod(t, "2025-11")
	gen.On("CurrentPeriod").Return(period)
	gen.On("MissingBillCount", mock.Anything, period).Return(2, nil).Once()
	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11", BillsGenerated: 2}, nil).
		Once()

	s := newTestScheduler(t, cfg, gen, new(MockOverdueSweeper), recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		records := recorder.all()
		return len(records) == 1 && records[0].JobType == JobTypeBackupSweep
	}, time.Second, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, recorder.all(), 1)
	gen.AssertExpectations(t)
}

func TestBackupSweep_NoMissingBillsIsQuiet(t *testing.T) {
	gen := new(MockBillGenerator)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 20, 7, 15, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.BackupSweepHour = 7

	period := mustBillingPeriod(t, "2025-11")
	gen.On("CurrentPeriod").Return(period)
	gen.On("MissingBillCount", mock.Anything, period).Return(0, nil).Once()

	s := newTestScheduler(t, cfg, gen, new(MockOverdueSweeper), recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return !s.dueForBackup("2025-11-20")
	}, time.Second, time.Millisecond)

	assert.Empty(t, recorder.all())
	gen.AssertNotCalled(t, "GenerateForPeriod", mock.Anything, mock.Anything, mock.Anything)
}

// =============================================================================
// Startup catch-up
// =============================================================================

func TestStartupCatchUp_GeneratesMissingBillsAndSweeps(t *testing.T) {
	gen := new(MockBillGenerator)
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.RunOnStartup = true

	period := mustBillingPeriod(t, "2025-11")
	gen.On("CurrentPeriod").Return(period)
	gen.On("MissingBillCount", mock.Anything, period).Return(1, nil)
	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11", BillsGenerated: 1}, nil)
	sweeper.On("SweepOverdue", mock.Anything).
		Return(&billingapp.SweepResult{}, nil)

	s := newTestScheduler(t, cfg, gen, sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(recorder.all()) == 2
	}, time.Second, time.Millisecond)

	records := recorder.all()
	assert.Equal(t, JobTypeGeneration, records[0].JobType)
	assert.Equal(t, TriggerStartup, records[0].Trigger)
	assert.Equal(t, JobTypeOverdueSweep, records[1].JobType)
	assert.Equal(t, TriggerStartup, records[1].Trigger)
}

func TestStartupCatchUp_NothingMissingSkipsGeneration(t *testing.T) {
	gen := new(MockBillGenerator)
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.RunOnStartup = true

	period := mustBillingPeriod(t, "2025-11")
	gen.On("CurrentPeriod").Return(period)
	gen.On("MissingBillCount", mock.Anything, period).Return(0, nil)
	sweeper.On("SweepOverdue", mock.Anything).
		Return(&billingapp.SweepResult{}, nil)

	s := newTestScheduler(t, cfg, gen, sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(recorder.all()) == 1
	}, time.Second, time.Millisecond)

	assert.Equal(t, JobTypeOverdueSweep, recorder.all()[0].JobType)
	gen.AssertNotCalled(t, "GenerateForPeriod", mock.Anything, mock.Anything, mock.Anything)
}

func TestStartupCatchUp_WaitsForWarmupDelay(t *testing.T) {
	gen := new(MockBillGenerator)
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.RunOnStartup = true
	cfg.StartupDelay = 250 * time.Millisecond

	period := mustBillingPeriod(t, "2025-11")
	gen.On("CurrentPeriod").Return(period)
	gen.On("MissingBillCount", mock.Anything, period).Return(0, nil)
	sweeper.On("SweepOverdue", mock.Anything).
		Return(&billingapp.SweepResult{}, nil)

	s := newTestScheduler(t, cfg, gen, sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recorder.all(), "catch-up must not fire before the warm-up elapses")

	require.Eventually(t, func() bool {
		return len(recorder.all()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, JobTypeOverdueSweep, recorder.all()[0].JobType)
}

func TestStartupCatchUp_StopDuringWarmupCancels(t *testing.T) {
	gen := new(MockBillGenerator)
	sweeper := new(MockOverdueSweeper)
	recorder := &memoryRecorder{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	cfg := testSchedulerConfig()
	cfg.RunOnStartup = true
	cfg.StartupDelay = 10 * time.Second

	s := newTestScheduler(t, cfg, gen, sweeper, recorder, clock)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	assert.Empty(t, recorder.all())
	gen.AssertNotCalled(t, "MissingBillCount", mock.Anything, mock.Anything)
	sweeper.AssertNotCalled(t, "SweepOverdue", mock.Anything)
}

// =============================================================================
// Notifications
// =============================================================================

type capturedNotification struct {
	recipient string
	subject   string
	body      string
	severity  notification.Severity
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []capturedNotification
}

func (n *captureNotifier) Notify(_ context.Context, recipient, subject, body string, severity notification.Severity) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, capturedNotification{recipient, subject, body, severity})
	return nil
}

func (n *captureNotifier) all() []capturedNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]capturedNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

func TestGenerationRun_NotifiesSummary(t *testing.T) {
	gen := new(MockBillGenerator)
	notifier := &captureNotifier{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11", TotalLeases: 3, BillsGenerated: 2, BillsSkipped: 1}, nil)

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), nil, clock).
		WithNotifier(notifier, "owners@gestloc.local")
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	_, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
	require.NoError(t, err)

	sent := notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "owners@gestloc.local", sent[0].recipient)
	assert.Equal(t, notification.SeveritySuccess, sent[0].severity)
	assert.Contains(t, sent[0].subject, "2025-11")
	assert.Contains(t, sent[0].body, "2 bills generated")
}

func TestGenerationRun_PartialFailureNotifiesWarning(t *testing.T) {
	gen := new(MockBillGenerator)
	notifier := &captureNotifier{}
	clock := &movableClock{now: time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)}

	gen.On("GenerateForPeriod", mock.Anything, "2025-11", (*uuid.UUID)(nil)).
		Return(&billingapp.BatchResult{Period: "2025-11", TotalLeases: 3, BillsGenerated: 2, Errors: 1}, nil)

	s := newTestScheduler(t, testSchedulerConfig(), gen, new(MockOverdueSweeper), nil, clock).
		WithNotifier(notifier, "owners@gestloc.local")
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	_, err := s.TriggerGeneration(context.Background(), "2025-11", nil)
	require.NoError(t, err)

	sent := notifier.all()
	require.Len(t, sent, 1)
	assert.Equal(t, notification.SeverityWarning, sent[0].severity)
	assert.Contains(t, sent[0].subject, "completed with errors")
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestStartStop_Idempotent(t *testing.T) {
	s := newTestScheduler(t, testSchedulerConfig(), new(MockBillGenerator), new(MockOverdueSweeper), nil, nil)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Status().Running)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.Status().Running)
}
