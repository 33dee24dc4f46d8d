// Package scheduler runs the recurring billing jobs: the monthly
// generation run, the daily backup sweep that catches bills missed by
// the monthly run, and the daily overdue sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	billingapp "github.com/gestloc/backend/internal/application/billing"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/gestloc/backend/internal/infrastructure/config"
	"github.com/gestloc/backend/internal/infrastructure/notification"
)

// JobType identifies the kind of billing job
type JobType string

const (
	JobTypeGeneration   JobType = "GENERATION"
	JobTypeBackupSweep  JobType = "BACKUP_SWEEP"
	JobTypeOverdueSweep JobType = "OVERDUE_SWEEP"
)

// JobTrigger records what started a job
type JobTrigger string

const (
	TriggerScheduled JobTrigger = "SCHEDULED"
	TriggerStartup   JobTrigger = "STARTUP"
	TriggerManual    JobTrigger = "MANUAL"
)

// JobStatus represents the outcome of a billing job
type JobStatus string

const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusPartial JobStatus = "PARTIAL"
	JobStatusFailed  JobStatus = "FAILED"
)

// JobRecord is the audit trail entry for one billing job run
type JobRecord struct {
	ID             uuid.UUID
	JobType        JobType
	Period         string
	Trigger        JobTrigger
	Status         JobStatus
	StartedAt      time.Time
	CompletedAt    *time.Time
	BillsGenerated int
	BillsSkipped   int
	ErrorCount     int
	Detail         string
}

// JobRecorder persists completed job records. nil disables auditing.
type JobRecorder interface {
	Record(ctx context.Context, record *JobRecord) error
}

// BillGenerator is the slice of the generation service the scheduler needs
type BillGenerator interface {
	GenerateForPeriod(ctx context.Context, period string, ownerID *uuid.UUID) (*billingapp.BatchResult, error)
	MissingBillCount(ctx context.Context, period valueobject.BillingPeriod) (int, error)
	CurrentPeriod() valueobject.BillingPeriod
}

// OverdueSweeper is the slice of the overdue service the scheduler needs
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (*billingapp.SweepResult, error)
}

// SchedulerStatus is a snapshot of the scheduler state for the API
type SchedulerStatus struct {
	Running    bool       `json:"running"`
	JobRunning bool       `json:"job_running"`
	LastJob    *JobRecord `json:"last_job,omitempty"`
}

// BillingScheduler drives the billing jobs off a coarse ticker. Time
// checks use hour granularity with per-date (or per-period) dedupe, so
// a job whose exact hour was missed while the process was down still
// runs on the first tick past it.
type BillingScheduler struct {
	config    config.SchedulerConfig
	generator BillGenerator
	sweeper   OverdueSweeper
	recorder  JobRecorder
	clock     billingapp.Clock
	logger    *zap.Logger

	notifier        notification.Notifier
	notifyRecipient string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	isRunning  bool
	jobRunning bool
	lastJob    *JobRecord

	lastGenerationPeriod string
	lastBackupDate       string
	lastOverdueDate      string
}

// NewBillingScheduler creates a billing scheduler. recorder may be nil.
func NewBillingScheduler(
	cfg config.SchedulerConfig,
	generator BillGenerator,
	sweeper OverdueSweeper,
	recorder JobRecorder,
	clock billingapp.Clock,
	logger *zap.Logger,
) (*BillingScheduler, error) {
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	if cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	if cfg.StartupDelay < 0 {
		return nil, fmt.Errorf("%w: startup delay cannot be negative", ErrInvalidConfig)
	}
	if clock == nil {
		clock = billingapp.SystemClock{}
	}
	return &BillingScheduler{
		config:    cfg,
		generator: generator,
		sweeper:   sweeper,
		recorder:  recorder,
		clock:     clock,
		logger:    logger,
	}, nil
}

// WithNotifier enables run summary notifications to the given recipient
func (s *BillingScheduler) WithNotifier(n notification.Notifier, recipient string) *BillingScheduler {
	s.notifier = n
	s.notifyRecipient = recipient
	return s
}

// Start starts the scheduler loop. When RunOnStartup is set, a catch-up
// pass runs after the configured warm-up delay so a restart never leaves
// the current month unbilled or overdue bills unmarked, while dependent
// services get time to come up first.
func (s *BillingScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Billing scheduler started",
		zap.Duration("tick_interval", s.config.TickInterval),
		zap.Int("monthly_run_hour", s.config.MonthlyRunHour),
		zap.Int("backup_sweep_hour", s.config.BackupSweepHour),
		zap.Int("overdue_sweep_hour", s.config.OverdueSweepHour),
		zap.Bool("run_on_startup", s.config.RunOnStartup),
		zap.Duration("startup_delay", s.config.StartupDelay),
	)

	if s.config.RunOnStartup {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if !s.warmUp(ctx) {
				return
			}
			s.startupCatchUp(ctx)
		}()
	}

	return nil
}

// Stop stops the scheduler and waits for any in-flight job to finish
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Billing scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *BillingScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires whichever jobs are due at the current tick
func (s *BillingScheduler) checkAndTrigger(ctx context.Context) {
	now := s.clock.Now()
	currentDate := now.Format("2006-01-02")
	period := valueobject.BillingPeriodOf(now)

	if now.Day() == 1 && now.Hour() >= s.config.MonthlyRunHour && s.dueForGeneration(period.String()) {
		if _, err := s.runGeneration(ctx, JobTypeGeneration, TriggerScheduled, period.String(), nil); err != nil {
			s.logger.Error("Scheduled generation run failed",
				zap.String("period", period.String()),
				zap.Error(err),
			)
		}
	}

	if now.Hour() >= s.config.BackupSweepHour && s.dueForBackup(currentDate) {
		s.runBackupSweep(ctx, TriggerScheduled)
	}

	if now.Hour() >= s.config.OverdueSweepHour && s.dueForOverdue(currentDate) {
		if _, err := s.runOverdueSweep(ctx, TriggerScheduled); err != nil {
			s.logger.Error("Scheduled overdue sweep failed", zap.Error(err))
		}
	}
}

// warmUp waits out the startup delay. Returns false when the scheduler
// was stopped before the delay elapsed.
func (s *BillingScheduler) warmUp(ctx context.Context) bool {
	if s.config.StartupDelay <= 0 {
		return true
	}
	timer := time.NewTimer(s.config.StartupDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// startupCatchUp generates any bills missing for the current period and
// sweeps overdue bills once, after the warm-up delay
func (s *BillingScheduler) startupCatchUp(ctx context.Context) {
	period := s.generator.CurrentPeriod()

	missing, err := s.generator.MissingBillCount(ctx, period)
	if err != nil {
		s.logger.Error("Startup catch-up check failed",
			zap.String("period", period.String()),
			zap.Error(err),
		)
	} else if missing > 0 {
		s.logger.Info("Startup catch-up: generating missing bills",
			zap.String("period", period.String()),
			zap.Int("missing", missing),
		)
		if _, err := s.runGeneration(ctx, JobTypeGeneration, TriggerStartup, period.String(), nil); err != nil {
			s.logger.Error("Startup generation run failed", zap.Error(err))
		}
	}

	if _, err := s.runOverdueSweep(ctx, TriggerStartup); err != nil {
		s.logger.Error("Startup overdue sweep failed", zap.Error(err))
	}
}

// TriggerGeneration runs a generation job on demand. An empty period
// defaults to the current month. Returns ErrRunInProgress when another
// job holds the single-flight slot.
func (s *BillingScheduler) TriggerGeneration(ctx context.Context, period string, ownerID *uuid.UUID) (*billingapp.BatchResult, error) {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return nil, ErrSchedulerNotRunning
	}

	if period == "" {
		period = s.generator.CurrentPeriod().String()
	}
	return s.runGeneration(ctx, JobTypeGeneration, TriggerManual, period, ownerID)
}

// TriggerOverdueSweep runs an overdue sweep on demand
func (s *BillingScheduler) TriggerOverdueSweep(ctx context.Context) (*billingapp.SweepResult, error) {
	s.mu.Lock()
	running := s.isRunning
	s.mu.Unlock()
	if !running {
		return nil, ErrSchedulerNotRunning
	}
	return s.runOverdueSweep(ctx, TriggerManual)
}

// Status returns a snapshot of the scheduler state
func (s *BillingScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:    s.isRunning,
		JobRunning: s.jobRunning,
	}
	if s.lastJob != nil {
		jobCopy := *s.lastJob
		status.LastJob = &jobCopy
	}
	return status
}

func (s *BillingScheduler) dueForGeneration(period string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGenerationPeriod != period
}

func (s *BillingScheduler) dueForBackup(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBackupDate != date
}

func (s *BillingScheduler) dueForOverdue(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOverdueDate != date
}

// tryBeginJob acquires the single-flight slot
func (s *BillingScheduler) tryBeginJob(job *JobRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jobRunning {
		return false
	}
	s.jobRunning = true
	s.lastJob = job
	return true
}

func (s *BillingScheduler) endJob() {
	s.mu.Lock()
	s.jobRunning = false
	s.mu.Unlock()
}

func (s *BillingScheduler) runGeneration(ctx context.Context, jobType JobType, trigger JobTrigger, period string, ownerID *uuid.UUID) (result *billingapp.BatchResult, err error) {
	record := &JobRecord{
		ID:        uuid.New(),
		JobType:   jobType,
		Period:    period,
		Trigger:   trigger,
		Status:    JobStatusRunning,
		StartedAt: s.clock.Now(),
	}
	if !s.tryBeginJob(record) {
		return nil, ErrRunInProgress
	}
	defer s.endJob()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("generation job panicked: %v", r)
			s.finishJob(ctx, record, JobStatusFailed, err.Error())
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.logger.Info("Generation run starting",
		zap.String("job_type", string(jobType)),
		zap.String("period", period),
		zap.String("trigger", string(trigger)),
	)

	result, err = s.generator.GenerateForPeriod(jobCtx, period, ownerID)
	if err != nil {
		s.finishJob(ctx, record, JobStatusFailed, err.Error())
		return nil, err
	}

	record.BillsGenerated = result.BillsGenerated
	record.BillsSkipped = result.BillsSkipped
	record.ErrorCount = result.Errors

	status := JobStatusSuccess
	if result.HasErrors() {
		status = JobStatusPartial
	}
	s.finishJob(ctx, record, status, "")

	s.mu.Lock()
	s.lastGenerationPeriod = period
	s.mu.Unlock()

	s.logger.Info("Generation run completed",
		zap.String("period", period),
		zap.Int("generated", result.BillsGenerated),
		zap.Int("skipped", result.BillsSkipped),
		zap.Int("errors", result.Errors),
	)
	s.notifyRunResult(ctx, period, result)
	return result, nil
}

// notifyRunResult sends the batch summary. Delivery failures are logged
// and never fail the run.
func (s *BillingScheduler) notifyRunResult(ctx context.Context, period string, result *billingapp.BatchResult) {
	if s.notifier == nil {
		return
	}

	severity := notification.SeveritySuccess
	subject := fmt.Sprintf("Billing run completed for %s", period)
	if result.HasErrors() {
		severity = notification.SeverityWarning
		subject = fmt.Sprintf("Billing run for %s completed with errors", period)
	}
	body := fmt.Sprintf("%d bills generated, %d skipped, %d errors out of %d leases",
		result.BillsGenerated, result.BillsSkipped, result.Errors, result.TotalLeases)

	if err := s.notifier.Notify(ctx, s.notifyRecipient, subject, body, severity); err != nil {
		s.logger.Error("Failed to send run notification", zap.Error(err))
	}
}

// runBackupSweep checks for bills the monthly run missed and, when any
// are found, re-runs generation for the current period. Idempotency of
// the generation path makes re-running safe.
func (s *BillingScheduler) runBackupSweep(ctx context.Context, trigger JobTrigger) {
	period := s.generator.CurrentPeriod()
	currentDate := s.clock.Now().Format("2006-01-02")

	missing, err := s.generator.MissingBillCount(ctx, period)
	if err != nil {
		s.logger.Error("Backup sweep check failed",
			zap.String("period", period.String()),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.lastBackupDate = currentDate
	s.mu.Unlock()

	if missing == 0 {
		s.logger.Debug("Backup sweep: no missing bills", zap.String("period", period.String()))
		return
	}

	s.logger.Warn("Backup sweep found missing bills",
		zap.String("period", period.String()),
		zap.Int("missing", missing),
	)
	if _, err := s.runGeneration(ctx, JobTypeBackupSweep, trigger, period.String(), nil); err != nil {
		s.logger.Error("Backup sweep generation failed", zap.Error(err))
	}
}

func (s *BillingScheduler) runOverdueSweep(ctx context.Context, trigger JobTrigger) (result *billingapp.SweepResult, err error) {
	now := s.clock.Now()
	record := &JobRecord{
		ID:        uuid.New(),
		JobType:   JobTypeOverdueSweep,
		Period:    valueobject.BillingPeriodOf(now).String(),
		Trigger:   trigger,
		Status:    JobStatusRunning,
		StartedAt: now,
	}
	if !s.tryBeginJob(record) {
		return nil, ErrRunInProgress
	}
	defer s.endJob()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("overdue sweep panicked: %v", r)
			s.finishJob(ctx, record, JobStatusFailed, err.Error())
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	result, err = s.sweeper.SweepOverdue(jobCtx)
	if err != nil {
		s.finishJob(ctx, record, JobStatusFailed, err.Error())
		return nil, err
	}

	record.ErrorCount = result.Errors
	status := JobStatusSuccess
	if result.Errors > 0 {
		status = JobStatusPartial
	}
	s.finishJob(ctx, record, status, "")

	s.mu.Lock()
	s.lastOverdueDate = now.Format("2006-01-02")
	s.mu.Unlock()

	s.logger.Info("Overdue sweep completed",
		zap.Int("checked", result.Checked),
		zap.Int("marked", result.MarkedCount),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// finishJob stamps the record and hands it to the recorder
func (s *BillingScheduler) finishJob(ctx context.Context, record *JobRecord, status JobStatus, detail string) {
	completed := s.clock.Now()
	record.Status = status
	record.CompletedAt = &completed
	record.Detail = detail

	s.mu.Lock()
	jobCopy := *record
	s.lastJob = &jobCopy
	s.mu.Unlock()

	if s.recorder == nil {
		return
	}
	// Recording runs outside the job timeout so an expired job context
	// does not lose the audit row.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(recordCtx, record); err != nil {
		s.logger.Error("Failed to persist job record",
			zap.String("job_type", string(record.JobType)),
			zap.Error(err),
		)
	}
}
