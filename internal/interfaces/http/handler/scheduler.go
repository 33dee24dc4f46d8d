package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gestloc/backend/internal/infrastructure/scheduler"
	"github.com/gestloc/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// JobHistory provides read access to persisted billing job records
type JobHistory interface {
	FindRecent(ctx context.Context, limit int) ([]scheduler.JobRecord, error)
}

// SchedulerHandler exposes scheduler state and manual job triggers
type SchedulerHandler struct {
	BaseHandler
	sched   *scheduler.BillingScheduler
	history JobHistory
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(sched *scheduler.BillingScheduler, history JobHistory) *SchedulerHandler {
	return &SchedulerHandler{
		sched:   sched,
		history: history,
	}
}

// GetStatus returns a snapshot of the scheduler state.
// GET /api/v1/scheduler/status
func (h *SchedulerHandler) GetStatus(c *gin.Context) {
	h.Success(c, h.sched.Status())
}

// ListJobs returns recent billing job runs, newest first.
// GET /api/v1/scheduler/jobs
func (h *SchedulerHandler) ListJobs(c *gin.Context) {
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			h.BadRequest(c, "Invalid limit, must be between 1 and 200")
			return
		}
		limit = n
	}

	jobs, err := h.history.FindRecent(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, jobs)
}

// TriggerOverdueSweep runs an overdue sweep on demand.
// POST /api/v1/scheduler/overdue-sweep
func (h *SchedulerHandler) TriggerOverdueSweep(c *gin.Context) {
	result, err := h.sched.TriggerOverdueSweep(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrRunInProgress):
			h.Conflict(c, "A billing run is already in progress")
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Scheduler is not running")
		default:
			h.HandleError(c, err)
		}
		return
	}
	h.Success(c, result)
}
