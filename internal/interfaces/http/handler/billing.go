package handler

import (
	"errors"
	"time"

	billingapp "github.com/gestloc/backend/internal/application/billing"
	domainbilling "github.com/gestloc/backend/internal/domain/billing"
	"github.com/gestloc/backend/internal/domain/shared"
	"github.com/gestloc/backend/internal/domain/shared/valueobject"
	"github.com/gestloc/backend/internal/infrastructure/scheduler"
	"github.com/gestloc/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BillingHandler handles bill generation, payment and reporting endpoints
type BillingHandler struct {
	BaseHandler
	generationService *billingapp.GenerationService
	paymentService    *billingapp.PaymentService
	statsService      *billingapp.StatsService
	sched             *scheduler.BillingScheduler
}

// NewBillingHandler creates a new billing handler. sched may be nil, in
// which case manual generation bypasses the scheduler's single-flight
// guard and runs directly.
func NewBillingHandler(
	generationService *billingapp.GenerationService,
	paymentService *billingapp.PaymentService,
	statsService *billingapp.StatsService,
	sched *scheduler.BillingScheduler,
) *BillingHandler {
	return &BillingHandler{
		generationService: generationService,
		paymentService:    paymentService,
		statsService:      statsService,
		sched:             sched,
	}
}

// GenerateBillsRequest is the body of a manual generation request
type GenerateBillsRequest struct {
	Period  string `json:"period"`
	OwnerID string `json:"owner_id"`
}

// BillResponse is the API representation of a bill
type BillResponse struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	TenantID    string     `json:"tenant_id"`
	PropertyID  string     `json:"property_id"`
	LeaseID     string     `json:"lease_id"`
	Period      string     `json:"period"`
	RentAmount  float64    `json:"rent_amount"`
	Charges     float64    `json:"charges"`
	TotalAmount float64    `json:"total_amount"`
	Amount      float64    `json:"amount"`
	BillDate    time.Time  `json:"bill_date"`
	DueDate     time.Time  `json:"due_date"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toBillResponse(bill *domainbilling.Bill) BillResponse {
	return BillResponse{
		ID:          bill.ID.String(),
		OwnerID:     bill.OwnerID.String(),
		TenantID:    bill.TenantID.String(),
		PropertyID:  bill.PropertyID.String(),
		LeaseID:     bill.LeaseID.String(),
		Period:      bill.Period.String(),
		RentAmount:  bill.RentAmount.InexactFloat64(),
		Charges:     bill.Charges.InexactFloat64(),
		TotalAmount: bill.TotalAmount.InexactFloat64(),
		Amount:      bill.Amount.InexactFloat64(),
		BillDate:    bill.BillDate,
		DueDate:     bill.DueDate,
		PaymentDate: bill.PaymentDate,
		Status:      bill.Status.String(),
		Version:     bill.Version,
		CreatedAt:   bill.CreatedAt,
		UpdatedAt:   bill.UpdatedAt,
	}
}

// PaymentResultResponse is the API representation of a payment transition
type PaymentResultResponse struct {
	BillID      string     `json:"bill_id"`
	Status      string     `json:"status"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	LedgerTotal float64    `json:"ledger_total"`
}

func toPaymentResultResponse(result *billingapp.PaymentResult) PaymentResultResponse {
	return PaymentResultResponse{
		BillID:      result.BillID.String(),
		Status:      result.Status.String(),
		PaymentDate: result.PaymentDate,
		LedgerTotal: result.LedgerTotal.InexactFloat64(),
	}
}

// LedgerResponse is the API representation of an owner's profit ledger
type LedgerResponse struct {
	OwnerID     string     `json:"owner_id"`
	TotalProfit float64    `json:"total_profit"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// GenerateBills triggers bill generation for a period.
// POST /api/v1/billing/generate
func (h *BillingHandler) GenerateBills(c *gin.Context) {
	var req GenerateBillsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	var ownerID *uuid.UUID
	if req.OwnerID != "" {
		id, err := uuid.Parse(req.OwnerID)
		if err != nil {
			h.BadRequest(c, "Invalid owner ID format")
			return
		}
		ownerID = &id
	}

	h.runGeneration(c, req.Period, ownerID)
}

// GenerateOwnerBills triggers bill generation for a single owner.
// POST /api/v1/owners/:ownerID/billing/generate
func (h *BillingHandler) GenerateOwnerBills(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("ownerID"))
	if err != nil {
		h.BadRequest(c, "Invalid owner ID format")
		return
	}

	var req GenerateBillsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	h.runGeneration(c, req.Period, &ownerID)
}

func (h *BillingHandler) runGeneration(c *gin.Context, period string, ownerID *uuid.UUID) {
	var (
		result *billingapp.BatchResult
		err    error
	)
	if h.sched != nil {
		result, err = h.sched.TriggerGeneration(c.Request.Context(), period, ownerID)
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			result, err = h.generationService.GenerateForPeriod(c.Request.Context(), period, ownerID)
		}
	} else {
		result, err = h.generationService.GenerateForPeriod(c.Request.Context(), period, ownerID)
	}
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			h.Conflict(c, "A billing run is already in progress")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ListBills returns bills matching the query filters.
// GET /api/v1/bills
func (h *BillingHandler) ListBills(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	listReq.Normalize()

	filter := domainbilling.BillFilter{
		Filter: shared.Filter{
			Page:     listReq.Page,
			PageSize: listReq.PageSize,
		},
	}

	if s := c.Query("owner_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid owner ID format")
			return
		}
		filter.OwnerID = &id
	}
	if s := c.Query("tenant_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid tenant ID format")
			return
		}
		filter.TenantID = &id
	}
	if s := c.Query("period"); s != "" {
		period, err := valueobject.ParseBillingPeriod(s)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		filter.Period = &period
	}
	if s := c.Query("status"); s != "" {
		status := domainbilling.BillStatus(s)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid bill status")
			return
		}
		filter.Status = &status
	}

	bills, err := h.paymentService.ListBills(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]BillResponse, len(bills))
	for i := range bills {
		responses[i] = toBillResponse(&bills[i])
	}
	h.Success(c, responses)
}

// GetBill returns a single bill by ID.
// GET /api/v1/bills/:billID
func (h *BillingHandler) GetBill(c *gin.Context) {
	billID, err := uuid.Parse(c.Param("billID"))
	if err != nil {
		h.BadRequest(c, "Invalid bill ID format")
		return
	}

	bill, err := h.paymentService.GetBill(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBillResponse(bill))
}

// PayBill marks a bill as paid and credits the owner's ledger.
// POST /api/v1/bills/:billID/pay
func (h *BillingHandler) PayBill(c *gin.Context) {
	billID, err := uuid.Parse(c.Param("billID"))
	if err != nil {
		h.BadRequest(c, "Invalid bill ID format")
		return
	}

	result, err := h.paymentService.MarkBillAsPaid(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResultResponse(result))
}

// UndoPayment reverts a paid bill to pending and debits the owner's ledger.
// POST /api/v1/bills/:billID/undo-payment
func (h *BillingHandler) UndoPayment(c *gin.Context) {
	billID, err := uuid.Parse(c.Param("billID"))
	if err != nil {
		h.BadRequest(c, "Invalid bill ID format")
		return
	}

	result, err := h.paymentService.UndoBillPayment(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPaymentResultResponse(result))
}

// MarkReceiptSent records that the rent receipt was dispatched.
// POST /api/v1/bills/:billID/receipt-sent
func (h *BillingHandler) MarkReceiptSent(c *gin.Context) {
	billID, err := uuid.Parse(c.Param("billID"))
	if err != nil {
		h.BadRequest(c, "Invalid bill ID format")
		return
	}

	bill, err := h.paymentService.MarkReceiptSent(c.Request.Context(), billID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBillResponse(bill))
}

// GetOwnerLedger returns an owner's accumulated profit.
// GET /api/v1/owners/:ownerID/ledger
func (h *BillingHandler) GetOwnerLedger(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("ownerID"))
	if err != nil {
		h.BadRequest(c, "Invalid owner ID format")
		return
	}

	total, lastUpdated, err := h.paymentService.GetOwnerProfit(c.Request.Context(), ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := LedgerResponse{
		OwnerID:     ownerID.String(),
		TotalProfit: total.InexactFloat64(),
	}
	if !lastUpdated.IsZero() {
		resp.LastUpdated = &lastUpdated
	}
	h.Success(c, resp)
}

// GetStatistics returns aggregated bill statistics for a period.
// GET /api/v1/billing/statistics
func (h *BillingHandler) GetStatistics(c *gin.Context) {
	period := c.Query("period")

	var ownerID *uuid.UUID
	if s := c.Query("owner_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			h.BadRequest(c, "Invalid owner ID format")
			return
		}
		ownerID = &id
	}

	stats, err := h.statsService.GetPeriodStatistics(c.Request.Context(), period, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
