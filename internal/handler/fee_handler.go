package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// FeeHandler handles maintenance fee HTTP requests
type FeeHandler struct {
	feeService *service.FeeService
}

// NewFeeHandler creates a new FeeHandler
func NewFeeHandler(feeService *service.FeeService) *FeeHandler {
	return &FeeHandler{feeService: feeService}
}

// GenerateFeesRequest represents the period generation request body
type GenerateFeesRequest struct {
	Period        string `json:"period" validate:"required,datetime=2006-01"`
	AmountPerUnit string `json:"amountPerUnit" validate:"required,numeric"`
	DueDate       string `json:"dueDate" validate:"required,datetime=2006-01-02"`
}

// CreateFeeRequest represents a single-unit fee request body
type CreateFeeRequest struct {
	UnitID  int32  `json:"unitId" validate:"required,gt=0"`
	Period  string `json:"period" validate:"required,datetime=2006-01"`
	Amount  string `json:"amount" validate:"required,numeric"`
	DueDate string `json:"dueDate" validate:"required,datetime=2006-01-02"`
}

// RecordPaymentRequest represents the payment request body
type RecordPaymentRequest struct {
	Method    string `json:"method" validate:"required,oneof=cash transfer card check other"`
	Reference string `json:"reference" validate:"max=255"`
	PaidAt    string `json:"paidAt,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// SweepRequest optionally overrides the instant fees are compared against
type SweepRequest struct {
	AsOf string `json:"asOf,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// FeeResponse represents a fee obligation in API responses
type FeeResponse struct {
	ID            int32   `json:"id"`
	UnitID        int32   `json:"unitId"`
	Period        string  `json:"period"`
	Amount        string  `json:"amount"`
	Status        string  `json:"status"`
	DueDate       string  `json:"dueDate"`
	PaidAt        *string `json:"paidAt,omitempty"`
	PaymentMethod *string `json:"paymentMethod,omitempty"`
	Reference     *string `json:"reference,omitempty"`
	CreatedAt     string  `json:"createdAt"`
}

// FeeSummaryResponse aggregates a period's fees by status
type FeeSummaryResponse struct {
	Period        string `json:"period"`
	TotalCount    int32  `json:"totalCount"`
	PaidCount     int32  `json:"paidCount"`
	PendingCount  int32  `json:"pendingCount"`
	OverdueCount  int32  `json:"overdueCount"`
	TotalAmount   string `json:"totalAmount"`
	PaidAmount    string `json:"paidAmount"`
	PendingAmount string `json:"pendingAmount"`
	OverdueAmount string `json:"overdueAmount"`
}

// GenerateFees handles POST /api/v1/fees/generate
func (h *FeeHandler) GenerateFees(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req GenerateFeesRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return invalidField(c, "period", "Must be formatted as YYYY-MM")
	}
	amount, err := parseAmount(req.AmountPerUnit)
	if err != nil {
		return invalidField(c, "amountPerUnit", "Must be a valid decimal number")
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return invalidField(c, "dueDate", "Must be formatted as YYYY-MM-DD")
	}

	fees, err := h.feeService.GeneratePeriod(c.Request().Context(), tenantID, service.GeneratePeriodInput{
		Period:        period,
		AmountPerUnit: amount,
		DueDate:       dueDate,
	})
	if err != nil {
		return respondError(c, err, "generate fees")
	}

	log.Info().
		Int32("tenant_id", tenantID).
		Str("period", period.String()).
		Int("count", len(fees)).
		Msg("Fees generated")

	return c.JSON(http.StatusCreated, toFeeResponses(fees))
}

// CreateFee handles POST /api/v1/fees
func (h *FeeHandler) CreateFee(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req CreateFeeRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return invalidField(c, "period", "Must be formatted as YYYY-MM")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return invalidField(c, "amount", "Must be a valid decimal number")
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return invalidField(c, "dueDate", "Must be formatted as YYYY-MM-DD")
	}

	fee, err := h.feeService.CreateFee(c.Request().Context(), tenantID, service.CreateFeeInput{
		UnitID:  req.UnitID,
		Period:  period,
		Amount:  amount,
		DueDate: dueDate,
	})
	if err != nil {
		return respondError(c, err, "create fee")
	}

	return c.JSON(http.StatusCreated, toFeeResponse(fee))
}

// GetFees handles GET /api/v1/fees?period=YYYY-MM&status=PENDING
func (h *FeeHandler) GetFees(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	period, err := parsePeriodQuery(c)
	if err != nil {
		return invalidField(c, "period", "Must be formatted as YYYY-MM")
	}

	var status *domain.FeeStatus
	if raw := c.QueryParam("status"); raw != "" {
		s := domain.FeeStatus(strings.ToUpper(raw))
		switch s {
		case domain.FeeStatusPending, domain.FeeStatusPaid, domain.FeeStatusOverdue:
			status = &s
		default:
			return invalidField(c, "status", "Must be one of: PENDING PAID OVERDUE")
		}
	}

	fees, err := h.feeService.ListFees(c.Request().Context(), tenantID, period, status)
	if err != nil {
		return respondError(c, err, "get fees")
	}

	return c.JSON(http.StatusOK, toFeeResponses(fees))
}

// GetSummary handles GET /api/v1/fees/summary?period=YYYY-MM
func (h *FeeHandler) GetSummary(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	period, err := parsePeriodQuery(c)
	if err != nil {
		return invalidField(c, "period", "Must be formatted as YYYY-MM")
	}

	summary, err := h.feeService.PeriodSummary(c.Request().Context(), tenantID, period)
	if err != nil {
		return respondError(c, err, "get fee summary")
	}

	return c.JSON(http.StatusOK, FeeSummaryResponse{
		Period:        summary.Period.String(),
		TotalCount:    summary.TotalCount,
		PaidCount:     summary.PaidCount,
		PendingCount:  summary.PendingCount,
		OverdueCount:  summary.OverdueCount,
		TotalAmount:   summary.TotalAmount.StringFixed(2),
		PaidAmount:    summary.PaidAmount.StringFixed(2),
		PendingAmount: summary.PendingAmount.StringFixed(2),
		OverdueAmount: summary.OverdueAmount.StringFixed(2),
	})
}

// GetFee handles GET /api/v1/fees/:id
func (h *FeeHandler) GetFee(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid fee ID")
	}

	fee, err := h.feeService.GetFee(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "get fee")
	}

	return c.JSON(http.StatusOK, toFeeResponse(fee))
}

// RecordPayment handles POST /api/v1/fees/:id/payments
func (h *FeeHandler) RecordPayment(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid fee ID")
	}

	var req RecordPaymentRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	input := service.RecordPaymentInput{
		Method:    domain.PaymentMethod(req.Method),
		Reference: req.Reference,
		Actor:     middleware.GetActor(c),
	}
	if req.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			return invalidField(c, "paidAt", "Must be an RFC 3339 timestamp")
		}
		input.PaidAt = &paidAt
	}

	fee, err := h.feeService.RecordPayment(c.Request().Context(), tenantID, id, input)
	if err != nil {
		return respondError(c, err, "record payment")
	}

	log.Info().
		Int32("tenant_id", tenantID).
		Int32("fee_id", fee.ID).
		Str("amount", fee.Amount.StringFixed(2)).
		Msg("Fee payment recorded")

	return c.JSON(http.StatusOK, toFeeResponse(fee))
}

// DeleteFee handles DELETE /api/v1/fees/:id
func (h *FeeHandler) DeleteFee(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid fee ID")
	}

	if err := h.feeService.DeleteFee(c.Request().Context(), tenantID, id); err != nil {
		return respondError(c, err, "delete fee")
	}

	return c.NoContent(http.StatusNoContent)
}

// SweepOverdue handles POST /api/v1/fees/sweep
func (h *FeeHandler) SweepOverdue(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req SweepRequest
	if c.Request().ContentLength > 0 {
		if ok, err := bindAndValidate(c, &req); !ok {
			return err
		}
	}

	asOf := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			return invalidField(c, "asOf", "Must be an RFC 3339 timestamp")
		}
		asOf = t
	}

	count, err := h.feeService.SweepOverdue(c.Request().Context(), tenantID, asOf)
	if err != nil {
		return respondError(c, err, "sweep overdue fees")
	}

	return c.JSON(http.StatusOK, map[string]int{"marked": count})
}

func toFeeResponse(f *domain.FeeObligation) FeeResponse {
	resp := FeeResponse{
		ID:        f.ID,
		UnitID:    f.UnitID,
		Period:    f.Period.String(),
		Amount:    f.Amount.StringFixed(2),
		Status:    string(f.Status),
		DueDate:   f.DueDate.Format(dateLayout),
		Reference: f.Reference,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
	}
	if f.PaidAt != nil {
		paidAt := f.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &paidAt
	}
	if f.PaymentMethod != nil {
		method := string(*f.PaymentMethod)
		resp.PaymentMethod = &method
	}
	return resp
}

func toFeeResponses(fees []*domain.FeeObligation) []FeeResponse {
	response := make([]FeeResponse, len(fees))
	for i, f := range fees {
		response[i] = toFeeResponse(f)
	}
	return response
}
