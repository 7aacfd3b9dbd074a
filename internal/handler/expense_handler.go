package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ExpenseHandler handles expense HTTP requests
type ExpenseHandler struct {
	expenseService *service.ExpenseService
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenseService *service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// CreateExpenseRequest represents the create expense request body.
// FundAccountKind defaults to the operating account.
type CreateExpenseRequest struct {
	Category        string  `json:"category" validate:"required,max=100"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Amount          string  `json:"amount" validate:"required,numeric"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	FundAccountKind string  `json:"fundAccountKind,omitempty" validate:"omitempty,oneof=operating reserve major_works"`
}

// UpdateExpenseRequest carries the fields to change; omitted fields keep their value
type UpdateExpenseRequest struct {
	Category        *string `json:"category,omitempty" validate:"omitempty,min=1,max=100"`
	Description     *string `json:"description,omitempty" validate:"omitempty,max=500"`
	Amount          *string `json:"amount,omitempty" validate:"omitempty,numeric"`
	Date            *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FundAccountKind *string `json:"fundAccountKind,omitempty" validate:"omitempty,oneof=operating reserve major_works"`
}

// ExpenseResponse represents an expense in API responses
type ExpenseResponse struct {
	ID              int32   `json:"id"`
	Category        string  `json:"category"`
	Description     *string `json:"description,omitempty"`
	Amount          string  `json:"amount"`
	Date            string  `json:"date"`
	FundAccountKind string  `json:"fundAccountKind"`
	HasReceipt      bool    `json:"hasReceipt"`
	CreatedAt       string  `json:"createdAt"`
	UpdatedAt       string  `json:"updatedAt"`
}

// CreateExpense handles POST /api/v1/expenses
func (h *ExpenseHandler) CreateExpense(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req CreateExpenseRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return invalidField(c, "amount", "Must be a valid decimal number")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return invalidField(c, "date", "Must be formatted as YYYY-MM-DD")
	}
	kind := domain.AccountOperating
	if req.FundAccountKind != "" {
		kind = domain.AccountKind(req.FundAccountKind)
	}

	expense, err := h.expenseService.Record(c.Request().Context(), tenantID, service.RecordExpenseInput{
		Category:    req.Category,
		Description: req.Description,
		Amount:      amount,
		Date:        date,
		AccountKind: kind,
		Actor:       middleware.GetActor(c),
	})
	if err != nil {
		return respondError(c, err, "record expense")
	}

	log.Info().
		Int32("tenant_id", tenantID).
		Int32("expense_id", expense.ID).
		Str("amount", expense.Amount.StringFixed(2)).
		Msg("Expense recorded")

	return c.JSON(http.StatusCreated, toExpenseResponse(expense))
}

// GetExpenses handles GET /api/v1/expenses?period=YYYY-MM
func (h *ExpenseHandler) GetExpenses(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	period, err := parsePeriodQuery(c)
	if err != nil {
		return invalidField(c, "period", "Must be formatted as YYYY-MM")
	}

	expenses, err := h.expenseService.ListExpenses(c.Request().Context(), tenantID, period)
	if err != nil {
		return respondError(c, err, "get expenses")
	}

	response := make([]ExpenseResponse, len(expenses))
	for i, e := range expenses {
		response[i] = toExpenseResponse(e)
	}
	return c.JSON(http.StatusOK, response)
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *ExpenseHandler) GetExpense(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid expense ID")
	}

	expense, err := h.expenseService.GetExpense(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "get expense")
	}
	return c.JSON(http.StatusOK, toExpenseResponse(expense))
}

// UpdateExpense handles PUT /api/v1/expenses/:id
func (h *ExpenseHandler) UpdateExpense(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid expense ID")
	}

	var req UpdateExpenseRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	changes := domain.ExpenseChanges{
		Category:    req.Category,
		Description: req.Description,
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			return invalidField(c, "amount", "Must be a valid decimal number")
		}
		changes.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return invalidField(c, "date", "Must be formatted as YYYY-MM-DD")
		}
		changes.Date = &date
	}
	if req.FundAccountKind != nil {
		kind := domain.AccountKind(*req.FundAccountKind)
		changes.AccountKind = &kind
	}

	expense, err := h.expenseService.Update(c.Request().Context(), tenantID, id, changes, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err, "update expense")
	}

	return c.JSON(http.StatusOK, toExpenseResponse(expense))
}

// DeleteExpense handles DELETE /api/v1/expenses/:id
func (h *ExpenseHandler) DeleteExpense(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid expense ID")
	}

	if err := h.expenseService.Delete(c.Request().Context(), tenantID, id, middleware.GetActor(c)); err != nil {
		return respondError(c, err, "delete expense")
	}

	log.Info().Int32("tenant_id", tenantID).Int32("expense_id", id).Msg("Expense deleted")
	return c.NoContent(http.StatusNoContent)
}

// UploadReceipt handles POST /api/v1/expenses/:id/receipt (multipart field "file")
func (h *ExpenseHandler) UploadReceipt(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	if !h.expenseService.ReceiptsEnabled() {
		return NewServiceUnavailableError(c, "Receipt uploads are disabled (storage not configured)")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid expense ID")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return invalidField(c, "file", "File is required")
	}
	if file.Size > service.MaxReceiptSize {
		return invalidField(c, "file", "File too large. Maximum size is 5MB")
	}

	src, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open uploaded receipt")
		return NewInternalError(c, "Failed to process file")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, service.MaxReceiptSize+1))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read uploaded receipt")
		return NewInternalError(c, "Failed to read file")
	}

	expense, err := h.expenseService.AttachReceipt(c.Request().Context(), tenantID, id, data, file.Filename)
	if err != nil {
		return respondError(c, err, "upload receipt")
	}

	log.Info().
		Int32("tenant_id", tenantID).
		Int32("expense_id", id).
		Str("filename", file.Filename).
		Msg("Receipt uploaded")

	return c.JSON(http.StatusOK, toExpenseResponse(expense))
}

func toExpenseResponse(e *domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:              e.ID,
		Category:        e.Category,
		Description:     e.Description,
		Amount:          e.Amount.StringFixed(2),
		Date:            e.Date.Format(dateLayout),
		FundAccountKind: string(e.AccountKind),
		HasReceipt:      e.ReceiptRef != nil && *e.ReceiptRef != "",
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       e.UpdatedAt.Format(time.RFC3339),
	}
}
