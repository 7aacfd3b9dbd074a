package handler

import (
	"net/http"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// FundHandler handles fund account HTTP requests
type FundHandler struct {
	fundService *service.FundService
}

// NewFundHandler creates a new FundHandler
func NewFundHandler(fundService *service.FundService) *FundHandler {
	return &FundHandler{fundService: fundService}
}

// TransferRequest represents the transfer request body
type TransferRequest struct {
	From        string `json:"from" validate:"required,oneof=operating reserve major_works"`
	To          string `json:"to" validate:"required,oneof=operating reserve major_works,nefield=From"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Description string `json:"description" validate:"max=500"`
}

// PostingRequest represents a manual posting. Amount is signed: positive credits, negative debits.
type PostingRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=operating reserve major_works"`
	Amount      string `json:"amount" validate:"required,numeric"`
	Description string `json:"description" validate:"required,max=500"`
}

// FundAccountResponse represents a fund account in API responses
type FundAccountResponse struct {
	Kind      string `json:"kind"`
	Balance   string `json:"balance"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updatedAt"`
}

// FundsResponse lists every account with the tenant-wide total
type FundsResponse struct {
	Accounts []FundAccountResponse `json:"accounts"`
	Total    string                `json:"total"`
}

// MovementResponse represents a movement log entry
type MovementResponse struct {
	ID            int64  `json:"id"`
	AccountKind   string `json:"accountKind"`
	Amount        string `json:"amount"`
	BalanceAfter  string `json:"balanceAfter"`
	Description   string `json:"description"`
	Actor         string `json:"actor"`
	SourceType    string `json:"sourceType"`
	SourceID      *int32 `json:"sourceId,omitempty"`
	CorrelationID string `json:"correlationId"`
	CreatedAt     string `json:"createdAt"`
}

// GetFunds handles GET /api/v1/funds
func (h *FundHandler) GetFunds(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	ctx := c.Request().Context()
	accounts, err := h.fundService.ListAccounts(ctx, tenantID)
	if err != nil {
		return respondError(c, err, "get fund accounts")
	}

	total := decimal.Zero
	response := FundsResponse{Accounts: make([]FundAccountResponse, len(accounts))}
	for i, a := range accounts {
		total = total.Add(a.Balance)
		response.Accounts[i] = FundAccountResponse{
			Kind:      string(a.Kind),
			Balance:   a.Balance.StringFixed(2),
			Active:    a.Active,
			UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
		}
	}
	response.Total = total.StringFixed(2)

	return c.JSON(http.StatusOK, response)
}

// Transfer handles POST /api/v1/funds/transfers
func (h *FundHandler) Transfer(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req TransferRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return invalidField(c, "amount", "Must be a valid decimal number")
	}

	result, err := h.fundService.Transfer(c.Request().Context(), tenantID,
		domain.AccountKind(req.From), domain.AccountKind(req.To), amount, req.Description, middleware.GetActor(c))
	if err != nil {
		return respondError(c, err, "transfer funds")
	}

	log.Info().
		Int32("tenant_id", tenantID).
		Str("from", req.From).
		Str("to", req.To).
		Str("amount", amount.StringFixed(2)).
		Msg("Funds transferred")

	return c.JSON(http.StatusOK, map[string]string{
		"fromBalance": result.FromBalance.StringFixed(2),
		"toBalance":   result.ToBalance.StringFixed(2),
	})
}

// Post handles POST /api/v1/funds/postings
func (h *FundHandler) Post(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req PostingRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		return invalidField(c, "amount", "Must be a valid decimal number")
	}

	balance, err := h.fundService.Post(c.Request().Context(), domain.Posting{
		TenantID:    tenantID,
		Kind:        domain.AccountKind(req.Kind),
		Amount:      amount,
		Description: req.Description,
		Actor:       middleware.GetActor(c),
		SourceType:  domain.SourceManual,
	})
	if err != nil {
		return respondError(c, err, "post to fund account")
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"kind":    req.Kind,
		"balance": balance.StringFixed(2),
	})
}

// GetMovements handles GET /api/v1/funds/movements?period=YYYY-MM
// Without a period the full history is returned.
func (h *FundHandler) GetMovements(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var period *domain.Period
	if raw := c.QueryParam("period"); raw != "" {
		p, err := domain.ParsePeriod(raw)
		if err != nil {
			return invalidField(c, "period", "Must be formatted as YYYY-MM")
		}
		period = &p
	}

	movements, err := h.fundService.ListMovements(c.Request().Context(), tenantID, period)
	if err != nil {
		return respondError(c, err, "get movements")
	}

	response := make([]MovementResponse, len(movements))
	for i, m := range movements {
		response[i] = MovementResponse{
			ID:            m.ID,
			AccountKind:   string(m.AccountKind),
			Amount:        m.Amount.StringFixed(2),
			BalanceAfter:  m.BalanceAfter.StringFixed(2),
			Description:   m.Description,
			Actor:         m.Actor,
			SourceType:    string(m.SourceType),
			SourceID:      m.SourceID,
			CorrelationID: m.CorrelationID.String(),
			CreatedAt:     m.CreatedAt.Format(time.RFC3339),
		}
	}

	return c.JSON(http.StatusOK, response)
}

// Reconcile handles GET /api/v1/funds/reconciliation
func (h *FundHandler) Reconcile(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	result, err := h.fundService.Reconcile(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, err, "reconcile funds")
	}
	if !result.Balanced {
		log.Error().
			Int32("tenant_id", tenantID).
			Str("drift", result.Drift.StringFixed(2)).
			Msg("Fund balances drifted from movement log")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"totalBalances": result.TotalBalances.StringFixed(2),
		"totalPostings": result.TotalPostings.StringFixed(2),
		"drift":         result.Drift.StringFixed(2),
		"balanced":      result.Balanced,
	})
}

// DeactivateAccount handles POST /api/v1/funds/:kind/deactivate
func (h *FundHandler) DeactivateAccount(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	kind, err := domain.ParseAccountKind(c.Param("kind"))
	if err != nil {
		return invalidField(c, "kind", "Must be one of: operating reserve major_works")
	}

	if err := h.fundService.DeactivateAccount(c.Request().Context(), tenantID, kind); err != nil {
		return respondError(c, err, "deactivate fund account")
	}

	log.Info().Int32("tenant_id", tenantID).Str("kind", string(kind)).Msg("Fund account deactivated")
	return c.NoContent(http.StatusNoContent)
}
