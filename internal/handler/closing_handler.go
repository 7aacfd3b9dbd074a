package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// artifactLinkExpiry bounds how long a presigned report link stays valid
const artifactLinkExpiry = 15 * time.Minute

// ArtifactLinker issues temporary download links for stored report artifacts
type ArtifactLinker interface {
	PresignURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

// ClosingHandler handles period closing HTTP requests
type ClosingHandler struct {
	closingService *service.ClosingService
	linker         ArtifactLinker
}

// NewClosingHandler creates a new ClosingHandler. linker may be nil, in which
// case artifact links are not offered.
func NewClosingHandler(closingService *service.ClosingService, linker ArtifactLinker) *ClosingHandler {
	return &ClosingHandler{closingService: closingService, linker: linker}
}

// CloseRequest represents the close period request body
type CloseRequest struct {
	Period string `json:"period" validate:"required,datetime=2006-01"`
}

// ClosingResponse represents a closing record in API responses
type ClosingResponse struct {
	ID                int32   `json:"id"`
	Period            string  `json:"period"`
	TotalIncome       string  `json:"totalIncome"`
	TotalExpense      string  `json:"totalExpense"`
	ClosingBalance    string  `json:"closingBalance"`
	Status            string  `json:"status"`
	ReportRef         *string `json:"reportRef,omitempty"`
	ReceiptPackageRef *string `json:"receiptPackageRef,omitempty"`
	GeneratedAt       *string `json:"generatedAt,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	// Set when the report could not be packaged; the record stays DRAFT
	PackagingError string `json:"packagingError,omitempty"`
}

// ArtifactsResponse carries temporary links to a closing's artifacts
type ArtifactsResponse struct {
	ReportURL         string  `json:"reportUrl"`
	ReceiptPackageURL *string `json:"receiptPackageUrl,omitempty"`
	ExpiresAt         string  `json:"expiresAt"`
}

// ClosePeriod handles POST /api/v1/closings
func (h *ClosingHandler) ClosePeriod(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	var req CloseRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return invalidField(c, "period", "Must be formatted as YYYY-MM")
	}

	record, err := h.closingService.Close(c.Request().Context(), tenantID, period)
	if err != nil {
		if errors.Is(err, domain.ErrPackagingFailed) && record != nil {
			log.Warn().Err(err).Int32("tenant_id", tenantID).Str("period", period.String()).Msg("Closing left in draft")
			resp := toClosingResponse(record)
			resp.PackagingError = err.Error()
			return c.JSON(http.StatusAccepted, resp)
		}
		return respondError(c, err, "close period")
	}

	log.Info().
		Int32("tenant_id", tenantID).
		Int32("closing_id", record.ID).
		Str("period", period.String()).
		Msg("Period closed")

	return c.JSON(http.StatusCreated, toClosingResponse(record))
}

// GetClosings handles GET /api/v1/closings
func (h *ClosingHandler) GetClosings(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	if raw := c.QueryParam("period"); raw != "" {
		period, err := domain.ParsePeriod(raw)
		if err != nil {
			return invalidField(c, "period", "Must be formatted as YYYY-MM")
		}
		record, err := h.closingService.GetClosingByPeriod(c.Request().Context(), tenantID, period)
		if err != nil {
			return respondError(c, err, "get closing")
		}
		return c.JSON(http.StatusOK, []ClosingResponse{toClosingResponse(record)})
	}

	records, err := h.closingService.ListClosings(c.Request().Context(), tenantID)
	if err != nil {
		return respondError(c, err, "get closings")
	}

	response := make([]ClosingResponse, len(records))
	for i, r := range records {
		response[i] = toClosingResponse(r)
	}
	return c.JSON(http.StatusOK, response)
}

// GetClosing handles GET /api/v1/closings/:id
func (h *ClosingHandler) GetClosing(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid closing ID")
	}

	record, err := h.closingService.GetClosing(c.Request().Context(), tenantID, id)
	if err != nil {
		return respondError(c, err, "get closing")
	}
	return c.JSON(http.StatusOK, toClosingResponse(record))
}

// GenerateReport handles POST /api/v1/closings/:id/report
func (h *ClosingHandler) GenerateReport(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid closing ID")
	}

	record, err := h.closingService.GenerateReport(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, domain.ErrPackagingFailed) {
			log.Warn().Err(err).Int32("tenant_id", tenantID).Int32("closing_id", id).Msg("Report packaging failed")
			return NewServiceUnavailableError(c, err.Error())
		}
		return respondError(c, err, "generate report")
	}

	return c.JSON(http.StatusOK, toClosingResponse(record))
}

// GetArtifacts handles GET /api/v1/closings/:id/artifacts
func (h *ClosingHandler) GetArtifacts(c echo.Context) error {
	tenantID := middleware.GetTenantID(c)
	if tenantID == 0 {
		return NewUnauthorizedError(c, "Tenant required")
	}

	if h.linker == nil {
		return NewServiceUnavailableError(c, "Artifact downloads are disabled (storage not configured)")
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return invalidField(c, "id", "Must be a valid closing ID")
	}

	ctx := c.Request().Context()
	record, err := h.closingService.GetClosing(ctx, tenantID, id)
	if err != nil {
		return respondError(c, err, "get closing")
	}
	if record.Status != domain.ClosingStatusGenerated || record.ReportRef == nil {
		return NewConflictError(c, "closing report has not been generated")
	}

	reportURL, err := h.linker.PresignURL(ctx, *record.ReportRef, artifactLinkExpiry)
	if err != nil {
		return respondError(c, err, "link closing report")
	}
	response := ArtifactsResponse{
		ReportURL: reportURL,
		ExpiresAt: time.Now().Add(artifactLinkExpiry).UTC().Format(time.RFC3339),
	}
	if record.ReceiptPackageRef != nil {
		packageURL, err := h.linker.PresignURL(ctx, *record.ReceiptPackageRef, artifactLinkExpiry)
		if err != nil {
			return respondError(c, err, "link receipt package")
		}
		response.ReceiptPackageURL = &packageURL
	}

	return c.JSON(http.StatusOK, response)
}

func toClosingResponse(r *domain.ClosingRecord) ClosingResponse {
	resp := ClosingResponse{
		ID:                r.ID,
		Period:            r.Period.String(),
		TotalIncome:       r.TotalIncome.StringFixed(2),
		TotalExpense:      r.TotalExpense.StringFixed(2),
		ClosingBalance:    r.ClosingBalance.StringFixed(2),
		Status:            string(r.Status),
		ReportRef:         r.ReportRef,
		ReceiptPackageRef: r.ReceiptPackageRef,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}
	if r.GeneratedAt != nil {
		generatedAt := r.GeneratedAt.Format(time.RFC3339)
		resp.GeneratedAt = &generatedAt
	}
	return resp
}
