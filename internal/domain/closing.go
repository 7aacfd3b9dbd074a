package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ClosingStatus string

const (
	ClosingStatusDraft     ClosingStatus = "DRAFT"
	ClosingStatusGenerated ClosingStatus = "GENERATED"
)

// ClosingRecord is the frozen summary of a tenant's period.
// ClosingBalance is always TotalIncome - TotalExpense.
type ClosingRecord struct {
	ID                int32           `json:"id"`
	TenantID          int32           `json:"tenantId"`
	Period            Period          `json:"period"`
	TotalIncome       decimal.Decimal `json:"totalIncome"`
	TotalExpense      decimal.Decimal `json:"totalExpense"`
	ClosingBalance    decimal.Decimal `json:"closingBalance"`
	Status            ClosingStatus   `json:"status"`
	ReportRef         *string         `json:"reportRef,omitempty"`
	ReceiptPackageRef *string         `json:"receiptPackageRef,omitempty"`
	GeneratedAt       *time.Time      `json:"generatedAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// NewDraftClosing builds a DRAFT record from the period totals
func NewDraftClosing(tenantID int32, period Period, income, expense decimal.Decimal) *ClosingRecord {
	return &ClosingRecord{
		TenantID:       tenantID,
		Period:         period,
		TotalIncome:    income,
		TotalExpense:   expense,
		ClosingBalance: income.Sub(expense),
		Status:         ClosingStatusDraft,
	}
}

// ReportArtifacts are the references produced by the report packager
type ReportArtifacts struct {
	ReportRef         string
	ReceiptPackageRef *string
	// Partial is set when some receipts were skipped
	Partial *PackagingPartialFailure
}

type ClosingRepository interface {
	// CreateDraft inserts a DRAFT record. Returns ErrAlreadyClosed if one exists for (tenant, period).
	CreateDraft(ctx context.Context, record *ClosingRecord) (*ClosingRecord, error)
	GetByID(ctx context.Context, tenantID, id int32) (*ClosingRecord, error)
	GetByPeriod(ctx context.Context, tenantID int32, period Period) (*ClosingRecord, error)
	ListByTenant(ctx context.Context, tenantID int32) ([]*ClosingRecord, error)
	// MarkGenerated stores the artifact refs on a DRAFT record and moves it to GENERATED
	MarkGenerated(ctx context.Context, tenantID, id int32, artifacts ReportArtifacts, generatedAt time.Time) (*ClosingRecord, error)
}
