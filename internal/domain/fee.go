package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type FeeStatus string

const (
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusOverdue FeeStatus = "OVERDUE"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentCheck    PaymentMethod = "check"
	PaymentOther    PaymentMethod = "other"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentCheck, PaymentOther:
		return true
	}
	return false
}

// FeeObligation is one unit's charge for one billing period
type FeeObligation struct {
	ID            int32           `json:"id"`
	TenantID      int32           `json:"tenantId"`
	UnitID        int32           `json:"unitId"`
	Period        Period          `json:"period"`
	Amount        decimal.Decimal `json:"amount"`
	Status        FeeStatus       `json:"status"`
	DueDate       time.Time       `json:"dueDate"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	PaymentMethod *PaymentMethod  `json:"paymentMethod,omitempty"`
	Reference     *string         `json:"reference,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (f *FeeObligation) Validate() error {
	if f.TenantID <= 0 || f.UnitID <= 0 {
		return ErrInvalidInput
	}
	if f.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrAmountInvalid
	}
	if !ValidMoneyScale(f.Amount) {
		return ErrAmountPrecision
	}
	if f.DueDate.IsZero() {
		return ErrInvalidInput
	}
	return nil
}

// FeePayment carries the fields set when a fee transitions to PAID
type FeePayment struct {
	Method    PaymentMethod
	Reference string
	PaidAt    time.Time
}

// FeePeriodSummary aggregates a period's obligations by status
type FeePeriodSummary struct {
	Period        Period          `json:"period"`
	TotalCount    int32           `json:"totalCount"`
	PaidCount     int32           `json:"paidCount"`
	PendingCount  int32           `json:"pendingCount"`
	OverdueCount  int32           `json:"overdueCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PaidAmount    decimal.Decimal `json:"paidAmount"`
	PendingAmount decimal.Decimal `json:"pendingAmount"`
	OverdueAmount decimal.Decimal `json:"overdueAmount"`
}

type FeeRepository interface {
	// CreatePeriod claims the (tenant, period) generation marker and inserts all
	// fees in one statement batch. Returns ErrPeriodAlreadyGenerated if the marker
	// or any fee for the period already exists.
	CreatePeriod(ctx context.Context, tenantID int32, period Period, fees []*FeeObligation) ([]*FeeObligation, error)
	// Create inserts a single fee. Returns ErrFeeAlreadyExists on a (tenant, unit, period) duplicate.
	Create(ctx context.Context, fee *FeeObligation) (*FeeObligation, error)
	GetByID(ctx context.Context, tenantID, id int32) (*FeeObligation, error)
	ListByPeriod(ctx context.Context, tenantID int32, period Period) ([]*FeeObligation, error)
	// MarkPaid transitions a non-PAID fee to PAID. Returns ErrAlreadyPaid if it is already PAID.
	MarkPaid(ctx context.Context, tenantID, id int32, payment FeePayment) (*FeeObligation, error)
	// MarkOverdue moves PENDING fees with due_date < asOf to OVERDUE and returns how many changed.
	MarkOverdue(ctx context.Context, tenantID int32, asOf time.Time) (int, error)
	// Delete removes a non-PAID fee. Returns ErrCannotDeletePaid for PAID fees.
	// Deleting the last fee of a period releases its generation marker.
	Delete(ctx context.Context, tenantID, id int32) error
	SumPaidBetween(ctx context.Context, tenantID int32, start, end time.Time) (decimal.Decimal, error)
}
