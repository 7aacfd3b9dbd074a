package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MaxCategoryLength    = 100
	MaxDescriptionLength = 500
)

// Expense is a spend recorded against one fund account.
// Each expense is backed by exactly one net debit on its account.
type Expense struct {
	ID          int32           `json:"id"`
	TenantID    int32           `json:"tenantId"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	AccountKind AccountKind     `json:"fundAccountKind"`
	ReceiptRef  *string         `json:"receiptRef,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (e *Expense) Validate() error {
	if e.TenantID <= 0 {
		return ErrInvalidInput
	}
	if e.Category == "" || len(e.Category) > MaxCategoryLength {
		return ErrInvalidInput
	}
	if e.Description != nil && len(*e.Description) > MaxDescriptionLength {
		return ErrInvalidInput
	}
	if e.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrAmountInvalid
	}
	if !ValidMoneyScale(e.Amount) {
		return ErrAmountPrecision
	}
	if e.Date.IsZero() {
		return ErrInvalidInput
	}
	if !e.AccountKind.Valid() {
		return ErrInvalidAccountKind
	}
	return nil
}

// ExpenseChanges holds the fields to change on an expense; nil means unchanged
type ExpenseChanges struct {
	Category    *string
	Description *string
	Amount      *decimal.Decimal
	Date        *time.Time
	AccountKind *AccountKind
	ReceiptRef  *string
}

// Apply returns a copy of e with the changes applied
func (c ExpenseChanges) Apply(e *Expense) *Expense {
	updated := *e
	if c.Category != nil {
		updated.Category = *c.Category
	}
	if c.Description != nil {
		updated.Description = c.Description
	}
	if c.Amount != nil {
		updated.Amount = *c.Amount
	}
	if c.Date != nil {
		updated.Date = *c.Date
	}
	if c.AccountKind != nil {
		updated.AccountKind = *c.AccountKind
	}
	if c.ReceiptRef != nil {
		updated.ReceiptRef = c.ReceiptRef
	}
	return &updated
}

type ExpenseRepository interface {
	Create(ctx context.Context, expense *Expense) (*Expense, error)
	GetByID(ctx context.Context, tenantID, id int32) (*Expense, error)
	// GetForUpdate reads the expense and holds its row lock until the transaction ends
	GetForUpdate(ctx context.Context, tenantID, id int32) (*Expense, error)
	Update(ctx context.Context, expense *Expense) (*Expense, error)
	Delete(ctx context.Context, tenantID, id int32) error
	// ListByDateRange returns expenses with start <= date < end ordered by date
	ListByDateRange(ctx context.Context, tenantID int32, start, end time.Time) ([]*Expense, error)
	SumByDateRange(ctx context.Context, tenantID int32, start, end time.Time) (decimal.Decimal, error)
}
