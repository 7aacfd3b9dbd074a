package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// FeeService handles the recurring fee (cuota) lifecycle
type FeeService struct {
	txm            domain.TxManager
	feeRepo        domain.FeeRepository
	roster         domain.UnitRoster
	fundService    *FundService
	eventPublisher websocket.EventPublisher
}

// NewFeeService creates a new FeeService
func NewFeeService(txm domain.TxManager, feeRepo domain.FeeRepository, roster domain.UnitRoster, fundService *FundService) *FeeService {
	return &FeeService{
		txm:         txm,
		feeRepo:     feeRepo,
		roster:      roster,
		fundService: fundService,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *FeeService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *FeeService) publishEvent(tenantID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(tenantID, event)
	}
}

// GeneratePeriodInput holds the input for bulk fee generation
type GeneratePeriodInput struct {
	Period        domain.Period
	AmountPerUnit decimal.Decimal
	DueDate       time.Time
}

// CreateFeeInput holds the input for a single-unit fee
type CreateFeeInput struct {
	UnitID  int32
	Period  domain.Period
	Amount  decimal.Decimal
	DueDate time.Time
}

// RecordPaymentInput holds the input for paying a fee
type RecordPaymentInput struct {
	Method    domain.PaymentMethod
	Reference string
	PaidAt    *time.Time
	Actor     string
}

// GeneratePeriod creates one PENDING fee per active unit. Any existing fee for
// the period fails with ErrPeriodAlreadyGenerated.
func (s *FeeService) GeneratePeriod(ctx context.Context, tenantID int32, input GeneratePeriodInput) ([]*domain.FeeObligation, error) {
	if input.AmountPerUnit.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrAmountInvalid
	}
	if !domain.ValidMoneyScale(input.AmountPerUnit) {
		return nil, domain.ErrAmountPrecision
	}
	if input.DueDate.IsZero() {
		return nil, domain.ErrInvalidInput
	}

	units, err := s.roster.ListActiveUnits(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, domain.ErrNoActiveUnits
	}

	fees := make([]*domain.FeeObligation, len(units))
	for i, unitID := range units {
		fees[i] = &domain.FeeObligation{
			TenantID: tenantID,
			UnitID:   unitID,
			Period:   input.Period,
			Amount:   input.AmountPerUnit,
			Status:   domain.FeeStatusPending,
			DueDate:  input.DueDate,
		}
	}

	var created []*domain.FeeObligation
	err = s.txm.WithinTx(ctx, func(ctx context.Context) error {
		created, err = s.feeRepo.CreatePeriod(ctx, tenantID, input.Period, fees)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(tenantID, websocket.FeesGenerated(map[string]interface{}{
		"period": input.Period.String(),
		"count":  len(created),
	}))
	return created, nil
}

// CreateFee creates a fee for a single unit, e.g. a unit added mid-period
func (s *FeeService) CreateFee(ctx context.Context, tenantID int32, input CreateFeeInput) (*domain.FeeObligation, error) {
	fee := &domain.FeeObligation{
		TenantID: tenantID,
		UnitID:   input.UnitID,
		Period:   input.Period,
		Amount:   input.Amount,
		Status:   domain.FeeStatusPending,
		DueDate:  input.DueDate,
	}
	if err := fee.Validate(); err != nil {
		return nil, err
	}

	var created *domain.FeeObligation
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.feeRepo.Create(ctx, fee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RecordPayment marks a fee PAID and credits the operating account with its
// amount. Both happen in one transaction; a fee can only be paid once.
func (s *FeeService) RecordPayment(ctx context.Context, tenantID, feeID int32, input RecordPaymentInput) (*domain.FeeObligation, error) {
	if !input.Method.Valid() {
		return nil, domain.ErrInvalidMethod
	}

	paidAt := time.Now().UTC()
	if input.PaidAt != nil {
		paidAt = input.PaidAt.UTC()
	}

	var paid *domain.FeeObligation
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		paid, err = s.feeRepo.MarkPaid(ctx, tenantID, feeID, domain.FeePayment{
			Method:    input.Method,
			Reference: input.Reference,
			PaidAt:    paidAt,
		})
		if err != nil {
			return err
		}

		sourceID := paid.ID
		_, err = s.fundService.Post(ctx, domain.Posting{
			TenantID:    tenantID,
			Kind:        domain.AccountOperating,
			Amount:      paid.Amount,
			Description: fmt.Sprintf("Fee payment unit %d period %s", paid.UnitID, paid.Period),
			Actor:       input.Actor,
			SourceType:  domain.SourceFee,
			SourceID:    &sourceID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(tenantID, websocket.FeePaid(paid))
	return paid, nil
}

// SweepOverdue moves PENDING fees past their due date to OVERDUE. No postings
// are made; running it again with the same asOf changes nothing.
func (s *FeeService) SweepOverdue(ctx context.Context, tenantID int32, asOf time.Time) (int, error) {
	return s.feeRepo.MarkOverdue(ctx, tenantID, asOf)
}

// DeleteFee removes an unpaid fee. Once a period has no fees left it can be generated again.
func (s *FeeService) DeleteFee(ctx context.Context, tenantID, feeID int32) error {
	return s.txm.WithinTx(ctx, func(ctx context.Context) error {
		return s.feeRepo.Delete(ctx, tenantID, feeID)
	})
}

// GetFee retrieves a fee by ID
func (s *FeeService) GetFee(ctx context.Context, tenantID, feeID int32) (*domain.FeeObligation, error) {
	return s.feeRepo.GetByID(ctx, tenantID, feeID)
}

// ListFees returns a period's fees, optionally filtered by status
func (s *FeeService) ListFees(ctx context.Context, tenantID int32, period domain.Period, status *domain.FeeStatus) ([]*domain.FeeObligation, error) {
	fees, err := s.feeRepo.ListByPeriod(ctx, tenantID, period)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return fees, nil
	}

	filtered := make([]*domain.FeeObligation, 0, len(fees))
	for _, f := range fees {
		if f.Status == *status {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// PeriodSummary aggregates a period's fees by status
func (s *FeeService) PeriodSummary(ctx context.Context, tenantID int32, period domain.Period) (*domain.FeePeriodSummary, error) {
	fees, err := s.feeRepo.ListByPeriod(ctx, tenantID, period)
	if err != nil {
		return nil, err
	}
	return summarizeFees(period, fees), nil
}

func summarizeFees(period domain.Period, fees []*domain.FeeObligation) *domain.FeePeriodSummary {
	summary := &domain.FeePeriodSummary{
		Period:        period,
		TotalAmount:   decimal.Zero,
		PaidAmount:    decimal.Zero,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	for _, f := range fees {
		summary.TotalCount++
		summary.TotalAmount = summary.TotalAmount.Add(f.Amount)
		switch f.Status {
		case domain.FeeStatusPaid:
			summary.PaidCount++
			summary.PaidAmount = summary.PaidAmount.Add(f.Amount)
		case domain.FeeStatusPending:
			summary.PendingCount++
			summary.PendingAmount = summary.PendingAmount.Add(f.Amount)
		case domain.FeeStatusOverdue:
			summary.OverdueCount++
			summary.OverdueAmount = summary.OverdueAmount.Add(f.Amount)
		}
	}
	return summary
}
