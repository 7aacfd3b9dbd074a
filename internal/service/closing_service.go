package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/websocket"
	"github.com/shopspring/decimal"
)

// ReportGenerator produces the artifacts of a closing
type ReportGenerator interface {
	Package(ctx context.Context, closing *domain.ClosingRecord) (*domain.ReportArtifacts, error)
}

// ClosingService freezes a period's totals and attaches its report
type ClosingService struct {
	txm            domain.TxManager
	closingRepo    domain.ClosingRepository
	feeRepo        domain.FeeRepository
	expenseRepo    domain.ExpenseRepository
	reports        ReportGenerator
	eventPublisher websocket.EventPublisher
}

// NewClosingService creates a new ClosingService
func NewClosingService(
	txm domain.TxManager,
	closingRepo domain.ClosingRepository,
	feeRepo domain.FeeRepository,
	expenseRepo domain.ExpenseRepository,
	reports ReportGenerator,
) *ClosingService {
	return &ClosingService{
		txm:         txm,
		closingRepo: closingRepo,
		feeRepo:     feeRepo,
		expenseRepo: expenseRepo,
		reports:     reports,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ClosingService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *ClosingService) publishEvent(tenantID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(tenantID, event)
	}
}

// Close computes the period totals, persists a DRAFT record and generates its report.
// Income is the sum of fees paid inside the period window, expense the sum of
// expenses dated inside it. When packaging fails the DRAFT record is returned
// together with an error wrapping ErrPackagingFailed; GenerateReport retries it.
func (s *ClosingService) Close(ctx context.Context, tenantID int32, period domain.Period) (*domain.ClosingRecord, error) {
	if period.End().After(time.Now()) {
		return nil, domain.ErrPeriodNotEnded
	}

	var draft *domain.ClosingRecord
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		income, err := s.feeRepo.SumPaidBetween(ctx, tenantID, period.Start(), period.End())
		if err != nil {
			return err
		}
		expense, err := s.expenseRepo.SumByDateRange(ctx, tenantID, period.Start(), period.End())
		if err != nil {
			return err
		}
		draft, err = s.closingRepo.CreateDraft(ctx, domain.NewDraftClosing(tenantID, period, income, expense))
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, draft)
}

// GenerateReport packages a DRAFT closing. Totals are never recomputed and a
// GENERATED record is returned unchanged.
func (s *ClosingService) GenerateReport(ctx context.Context, tenantID, closingID int32) (*domain.ClosingRecord, error) {
	record, err := s.closingRepo.GetByID(ctx, tenantID, closingID)
	if err != nil {
		return nil, err
	}
	if record.Status == domain.ClosingStatusGenerated {
		return record, nil
	}
	return s.generate(ctx, record)
}

// GetClosing retrieves a closing by ID
func (s *ClosingService) GetClosing(ctx context.Context, tenantID, closingID int32) (*domain.ClosingRecord, error) {
	return s.closingRepo.GetByID(ctx, tenantID, closingID)
}

// GetClosingByPeriod retrieves the closing of a period
func (s *ClosingService) GetClosingByPeriod(ctx context.Context, tenantID int32, period domain.Period) (*domain.ClosingRecord, error) {
	return s.closingRepo.GetByPeriod(ctx, tenantID, period)
}

// ListClosings returns every closing of a tenant, newest period first
func (s *ClosingService) ListClosings(ctx context.Context, tenantID int32) ([]*domain.ClosingRecord, error) {
	return s.closingRepo.ListByTenant(ctx, tenantID)
}

func (s *ClosingService) generate(ctx context.Context, record *domain.ClosingRecord) (*domain.ClosingRecord, error) {
	artifacts, err := s.reports.Package(ctx, record)
	if err != nil {
		return record, fmt.Errorf("%w: %v", domain.ErrPackagingFailed, err)
	}

	generated, err := s.closingRepo.MarkGenerated(ctx, record.TenantID, record.ID, *artifacts, time.Now().UTC())
	if err != nil {
		return record, err
	}

	s.publishEvent(generated.TenantID, websocket.ClosingGenerated(generated))
	return generated, nil
}

// ClosingNotice builds the administrator notification for a generated closing
func ClosingNotice(tenantName string, record *domain.ClosingRecord) (subject, body string) {
	subject = fmt.Sprintf("[%s] Period %s closed", tenantName, record.Period)

	var b strings.Builder
	fmt.Fprintf(&b, "The period %s for %s has been closed.\n\n", record.Period, tenantName)
	fmt.Fprintf(&b, "Total income:    %s\n", money(record.TotalIncome))
	fmt.Fprintf(&b, "Total expense:   %s\n", money(record.TotalExpense))
	fmt.Fprintf(&b, "Closing balance: %s\n", money(record.ClosingBalance))
	if record.ReportRef != nil {
		fmt.Fprintf(&b, "\nStatement: %s\n", *record.ReportRef)
	}
	if record.ReceiptPackageRef != nil {
		fmt.Fprintf(&b, "Receipts: %s\n", *record.ReceiptPackageRef)
	}
	return subject, b.String()
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
