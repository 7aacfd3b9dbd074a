package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseService records spending and keeps each expense's fund debit in sync with it
type ExpenseService struct {
	txm            domain.TxManager
	expenseRepo    domain.ExpenseRepository
	fundService    *FundService
	blobs          domain.BlobStore
	eventPublisher websocket.EventPublisher
}

// NewExpenseService creates a new ExpenseService. blobs may be nil when
// receipt storage is not configured.
func NewExpenseService(txm domain.TxManager, expenseRepo domain.ExpenseRepository, fundService *FundService, blobs domain.BlobStore) *ExpenseService {
	return &ExpenseService{
		txm:         txm,
		expenseRepo: expenseRepo,
		fundService: fundService,
		blobs:       blobs,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *ExpenseService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *ExpenseService) publishEvent(tenantID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(tenantID, event)
	}
}

// ReceiptsEnabled indicates whether receipt uploads are supported
func (s *ExpenseService) ReceiptsEnabled() bool {
	return s != nil && s.blobs != nil
}

// RecordExpenseInput holds the input for recording an expense
type RecordExpenseInput struct {
	Category    string
	Description *string
	Amount      decimal.Decimal
	Date        time.Time
	AccountKind domain.AccountKind
	ReceiptRef  *string
	Actor       string
}

// Record stores the expense and debits its account in one transaction.
// Fails with ErrInsufficientFunds if the account cannot cover the amount.
func (s *ExpenseService) Record(ctx context.Context, tenantID int32, input RecordExpenseInput) (*domain.Expense, error) {
	expense := &domain.Expense{
		TenantID:    tenantID,
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		Date:        input.Date,
		AccountKind: input.AccountKind,
		ReceiptRef:  input.ReceiptRef,
	}
	if err := expense.Validate(); err != nil {
		return nil, err
	}

	var created *domain.Expense
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.expenseRepo.Create(ctx, expense)
		if err != nil {
			return err
		}
		return s.postExpense(ctx, created, created.AccountKind, created.Amount.Neg(), input.Actor, "Expense")
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(tenantID, websocket.ExpenseCreated(created))
	return created, nil
}

// Update applies changes to an expense. When the amount or account changes the
// old debit is reversed and the new one applied so the account always carries
// exactly the expense's current amount. Everything commits together or not at all.
func (s *ExpenseService) Update(ctx context.Context, tenantID, expenseID int32, changes domain.ExpenseChanges, actor string) (*domain.Expense, error) {
	var updated *domain.Expense
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.expenseRepo.GetForUpdate(ctx, tenantID, expenseID)
		if err != nil {
			return err
		}

		next := changes.Apply(current)
		if err := next.Validate(); err != nil {
			return err
		}

		if next.AccountKind != current.AccountKind {
			// Reverse in full on the old account and debit the new one, lower lock rank first.
			legs := []struct {
				kind   domain.AccountKind
				amount decimal.Decimal
				label  string
			}{
				{current.AccountKind, current.Amount, "Expense moved out"},
				{next.AccountKind, next.Amount.Neg(), "Expense moved in"},
			}
			if legs[1].kind.LockRank() < legs[0].kind.LockRank() {
				legs[0], legs[1] = legs[1], legs[0]
			}
			for _, leg := range legs {
				if err := s.postExpense(ctx, current, leg.kind, leg.amount, actor, leg.label); err != nil {
					return err
				}
			}
		} else if delta := next.Amount.Sub(current.Amount); !delta.IsZero() {
			if err := s.postExpense(ctx, current, current.AccountKind, delta.Neg(), actor, "Expense adjusted"); err != nil {
				return err
			}
		}

		updated, err = s.expenseRepo.Update(ctx, next)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(tenantID, websocket.ExpenseUpdated(updated))
	return updated, nil
}

// Delete removes an expense and credits its amount back to the account
func (s *ExpenseService) Delete(ctx context.Context, tenantID, expenseID int32, actor string) error {
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.expenseRepo.GetForUpdate(ctx, tenantID, expenseID)
		if err != nil {
			return err
		}
		if err := s.postExpense(ctx, current, current.AccountKind, current.Amount, actor, "Expense deleted"); err != nil {
			return err
		}
		return s.expenseRepo.Delete(ctx, tenantID, expenseID)
	})
	if err != nil {
		return err
	}

	s.publishEvent(tenantID, websocket.ExpenseDeleted(map[string]interface{}{"id": expenseID}))
	return nil
}

// GetExpense retrieves an expense by ID
func (s *ExpenseService) GetExpense(ctx context.Context, tenantID, expenseID int32) (*domain.Expense, error) {
	return s.expenseRepo.GetByID(ctx, tenantID, expenseID)
}

// ListExpenses returns the expenses dated inside a period
func (s *ExpenseService) ListExpenses(ctx context.Context, tenantID int32, period domain.Period) ([]*domain.Expense, error) {
	return s.expenseRepo.ListByDateRange(ctx, tenantID, period.Start(), period.End())
}

// AttachReceipt stores a receipt scan and links it to the expense
func (s *ExpenseService) AttachReceipt(ctx context.Context, tenantID, expenseID int32, data []byte, filename string) (*domain.Expense, error) {
	if !s.ReceiptsEnabled() {
		return nil, ErrReceiptStorageNotConfigured
	}

	if _, err := s.expenseRepo.GetByID(ctx, tenantID, expenseID); err != nil {
		return nil, err
	}

	receipt, err := processReceipt(data, filename)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d/receipts/%d/%s%s", tenantID, expenseID, uuid.New().String(), receipt.ext)
	ref, err := s.blobs.Put(ctx, key, receipt.data, receipt.contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	return s.Update(ctx, tenantID, expenseID, domain.ExpenseChanges{ReceiptRef: &ref}, "")
}

func (s *ExpenseService) postExpense(ctx context.Context, e *domain.Expense, kind domain.AccountKind, amount decimal.Decimal, actor, label string) error {
	sourceID := e.ID
	_, err := s.fundService.Post(ctx, domain.Posting{
		TenantID:    e.TenantID,
		Kind:        kind,
		Amount:      amount,
		Description: fmt.Sprintf("%s: %s", label, e.Category),
		Actor:       actor,
		SourceType:  domain.SourceExpense,
		SourceID:    &sourceID,
	})
	return err
}
