package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundService owns every balance mutation. Fee and expense postings go through Post.
type FundService struct {
	txm            domain.TxManager
	accountRepo    domain.FundAccountRepository
	movementRepo   domain.MovementRepository
	eventPublisher websocket.EventPublisher
}

// NewFundService creates a new FundService
func NewFundService(txm domain.TxManager, accountRepo domain.FundAccountRepository, movementRepo domain.MovementRepository) *FundService {
	return &FundService{
		txm:          txm,
		accountRepo:  accountRepo,
		movementRepo: movementRepo,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *FundService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.eventPublisher = publisher
}

func (s *FundService) publishEvent(tenantID int32, event websocket.Event) {
	if s.eventPublisher != nil {
		s.eventPublisher.Publish(tenantID, event)
	}
}

// TransferResult holds both balances after a transfer
type TransferResult struct {
	FromBalance decimal.Decimal `json:"fromBalance"`
	ToBalance   decimal.Decimal `json:"toBalance"`
}

// ReconciliationResult compares account balances with the movement log
type ReconciliationResult struct {
	TenantID      int32           `json:"tenantId"`
	TotalBalances decimal.Decimal `json:"totalBalances"`
	TotalPostings decimal.Decimal `json:"totalPostings"`
	Drift         decimal.Decimal `json:"drift"`
	Balanced      bool            `json:"balanced"`
}

// Post applies a signed amount to one account and appends the movement.
// Credits are never rejected; debits fail with ErrInsufficientFunds unless
// AllowOverdraft is set.
func (s *FundService) Post(ctx context.Context, p domain.Posting) (decimal.Decimal, error) {
	if err := validatePosting(p); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.post(ctx, p, uuid.New())
		balance = b
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Transfer moves amount between two accounts of the same tenant. Either both
// postings apply or neither does.
func (s *FundService) Transfer(ctx context.Context, tenantID int32, from, to domain.AccountKind, amount decimal.Decimal, description, actor string) (*TransferResult, error) {
	if !from.Valid() || !to.Valid() {
		return nil, domain.ErrInvalidAccountKind
	}
	if from == to {
		return nil, domain.ErrSameAccount
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrAmountInvalid
	}
	if !domain.ValidMoneyScale(amount) {
		return nil, domain.ErrAmountPrecision
	}

	result := &TransferResult{}
	correlationID := uuid.New()
	legs := []domain.Posting{
		{TenantID: tenantID, Kind: from, Amount: amount.Neg(), Description: description, Actor: actor, SourceType: domain.SourceTransfer},
		{TenantID: tenantID, Kind: to, Amount: amount, Description: description, Actor: actor, SourceType: domain.SourceTransfer},
	}
	sortByLockRank(legs)

	err := s.txm.WithinTx(ctx, func(ctx context.Context) error {
		for _, leg := range legs {
			balance, err := s.post(ctx, leg, correlationID)
			if err != nil {
				return err
			}
			if leg.Kind == from {
				result.FromBalance = balance
			} else {
				result.ToBalance = balance
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(tenantID, websocket.FundTransferred(map[string]interface{}{
		"from":   from,
		"to":     to,
		"amount": amount,
	}))
	return result, nil
}

// Balance returns the balance of one account; an account never posted to reads as zero
func (s *FundService) Balance(ctx context.Context, tenantID int32, kind domain.AccountKind) (decimal.Decimal, error) {
	if !kind.Valid() {
		return decimal.Zero, domain.ErrInvalidAccountKind
	}
	account, err := s.accountRepo.Get(ctx, tenantID, kind)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// TotalAcrossAccounts returns the tenant's total patrimony
func (s *FundService) TotalAcrossAccounts(ctx context.Context, tenantID int32) (decimal.Decimal, error) {
	return s.accountRepo.SumBalances(ctx, tenantID)
}

// ListAccounts returns every fund account of a tenant
func (s *FundService) ListAccounts(ctx context.Context, tenantID int32) ([]*domain.FundAccount, error) {
	return s.accountRepo.ListByTenant(ctx, tenantID)
}

// ListMovements returns the movement log; a nil period returns the full history
func (s *FundService) ListMovements(ctx context.Context, tenantID int32, period *domain.Period) ([]*domain.Movement, error) {
	var from, to time.Time
	if period != nil {
		from, to = period.Start(), period.End()
	}
	return s.movementRepo.ListByTenant(ctx, tenantID, from, to)
}

// DeactivateAccount soft-deactivates an account; it keeps its balance and history
func (s *FundService) DeactivateAccount(ctx context.Context, tenantID int32, kind domain.AccountKind) error {
	if !kind.Valid() {
		return domain.ErrInvalidAccountKind
	}
	return s.accountRepo.SetActive(ctx, tenantID, kind, false)
}

// Reconcile checks that the sum of balances equals the sum of all postings
func (s *FundService) Reconcile(ctx context.Context, tenantID int32) (*ReconciliationResult, error) {
	balances, err := s.accountRepo.SumBalances(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	postings, err := s.movementRepo.SumByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	drift := balances.Sub(postings)
	return &ReconciliationResult{
		TenantID:      tenantID,
		TotalBalances: balances,
		TotalPostings: postings,
		Drift:         drift,
		Balanced:      drift.IsZero(),
	}, nil
}

// post must run inside a transaction
func (s *FundService) post(ctx context.Context, p domain.Posting, correlationID uuid.UUID) (decimal.Decimal, error) {
	allowOverdraft := p.AllowOverdraft || p.Amount.IsPositive()
	account, err := s.accountRepo.ApplyPosting(ctx, p.TenantID, p.Kind, p.Amount, allowOverdraft)
	if err != nil {
		return decimal.Zero, err
	}

	_, err = s.movementRepo.Append(ctx, &domain.Movement{
		TenantID:      p.TenantID,
		AccountKind:   p.Kind,
		Amount:        p.Amount,
		BalanceAfter:  account.Balance,
		Description:   p.Description,
		Actor:         p.Actor,
		SourceType:    p.SourceType,
		SourceID:      p.SourceID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func validatePosting(p domain.Posting) error {
	if p.TenantID <= 0 {
		return domain.ErrInvalidInput
	}
	if !p.Kind.Valid() {
		return domain.ErrInvalidAccountKind
	}
	if p.Amount.IsZero() {
		return domain.ErrAmountInvalid
	}
	if !domain.ValidMoneyScale(p.Amount) {
		return domain.ErrAmountPrecision
	}
	if p.SourceType == "" {
		return domain.ErrInvalidInput
	}
	return nil
}

// sortByLockRank orders postings so concurrent multi-account transactions
// take account row locks in the same order.
func sortByLockRank(postings []domain.Posting) {
	sort.SliceStable(postings, func(i, j int) bool {
		return postings[i].Kind.LockRank() < postings[j].Kind.LockRank()
	})
}
