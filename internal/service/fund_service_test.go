package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_CreditCreatesAccount(t *testing.T) {
	l := newLedger()
	ctx := context.Background()

	balance, err := l.funds.Post(ctx, domain.Posting{
		TenantID:   testTenantID,
		Kind:       domain.AccountReserve,
		Amount:     decimal.RequireFromString("250.75"),
		Actor:      "admin",
		SourceType: domain.SourceManual,
	})
	require.NoError(t, err)
	assert.Equal(t, "250.75", balance.StringFixed(2))

	movements, err := l.funds.ListMovements(ctx, testTenantID, nil)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.AccountReserve, movements[0].AccountKind)
	assert.Equal(t, "250.75", movements[0].BalanceAfter.StringFixed(2))
	assert.Equal(t, "admin", movements[0].Actor)
}

func TestPost_DebitInsufficientFunds(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "100")

	_, err := l.funds.Post(context.Background(), domain.Posting{
		TenantID:   testTenantID,
		Kind:       domain.AccountOperating,
		Amount:     decimal.NewFromInt(-100).Sub(decimal.RequireFromString("0.01")),
		SourceType: domain.SourceManual,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "100.00", l.balance(t, domain.AccountOperating))
	assert.Equal(t, 1, l.movements.Count())
}

func TestPost_DebitToExactlyZero(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "100")

	balance, err := l.funds.Post(context.Background(), domain.Posting{
		TenantID:   testTenantID,
		Kind:       domain.AccountOperating,
		Amount:     decimal.NewFromInt(-100),
		SourceType: domain.SourceManual,
	})
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestPost_AllowOverdraft(t *testing.T) {
	l := newLedger()

	balance, err := l.funds.Post(context.Background(), domain.Posting{
		TenantID:       testTenantID,
		Kind:           domain.AccountMajorWorks,
		Amount:         decimal.NewFromInt(-40),
		SourceType:     domain.SourceManual,
		AllowOverdraft: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "-40.00", balance.StringFixed(2))
	l.requireReconciled(t)
}

func TestPost_Validation(t *testing.T) {
	l := newLedger()

	tests := []struct {
		name    string
		posting domain.Posting
		wantErr error
	}{
		{"zero amount", domain.Posting{TenantID: testTenantID, Kind: domain.AccountOperating, Amount: decimal.Zero, SourceType: domain.SourceManual}, domain.ErrAmountInvalid},
		{"unknown kind", domain.Posting{TenantID: testTenantID, Kind: "petty_cash", Amount: decimal.NewFromInt(1), SourceType: domain.SourceManual}, domain.ErrInvalidAccountKind},
		{"missing tenant", domain.Posting{Kind: domain.AccountOperating, Amount: decimal.NewFromInt(1), SourceType: domain.SourceManual}, domain.ErrInvalidInput},
		{"missing source", domain.Posting{TenantID: testTenantID, Kind: domain.AccountOperating, Amount: decimal.NewFromInt(1)}, domain.ErrInvalidInput},
		{"sub-cent credit", domain.Posting{TenantID: testTenantID, Kind: domain.AccountOperating, Amount: decimal.RequireFromString("0.004"), SourceType: domain.SourceManual}, domain.ErrAmountPrecision},
		{"sub-cent debit", domain.Posting{TenantID: testTenantID, Kind: domain.AccountOperating, Amount: decimal.RequireFromString("-10.125"), SourceType: domain.SourceManual, AllowOverdraft: true}, domain.ErrAmountPrecision},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.funds.Post(context.Background(), tt.posting)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Equal(t, 0, l.movements.Count())
}

func TestPost_TrailingZerosAccepted(t *testing.T) {
	l := newLedger()
	balance, err := l.funds.Post(context.Background(), domain.Posting{
		TenantID:   testTenantID,
		Kind:       domain.AccountOperating,
		Amount:     decimal.RequireFromString("12.5000"),
		SourceType: domain.SourceManual,
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", balance.StringFixed(2))
}

func TestPost_InactiveAccount(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.seed(t, domain.AccountReserve, "50")

	require.NoError(t, l.funds.DeactivateAccount(ctx, testTenantID, domain.AccountReserve))

	_, err := l.funds.Post(ctx, domain.Posting{
		TenantID:   testTenantID,
		Kind:       domain.AccountReserve,
		Amount:     decimal.NewFromInt(10),
		SourceType: domain.SourceManual,
	})
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	// Deactivation keeps the balance
	assert.Equal(t, "50.00", l.balance(t, domain.AccountReserve))
}

func TestBalance_AbsentAccountIsZero(t *testing.T) {
	l := newLedger()
	assert.Equal(t, "0.00", l.balance(t, domain.AccountMajorWorks))
}

func TestTransfer_Success(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.seed(t, domain.AccountOperating, "500")

	result, err := l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountReserve, decimal.NewFromInt(120), "Monthly reserve", "admin")
	require.NoError(t, err)
	assert.Equal(t, "380.00", result.FromBalance.StringFixed(2))
	assert.Equal(t, "120.00", result.ToBalance.StringFixed(2))

	total, err := l.funds.TotalAcrossAccounts(ctx, testTenantID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", total.StringFixed(2))

	movements, err := l.funds.ListMovements(ctx, testTenantID, nil)
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, movements[1].CorrelationID, movements[2].CorrelationID)
	assert.Equal(t, domain.SourceTransfer, movements[2].SourceType)

	assert.Contains(t, l.publisher.Types(), "fund.transfer")
	l.requireReconciled(t)
}

func TestTransfer_Rejections(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.seed(t, domain.AccountOperating, "100")

	_, err := l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountOperating, decimal.NewFromInt(10), "", "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountReserve, decimal.NewFromInt(-10), "", "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountReserve, decimal.RequireFromString("10.001"), "", "admin")
	assert.ErrorIs(t, err, domain.ErrAmountPrecision)

	_, err = l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountReserve, decimal.NewFromInt(101), "", "admin")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, "100.00", l.balance(t, domain.AccountOperating))
	assert.Equal(t, "0.00", l.balance(t, domain.AccountReserve))
	assert.Equal(t, 1, l.movements.Count())
}

func TestTransfer_SecondLegFailureRollsBackFirst(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.seed(t, domain.AccountOperating, "300")

	storeDown := errors.Join(domain.ErrStoreUnavailable, errors.New("connection reset"))
	l.accounts.ApplyPostingFn = func(ctx context.Context, tenantID int32, kind domain.AccountKind, amount decimal.Decimal) error {
		if kind == domain.AccountMajorWorks {
			return storeDown
		}
		return nil
	}

	_, err := l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountMajorWorks, decimal.NewFromInt(100), "", "admin")
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))

	assert.Equal(t, "300.00", l.balance(t, domain.AccountOperating))
	assert.Equal(t, 1, l.movements.Count())
	l.requireReconciled(t)
}

func TestTransfer_AppliesLegsInLockOrder(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.seed(t, domain.AccountReserve, "300")
	l.seed(t, domain.AccountOperating, "300")

	var order []domain.AccountKind
	l.accounts.ApplyPostingFn = func(ctx context.Context, tenantID int32, kind domain.AccountKind, amount decimal.Decimal) error {
		order = append(order, kind)
		return nil
	}

	result, err := l.funds.Transfer(ctx, testTenantID, domain.AccountReserve, domain.AccountOperating, decimal.NewFromInt(100), "", "admin")
	require.NoError(t, err)
	assert.Equal(t, "200.00", result.FromBalance.StringFixed(2))
	assert.Equal(t, "400.00", result.ToBalance.StringFixed(2))

	result, err = l.funds.Transfer(ctx, testTenantID, domain.AccountOperating, domain.AccountReserve, decimal.NewFromInt(50), "", "admin")
	require.NoError(t, err)
	assert.Equal(t, "350.00", result.FromBalance.StringFixed(2))
	assert.Equal(t, "250.00", result.ToBalance.StringFixed(2))

	// Both directions touch operating before reserve
	assert.Equal(t, []domain.AccountKind{
		domain.AccountOperating, domain.AccountReserve,
		domain.AccountOperating, domain.AccountReserve,
	}, order)
	l.requireReconciled(t)
}

func TestTransfer_LockOrderedInsufficientRollsBack(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.seed(t, domain.AccountOperating, "10")
	l.seed(t, domain.AccountMajorWorks, "40")

	// The credit to operating lands first and must be undone
	_, err := l.funds.Transfer(ctx, testTenantID, domain.AccountMajorWorks, domain.AccountOperating, decimal.NewFromInt(100), "", "admin")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, "10.00", l.balance(t, domain.AccountOperating))
	assert.Equal(t, "40.00", l.balance(t, domain.AccountMajorWorks))
	assert.Equal(t, 2, l.movements.Count())
	l.requireReconciled(t)
}

// MemoryTxManager serializes whole transactions, so this exercises the
// service path rather than the non-negative check itself.
func TestPost_ConcurrentDebits(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "500")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, insufficient := 0, 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.funds.Post(context.Background(), domain.Posting{
				TenantID:   testTenantID,
				Kind:       domain.AccountOperating,
				Amount:     decimal.NewFromInt(-10),
				SourceType: domain.SourceManual,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, successes)
	assert.Equal(t, 50, insufficient)
	assert.Equal(t, "0.00", l.balance(t, domain.AccountOperating))
	assert.Equal(t, 51, l.movements.Count())
	l.requireReconciled(t)
}

func TestListAccounts(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "10")
	l.seed(t, domain.AccountReserve, "20")

	accounts, err := l.funds.ListAccounts(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, domain.AccountOperating, accounts[0].Kind)
	assert.Equal(t, domain.AccountReserve, accounts[1].Kind)
}

// Without a transaction manager the account repository alone must keep
// concurrent debits from overdrawing.
func TestApplyPosting_ConcurrentDebitsWithoutTx(t *testing.T) {
	accounts := testutil.NewMockFundAccountRepository()
	ctx := context.Background()
	_, err := accounts.ApplyPosting(ctx, testTenantID, domain.AccountOperating, decimal.NewFromInt(500), true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var successes, insufficient atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accounts.ApplyPosting(ctx, testTenantID, domain.AccountOperating, decimal.NewFromInt(-10), false)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), successes.Load())
	assert.Equal(t, int32(50), insufficient.Load())
	account, err := accounts.Get(ctx, testTenantID, domain.AccountOperating)
	require.NoError(t, err)
	assert.True(t, account.Balance.IsZero(), "balance %s", account.Balance)
}
