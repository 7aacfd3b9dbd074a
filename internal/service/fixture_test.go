package service

import (
	"context"
	"testing"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ledger wires every service over the in-memory repositories
type ledger struct {
	txm        *testutil.MemoryTxManager
	tenants    *testutil.MockTenantRepository
	roster     *testutil.MockUnitRoster
	accounts   *testutil.MockFundAccountRepository
	movements  *testutil.MockMovementRepository
	fees       *testutil.MockFeeRepository
	expenses   *testutil.MockExpenseRepository
	closings   *testutil.MockClosingRepository
	blobs      *testutil.MockBlobStore
	publisher  *testutil.MockEventPublisher
	funds      *FundService
	feeSvc     *FeeService
	expenseSvc *ExpenseService
	packager   *ReportPackager
	closingSvc *ClosingService
}

const testTenantID int32 = 1

func newLedger() *ledger {
	l := &ledger{
		txm:       testutil.NewMemoryTxManager(),
		tenants:   testutil.NewMockTenantRepository(),
		roster:    testutil.NewMockUnitRoster(),
		accounts:  testutil.NewMockFundAccountRepository(),
		movements: testutil.NewMockMovementRepository(),
		fees:      testutil.NewMockFeeRepository(),
		expenses:  testutil.NewMockExpenseRepository(),
		closings:  testutil.NewMockClosingRepository(),
		blobs:     testutil.NewMockBlobStore(),
		publisher: testutil.NewMockEventPublisher(),
	}

	l.tenants.AddTenant(&domain.Tenant{
		ID:           testTenantID,
		Name:         "T1",
		AdminEmail:   "admin@t1.example",
		AdminAuth0ID: "auth0|t1",
		Active:       true,
	})

	l.funds = NewFundService(l.txm, l.accounts, l.movements)
	l.feeSvc = NewFeeService(l.txm, l.fees, l.roster, l.funds)
	l.expenseSvc = NewExpenseService(l.txm, l.expenses, l.funds, l.blobs)
	l.packager = NewReportPackager(l.tenants, l.fees, l.expenses, l.blobs, nil, zerolog.Nop(), ReportPackagerConfig{
		ReceiptFetchTimeout:   200 * time.Millisecond,
		ReceiptBundleDeadline: time.Second,
	})
	l.closingSvc = NewClosingService(l.txm, l.closings, l.fees, l.expenses, l.packager)

	l.funds.SetEventPublisher(l.publisher)
	l.feeSvc.SetEventPublisher(l.publisher)
	l.expenseSvc.SetEventPublisher(l.publisher)
	l.closingSvc.SetEventPublisher(l.publisher)
	return l
}

// seed credits an account through a manual posting
func (l *ledger) seed(t *testing.T, kind domain.AccountKind, amount string) {
	t.Helper()
	_, err := l.funds.Post(context.Background(), domain.Posting{
		TenantID:    testTenantID,
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		Description: "Opening balance",
		Actor:       "test",
		SourceType:  domain.SourceManual,
	})
	require.NoError(t, err)
}

func (l *ledger) balance(t *testing.T, kind domain.AccountKind) string {
	t.Helper()
	b, err := l.funds.Balance(context.Background(), testTenantID, kind)
	require.NoError(t, err)
	return b.StringFixed(2)
}

// requireReconciled asserts balances equal the sum of all movements
func (l *ledger) requireReconciled(t *testing.T) {
	t.Helper()
	result, err := l.funds.Reconcile(context.Background(), testTenantID)
	require.NoError(t, err)
	require.True(t, result.Balanced, "drift %s", result.Drift)
}

func march2025() domain.Period {
	return domain.Period{Year: 2025, Month: 3}
}
