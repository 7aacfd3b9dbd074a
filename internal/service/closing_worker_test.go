package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// april10 is a run time whose previous period is March 2025
var april10 = time.Date(2025, 4, 10, 6, 0, 0, 0, time.UTC)

func newTestWorker(l *ledger, closings *ClosingService, guard domain.TriggerGuard, notifier domain.Notifier) *ClosingWorker {
	return NewClosingWorker(l.feeSvc, closings, l.tenants, guard, notifier, zerolog.Nop(), ClosingWorkerConfig{
		Interval: 50 * time.Millisecond,
		GuardTTL: time.Minute,
	})
}

func TestClosingWorker_RunOnceClosesAndNotifies(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	l.roster.Units[testTenantID] = []int32{11, 12}
	fees := generateMarch(t, l)
	_, err := l.feeSvc.RecordPayment(ctx, testTenantID, fees[0].ID, RecordPaymentInput{Method: domain.PaymentCash, PaidAt: paidAt(3)})
	require.NoError(t, err)

	notifier := testutil.NewMockNotifier()
	worker := newTestWorker(l, l.closingSvc, testutil.NewMockTriggerGuard(), notifier)

	result := worker.RunOnce(ctx, april10)
	assert.Equal(t, ClosingRunResult{Tenants: 1, Swept: 1, Closed: 1}, result)

	record, err := l.closingSvc.GetClosingByPeriod(ctx, testTenantID, march2025())
	require.NoError(t, err)
	assert.Equal(t, domain.ClosingStatusGenerated, record.Status)
	assert.Equal(t, "100.00", record.TotalIncome.StringFixed(2))

	unpaid, err := l.feeSvc.GetFee(ctx, testTenantID, fees[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FeeStatusOverdue, unpaid.Status)

	messages := notifier.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "admin@t1.example", messages[0].Recipient)
	assert.Equal(t, "[T1] Period 2025-03 closed", messages[0].Subject)
	assert.Contains(t, messages[0].Body, *record.ReportRef)
}

func TestClosingWorker_DuplicateTriggerDropped(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	notifier := testutil.NewMockNotifier()
	worker := newTestWorker(l, l.closingSvc, testutil.NewMockTriggerGuard(), notifier)

	first := worker.RunOnce(ctx, april10)
	second := worker.RunOnce(ctx, april10)

	assert.Equal(t, 1, first.Closed)
	assert.Equal(t, 0, second.Closed)
	assert.Equal(t, 1, second.Skipped)

	closings, err := l.closingSvc.ListClosings(ctx, testTenantID)
	require.NoError(t, err)
	assert.Len(t, closings, 1)
	assert.Len(t, notifier.Messages(), 1)
}

func TestClosingWorker_AlreadyClosedSkipped(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	_, err := l.closingSvc.Close(ctx, testTenantID, march2025())
	require.NoError(t, err)

	notifier := testutil.NewMockNotifier()
	worker := newTestWorker(l, l.closingSvc, nil, notifier)

	result := worker.RunOnce(ctx, april10)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Errors)
	assert.Empty(t, notifier.Messages())
}

func TestClosingWorker_RetriesDraft(t *testing.T) {
	l := newLedger()
	ctx := context.Background()
	reports := &stubReports{err: errors.New("renderer crashed")}
	closings := NewClosingService(l.txm, l.closings, l.fees, l.expenses, reports)
	notifier := testutil.NewMockNotifier()

	// Guard off so the second run reaches the existing DRAFT
	worker := newTestWorker(l, closings, nil, notifier)

	first := worker.RunOnce(ctx, april10)
	assert.Equal(t, 1, first.Errors)
	assert.Empty(t, notifier.Messages())

	draft, err := closings.GetClosingByPeriod(ctx, testTenantID, march2025())
	require.NoError(t, err)
	assert.Equal(t, domain.ClosingStatusDraft, draft.Status)

	reports.err = nil
	second := worker.RunOnce(ctx, april10)
	assert.Equal(t, 1, second.Closed)

	generated, err := closings.GetClosing(ctx, testTenantID, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClosingStatusGenerated, generated.Status)
	assert.Len(t, notifier.Messages(), 1)
}

func TestClosingWorker_GuardErrorStillCloses(t *testing.T) {
	l := newLedger()
	guard := testutil.NewMockTriggerGuard()
	guard.Err = domain.ErrStoreUnavailable
	worker := newTestWorker(l, l.closingSvc, guard, nil)

	result := worker.RunOnce(context.Background(), april10)
	assert.Equal(t, 1, result.Closed)
}

func TestClosingWorker_NotifierFailureIsNotFatal(t *testing.T) {
	l := newLedger()
	notifier := testutil.NewMockNotifier()
	notifier.Err = errors.New("smtp: connection refused")
	worker := newTestWorker(l, l.closingSvc, testutil.NewMockTriggerGuard(), notifier)

	result := worker.RunOnce(context.Background(), april10)
	assert.Equal(t, 1, result.Closed)
	assert.Equal(t, 0, result.Errors)

	record, err := l.closingSvc.GetClosingByPeriod(context.Background(), testTenantID, march2025())
	require.NoError(t, err)
	assert.Equal(t, domain.ClosingStatusGenerated, record.Status)
}

func TestClosingWorker_InactiveTenantsIgnored(t *testing.T) {
	l := newLedger()
	l.tenants.AddTenant(&domain.Tenant{ID: 2, Name: "Dormant", Active: false})
	worker := newTestWorker(l, l.closingSvc, nil, nil)

	result := worker.RunOnce(context.Background(), april10)
	assert.Equal(t, 1, result.Tenants)

	_, err := l.closingSvc.GetClosingByPeriod(context.Background(), 2, march2025())
	assert.ErrorIs(t, err, domain.ErrClosingNotFound)
}

func TestClosingWorker_TenantListFailure(t *testing.T) {
	l := newLedger()
	l.tenants.GetAllActiveFn = func(ctx context.Context) ([]*domain.Tenant, error) {
		return nil, domain.ErrStoreUnavailable
	}
	worker := newTestWorker(l, l.closingSvc, nil, nil)

	result := worker.RunOnce(context.Background(), april10)
	assert.Equal(t, ClosingRunResult{Errors: 1}, result)
}

func TestClosingWorker_StartStop(t *testing.T) {
	l := newLedger()
	worker := newTestWorker(l, l.closingSvc, testutil.NewMockTriggerGuard(), nil)

	assert.False(t, worker.IsRunning())
	worker.Start(context.Background())
	assert.True(t, worker.IsRunning())

	// Second start is a no-op
	worker.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	worker.Stop()
	assert.False(t, worker.IsRunning())
}

func TestClosingWorker_ContextCancel(t *testing.T) {
	l := newLedger()
	worker := newTestWorker(l, l.closingSvc, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	worker.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !worker.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestClosingWorker_DefaultConfig(t *testing.T) {
	config := DefaultClosingWorkerConfig()
	assert.Equal(t, time.Hour, config.Interval)
	assert.Equal(t, 30*time.Minute, config.GuardTTL)

	worker := NewClosingWorker(nil, nil, nil, nil, nil, zerolog.Nop(), ClosingWorkerConfig{})
	assert.Equal(t, time.Hour, worker.interval)
	assert.Equal(t, 30*time.Minute, worker.guardTTL)
}
