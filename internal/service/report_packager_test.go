package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordWithReceipt records a March operating expense pointing at ref
func recordWithReceipt(t *testing.T, l *ledger, amount, ref string) {
	t.Helper()
	input := expenseInput(amount, domain.AccountOperating)
	input.ReceiptRef = &ref
	_, err := l.expenseSvc.Record(context.Background(), testTenantID, input)
	require.NoError(t, err)
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	return names
}

type stubPDF struct{}

func (stubPDF) Render(ctx context.Context, html []byte) ([]byte, error) {
	return append([]byte("%PDF-1.4\n"), html...), nil
}

func TestPackage_MissingReceiptIsPartial(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "1000")
	l.blobs.Blobs["1/receipts/1/a.jpg"] = []byte("receipt-a")
	l.blobs.Blobs["1/receipts/2/b.jpg"] = []byte("receipt-b")

	recordWithReceipt(t, l, "10", "1/receipts/1/a.jpg")
	recordWithReceipt(t, l, "20", "1/receipts/2/b.jpg")
	recordWithReceipt(t, l, "30", "1/receipts/3/gone.jpg")

	record, err := l.closingSvc.Close(context.Background(), testTenantID, march2025())
	require.NoError(t, err)
	assert.Equal(t, domain.ClosingStatusGenerated, record.Status)
	assert.Equal(t, "60.00", record.TotalExpense.StringFixed(2))

	require.NotNil(t, record.ReceiptPackageRef)
	assert.True(t, strings.HasSuffix(*record.ReceiptPackageRef, ".zip"))
	names := zipNames(t, l.blobs.Blobs[*record.ReceiptPackageRef])
	assert.ElementsMatch(t, []string{"a.jpg", "b.jpg", "manifest.txt"}, names)
}

func TestPackage_PartialListsSkippedRefs(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "1000")
	l.blobs.Blobs["1/receipts/1/a.jpg"] = []byte("receipt-a")
	recordWithReceipt(t, l, "10", "1/receipts/1/a.jpg")
	recordWithReceipt(t, l, "30", "1/receipts/3/gone.jpg")

	draft, err := l.closingSvc.Close(context.Background(), testTenantID, march2025())
	require.NoError(t, err)

	artifacts, err := l.packager.Package(context.Background(), draft)
	require.NoError(t, err)
	require.NotNil(t, artifacts.Partial)
	assert.Equal(t, []string{"1/receipts/3/gone.jpg"}, artifacts.Partial.Skipped)
	assert.NotNil(t, artifacts.ReceiptPackageRef)
}

func TestPackage_NoReceipts(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "1000")
	_, err := l.expenseSvc.Record(context.Background(), testTenantID, expenseInput("75", domain.AccountOperating))
	require.NoError(t, err)

	record, err := l.closingSvc.Close(context.Background(), testTenantID, march2025())
	require.NoError(t, err)
	assert.Nil(t, record.ReceiptPackageRef)
	require.NotNil(t, record.ReportRef)
	assert.True(t, strings.HasSuffix(*record.ReportRef, ".html"))
}

func TestPackage_AllReceiptsMissing(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "1000")
	recordWithReceipt(t, l, "30", "1/receipts/3/gone.jpg")

	draft := domain.NewDraftClosing(testTenantID, march2025(), decimal.Zero, decimal.NewFromInt(30))
	artifacts, err := l.packager.Package(context.Background(), draft)
	require.NoError(t, err)
	assert.Nil(t, artifacts.ReceiptPackageRef)
	require.NotNil(t, artifacts.Partial)
	assert.Len(t, artifacts.Partial.Skipped, 1)
}

func TestPackage_SlowReceiptSkipped(t *testing.T) {
	l := newLedger()
	l.seed(t, domain.AccountOperating, "1000")
	l.blobs.Blobs["1/receipts/1/a.jpg"] = []byte("receipt-a")
	recordWithReceipt(t, l, "10", "1/receipts/1/a.jpg")
	recordWithReceipt(t, l, "20", "1/receipts/2/slow.jpg")

	l.blobs.GetFn = func(ctx context.Context, ref string) ([]byte, error) {
		if strings.HasSuffix(ref, "slow.jpg") {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []byte("receipt-a"), nil
	}

	record, err := l.closingSvc.Close(context.Background(), testTenantID, march2025())
	require.NoError(t, err)
	require.NotNil(t, record.ReceiptPackageRef)

	names := zipNames(t, l.blobs.Blobs[*record.ReceiptPackageRef])
	assert.ElementsMatch(t, []string{"a.jpg", "manifest.txt"}, names)
}

func TestPackage_PDFStatement(t *testing.T) {
	l := newLedger()
	packager := NewReportPackager(l.tenants, l.fees, l.expenses, l.blobs, stubPDF{}, zerolog.Nop(), ReportPackagerConfig{})

	artifacts, err := packager.Package(context.Background(), domain.NewDraftClosing(testTenantID, march2025(), decimal.Zero, decimal.NewFromInt(30)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(artifacts.ReportRef, "1/closings/2025-03/statement-"))
	assert.True(t, strings.HasSuffix(artifacts.ReportRef, ".pdf"))
	assert.True(t, bytes.HasPrefix(l.blobs.Blobs[artifacts.ReportRef], []byte("%PDF")))
}

func TestPackage_StoreFailure(t *testing.T) {
	l := newLedger()
	l.blobs.PutFn = func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
		return "", errors.New("bucket unreachable")
	}

	record, err := l.closingSvc.Close(context.Background(), testTenantID, march2025())
	assert.ErrorIs(t, err, domain.ErrPackagingFailed)
	require.NotNil(t, record)
	assert.Equal(t, domain.ClosingStatusDraft, record.Status)
}

func TestPackage_NoBlobStore(t *testing.T) {
	l := newLedger()
	packager := NewReportPackager(l.tenants, l.fees, l.expenses, nil, nil, zerolog.Nop(), DefaultReportPackagerConfig())

	_, err := packager.Package(context.Background(), domain.NewDraftClosing(testTenantID, march2025(), decimal.Zero, decimal.NewFromInt(30)))
	assert.ErrorIs(t, err, ErrReceiptStorageNotConfigured)
}
