package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/report"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentReceiptFetches = 4

// PDFConverter prints an HTML document to PDF
type PDFConverter interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// ReportPackagerConfig holds receipt fetching limits
type ReportPackagerConfig struct {
	ReceiptFetchTimeout   time.Duration // Per receipt
	ReceiptBundleDeadline time.Duration // For the whole package
}

// DefaultReportPackagerConfig returns sensible defaults
func DefaultReportPackagerConfig() ReportPackagerConfig {
	return ReportPackagerConfig{
		ReceiptFetchTimeout:   10 * time.Second,
		ReceiptBundleDeadline: 60 * time.Second,
	}
}

// ReportPackager renders the closing statement and bundles the period's receipts
type ReportPackager struct {
	tenantRepo  domain.TenantRepository
	feeRepo     domain.FeeRepository
	expenseRepo domain.ExpenseRepository
	blobs       domain.BlobStore
	pdf         PDFConverter
	logger      zerolog.Logger
	config      ReportPackagerConfig
}

// NewReportPackager creates a packager. With a nil pdf converter statements are stored as HTML.
func NewReportPackager(
	tenantRepo domain.TenantRepository,
	feeRepo domain.FeeRepository,
	expenseRepo domain.ExpenseRepository,
	blobs domain.BlobStore,
	pdf PDFConverter,
	logger zerolog.Logger,
	config ReportPackagerConfig,
) *ReportPackager {
	defaults := DefaultReportPackagerConfig()
	if config.ReceiptFetchTimeout <= 0 {
		config.ReceiptFetchTimeout = defaults.ReceiptFetchTimeout
	}
	if config.ReceiptBundleDeadline <= 0 {
		config.ReceiptBundleDeadline = defaults.ReceiptBundleDeadline
	}

	return &ReportPackager{
		tenantRepo:  tenantRepo,
		feeRepo:     feeRepo,
		expenseRepo: expenseRepo,
		blobs:       blobs,
		pdf:         pdf,
		logger:      logger.With().Str("component", "report_packager").Logger(),
		config:      config,
	}
}

// Package produces the statement and the receipt bundle for a closing.
// Receipts that cannot be fetched are skipped and listed in Partial.
func (p *ReportPackager) Package(ctx context.Context, closing *domain.ClosingRecord) (*domain.ReportArtifacts, error) {
	if p.blobs == nil {
		return nil, ErrReceiptStorageNotConfigured
	}

	tenant, err := p.tenantRepo.GetByID(ctx, closing.TenantID)
	if err != nil {
		return nil, err
	}

	expenses, err := p.expenseRepo.ListByDateRange(ctx, closing.TenantID, closing.Period.Start(), closing.Period.End())
	if err != nil {
		return nil, err
	}

	fees, err := p.feeRepo.ListByPeriod(ctx, closing.TenantID, closing.Period)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reportRef, err := p.storeStatement(ctx, &report.Statement{
		TenantName:  tenant.Name,
		Closing:     closing,
		Expenses:    expenses,
		FeeSummary:  summarizeFees(closing.Period, fees),
		GeneratedAt: now,
	})
	if err != nil {
		return nil, err
	}

	artifacts := &domain.ReportArtifacts{ReportRef: reportRef}

	var refs []string
	for _, e := range expenses {
		if e.ReceiptRef != nil && *e.ReceiptRef != "" {
			refs = append(refs, *e.ReceiptRef)
		}
	}
	if len(refs) == 0 {
		return artifacts, nil
	}

	files, skipped := p.fetchReceipts(ctx, closing, refs)
	if len(skipped) > 0 {
		artifacts.Partial = &domain.PackagingPartialFailure{Skipped: skipped}
	}
	if len(files) == 0 {
		p.logger.Warn().
			Int32("tenant_id", closing.TenantID).
			Str("period", closing.Period.String()).
			Int("skipped", len(skipped)).
			Msg("No receipts could be fetched, package not created")
		return artifacts, nil
	}

	bundle, err := report.BuildReceiptBundle(fmt.Sprintf("%s receipts %s", tenant.Name, closing.Period), files, skipped, now)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d/closings/%s/receipts-%s.zip", closing.TenantID, closing.Period, uuid.New().String())
	packageRef, err := p.blobs.Put(ctx, key, bundle, "application/zip")
	if err != nil {
		return nil, fmt.Errorf("failed to store receipt package: %w", err)
	}
	artifacts.ReceiptPackageRef = &packageRef
	return artifacts, nil
}

func (p *ReportPackager) storeStatement(ctx context.Context, statement *report.Statement) (string, error) {
	doc, err := report.RenderHTML(statement)
	if err != nil {
		return "", err
	}

	contentType, ext := "text/html; charset=utf-8", "html"
	if p.pdf != nil {
		doc, err = p.pdf.Render(ctx, doc)
		if err != nil {
			return "", err
		}
		contentType, ext = "application/pdf", "pdf"
	}

	key := fmt.Sprintf("%d/closings/%s/statement-%s.%s", statement.Closing.TenantID, statement.Closing.Period, uuid.New().String(), ext)
	ref, err := p.blobs.Put(ctx, key, doc, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to store statement: %w", err)
	}
	return ref, nil
}

// fetchReceipts downloads receipts with bounded concurrency. Once the bundle
// deadline passes no new fetch starts and whatever arrived is kept.
func (p *ReportPackager) fetchReceipts(ctx context.Context, closing *domain.ClosingRecord, refs []string) ([]report.BundleFile, []string) {
	deadlineCtx, cancel := context.WithTimeout(ctx, p.config.ReceiptBundleDeadline)
	defer cancel()

	results := make([][]byte, len(refs))
	fetched := make([]bool, len(refs))
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentReceiptFetches)

	for i, ref := range refs {
		if deadlineCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(deadlineCtx, p.config.ReceiptFetchTimeout)
			defer cancel()

			data, err := p.blobs.Get(itemCtx, ref)
			if err != nil {
				p.logger.Warn().
					Err(err).
					Int32("tenant_id", closing.TenantID).
					Str("period", closing.Period.String()).
					Str("receipt_ref", ref).
					Msg("Skipping receipt")
				return nil
			}
			results[i] = data
			fetched[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var files []report.BundleFile
	var skipped []string
	for i, ref := range refs {
		if !fetched[i] {
			skipped = append(skipped, ref)
			continue
		}
		files = append(files, report.BundleFile{Name: path.Base(ref), Data: results[i]})
	}
	return files, skipped
}
