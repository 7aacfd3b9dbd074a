package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const closingColumns = `id, tenant_id, period, total_income, total_expense, closing_balance, status,
	report_ref, receipt_package_ref, generated_at, created_at`

// ClosingRepository implements domain.ClosingRepository using PostgreSQL
type ClosingRepository struct {
	pool *pgxpool.Pool
}

// NewClosingRepository creates a new ClosingRepository
func NewClosingRepository(pool *pgxpool.Pool) *ClosingRepository {
	return &ClosingRepository{pool: pool}
}

// CreateDraft inserts a DRAFT record; the (tenant, period) unique key rejects a second closing
func (r *ClosingRepository) CreateDraft(ctx context.Context, record *domain.ClosingRecord) (*domain.ClosingRecord, error) {
	income, err := decimalToPgNumeric(record.TotalIncome)
	if err != nil {
		return nil, fmt.Errorf("invalid income: %w", err)
	}
	expense, err := decimalToPgNumeric(record.TotalExpense)
	if err != nil {
		return nil, fmt.Errorf("invalid expense: %w", err)
	}
	balance, err := decimalToPgNumeric(record.ClosingBalance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance: %w", err)
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO closings (tenant_id, period, total_income, total_expense, closing_balance, status)
		VALUES ($1, $2, $3, $4, $5, 'DRAFT')
		RETURNING `+closingColumns,
		record.TenantID, record.Period.String(), income, expense, balance)
	created, err := scanClosing(row)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrAlreadyClosed
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a closing by its ID within a tenant
func (r *ClosingRepository) GetByID(ctx context.Context, tenantID, id int32) (*domain.ClosingRecord, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+closingColumns+` FROM closings WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanClosing(row)
}

// GetByPeriod retrieves the closing of a period
func (r *ClosingRepository) GetByPeriod(ctx context.Context, tenantID int32, period domain.Period) (*domain.ClosingRecord, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+closingColumns+` FROM closings WHERE tenant_id = $1 AND period = $2`, tenantID, period.String())
	return scanClosing(row)
}

// ListByTenant retrieves every closing of a tenant, newest period first
func (r *ClosingRepository) ListByTenant(ctx context.Context, tenantID int32) ([]*domain.ClosingRecord, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+closingColumns+` FROM closings WHERE tenant_id = $1 ORDER BY period DESC`, tenantID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var result []*domain.ClosingRecord
	for rows.Next() {
		record, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, wrapErr(rows.Err())
}

// MarkGenerated stores the artifact refs and moves a DRAFT record to GENERATED.
// Totals are never touched.
func (r *ClosingRepository) MarkGenerated(ctx context.Context, tenantID, id int32, artifacts domain.ReportArtifacts, generatedAt time.Time) (*domain.ClosingRecord, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE closings
		SET status = 'GENERATED', report_ref = $3, receipt_package_ref = $4, generated_at = $5
		WHERE tenant_id = $1 AND id = $2 AND status = 'DRAFT'
		RETURNING `+closingColumns,
		tenantID, id, artifacts.ReportRef, stringPtrToPgText(artifacts.ReceiptPackageRef), generatedAt)
	record, err := scanClosing(row)
	if errors.Is(err, domain.ErrClosingNotFound) {
		// Already GENERATED by a concurrent run: return what is stored
		return r.GetByID(ctx, tenantID, id)
	}
	return record, err
}

func scanClosing(row pgx.Row) (*domain.ClosingRecord, error) {
	var c domain.ClosingRecord
	var period, status string
	var income, expense, balance pgtype.Numeric
	var reportRef, packageRef pgtype.Text
	var generatedAt pgtype.Timestamptz

	err := row.Scan(&c.ID, &c.TenantID, &period, &income, &expense, &balance, &status,
		&reportRef, &packageRef, &generatedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrClosingNotFound
		}
		return nil, wrapErr(err)
	}

	p, err := domain.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("stored closing %d has period %q: %w", c.ID, period, err)
	}
	c.Period = p
	c.TotalIncome = pgNumericToDecimal(income)
	c.TotalExpense = pgNumericToDecimal(expense)
	c.ClosingBalance = pgNumericToDecimal(balance)
	c.Status = domain.ClosingStatus(status)
	c.ReportRef = pgTextToStringPtr(reportRef)
	c.ReceiptPackageRef = pgTextToStringPtr(packageRef)
	c.GeneratedAt = pgTimestamptzToTimePtr(generatedAt)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}
