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
	"github.com/shopspring/decimal"
)

const feeColumns = `id, tenant_id, unit_id, period, amount, status, due_date, paid_at,
	payment_method, reference, created_at, updated_at`

// FeeRepository implements domain.FeeRepository using PostgreSQL
type FeeRepository struct {
	pool *pgxpool.Pool
}

// NewFeeRepository creates a new FeeRepository
func NewFeeRepository(pool *pgxpool.Pool) *FeeRepository {
	return &FeeRepository{pool: pool}
}

// CreatePeriod claims the fee_periods marker and inserts every fee in one batch.
// Must run inside a transaction so a failed insert releases the marker.
func (r *FeeRepository) CreatePeriod(ctx context.Context, tenantID int32, period domain.Period, fees []*domain.FeeObligation) ([]*domain.FeeObligation, error) {
	q := conn(ctx, r.pool)

	tag, err := q.Exec(ctx, `
		INSERT INTO fee_periods (tenant_id, period) VALUES ($1, $2)
		ON CONFLICT (tenant_id, period) DO NOTHING`, tenantID, period.String())
	if err != nil {
		return nil, wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrPeriodAlreadyGenerated
	}

	tx, ok := q.(pgx.Tx)
	if !ok {
		return nil, errors.New("CreatePeriod requires a transaction")
	}

	batch := &pgx.Batch{}
	for _, fee := range fees {
		amount, err := decimalToPgNumeric(fee.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}
		batch.Queue(`
			INSERT INTO fee_obligations (tenant_id, unit_id, period, amount, status, due_date)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+feeColumns,
			tenantID, fee.UnitID, period.String(), amount, string(domain.FeeStatusPending), timeToPgDate(fee.DueDate))
	}

	results := tx.SendBatch(ctx, batch)
	created := make([]*domain.FeeObligation, 0, len(fees))
	for range fees {
		fee, err := scanFee(results.QueryRow())
		if err != nil {
			results.Close()
			if isPgUniqueViolation(err) {
				return nil, domain.ErrPeriodAlreadyGenerated
			}
			return nil, err
		}
		created = append(created, fee)
	}
	if err := results.Close(); err != nil {
		return nil, wrapErr(err)
	}
	return created, nil
}

// Create inserts a single fee and claims the period marker, so a later
// bulk generation for the same period is refused.
func (r *FeeRepository) Create(ctx context.Context, fee *domain.FeeObligation) (*domain.FeeObligation, error) {
	amount, err := decimalToPgNumeric(fee.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	q := conn(ctx, r.pool)
	_, err = q.Exec(ctx, `
		INSERT INTO fee_periods (tenant_id, period) VALUES ($1, $2)
		ON CONFLICT (tenant_id, period) DO NOTHING`, fee.TenantID, fee.Period.String())
	if err != nil {
		return nil, wrapErr(err)
	}

	row := q.QueryRow(ctx, `
		INSERT INTO fee_obligations (tenant_id, unit_id, period, amount, status, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+feeColumns,
		fee.TenantID, fee.UnitID, fee.Period.String(), amount, string(domain.FeeStatusPending), timeToPgDate(fee.DueDate))
	created, err := scanFee(row)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, domain.ErrFeeAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a fee by its ID within a tenant
func (r *FeeRepository) GetByID(ctx context.Context, tenantID, id int32) (*domain.FeeObligation, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+feeColumns+` FROM fee_obligations WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanFee(row)
}

// ListByPeriod retrieves a period's fees ordered by unit
func (r *FeeRepository) ListByPeriod(ctx context.Context, tenantID int32, period domain.Period) ([]*domain.FeeObligation, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+feeColumns+` FROM fee_obligations WHERE tenant_id = $1 AND period = $2 ORDER BY unit_id`,
		tenantID, period.String())
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var result []*domain.FeeObligation
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, fee)
	}
	return result, wrapErr(rows.Err())
}

// MarkPaid transitions a non-PAID fee to PAID in one conditional UPDATE
func (r *FeeRepository) MarkPaid(ctx context.Context, tenantID, id int32, payment domain.FeePayment) (*domain.FeeObligation, error) {
	reference := &payment.Reference
	if payment.Reference == "" {
		reference = nil
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE fee_obligations
		SET status = 'PAID', paid_at = $3, payment_method = $4, reference = $5, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND status <> 'PAID'
		RETURNING `+feeColumns,
		tenantID, id, payment.PaidAt, string(payment.Method), stringPtrToPgText(reference))
	fee, err := scanFee(row)
	if errors.Is(err, domain.ErrFeeNotFound) {
		if _, getErr := r.GetByID(ctx, tenantID, id); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrAlreadyPaid
	}
	return fee, err
}

// MarkOverdue moves PENDING fees due before asOf to OVERDUE
func (r *FeeRepository) MarkOverdue(ctx context.Context, tenantID int32, asOf time.Time) (int, error) {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE fee_obligations
		SET status = 'OVERDUE', updated_at = NOW()
		WHERE tenant_id = $1 AND status = 'PENDING' AND due_date < $2`,
		tenantID, timeToPgDate(asOf))
	if err != nil {
		return 0, wrapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes a fee that has not been paid
func (r *FeeRepository) Delete(ctx context.Context, tenantID, id int32) error {
	q := conn(ctx, r.pool)

	var period string
	err := q.QueryRow(ctx, `
		DELETE FROM fee_obligations WHERE tenant_id = $1 AND id = $2 AND status <> 'PAID'
		RETURNING period`, tenantID, id).Scan(&period)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.GetByID(ctx, tenantID, id); err != nil {
			return err
		}
		return domain.ErrCannotDeletePaid
	}
	if err != nil {
		return wrapErr(err)
	}

	// An emptied period can be generated again
	_, err = q.Exec(ctx, `
		DELETE FROM fee_periods
		WHERE tenant_id = $1 AND period = $2
		  AND NOT EXISTS (SELECT 1 FROM fee_obligations WHERE tenant_id = $1 AND period = $2)`,
		tenantID, period)
	return wrapErr(err)
}

// SumPaidBetween sums fees paid with start <= paid_at < end
func (r *FeeRepository) SumPaidBetween(ctx context.Context, tenantID int32, start, end time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM fee_obligations
		WHERE tenant_id = $1 AND status = 'PAID' AND paid_at >= $2 AND paid_at < $3`,
		tenantID, start, end).Scan(&total)
	if err != nil {
		return decimal.Zero, wrapErr(err)
	}
	return pgNumericToDecimal(total), nil
}

func scanFee(row pgx.Row) (*domain.FeeObligation, error) {
	var f domain.FeeObligation
	var period, status string
	var amount pgtype.Numeric
	var dueDate pgtype.Date
	var paidAt pgtype.Timestamptz
	var method, reference pgtype.Text

	err := row.Scan(&f.ID, &f.TenantID, &f.UnitID, &period, &amount, &status, &dueDate, &paidAt,
		&method, &reference, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFeeNotFound
		}
		return nil, wrapErr(err)
	}

	p, err := domain.ParsePeriod(period)
	if err != nil {
		return nil, fmt.Errorf("stored fee %d has period %q: %w", f.ID, period, err)
	}
	f.Period = p
	f.Amount = pgNumericToDecimal(amount)
	f.Status = domain.FeeStatus(status)
	f.DueDate = dueDate.Time
	f.PaidAt = pgTimestamptzToTimePtr(paidAt)
	if method.Valid {
		m := domain.PaymentMethod(method.String)
		f.PaymentMethod = &m
	}
	f.Reference = pgTextToStringPtr(reference)
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}
