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

const fundAccountColumns = `tenant_id, kind, balance, active, created_at, updated_at`

// FundAccountRepository implements domain.FundAccountRepository using PostgreSQL
type FundAccountRepository struct {
	pool *pgxpool.Pool
}

// NewFundAccountRepository creates a new FundAccountRepository
func NewFundAccountRepository(pool *pgxpool.Pool) *FundAccountRepository {
	return &FundAccountRepository{pool: pool}
}

// ApplyPosting adds amount to the balance. The conditional UPDATE is where the
// non-negative rule is enforced: the row lock it takes means two concurrent
// debits can never both pass the check.
func (r *FundAccountRepository) ApplyPosting(ctx context.Context, tenantID int32, kind domain.AccountKind, amount decimal.Decimal, allowOverdraft bool) (*domain.FundAccount, error) {
	q := conn(ctx, r.pool)
	num, err := decimalToPgNumeric(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO fund_accounts (tenant_id, kind, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (tenant_id, kind) DO NOTHING`, tenantID, string(kind))
	if err != nil {
		return nil, wrapErr(err)
	}

	row := q.QueryRow(ctx, `
		UPDATE fund_accounts
		SET balance = balance + $3, updated_at = NOW()
		WHERE tenant_id = $1 AND kind = $2 AND active
		  AND ($4 OR balance + $3 >= 0)
		RETURNING `+fundAccountColumns, tenantID, string(kind), num, allowOverdraft)
	account, err := scanFundAccount(row)
	if errors.Is(err, domain.ErrAccountNotFound) {
		// Nothing updated: either inactive or the debit would overdraw
		current, getErr := r.Get(ctx, tenantID, kind)
		if getErr != nil {
			return nil, getErr
		}
		if !current.Active {
			return nil, domain.ErrAccountInactive
		}
		return nil, domain.ErrInsufficientFunds
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Get retrieves one account
func (r *FundAccountRepository) Get(ctx context.Context, tenantID int32, kind domain.AccountKind) (*domain.FundAccount, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+fundAccountColumns+` FROM fund_accounts WHERE tenant_id = $1 AND kind = $2`,
		tenantID, string(kind))
	return scanFundAccount(row)
}

// ListByTenant retrieves all accounts of a tenant ordered by kind
func (r *FundAccountRepository) ListByTenant(ctx context.Context, tenantID int32) ([]*domain.FundAccount, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+fundAccountColumns+` FROM fund_accounts
		WHERE tenant_id = $1
		ORDER BY array_position(ARRAY['operating', 'reserve', 'major_works']::varchar[], kind)`, tenantID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var result []*domain.FundAccount
	for rows.Next() {
		account, err := scanFundAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, account)
	}
	return result, wrapErr(rows.Err())
}

// SumBalances returns the sum of all account balances of a tenant
func (r *FundAccountRepository) SumBalances(ctx context.Context, tenantID int32) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM fund_accounts WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return decimal.Zero, wrapErr(err)
	}
	return pgNumericToDecimal(total), nil
}

// SetActive activates or deactivates an account; the balance is kept
func (r *FundAccountRepository) SetActive(ctx context.Context, tenantID int32, kind domain.AccountKind, active bool) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE fund_accounts SET active = $3, updated_at = NOW() WHERE tenant_id = $1 AND kind = $2`,
		tenantID, string(kind), active)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func scanFundAccount(row pgx.Row) (*domain.FundAccount, error) {
	var a domain.FundAccount
	var kind string
	var balance pgtype.Numeric
	var createdAt, updatedAt time.Time
	if err := row.Scan(&a.TenantID, &kind, &balance, &a.Active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, wrapErr(err)
	}
	a.Kind = domain.AccountKind(kind)
	a.Balance = pgNumericToDecimal(balance)
	a.CreatedAt = createdAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	return &a, nil
}
