package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// MovementRepository implements domain.MovementRepository using PostgreSQL.
// Movements are append-only; there is no update or delete.
type MovementRepository struct {
	pool *pgxpool.Pool
}

// NewMovementRepository creates a new MovementRepository
func NewMovementRepository(pool *pgxpool.Pool) *MovementRepository {
	return &MovementRepository{pool: pool}
}

// Append records one posting
func (r *MovementRepository) Append(ctx context.Context, m *domain.Movement) (*domain.Movement, error) {
	amount, err := decimalToPgNumeric(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	balanceAfter, err := decimalToPgNumeric(m.BalanceAfter)
	if err != nil {
		return nil, fmt.Errorf("invalid balance: %w", err)
	}

	created := *m
	err = conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO fund_movements
			(tenant_id, account_kind, amount, balance_after, description, actor, source_type, source_id, correlation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		m.TenantID, string(m.AccountKind), amount, balanceAfter, m.Description, m.Actor,
		string(m.SourceType), m.SourceID, m.CorrelationID,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	created.CreatedAt = created.CreatedAt.UTC()
	return &created, nil
}

// ListByTenant returns movements with from <= created_at < to in insertion order.
// A zero from or to leaves that side open.
func (r *MovementRepository) ListByTenant(ctx context.Context, tenantID int32, from, to time.Time) ([]*domain.Movement, error) {
	var fromTs, toTs pgtype.Timestamptz
	if !from.IsZero() {
		fromTs = pgtype.Timestamptz{Time: from, Valid: true}
	}
	if !to.IsZero() {
		toTs = pgtype.Timestamptz{Time: to, Valid: true}
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT id, tenant_id, account_kind, amount, balance_after, description, actor,
		       source_type, source_id, correlation_id, created_at
		FROM fund_movements
		WHERE tenant_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY id`, tenantID, fromTs, toTs)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var result []*domain.Movement
	for rows.Next() {
		var m domain.Movement
		var kind, source string
		var amount, balanceAfter pgtype.Numeric
		if err := rows.Scan(&m.ID, &m.TenantID, &kind, &amount, &balanceAfter, &m.Description, &m.Actor,
			&source, &m.SourceID, &m.CorrelationID, &m.CreatedAt); err != nil {
			return nil, wrapErr(err)
		}
		m.AccountKind = domain.AccountKind(kind)
		m.SourceType = domain.MovementSource(source)
		m.Amount = pgNumericToDecimal(amount)
		m.BalanceAfter = pgNumericToDecimal(balanceAfter)
		m.CreatedAt = m.CreatedAt.UTC()
		result = append(result, &m)
	}
	return result, wrapErr(rows.Err())
}

// SumByTenant returns the sum of every movement amount of a tenant
func (r *MovementRepository) SumByTenant(ctx context.Context, tenantID int32) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM fund_movements WHERE tenant_id = $1`, tenantID).Scan(&total)
	if err != nil {
		return decimal.Zero, wrapErr(err)
	}
	return pgNumericToDecimal(total), nil
}
