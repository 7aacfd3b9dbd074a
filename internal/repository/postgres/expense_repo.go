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

const expenseColumns = `id, tenant_id, category, description, amount, expense_date, account_kind,
	receipt_ref, created_at, updated_at`

// ExpenseRepository implements domain.ExpenseRepository using PostgreSQL
type ExpenseRepository struct {
	pool *pgxpool.Pool
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{pool: pool}
}

// Create inserts an expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	amount, err := decimalToPgNumeric(expense.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO expenses (tenant_id, category, description, amount, expense_date, account_kind, receipt_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+expenseColumns,
		expense.TenantID, expense.Category, stringPtrToPgText(expense.Description), amount,
		timeToPgDate(expense.Date), string(expense.AccountKind), stringPtrToPgText(expense.ReceiptRef))
	return scanExpense(row)
}

// GetByID retrieves an expense by its ID within a tenant
func (r *ExpenseRepository) GetByID(ctx context.Context, tenantID, id int32) (*domain.Expense, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	return scanExpense(row)
}

// GetForUpdate retrieves an expense and locks its row for the rest of the transaction
func (r *ExpenseRepository) GetForUpdate(ctx context.Context, tenantID, id int32) (*domain.Expense, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
	return scanExpense(row)
}

// Update overwrites every mutable field of an expense
func (r *ExpenseRepository) Update(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	amount, err := decimalToPgNumeric(expense.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	row := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE expenses
		SET category = $3, description = $4, amount = $5, expense_date = $6,
		    account_kind = $7, receipt_ref = $8, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+expenseColumns,
		expense.TenantID, expense.ID, expense.Category, stringPtrToPgText(expense.Description), amount,
		timeToPgDate(expense.Date), string(expense.AccountKind), stringPtrToPgText(expense.ReceiptRef))
	return scanExpense(row)
}

// Delete removes an expense
func (r *ExpenseRepository) Delete(ctx context.Context, tenantID, id int32) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM expenses WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrExpenseNotFound
	}
	return nil
}

// ListByDateRange returns expenses with start <= date < end ordered by date
func (r *ExpenseRepository) ListByDateRange(ctx context.Context, tenantID int32, start, end time.Time) ([]*domain.Expense, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE tenant_id = $1 AND expense_date >= $2 AND expense_date < $3
		ORDER BY expense_date, id`,
		tenantID, timeToPgDate(start), timeToPgDate(end))
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var result []*domain.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, expense)
	}
	return result, wrapErr(rows.Err())
}

// SumByDateRange sums expenses with start <= date < end
func (r *ExpenseRepository) SumByDateRange(ctx context.Context, tenantID int32, start, end time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE tenant_id = $1 AND expense_date >= $2 AND expense_date < $3`,
		tenantID, timeToPgDate(start), timeToPgDate(end)).Scan(&total)
	if err != nil {
		return decimal.Zero, wrapErr(err)
	}
	return pgNumericToDecimal(total), nil
}

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var e domain.Expense
	var description, receiptRef pgtype.Text
	var amount pgtype.Numeric
	var date pgtype.Date
	var kind string

	err := row.Scan(&e.ID, &e.TenantID, &e.Category, &description, &amount, &date, &kind,
		&receiptRef, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExpenseNotFound
		}
		return nil, wrapErr(err)
	}
	e.Description = pgTextToStringPtr(description)
	e.Amount = pgNumericToDecimal(amount)
	e.Date = date.Time
	e.AccountKind = domain.AccountKind(kind)
	e.ReceiptRef = pgTextToStringPtr(receiptRef)
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
