package postgres

import (
	"context"
	"errors"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tenantColumns = `id, name, admin_email, admin_auth0_id, active, created_at`

// TenantRepository implements domain.TenantRepository using PostgreSQL.
// Tenants are provisioned elsewhere; this repository only reads them.
type TenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository creates a new TenantRepository
func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

// GetByID retrieves a tenant by its ID
func (r *TenantRepository) GetByID(ctx context.Context, id int32) (*domain.Tenant, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// GetByAdminAuth0ID retrieves the tenant administered by an Auth0 subject
func (r *TenantRepository) GetByAdminAuth0ID(ctx context.Context, auth0ID string) (*domain.Tenant, error) {
	row := conn(ctx, r.pool).QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE admin_auth0_id = $1`, auth0ID)
	return scanTenant(row)
}

// GetAllActive retrieves all active tenants ordered by ID
func (r *TenantRepository) GetAllActive(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE active ORDER BY id`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var result []*domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tenant)
	}
	return result, wrapErr(rows.Err())
}

// GetTenantByAuth0ID resolves the tenant ID of an administrator. Used by the
// HTTP and websocket authentication layers.
func (r *TenantRepository) GetTenantByAuth0ID(ctx context.Context, auth0ID string) (int32, error) {
	tenant, err := r.GetByAdminAuth0ID(ctx, auth0ID)
	if err != nil {
		return 0, err
	}
	if !tenant.Active {
		return 0, domain.ErrForbidden
	}
	return tenant.ID, nil
}

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	var auth0ID pgtype.Text
	err := row.Scan(&t.ID, &t.Name, &t.AdminEmail, &auth0ID, &t.Active, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, wrapErr(err)
	}
	t.AdminAuth0ID = auth0ID.String
	return &t, nil
}

// UnitRoster implements domain.UnitRoster using PostgreSQL
type UnitRoster struct {
	pool *pgxpool.Pool
}

// NewUnitRoster creates a new UnitRoster
func NewUnitRoster(pool *pgxpool.Pool) *UnitRoster {
	return &UnitRoster{pool: pool}
}

// ListActiveUnits returns the IDs of a tenant's active units in ascending order
func (r *UnitRoster) ListActiveUnits(ctx context.Context, tenantID int32) ([]int32, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT id FROM units WHERE tenant_id = $1 AND active ORDER BY id`, tenantID)
	if err != nil {
		return nil, wrapErr(err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int32])
	if err != nil {
		return nil, wrapErr(err)
	}
	return ids, nil
}
