package domain

import (
	"context"
	"time"
)

// Tenant is a condominium managed by the platform
type Tenant struct {
	ID           int32     `json:"id"`
	Name         string    `json:"name"`
	AdminEmail   string    `json:"adminEmail"`
	AdminAuth0ID string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Unit is a billable apartment or lot inside a tenant
type Unit struct {
	ID       int32  `json:"id"`
	TenantID int32  `json:"tenantId"`
	Label    string `json:"label"`
	Active   bool   `json:"active"`
}

type TenantRepository interface {
	GetByID(ctx context.Context, id int32) (*Tenant, error)
	GetByAdminAuth0ID(ctx context.Context, auth0ID string) (*Tenant, error)
	GetAllActive(ctx context.Context) ([]*Tenant, error)
}

// UnitRoster lists the units that are billed each period
type UnitRoster interface {
	ListActiveUnits(ctx context.Context, tenantID int32) ([]int32, error)
}
