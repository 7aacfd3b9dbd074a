package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// MockTenantRepository is a mock implementation of domain.TenantRepository
type MockTenantRepository struct {
	Tenants        map[int32]*domain.Tenant
	GetAllActiveFn func(ctx context.Context) ([]*domain.Tenant, error)
	mu             sync.Mutex
}

// NewMockTenantRepository creates a new MockTenantRepository
func NewMockTenantRepository() *MockTenantRepository {
	return &MockTenantRepository{
		Tenants: make(map[int32]*domain.Tenant),
	}
}

// AddTenant adds a tenant to the mock repository (helper for tests)
func (m *MockTenantRepository) AddTenant(tenant *domain.Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tenants[tenant.ID] = tenant
}

// GetByID retrieves a tenant by ID
func (m *MockTenantRepository) GetByID(ctx context.Context, id int32) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Tenants[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTenantNotFound
}

// GetByAdminAuth0ID retrieves the tenant administered by an Auth0 subject
func (m *MockTenantRepository) GetByAdminAuth0ID(ctx context.Context, auth0ID string) (*domain.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.Tenants {
		if t.AdminAuth0ID == auth0ID {
			return t, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

// GetAllActive returns active tenants ordered by ID
func (m *MockTenantRepository) GetAllActive(ctx context.Context) ([]*domain.Tenant, error) {
	if m.GetAllActiveFn != nil {
		return m.GetAllActiveFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Tenant
	for _, t := range m.Tenants {
		if t.Active {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// MockUnitRoster is a mock implementation of domain.UnitRoster
type MockUnitRoster struct {
	Units map[int32][]int32
	Err   error
}

// NewMockUnitRoster creates a new MockUnitRoster
func NewMockUnitRoster() *MockUnitRoster {
	return &MockUnitRoster{Units: make(map[int32][]int32)}
}

// ListActiveUnits returns the unit IDs configured for a tenant
func (m *MockUnitRoster) ListActiveUnits(ctx context.Context, tenantID int32) ([]int32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]int32(nil), m.Units[tenantID]...), nil
}

type accountKey struct {
	tenantID int32
	kind     domain.AccountKind
}

// MockFundAccountRepository is a mock implementation of domain.FundAccountRepository
type MockFundAccountRepository struct {
	Accounts       map[accountKey]*domain.FundAccount
	ApplyPostingFn func(ctx context.Context, tenantID int32, kind domain.AccountKind, amount decimal.Decimal) error
	mu             sync.Mutex
}

// NewMockFundAccountRepository creates a new MockFundAccountRepository
func NewMockFundAccountRepository() *MockFundAccountRepository {
	return &MockFundAccountRepository{
		Accounts: make(map[accountKey]*domain.FundAccount),
	}
}

// ApplyPosting adds amount to the balance, creating the account when absent
func (m *MockFundAccountRepository) ApplyPosting(ctx context.Context, tenantID int32, kind domain.AccountKind, amount decimal.Decimal, allowOverdraft bool) (*domain.FundAccount, error) {
	if m.ApplyPostingFn != nil {
		if err := m.ApplyPostingFn(ctx, tenantID, kind, amount); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := accountKey{tenantID, kind}
	account, ok := m.Accounts[key]
	if !ok {
		now := time.Now().UTC()
		account = &domain.FundAccount{
			TenantID:  tenantID,
			Kind:      kind,
			Balance:   decimal.Zero,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		m.Accounts[key] = account
		onRollback(ctx, func() {
			m.mu.Lock()
			delete(m.Accounts, key)
			m.mu.Unlock()
		})
	}

	if !account.Active {
		return nil, domain.ErrAccountInactive
	}
	next := account.Balance.Add(amount)
	if next.IsNegative() && !allowOverdraft {
		return nil, domain.ErrInsufficientFunds
	}

	previous := account.Balance
	account.Balance = next
	account.UpdatedAt = time.Now().UTC()
	onRollback(ctx, func() {
		m.mu.Lock()
		account.Balance = previous
		m.mu.Unlock()
	})

	copied := *account
	return &copied, nil
}

// Get retrieves an account
func (m *MockFundAccountRepository) Get(ctx context.Context, tenantID int32, kind domain.AccountKind) (*domain.FundAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.Accounts[accountKey{tenantID, kind}]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, domain.ErrAccountNotFound
}

// ListByTenant returns a tenant's accounts ordered by kind
func (m *MockFundAccountRepository) ListByTenant(ctx context.Context, tenantID int32) ([]*domain.FundAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.FundAccount
	for key, account := range m.Accounts {
		if key.tenantID == tenantID {
			copied := *account
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result, nil
}

// SumBalances sums every account balance of a tenant
func (m *MockFundAccountRepository) SumBalances(ctx context.Context, tenantID int32) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for key, account := range m.Accounts {
		if key.tenantID == tenantID {
			total = total.Add(account.Balance)
		}
	}
	return total, nil
}

// SetActive toggles an account, creating it when absent
func (m *MockFundAccountRepository) SetActive(ctx context.Context, tenantID int32, kind domain.AccountKind, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := accountKey{tenantID, kind}
	account, ok := m.Accounts[key]
	if !ok {
		now := time.Now().UTC()
		account = &domain.FundAccount{TenantID: tenantID, Kind: kind, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		m.Accounts[key] = account
	}
	account.Active = active
	return nil
}

// MockMovementRepository is a mock implementation of domain.MovementRepository
type MockMovementRepository struct {
	Movements []*domain.Movement
	AppendFn  func(ctx context.Context, mv *domain.Movement) error
	nextID    int64
	mu        sync.Mutex
}

// NewMockMovementRepository creates a new MockMovementRepository
func NewMockMovementRepository() *MockMovementRepository {
	return &MockMovementRepository{nextID: 1}
}

// Append stores a movement
func (m *MockMovementRepository) Append(ctx context.Context, mv *domain.Movement) (*domain.Movement, error) {
	if m.AppendFn != nil {
		if err := m.AppendFn(ctx, mv); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *mv
	stored.ID = m.nextID
	stored.CreatedAt = time.Now().UTC()
	m.nextID++
	m.Movements = append(m.Movements, &stored)
	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, existing := range m.Movements {
			if existing.ID == stored.ID {
				m.Movements = append(m.Movements[:i], m.Movements[i+1:]...)
				break
			}
		}
	})

	copied := stored
	return &copied, nil
}

// ListByTenant returns movements with from <= createdAt < to; zero bounds are open
func (m *MockMovementRepository) ListByTenant(ctx context.Context, tenantID int32, from, to time.Time) ([]*domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Movement
	for _, mv := range m.Movements {
		if mv.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && mv.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !mv.CreatedAt.Before(to) {
			continue
		}
		copied := *mv
		result = append(result, &copied)
	}
	return result, nil
}

// SumByTenant sums the signed amounts of every movement of a tenant
func (m *MockMovementRepository) SumByTenant(ctx context.Context, tenantID int32) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, mv := range m.Movements {
		if mv.TenantID == tenantID {
			total = total.Add(mv.Amount)
		}
	}
	return total, nil
}

// Count returns the number of stored movements
func (m *MockMovementRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Movements)
}

type periodKey struct {
	tenantID int32
	period   domain.Period
}

// MockFeeRepository is a mock implementation of domain.FeeRepository
type MockFeeRepository struct {
	Fees    map[int32]*domain.FeeObligation
	Periods map[periodKey]bool
	NextID  int32
	mu      sync.Mutex
}

// NewMockFeeRepository creates a new MockFeeRepository
func NewMockFeeRepository() *MockFeeRepository {
	return &MockFeeRepository{
		Fees:    make(map[int32]*domain.FeeObligation),
		Periods: make(map[periodKey]bool),
		NextID:  1,
	}
}

// AddFee adds a fee to the mock repository (helper for tests)
func (m *MockFeeRepository) AddFee(fee *domain.FeeObligation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fee.ID == 0 {
		fee.ID = m.NextID
	}
	if fee.ID >= m.NextID {
		m.NextID = fee.ID + 1
	}
	m.Fees[fee.ID] = fee
	m.Periods[periodKey{fee.TenantID, fee.Period}] = true
}

// CreatePeriod claims the period marker and inserts all fees
func (m *MockFeeRepository) CreatePeriod(ctx context.Context, tenantID int32, period domain.Period, fees []*domain.FeeObligation) ([]*domain.FeeObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := periodKey{tenantID, period}
	if m.Periods[key] {
		return nil, domain.ErrPeriodAlreadyGenerated
	}
	m.Periods[key] = true

	created := make([]*domain.FeeObligation, 0, len(fees))
	ids := make([]int32, 0, len(fees))
	for _, fee := range fees {
		stored := m.insertLocked(fee)
		ids = append(ids, stored.ID)
		copied := *stored
		created = append(created, &copied)
	}

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.Periods, key)
		for _, id := range ids {
			delete(m.Fees, id)
		}
	})
	return created, nil
}

// Create inserts a single fee
func (m *MockFeeRepository) Create(ctx context.Context, fee *domain.FeeObligation) (*domain.FeeObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.Fees {
		if existing.TenantID == fee.TenantID && existing.UnitID == fee.UnitID && existing.Period == fee.Period {
			return nil, domain.ErrFeeAlreadyExists
		}
	}

	key := periodKey{fee.TenantID, fee.Period}
	claimed := !m.Periods[key]
	m.Periods[key] = true
	stored := m.insertLocked(fee)

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.Fees, stored.ID)
		if claimed {
			delete(m.Periods, key)
		}
	})

	copied := *stored
	return &copied, nil
}

func (m *MockFeeRepository) insertLocked(fee *domain.FeeObligation) *domain.FeeObligation {
	now := time.Now().UTC()
	stored := *fee
	stored.ID = m.NextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.NextID++
	m.Fees[stored.ID] = &stored
	return &stored
}

// GetByID retrieves a fee by ID
func (m *MockFeeRepository) GetByID(ctx context.Context, tenantID, id int32) (*domain.FeeObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fee, ok := m.Fees[id]; ok && fee.TenantID == tenantID {
		copied := *fee
		return &copied, nil
	}
	return nil, domain.ErrFeeNotFound
}

// ListByPeriod returns a period's fees ordered by unit
func (m *MockFeeRepository) ListByPeriod(ctx context.Context, tenantID int32, period domain.Period) ([]*domain.FeeObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.FeeObligation
	for _, fee := range m.Fees {
		if fee.TenantID == tenantID && fee.Period == period {
			copied := *fee
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UnitID < result[j].UnitID })
	return result, nil
}

// MarkPaid transitions a non-PAID fee to PAID
func (m *MockFeeRepository) MarkPaid(ctx context.Context, tenantID, id int32, payment domain.FeePayment) (*domain.FeeObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fee, ok := m.Fees[id]
	if !ok || fee.TenantID != tenantID {
		return nil, domain.ErrFeeNotFound
	}
	if fee.Status == domain.FeeStatusPaid {
		return nil, domain.ErrAlreadyPaid
	}

	previous := *fee
	method := payment.Method
	paidAt := payment.PaidAt
	fee.Status = domain.FeeStatusPaid
	fee.PaidAt = &paidAt
	fee.PaymentMethod = &method
	if payment.Reference != "" {
		reference := payment.Reference
		fee.Reference = &reference
	}
	fee.UpdatedAt = time.Now().UTC()

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		*fee = previous
	})

	copied := *fee
	return &copied, nil
}

// MarkOverdue moves PENDING fees due before asOf to OVERDUE
func (m *MockFeeRepository) MarkOverdue(ctx context.Context, tenantID int32, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, fee := range m.Fees {
		if fee.TenantID == tenantID && fee.Status == domain.FeeStatusPending && fee.DueDate.Before(asOf) {
			fee.Status = domain.FeeStatusOverdue
			fee.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

// Delete removes a non-PAID fee
func (m *MockFeeRepository) Delete(ctx context.Context, tenantID, id int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee, ok := m.Fees[id]
	if !ok || fee.TenantID != tenantID {
		return domain.ErrFeeNotFound
	}
	if fee.Status == domain.FeeStatusPaid {
		return domain.ErrCannotDeletePaid
	}
	delete(m.Fees, id)

	key := periodKey{tenantID, fee.Period}
	released := !m.periodHasFeesLocked(key)
	if released {
		delete(m.Periods, key)
	}

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Fees[id] = fee
		if released {
			m.Periods[key] = true
		}
	})
	return nil
}

func (m *MockFeeRepository) periodHasFeesLocked(key periodKey) bool {
	for _, fee := range m.Fees {
		if fee.TenantID == key.tenantID && fee.Period == key.period {
			return true
		}
	}
	return false
}

// SumPaidBetween sums PAID fees with start <= paidAt < end
func (m *MockFeeRepository) SumPaidBetween(ctx context.Context, tenantID int32, start, end time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, fee := range m.Fees {
		if fee.TenantID != tenantID || fee.Status != domain.FeeStatusPaid || fee.PaidAt == nil {
			continue
		}
		if !fee.PaidAt.Before(start) && fee.PaidAt.Before(end) {
			total = total.Add(fee.Amount)
		}
	}
	return total, nil
}

// MockExpenseRepository is a mock implementation of domain.ExpenseRepository
type MockExpenseRepository struct {
	Expenses map[int32]*domain.Expense
	NextID   int32
	UpdateFn func(ctx context.Context, expense *domain.Expense) error
	// LockedReads lists the ids read through GetForUpdate, in call order
	LockedReads []int32
	mu          sync.Mutex
}

// NewMockExpenseRepository creates a new MockExpenseRepository
func NewMockExpenseRepository() *MockExpenseRepository {
	return &MockExpenseRepository{
		Expenses: make(map[int32]*domain.Expense),
		NextID:   1,
	}
}

// AddExpense adds an expense without any fund posting (helper for tests)
func (m *MockExpenseRepository) AddExpense(expense *domain.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expense.ID == 0 {
		expense.ID = m.NextID
	}
	if expense.ID >= m.NextID {
		m.NextID = expense.ID + 1
	}
	m.Expenses[expense.ID] = expense
}

// Create inserts an expense
func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	stored := *expense
	stored.ID = m.NextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.NextID++
	m.Expenses[stored.ID] = &stored

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.Expenses, stored.ID)
	})

	copied := stored
	return &copied, nil
}

// GetByID retrieves an expense by ID
func (m *MockExpenseRepository) GetByID(ctx context.Context, tenantID, id int32) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Expenses[id]; ok && e.TenantID == tenantID {
		copied := *e
		return &copied, nil
	}
	return nil, domain.ErrExpenseNotFound
}

// GetForUpdate retrieves an expense and records the locking read
func (m *MockExpenseRepository) GetForUpdate(ctx context.Context, tenantID, id int32) (*domain.Expense, error) {
	m.mu.Lock()
	m.LockedReads = append(m.LockedReads, id)
	m.mu.Unlock()
	return m.GetByID(ctx, tenantID, id)
}

// Update replaces an expense
func (m *MockExpenseRepository) Update(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	if m.UpdateFn != nil {
		if err := m.UpdateFn(ctx, expense); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.Expenses[expense.ID]
	if !ok || current.TenantID != expense.TenantID {
		return nil, domain.ErrExpenseNotFound
	}
	previous := *current
	*current = *expense
	current.UpdatedAt = time.Now().UTC()

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		*current = previous
	})

	copied := *current
	return &copied, nil
}

// Delete removes an expense
func (m *MockExpenseRepository) Delete(ctx context.Context, tenantID, id int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.Expenses[id]
	if !ok || current.TenantID != tenantID {
		return domain.ErrExpenseNotFound
	}
	delete(m.Expenses, id)
	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Expenses[id] = current
	})
	return nil
}

// ListByDateRange returns expenses with start <= date < end ordered by date
func (m *MockExpenseRepository) ListByDateRange(ctx context.Context, tenantID int32, start, end time.Time) ([]*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Expense
	for _, e := range m.Expenses {
		if e.TenantID == tenantID && !e.Date.Before(start) && e.Date.Before(end) {
			copied := *e
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// SumByDateRange sums expense amounts with start <= date < end
func (m *MockExpenseRepository) SumByDateRange(ctx context.Context, tenantID int32, start, end time.Time) (decimal.Decimal, error) {
	expenses, err := m.ListByDateRange(ctx, tenantID, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total, nil
}

// MockClosingRepository is a mock implementation of domain.ClosingRepository
type MockClosingRepository struct {
	Closings map[int32]*domain.ClosingRecord
	NextID   int32
	mu       sync.Mutex
}

// NewMockClosingRepository creates a new MockClosingRepository
func NewMockClosingRepository() *MockClosingRepository {
	return &MockClosingRepository{
		Closings: make(map[int32]*domain.ClosingRecord),
		NextID:   1,
	}
}

// AddClosing adds a closing to the mock repository (helper for tests)
func (m *MockClosingRepository) AddClosing(record *domain.ClosingRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ID == 0 {
		record.ID = m.NextID
	}
	if record.ID >= m.NextID {
		m.NextID = record.ID + 1
	}
	m.Closings[record.ID] = record
}

// CreateDraft inserts a DRAFT record, one per tenant and period
func (m *MockClosingRepository) CreateDraft(ctx context.Context, record *domain.ClosingRecord) (*domain.ClosingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.Closings {
		if existing.TenantID == record.TenantID && existing.Period == record.Period {
			return nil, domain.ErrAlreadyClosed
		}
	}

	stored := *record
	stored.ID = m.NextID
	stored.Status = domain.ClosingStatusDraft
	stored.CreatedAt = time.Now().UTC()
	m.NextID++
	m.Closings[stored.ID] = &stored

	onRollback(ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.Closings, stored.ID)
	})

	copied := stored
	return &copied, nil
}

// GetByID retrieves a closing by ID
func (m *MockClosingRepository) GetByID(ctx context.Context, tenantID, id int32) (*domain.ClosingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Closings[id]; ok && c.TenantID == tenantID {
		copied := *c
		return &copied, nil
	}
	return nil, domain.ErrClosingNotFound
}

// GetByPeriod retrieves the closing of a period
func (m *MockClosingRepository) GetByPeriod(ctx context.Context, tenantID int32, period domain.Period) (*domain.ClosingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Closings {
		if c.TenantID == tenantID && c.Period == period {
			copied := *c
			return &copied, nil
		}
	}
	return nil, domain.ErrClosingNotFound
}

// ListByTenant returns closings newest period first
func (m *MockClosingRepository) ListByTenant(ctx context.Context, tenantID int32) ([]*domain.ClosingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.ClosingRecord
	for _, c := range m.Closings {
		if c.TenantID == tenantID {
			copied := *c
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[j].Period.Start().Before(result[i].Period.Start()) })
	return result, nil
}

// MarkGenerated stores the artifact refs and moves the record to GENERATED
func (m *MockClosingRepository) MarkGenerated(ctx context.Context, tenantID, id int32, artifacts domain.ReportArtifacts, generatedAt time.Time) (*domain.ClosingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Closings[id]
	if !ok || c.TenantID != tenantID {
		return nil, domain.ErrClosingNotFound
	}
	reportRef := artifacts.ReportRef
	c.ReportRef = &reportRef
	c.ReceiptPackageRef = artifacts.ReceiptPackageRef
	c.GeneratedAt = &generatedAt
	c.Status = domain.ClosingStatusGenerated
	copied := *c
	return &copied, nil
}
