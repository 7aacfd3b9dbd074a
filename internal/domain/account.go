package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind identifies one of a tenant's fund accounts
type AccountKind string

const (
	AccountOperating  AccountKind = "operating"
	AccountReserve    AccountKind = "reserve"
	AccountMajorWorks AccountKind = "major_works"
)

// AccountKinds is the closed set of fund account kinds
var AccountKinds = []AccountKind{AccountOperating, AccountReserve, AccountMajorWorks}

// Valid reports whether k is a known account kind
func (k AccountKind) Valid() bool {
	for _, known := range AccountKinds {
		if k == known {
			return true
		}
	}
	return false
}

// LockRank is the position of k in AccountKinds. Postings touching several
// accounts in one transaction apply them in ascending rank.
func (k AccountKind) LockRank() int {
	for i, known := range AccountKinds {
		if k == known {
			return i
		}
	}
	return len(AccountKinds)
}

// MoneyPlaces is the number of decimal places money columns store
const MoneyPlaces = 2

// ValidMoneyScale reports whether d has no digits beyond the cent
func ValidMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

// ParseAccountKind validates a raw account kind
func ParseAccountKind(s string) (AccountKind, error) {
	k := AccountKind(s)
	if !k.Valid() {
		return "", ErrInvalidAccountKind
	}
	return k, nil
}

// FundAccount is a named balance held by a tenant.
// Balance only changes through postings.
type FundAccount struct {
	TenantID  int32           `json:"tenantId"`
	Kind      AccountKind     `json:"kind"`
	Balance   decimal.Decimal `json:"balance"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MovementSource names what caused a posting
type MovementSource string

const (
	SourceManual   MovementSource = "manual"
	SourceTransfer MovementSource = "transfer"
	SourceFee      MovementSource = "fee_payment"
	SourceExpense  MovementSource = "expense"
)

// Movement is an append-only record of one posting
type Movement struct {
	ID            int64           `json:"id"`
	TenantID      int32           `json:"tenantId"`
	AccountKind   AccountKind     `json:"accountKind"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Description   string          `json:"description"`
	Actor         string          `json:"actor"`
	SourceType    MovementSource  `json:"sourceType"`
	SourceID      *int32          `json:"sourceId,omitempty"`
	CorrelationID uuid.UUID       `json:"correlationId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Posting is a signed balance change requested against one account.
// Positive amounts are credits, negative amounts are debits.
type Posting struct {
	TenantID       int32
	Kind           AccountKind
	Amount         decimal.Decimal
	Description    string
	Actor          string
	SourceType     MovementSource
	SourceID       *int32
	AllowOverdraft bool
}

type FundAccountRepository interface {
	// ApplyPosting adds amount to the balance in a single atomic statement,
	// creating the account with a zero balance when absent. Returns
	// ErrInsufficientFunds if the result would be negative and overdraft is not allowed.
	ApplyPosting(ctx context.Context, tenantID int32, kind AccountKind, amount decimal.Decimal, allowOverdraft bool) (*FundAccount, error)
	Get(ctx context.Context, tenantID int32, kind AccountKind) (*FundAccount, error)
	ListByTenant(ctx context.Context, tenantID int32) ([]*FundAccount, error)
	SumBalances(ctx context.Context, tenantID int32) (decimal.Decimal, error)
	SetActive(ctx context.Context, tenantID int32, kind AccountKind, active bool) error
}

type MovementRepository interface {
	Append(ctx context.Context, m *Movement) (*Movement, error)
	ListByTenant(ctx context.Context, tenantID int32, from, to time.Time) ([]*Movement, error)
	SumByTenant(ctx context.Context, tenantID int32) (decimal.Decimal, error)
}
