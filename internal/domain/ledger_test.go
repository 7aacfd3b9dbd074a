package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestAccountKindValid(t *testing.T) {
	tests := []struct {
		kind AccountKind
		want bool
	}{
		{AccountOperating, true},
		{AccountReserve, true},
		{AccountMajorWorks, true},
		{AccountKind("savings"), false},
		{AccountKind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidMoneyScale(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"100", true},
		{"100.5", true},
		{"100.05", true},
		{"100.0500", true},
		{"-0.01", true},
		{"0.004", false},
		{"100.005", false},
		{"-10.125", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			if got := ValidMoneyScale(decimal.RequireFromString(tt.amount)); got != tt.want {
				t.Errorf("ValidMoneyScale(%s) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}

func TestExpenseValidate(t *testing.T) {
	base := func() *Expense {
		return &Expense{
			TenantID:    1,
			Category:    "Maintenance",
			Amount:      decimal.NewFromInt(200),
			Date:        time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
			AccountKind: AccountOperating,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("expected valid expense, got %v", err)
	}

	zero := base()
	zero.Amount = decimal.Zero
	if err := zero.Validate(); !errors.Is(err, ErrAmountInvalid) {
		t.Errorf("zero amount error = %v, want ErrAmountInvalid", err)
	}

	subCent := base()
	subCent.Amount = decimal.RequireFromString("200.005")
	if err := subCent.Validate(); !errors.Is(err, ErrAmountPrecision) {
		t.Errorf("sub-cent amount error = %v, want ErrAmountPrecision", err)
	}

	badKind := base()
	badKind.AccountKind = "petty_cash"
	if err := badKind.Validate(); !errors.Is(err, ErrInvalidAccountKind) {
		t.Errorf("bad kind error = %v, want ErrInvalidAccountKind", err)
	}

	noCategory := base()
	noCategory.Category = ""
	if err := noCategory.Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty category error = %v, want ErrInvalidInput", err)
	}
}

func TestExpenseChangesApply(t *testing.T) {
	original := &Expense{ID: 1, Category: "Cleaning", Amount: decimal.NewFromInt(200), AccountKind: AccountOperating}
	amount := decimal.NewFromInt(50)
	kind := AccountReserve

	updated := ExpenseChanges{Amount: &amount, AccountKind: &kind}.Apply(original)

	if !updated.Amount.Equal(amount) || updated.AccountKind != AccountReserve {
		t.Errorf("Apply() = %+v", updated)
	}
	if !original.Amount.Equal(decimal.NewFromInt(200)) || original.AccountKind != AccountOperating {
		t.Error("Apply() must not mutate the original expense")
	}
	if updated.Category != "Cleaning" {
		t.Errorf("unchanged field altered: %s", updated.Category)
	}
}

func TestNewDraftClosingBalance(t *testing.T) {
	c := NewDraftClosing(1, Period{Year: 2025, Month: 3}, decimal.RequireFromString("1250.50"), decimal.RequireFromString("300.25"))

	if c.Status != ClosingStatusDraft {
		t.Errorf("Status = %s, want DRAFT", c.Status)
	}
	if c.ClosingBalance.StringFixed(2) != "950.25" {
		t.Errorf("ClosingBalance = %s, want 950.25", c.ClosingBalance.StringFixed(2))
	}
}

func TestPackagingPartialFailureMessage(t *testing.T) {
	err := &PackagingPartialFailure{Skipped: []string{"a.jpg", "b.pdf"}}
	want := "receipt package incomplete: 2 receipt(s) skipped (a.jpg, b.pdf)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(errors.Join(ErrStoreUnavailable, errors.New("dial tcp"))) {
		t.Error("expected wrapped ErrStoreUnavailable to be retryable")
	}
	if IsRetryable(ErrInsufficientFunds) {
		t.Error("ledger rule violations must not be retryable")
	}
}
