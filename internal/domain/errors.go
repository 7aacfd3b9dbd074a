package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")

	ErrTenantNotFound  = fmt.Errorf("tenant %w", ErrNotFound)
	ErrAccountNotFound = fmt.Errorf("fund account %w", ErrNotFound)
	ErrFeeNotFound     = fmt.Errorf("fee %w", ErrNotFound)
	ErrExpenseNotFound = fmt.Errorf("expense %w", ErrNotFound)
	ErrClosingNotFound = fmt.Errorf("closing %w", ErrNotFound)

	ErrInvalidPeriod      = fmt.Errorf("%w: period must be YYYY-MM", ErrInvalidInput)
	ErrInvalidAccountKind = fmt.Errorf("%w: unknown fund account kind", ErrInvalidInput)
	ErrAmountInvalid      = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	ErrAmountPrecision    = fmt.Errorf("%w: amount must have at most two decimal places", ErrInvalidInput)
	ErrSameAccount        = fmt.Errorf("%w: source and destination accounts are the same", ErrInvalidInput)
	ErrInvalidMethod      = fmt.Errorf("%w: unknown payment method", ErrInvalidInput)
)

// Ledger rule violations. These are returned to the caller and never absorbed.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAccountInactive        = errors.New("fund account is inactive")
	ErrPeriodAlreadyGenerated = errors.New("fees already generated for period")
	ErrFeeAlreadyExists       = errors.New("fee already exists for unit and period")
	ErrAlreadyPaid            = errors.New("fee already paid")
	ErrCannotDeletePaid       = errors.New("cannot delete a paid fee")
	ErrAlreadyClosed          = errors.New("period already closed")
	ErrPeriodNotEnded         = errors.New("period has not ended yet")
	ErrNoActiveUnits          = errors.New("tenant has no active units")
)

// Infrastructure errors
var (
	// ErrStoreUnavailable marks connectivity failures that callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrBlobNotFound     = errors.New("blob not found")
	ErrPackagingFailed  = errors.New("report packaging failed")
)

// IsRetryable reports whether err is a transient store failure
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// PackagingPartialFailure lists receipts that could not be bundled.
// It is informational and never fails a closing.
type PackagingPartialFailure struct {
	Skipped []string
}

func (e *PackagingPartialFailure) Error() string {
	return fmt.Sprintf("receipt package incomplete: %d receipt(s) skipped (%s)", len(e.Skipped), strings.Join(e.Skipped, ", "))
}
