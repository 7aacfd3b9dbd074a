package handler

import (
	"errors"
	"net/http"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://condo.app/errors/validation"
	ErrorTypeNotFound     = "https://condo.app/errors/not-found"
	ErrorTypeUnauthorized = "https://condo.app/errors/unauthorized"
	ErrorTypeConflict     = "https://condo.app/errors/conflict"
	ErrorTypeRuleViolated = "https://condo.app/errors/ledger-rule"
	ErrorTypeUnavailable  = "https://condo.app/errors/unavailable"
	ErrorTypeInternal     = "https://condo.app/errors/internal"
)

func newProblem(c echo.Context, status int, errType, title, detail string, errs []ValidationError) error {
	return c.JSON(status, ProblemDetails{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errs,
	})
}

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return newProblem(c, http.StatusBadRequest, ErrorTypeValidation, "Validation Error", detail, errors)
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return newProblem(c, http.StatusNotFound, ErrorTypeNotFound, "Not Found", detail, nil)
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return newProblem(c, http.StatusUnauthorized, ErrorTypeUnauthorized, "Unauthorized", detail, nil)
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return newProblem(c, http.StatusConflict, ErrorTypeConflict, "Conflict", detail, nil)
}

// NewUnprocessableError reports a request that is well formed but breaks a ledger rule
func NewUnprocessableError(c echo.Context, detail string) error {
	return newProblem(c, http.StatusUnprocessableEntity, ErrorTypeRuleViolated, "Ledger Rule Violated", detail, nil)
}

// NewServiceUnavailableError creates a 503 response
func NewServiceUnavailableError(c echo.Context, detail string) error {
	return newProblem(c, http.StatusServiceUnavailable, ErrorTypeUnavailable, "Service Unavailable", detail, nil)
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return newProblem(c, http.StatusInternalServerError, ErrorTypeInternal, "Internal Server Error", detail, nil)
}

// respondError maps a service error onto a problem response. Unexpected errors
// are logged with the failed action and hidden from the caller.
func respondError(c echo.Context, err error, action string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, service.ErrReceiptTooLarge),
		errors.Is(err, service.ErrReceiptInvalidFormat),
		errors.Is(err, service.ErrReceiptInvalidData):
		return NewValidationError(c, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return NewNotFoundError(c, err.Error())
	case errors.Is(err, domain.ErrPeriodAlreadyGenerated),
		errors.Is(err, domain.ErrFeeAlreadyExists),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrCannotDeletePaid),
		errors.Is(err, domain.ErrAlreadyClosed):
		return NewConflictError(c, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAccountInactive),
		errors.Is(err, domain.ErrPeriodNotEnded),
		errors.Is(err, domain.ErrNoActiveUnits):
		return NewUnprocessableError(c, err.Error())
	case errors.Is(err, service.ErrReceiptStorageNotConfigured):
		return NewServiceUnavailableError(c, "Receipt uploads are disabled (storage not configured)")
	case domain.IsRetryable(err):
		log.Warn().Err(err).Msg("Store unavailable while trying to " + action)
		return NewServiceUnavailableError(c, "Store unavailable, please retry shortly")
	}

	log.Error().Err(err).Str("path", c.Request().URL.Path).Msg("Failed to " + action)
	return NewInternalError(c, "Failed to "+action)
}
