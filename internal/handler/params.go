package handler

import (
	"strconv"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func parseIDParam(c echo.Context, name string) (int32, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

// parsePeriodQuery reads ?period=YYYY-MM, defaulting to the current period
func parsePeriodQuery(c echo.Context) (domain.Period, error) {
	raw := c.QueryParam("period")
	if raw == "" {
		return domain.PeriodOf(time.Now()), nil
	}
	return domain.ParsePeriod(raw)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func invalidField(c echo.Context, field, message string) error {
	return NewValidationError(c, "Validation failed", []ValidationError{
		{Field: field, Message: message},
	})
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
