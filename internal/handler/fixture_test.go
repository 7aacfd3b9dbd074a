package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/dafibh/condo/condo-backend/internal/middleware"
	"github.com/dafibh/condo/condo-backend/internal/service"
	"github.com/dafibh/condo/condo-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testTenantID int32 = 1

// testAPI wires handlers over in-memory repositories
type testAPI struct {
	e        *echo.Echo
	roster   *testutil.MockUnitRoster
	fees     *testutil.MockFeeRepository
	expenses *testutil.MockExpenseRepository
	closings *testutil.MockClosingRepository
	blobs    *testutil.MockBlobStore
	funds    *service.FundService
	fund     *FundHandler
	fee      *FeeHandler
	expense  *ExpenseHandler
	closing  *ClosingHandler
}

func newTestAPI(blobs *testutil.MockBlobStore, linker ArtifactLinker) *testAPI {
	txm := testutil.NewMemoryTxManager()
	tenants := testutil.NewMockTenantRepository()
	tenants.AddTenant(&domain.Tenant{ID: testTenantID, Name: "T1", AdminEmail: "admin@t1.example", AdminAuth0ID: "auth0|t1", Active: true})

	a := &testAPI{
		e:        echo.New(),
		roster:   testutil.NewMockUnitRoster(),
		fees:     testutil.NewMockFeeRepository(),
		expenses: testutil.NewMockExpenseRepository(),
		closings: testutil.NewMockClosingRepository(),
		blobs:    blobs,
	}
	a.e.Validator = NewRequestValidator()

	a.funds = service.NewFundService(txm, testutil.NewMockFundAccountRepository(), testutil.NewMockMovementRepository())
	feeService := service.NewFeeService(txm, a.fees, a.roster, a.funds)

	var store domain.BlobStore
	if blobs != nil {
		store = blobs
	}
	expenseService := service.NewExpenseService(txm, a.expenses, a.funds, store)
	packager := service.NewReportPackager(tenants, a.fees, a.expenses, store, nil, zerolog.Nop(), service.ReportPackagerConfig{
		ReceiptFetchTimeout:   200 * time.Millisecond,
		ReceiptBundleDeadline: time.Second,
	})
	closingService := service.NewClosingService(txm, a.closings, a.fees, a.expenses, packager)

	a.fund = NewFundHandler(a.funds)
	a.fee = NewFeeHandler(feeService)
	a.expense = NewExpenseHandler(expenseService)
	a.closing = NewClosingHandler(closingService, linker)
	return a
}

// call runs handler for a request made by the tenant's administrator.
// params alternates path parameter names and values.
func (a *testAPI) call(t *testing.T, handler echo.HandlerFunc, method, target, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	return a.serve(t, handler, newRequest(method, target, body), testTenantID, params...)
}

func (a *testAPI) serve(t *testing.T, handler echo.HandlerFunc, req *http.Request, tenantID int32, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c := a.e.NewContext(req, rec)
	if len(params) > 0 {
		var names, values []string
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	setupTenantContext(c, "auth0|t1", "admin@t1.example", tenantID)

	require.NoError(t, handler(c))
	return rec
}

// seed credits an account with a manual posting
func (a *testAPI) seed(t *testing.T, kind domain.AccountKind, amount string) {
	t.Helper()
	_, err := a.funds.Post(context.Background(), domain.Posting{
		TenantID:    testTenantID,
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		Description: "Opening balance",
		Actor:       "test",
		SourceType:  domain.SourceManual,
	})
	require.NoError(t, err)
}

// setupTenantContext places validated claims and a tenant on the request
// the way the auth middleware does. A zero tenantID leaves the tenant unset.
func setupTenantContext(c echo.Context, auth0ID, email string, tenantID int32) {
	claims := &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{Subject: auth0ID},
		CustomClaims:     &middleware.CustomClaims{Email: email},
	}
	ctx := context.WithValue(c.Request().Context(), middleware.ClaimsKey, claims)
	ctx = context.WithValue(ctx, middleware.Auth0IDKey, auth0ID)
	if tenantID > 0 {
		ctx = context.WithValue(ctx, middleware.TenantIDKey, tenantID)
	}
	c.SetRequest(c.Request().WithContext(ctx))
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	var p ProblemDetails
	decodeJSON(t, rec, &p)
	return p
}

func newRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	return req
}
