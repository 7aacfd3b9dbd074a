package websocket

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTenantLookup struct {
	tenantID int32
	err      error
}

func (m *mockTenantLookup) GetTenantByAuth0ID(ctx context.Context, auth0ID string) (int32, error) {
	return m.tenantID, m.err
}

func TestNewAuth0JWTValidator_Success(t *testing.T) {
	lookup := &mockTenantLookup{tenantID: 1}

	v, err := NewAuth0JWTValidator("test.auth0.com", "https://api.condo.app", lookup)
	require.NoError(t, err)
	assert.NotNil(t, v.validator)
	assert.Equal(t, lookup, v.tenantLookup)
}

func TestAuth0JWTValidator_ValidateToken_InvalidJWT(t *testing.T) {
	v, err := NewAuth0JWTValidator("test.auth0.com", "https://api.condo.app", &mockTenantLookup{tenantID: 1})
	require.NoError(t, err)

	tenantID, err := v.ValidateToken(context.Background(), "invalid-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
	assert.Equal(t, int32(0), tenantID)
}

func TestCustomClaims_Validate(t *testing.T) {
	assert.NoError(t, (&CustomClaims{}).Validate(context.Background()))
}
