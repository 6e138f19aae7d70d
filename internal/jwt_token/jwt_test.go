package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "licenseiq/pkg/domain-errors"
)

func newTestService() *JWTService {
	return NewJWTService("test-signing-key", "licenseiq", "licenseiq-api")
}

func Test_GenerateAccessToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("acme", "alice", time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func Test_ValidateToken_ValidToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("acme", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, "alice", claims.ActorID)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	svc := newTestService()

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("acme", "alice", -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	token, err := newTestService().GenerateAccessToken("acme", "alice", time.Hour)
	require.NoError(t, err)

	other := NewJWTService("different-key", "licenseiq", "licenseiq-api")
	_, err = other.ValidateToken(token)
	require.Error(t, err)
}

func Test_ValidateToken_MissingTenant(t *testing.T) {
	svc := newTestService()

	token, err := svc.GenerateAccessToken("", "alice", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
