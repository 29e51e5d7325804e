package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencampus/registrar-api/internal/models"
	"github.com/opencampus/registrar-api/pkg/config"
	appErrors "github.com/opencampus/registrar-api/pkg/errors"
)

func TestIssueAndValidateToken(t *testing.T) {
	svc := NewIdentityService(config.JWTConfig{Secret: "test-secret", Expiration: time.Hour})
	user := &models.User{ID: "user-1", Role: models.RoleRegistrar, BranchID: "branch-a"}

	token, expiresAt, err := svc.IssueToken(user)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleRegistrar, claims.Role)
	assert.Equal(t, "branch-a", claims.BranchID)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewIdentityService(config.JWTConfig{Secret: "secret-a", Expiration: time.Hour})
	verifier := NewIdentityService(config.JWTConfig{Secret: "secret-b", Expiration: time.Hour})

	token, _, err := issuer.IssueToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewIdentityService(config.JWTConfig{Secret: "test-secret", Expiration: time.Hour})
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.IssueToken(&models.User{ID: "user-1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	require.Error(t, err)
}
