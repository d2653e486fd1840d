package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(accessTTL time.Duration) *Service {
	return NewService(Config{
		Secret:     "test-secret",
		AccessTTL:  accessTTL,
		RefreshTTL: time.Hour,
	}, nil)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	service := newTestService(time.Minute)

	token, err := service.IssueAccessToken("user-1", "alice", "analyst")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "analyst", claims.Role)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, err := newTestService(time.Minute).IssueAccessToken("user-1", "alice", "analyst")
	require.NoError(t, err)

	other := NewService(Config{Secret: "different-secret", AccessTTL: time.Minute}, nil)
	_, err = other.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := newTestService(-time.Minute)

	token, err := service.IssueAccessToken("user-1", "alice", "analyst")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	_, err := newTestService(time.Minute).ValidateAccessToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	service := newTestService(time.Minute)

	hash, err := service.HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	assert.NoError(t, service.VerifyPassword(hash, "hunter2"))
	assert.ErrorIs(t, service.VerifyPassword(hash, "wrong"), ErrInvalidCredentials)
}
