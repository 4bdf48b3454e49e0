package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/tradehub/internal/config"
)

func newManager(adminID int64) *TokenManager {
	return NewTokenManager(config.Config{
		Auth: config.Auth{
			JWTSecret:   "test-secret",
			TokenTTL:    time.Hour,
			AdminUserID: adminID,
		},
	})
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newManager(0)

	token, err := m.Issue(42)
	require.NoError(t, err)

	actor, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), actor.ID)
	assert.False(t, actor.Admin)
}

func TestAdminCapabilityResolution(t *testing.T) {
	m := newManager(7)

	assert.True(t, m.Resolve(7).Admin)
	assert.False(t, m.Resolve(8).Admin)

	// Admin id zero never grants the capability.
	assert.False(t, newManager(0).Resolve(0).Admin)
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	token, err := newManager(0).Issue(42)
	require.NoError(t, err)

	other := NewTokenManager(config.Config{
		Auth: config.Auth{JWTSecret: "different-secret", TokenTTL: time.Hour},
	})
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, err := newManager(0).Verify("not.a.token")
	require.Error(t, err)
}
