package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_GenerateAndValidate(t *testing.T) {
	manager := NewManager("test-secret", time.Hour)

	token, err := manager.Generate("member-1", "session-1", "ada@example.com")
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "member-1", claims.MemberID)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "access", claims.TokenType)
}

func TestManager_RejectsWrongKey(t *testing.T) {
	token, err := NewManager("secret-a", time.Hour).Generate("m", "s", "e@example.com")
	require.NoError(t, err)

	_, err = NewManager("secret-b", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestManager_RejectsExpiredToken(t *testing.T) {
	manager := NewManager("test-secret", -time.Minute)

	token, err := manager.Generate("m", "s", "e@example.com")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestManager_RejectsGarbage(t *testing.T) {
	_, err := NewManager("test-secret", time.Hour).Validate("not-a-token")
	assert.Error(t, err)
}
