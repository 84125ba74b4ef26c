package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	maker := NewMaker("secret")

	token, err := maker.GenerateToken("user-1", "user@example.com", true, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserUID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.True(t, claims.Verified)
}

func TestParseToken_WrongSecret(t *testing.T) {
	token, err := NewMaker("secret").GenerateToken("user-1", "user@example.com", true, time.Hour)
	require.NoError(t, err)

	_, err = NewMaker("another-secret").ParseToken(token)
	require.Error(t, err)
}

func TestParseToken_Expired(t *testing.T) {
	maker := NewMaker("secret")
	token, err := maker.GenerateToken("user-1", "user@example.com", true, -time.Minute)
	require.NoError(t, err)

	_, err = maker.ParseToken(token)
	require.Error(t, err)
}

func TestParseToken_Garbage(t *testing.T) {
	_, err := NewMaker("secret").ParseToken("not.a.token")
	require.Error(t, err)
}
