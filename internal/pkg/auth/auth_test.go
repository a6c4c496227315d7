package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	ok, err := VerifyPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong-pass")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordUniqueSalt(t *testing.T) {
	h1, err := HashPassword("same-pass")
	require.NoError(t, err)
	h2, err := HashPassword("same-pass")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	_, err := VerifyPassword("not-base64!!!", "pass")
	assert.Error(t, err)

	_, err = VerifyPassword("c2hvcnQ=", "pass")
	assert.Error(t, err)
}

func TestIssueAndParseToken(t *testing.T) {
	now := time.Now()
	token, err := IssueToken("user@test.com", now)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user@test.com", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(AccessTokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken("user@test.com", time.Now().Add(-3*time.Hour))
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Now()
	token, err := IssueToken("user@test.com", now)
	require.NoError(t, err)
	claims, err := ParseToken(token)
	require.NoError(t, err)

	assert.False(t, claims.NeedsRefresh(now))
	assert.True(t, claims.NeedsRefresh(now.Add(AccessTokenTTL-time.Minute)))
}
