package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, expiresAt, err := issuer.Issue("alice", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, _, err := issuer.Issue("alice", time.Hour)
	require.NoError(t, err)

	_, err = NewTokenIssuer("other-secret").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := issuer.Issue("alice", time.Hour)
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_MissingSecret(t *testing.T) {
	issuer := NewTokenIssuer("")
	_, _, err := issuer.Issue("alice", time.Hour)
	assert.ErrorIs(t, err, ErrMissingKey)
	_, err = issuer.Validate("x")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestTokenIssuer_LinkCodes(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	code, expiresAt, err := issuer.IssueLinkCode("alice", 10*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)

	claims, err := issuer.ValidateLinkCode(code)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = issuer.Validate(code)
	assert.ErrorIs(t, err, ErrInvalidToken)

	token, _, err := issuer.Issue("alice", time.Hour)
	require.NoError(t, err)
	_, err = issuer.ValidateLinkCode(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
