package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	secret := []byte("test-secret")

	token, err := IssueToken(secret, "reader@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := Subject(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", subject)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := IssueToken([]byte("test-secret"), "reader@example.com", time.Hour)
	require.NoError(t, err)

	_, err = Subject([]byte("other-secret"), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "reader@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = Subject(secret, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGarbageTokenRejected(t *testing.T) {
	_, err := Subject([]byte("test-secret"), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptySubjectRejected(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, "", time.Hour)
	require.NoError(t, err)

	_, err = Subject(secret, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
