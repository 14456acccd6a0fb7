package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("res-1", "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	resourceID, userID, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "res-1", resourceID)
	require.Equal(t, "user-1", userID)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("res-1", "user-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("res-1", "user-1")
	require.NoError(t, err)

	tampered := "res-2" + strings.TrimPrefix(token, "res-1")
	_, _, _, err = signer.Parse(tampered)
	require.Error(t, err)

	other := NewSignedURLSigner("other", time.Hour)
	_, _, _, err = other.Parse(token)
	require.Error(t, err)

	_, _, err = NewSignedURLSigner("", time.Hour).Generate("res-1", "user-1")
	require.Error(t, err)
}
