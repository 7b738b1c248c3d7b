package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/models"
)

func TestHMACVerifierAcceptsSignedToken(t *testing.T) {
	v := NewHMACVerifier("topsecret")

	token := "budi:" + Sign("topsecret", "budi")
	userID, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "budi", userID)
}

func TestHMACVerifierRejectsBadTokens(t *testing.T) {
	v := NewHMACVerifier("topsecret")

	cases := []string{
		"",
		"budi",
		"budi:deadbeef",
		"budi:" + Sign("wrongsecret", "budi"),
		":" + Sign("topsecret", ""),
	}
	for _, token := range cases {
		_, err := v.VerifyToken(context.Background(), token)
		require.Error(t, err, "token %q", token)
		assert.Equal(t, models.ErrKindValidation, models.KindOf(err))
	}
}

func TestTrustedVerifierUsesTokenAsIdentity(t *testing.T) {
	userID, err := TrustedVerifier{}.VerifyToken(context.Background(), "siti")
	require.NoError(t, err)
	assert.Equal(t, "siti", userID)

	_, err = TrustedVerifier{}.VerifyToken(context.Background(), "")
	require.Error(t, err)
}

func TestForSecret(t *testing.T) {
	assert.IsType(t, &HMACVerifier{}, ForSecret("s"))
	assert.IsType(t, TrustedVerifier{}, ForSecret(""))
}
