package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/arvetta/berkas/internal/interfaces"
	"github.com/arvetta/berkas/internal/models"
)

// HMACVerifier validates session tokens minted by the auth collaborator.
// Tokens have the form "userID:hex(hmac-sha256(secret, userID))".
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

var _ interfaces.AuthVerifier = (*HMACVerifier)(nil)

func (v *HMACVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	userID, signature, ok := strings.Cut(token, ":")
	if !ok || userID == "" {
		return "", &models.ProcessError{
			Kind: models.ErrKindValidation,
			Op:   "auth.verify",
			Err:  fmt.Errorf("malformed session token"),
		}
	}
	if !hmac.Equal([]byte(signature), []byte(Sign(string(v.secret), userID))) {
		return "", &models.ProcessError{
			Kind: models.ErrKindValidation,
			Op:   "auth.verify",
			Err:  fmt.Errorf("session token signature mismatch"),
		}
	}
	return userID, nil
}

// Sign produces the signature half of a session token
func Sign(secret, userID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

// TrustedVerifier accepts any non-empty token and treats it as the user
// identity. Used when a fronting proxy has already authenticated the caller,
// mirroring the X-User-ID trust on the HTTP side.
type TrustedVerifier struct{}

var _ interfaces.AuthVerifier = TrustedVerifier{}

func (TrustedVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", &models.ProcessError{
			Kind: models.ErrKindValidation,
			Op:   "auth.verify",
			Err:  fmt.Errorf("empty session token"),
		}
	}
	return token, nil
}

// ForSecret picks the verifier matching the deployment: HMAC when a shared
// secret is configured, proxy trust otherwise.
func ForSecret(secret string) interfaces.AuthVerifier {
	if secret != "" {
		return NewHMACVerifier(secret)
	}
	return TrustedVerifier{}
}
