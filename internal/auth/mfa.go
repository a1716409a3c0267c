package auth

import (
	"github.com/pquerna/otp/totp"
)

// MFAVerifier checks a one-time code against a user's stored MFA key.
// Handlers depend on the interface so login tests can stub the clock-sensitive
// TOTP math.
type MFAVerifier interface {
	VerifyCode(mfaKey, code string) bool
}

// TOTPVerifier validates standard 30-second 6-digit TOTP codes
type TOTPVerifier struct{}

// VerifyCode checks the code against the base32 secret. An empty stored key
// means MFA was never provisioned and every code is rejected.
func (TOTPVerifier) VerifyCode(mfaKey, code string) bool {
	if mfaKey == "" {
		return false
	}
	return totp.Validate(code, mfaKey)
}
