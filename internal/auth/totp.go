package auth

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

const Issuer = "budgetcal"

// GenerateTOTP enrols an account in the second factor. It returns the shared
// secret and the otpauth URL to load into an authenticator app.
func GenerateTOTP(email string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      Issuer,
		AccountName: email,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// VerifyTOTP checks code against secret at time t, allowing one step of skew.
func VerifyTOTP(secret, code string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	return err == nil && ok
}
