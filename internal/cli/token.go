package cli

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenWarnWindow is how close to expiry a token triggers a warning.
const tokenWarnWindow = 10 * time.Minute

// TokenFreshness classifies a stored access token by its exp claim.
type TokenFreshness int

const (
	// TokenOK means the token is valid beyond the warning window, or
	// carries no exp claim to judge by.
	TokenOK TokenFreshness = iota
	// TokenExpiringSoon means the token expires within the warning window.
	TokenExpiringSoon
	// TokenExpired means the token's exp claim is in the past.
	TokenExpired
)

// CheckTokenFreshness inspects the token's exp claim without verifying the
// signature; the relay is the authority on validity, this is only an early
// heads-up before connecting.
func CheckTokenFreshness(token string) TokenFreshness {
	return checkTokenFreshnessAt(token, time.Now())
}

func checkTokenFreshnessAt(token string, now time.Time) TokenFreshness {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return TokenOK
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return TokenOK
	}
	switch {
	case exp.Time.Before(now):
		return TokenExpired
	case exp.Time.Sub(now) <= tokenWarnWindow:
		return TokenExpiringSoon
	}
	return TokenOK
}
