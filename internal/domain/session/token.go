package session

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Fingerprint returns a short, non-reversible tag for a token so logs can
// correlate sessions without ever carrying the credential itself.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(token), 16)
}

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying its signature. The backend remains the authority; the value is
// only used to skip identity calls that are certain to fail.
// ok is false when the token is not a JWT or carries no exp claim.
func AccessTokenExpiry(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
