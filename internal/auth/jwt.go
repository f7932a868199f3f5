package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The client cannot verify the backend's signature; it only reads the
// claims to avoid sending a token that is already expired.

// TokenExpired reports whether tokenString is unusable at now. Tokens that
// don't parse count as expired; tokens without an exp claim never expire.
func TokenExpired(tokenString string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return !exp.After(now)
}

// TokenSubject returns the sub claim, the backend's user id.
func TokenSubject(tokenString string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
