package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonwraymond/memoflight/store"
)

// DefaultFallbackTTL bounds how long an entry without any usable expiry
// information may be served.
const DefaultFallbackTTL = time.Hour

// JWTExpTTU returns a time-to-use function for stores holding token
// entries. The entry's own ExpiresAt wins; otherwise the JWT exp claim is
// read from the token; entries with neither expire fallback after the
// write. Raw token strings are accepted in place of *Entry.
func JWTExpTTU(fallback time.Duration) store.TTU {
	if fallback <= 0 {
		fallback = DefaultFallbackTTL
	}

	return func(_ string, value any, now time.Time) time.Time {
		var tokenString string

		switch v := value.(type) {
		case *Entry:
			if !v.ExpiresAt.IsZero() {
				return v.ExpiresAt
			}
			tokenString = v.Token
		case Entry:
			if !v.ExpiresAt.IsZero() {
				return v.ExpiresAt
			}
			tokenString = v.Token
		case string:
			tokenString = v
		}

		if tokenString != "" {
			claims := jwt.MapClaims{}
			if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err == nil {
				if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
					return exp.Time
				}
			}
		}

		return now.Add(fallback)
	}
}
