package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type selects which token of an issuer is requested.
type Type string

const (
	// TypeAccess requests the access token.
	TypeAccess Type = "access"
	// TypeRefresh requests the refresh token.
	TypeRefresh Type = "refresh"
)

// Entry is one cached token record.
type Entry struct {
	// Token is the raw token string.
	Token string `json:"token"`

	// Payload holds the decoded JWT claims, nil for opaque tokens.
	Payload map[string]any `json:"payload,omitempty"`

	// ExpiresAt is when the token stops being usable.
	ExpiresAt time.Time `json:"expires_at"`

	// RefreshToken accompanies access tokens when the endpoint issued
	// one. Stripped from entries handed to access-token callers.
	RefreshToken string `json:"refresh_token,omitempty"`
}

// WithoutRefreshToken returns a copy of the entry with the refresh token
// removed.
func (e *Entry) WithoutRefreshToken() *Entry {
	cp := *e
	cp.RefreshToken = ""
	return &cp
}

// DecodePayload decodes a JWT's claims without verifying its signature.
// The caller trusts the issuing endpoint; the claims are used only for
// expiry bookkeeping, never for authorization decisions.
func DecodePayload(tokenString string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
