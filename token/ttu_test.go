package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString error = %v", err)
	}
	return s
}

func TestJWTExpTTU(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	explicit := now.Add(10 * time.Minute)
	claimExp := now.Add(20 * time.Minute)

	ttu := JWTExpTTU(time.Hour)

	tests := []struct {
		name  string
		value any
		want  time.Time
	}{
		{
			name:  "entry expiry wins",
			value: &Entry{Token: signedJWT(t, jwt.MapClaims{"exp": claimExp.Unix()}), ExpiresAt: explicit},
			want:  explicit,
		},
		{
			name:  "exp claim when entry has no expiry",
			value: &Entry{Token: signedJWT(t, jwt.MapClaims{"exp": claimExp.Unix()})},
			want:  time.Unix(claimExp.Unix(), 0),
		},
		{
			name:  "raw token string",
			value: signedJWT(t, jwt.MapClaims{"exp": claimExp.Unix()}),
			want:  time.Unix(claimExp.Unix(), 0),
		},
		{
			name:  "opaque token falls back",
			value: &Entry{Token: "not-a-jwt"},
			want:  now.Add(time.Hour),
		},
		{
			name:  "token without exp claim falls back",
			value: &Entry{Token: signedJWT(t, jwt.MapClaims{"sub": "x"})},
			want:  now.Add(time.Hour),
		},
		{
			name:  "unexpected value falls back",
			value: 42,
			want:  now.Add(time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ttu("k", tt.value, now)
			if !got.Equal(tt.want) {
				t.Errorf("ttu = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJWTExpTTU_DefaultFallback(t *testing.T) {
	now := time.Now()
	ttu := JWTExpTTU(0)

	got := ttu("k", "opaque", now)
	if !got.Equal(now.Add(DefaultFallbackTTL)) {
		t.Errorf("ttu = %v, want now+DefaultFallbackTTL", got)
	}
}

func TestDecodePayload(t *testing.T) {
	tok := signedJWT(t, jwt.MapClaims{"sub": "tester", "exp": float64(4102444800)})

	payload, err := DecodePayload(tok)
	if err != nil {
		t.Fatalf("DecodePayload error = %v", err)
	}
	if payload["sub"] != "tester" {
		t.Errorf("sub = %v, want tester", payload["sub"])
	}

	if _, err := DecodePayload("garbage"); err == nil {
		t.Error("DecodePayload on garbage succeeded")
	}
}

func TestEntry_WithoutRefreshToken(t *testing.T) {
	e := &Entry{Token: "t", RefreshToken: "r"}
	stripped := e.WithoutRefreshToken()

	if stripped.RefreshToken != "" {
		t.Error("refresh token not stripped")
	}
	if stripped.Token != "t" {
		t.Error("token lost while stripping")
	}
	if e.RefreshToken != "r" {
		t.Error("original entry mutated")
	}
}
