package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "u1", "role": "student"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()

	if TokenExpired(signedToken(t, now.Add(time.Hour)), now) {
		t.Fatal("future exp reported as expired")
	}
	if !TokenExpired(signedToken(t, now.Add(-time.Minute)), now) {
		t.Fatal("past exp not reported as expired")
	}
	if TokenExpired(signedToken(t, time.Time{}), now) {
		t.Fatal("token without exp claim should not count as expired")
	}
	if !TokenExpired("", now) {
		t.Fatal("empty token should count as expired")
	}
	if !TokenExpired("not-a-jwt", now) {
		t.Fatal("malformed token should count as expired")
	}
}
