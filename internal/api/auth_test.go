package api

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"consensus-trading-bot/config"
)

func testAuth(t *testing.T) *AuthManager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return NewAuthManager(config.AuthConfig{
		Enabled:       true,
		JWTSecret:     "test-secret",
		APITokenHash:  string(hash),
		TokenDuration: time.Hour,
	})
}

func TestLoginRoundTrip(t *testing.T) {
	m := testAuth(t)

	token, err := m.Login("operator-token")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := m.Validate(token); err != nil {
		t.Errorf("Validate rejected a fresh token: %v", err)
	}
}

func TestLoginWrongToken(t *testing.T) {
	m := testAuth(t)
	if _, err := m.Login("wrong"); err == nil {
		t.Error("wrong operator token accepted")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	m := testAuth(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a jwt", "garbage"},
		{"wrong secret", mustSign(t, "other-secret")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Validate(tt.token); err == nil {
				t.Error("invalid token accepted")
			}
		})
	}
}

func mustSign(t *testing.T, secret string) string {
	t.Helper()
	other := NewAuthManager(config.AuthConfig{
		JWTSecret:     secret,
		TokenDuration: time.Hour,
	})
	hash, _ := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	other.tokenHash = string(hash)
	token, err := other.Login("x")
	if err != nil {
		t.Fatal(err)
	}
	return token
}
