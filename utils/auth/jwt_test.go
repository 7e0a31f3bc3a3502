package auth

import (
	"errors"
	"testing"
	"time"
)

func testManager(expiry time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret",
		Expiry:        expiry,
		RefreshExpiry: 2 * expiry,
		Issuer:        "test-issuer",
	})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := testManager(time.Hour)

	token, jti, err := m.GenerateAccessToken(42, "a@example.com", "TEACHER", 3)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if jti == "" {
		t.Fatal("expected a JTI")
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.AccountID != 42 {
		t.Errorf("expected account 42, got %d", claims.AccountID)
	}
	if claims.Role != "TEACHER" {
		t.Errorf("expected role TEACHER, got %s", claims.Role)
	}
	if claims.TokenType != "access" {
		t.Errorf("expected access token, got %s", claims.TokenType)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("expected token version 3, got %d", claims.TokenVersion)
	}
	if claims.ID != jti {
		t.Errorf("expected JTI %s in claims, got %s", jti, claims.ID)
	}
}

func TestRefreshTokenType(t *testing.T) {
	m := testManager(time.Hour)

	token, _, err := m.GenerateRefreshToken(1, "a@example.com", "STUDENT", 0)
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.TokenType != "refresh" {
		t.Errorf("expected refresh token, got %s", claims.TokenType)
	}
}

func TestExpiredToken(t *testing.T) {
	m := testManager(-time.Minute)

	token, _, err := m.GenerateAccessToken(1, "a@example.com", "STUDENT", 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := testManager(time.Hour)
	other := NewJWTManager(JWTConfig{Secret: "different", Expiry: time.Hour})

	token, _, err := m.GenerateAccessToken(1, "a@example.com", "STUDENT", 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
