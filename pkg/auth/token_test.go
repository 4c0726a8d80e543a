package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kzarre/kzarre-backend/pkg/config"
)

func jwtTestConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "kzarre",
		ExpirationMinutes: 60,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := jwtTestConfig()
	adminID := uuid.New()
	now := time.Now()

	signed, err := MintAccessToken(cfg, now, AccessTokenPayload{
		AdminID:      adminID,
		Email:        "ops@kzarre.com",
		RoleName:     "manager",
		IsSuperAdmin: false,
		JTI:          "session-1",
	})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.AdminID != adminID {
		t.Fatalf("admin id mismatch")
	}
	if claims.Email != "ops@kzarre.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.RoleName != "manager" {
		t.Fatalf("unexpected role %q", claims.RoleName)
	}
	if claims.ID != "session-1" {
		t.Fatalf("unexpected jti %q", claims.ID)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	now := time.Now()
	payload := AccessTokenPayload{AdminID: uuid.New()}

	if _, err := MintAccessToken(config.JWTConfig{Issuer: "kzarre", ExpirationMinutes: 60}, now, payload); err == nil {
		t.Fatalf("expected error without secret")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "s", ExpirationMinutes: 60}, now, payload); err == nil {
		t.Fatalf("expected error without issuer")
	}
	if _, err := MintAccessToken(jwtTestConfig(), now, AccessTokenPayload{}); err == nil {
		t.Fatalf("expected error without admin id")
	}
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	cfg := jwtTestConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{AdminID: uuid.New()})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatalf("expected signature mismatch error")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	cfg := jwtTestConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{AdminID: uuid.New(), JTI: "stale"})
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatalf("expected expiry error")
	}

	claims, err := ParseAccessTokenAllowExpired(cfg, signed)
	if err != nil {
		t.Fatalf("expired parse should still decode claims: %v", err)
	}
	if claims.ID != "stale" {
		t.Fatalf("unexpected jti %q", claims.ID)
	}
}
