package security

import (
	"strings"
	"testing"

	"github.com/kzarre/kzarre-backend/pkg/config"
)

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := testPasswordConfig()

	encoded, err := HashPassword("correct horse battery staple", cfg)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format %q", encoded)
	}

	ok, err := VerifyPassword("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = VerifyPassword("wrong password", encoded)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if ok {
		t.Fatalf("mismatched password must not verify")
	}
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	if _, err := HashPassword("", testPasswordConfig()); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, encoded := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=8,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8,t=1,p=1$not-base64!$aGFzaA",
	} {
		if _, err := VerifyPassword("secret", encoded); err == nil {
			t.Fatalf("expected error for hash %q", encoded)
		}
	}
}

func TestGenerateTempPassword(t *testing.T) {
	password, err := GenerateTempPassword(16)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(password) != 16 {
		t.Fatalf("unexpected length %d", len(password))
	}
	if strings.ContainsAny(password, "0O1lI") {
		t.Fatalf("ambiguous characters in %q", password)
	}

	if _, err := GenerateTempPassword(0); err == nil {
		t.Fatalf("expected error for non-positive length")
	}
}
