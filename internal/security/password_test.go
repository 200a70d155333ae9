package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestCheckPassword_Bcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}

	if err := CheckPassword(string(hash), "correct horse"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}

	if err := CheckPassword(string(hash), "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashPassword_UsesConfiguredCost(t *testing.T) {
	hash, err := HashPassword("s3cret-value")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if cost != BcryptCost {
		t.Fatalf("expected cost %d, got %d", BcryptCost, cost)
	}
}

func TestArgon2idRoundTrip(t *testing.T) {
	hash, err := Hash(AlgoArgon2id, "tortilla-press-42")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Fatalf("unexpected encoding %q", hash)
	}

	if err := CheckPassword(hash, "tortilla-press-42"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "tortilla-press-43"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	tests := []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=1,t=1$onlyfive",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=65536,t=0,p=2$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=16,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=4294967295,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=65536,t=1000000,p=2$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$a2V5a2V5a2V5a2V5a2V5aw",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$",
		"$2a$10$short",
	}

	for _, hash := range tests {
		if err := CheckPassword(hash, "whatever"); !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("hash %q: expected ErrUnsupportedHash, got %v", hash, err)
		}
	}
}

func TestHash_UnknownAlgorithm(t *testing.T) {
	if _, err := Hash("md5", "x"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}
