package crypto

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPasswordWithCost("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if !VerifyPassword(hash, "secret") {
		t.Fatal("expected password verification to succeed")
	}

	if VerifyPassword(hash, "incorrect") {
		t.Fatal("expected password verification to fail")
	}
}

func TestHashPasswordWithCostFallsBackOnInvalidCost(t *testing.T) {
	hash, err := HashPasswordWithCost("secret", 99)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost error: %v", err)
	}
	if cost != DefaultPasswordCost {
		t.Fatalf("expected cost %d, got %d", DefaultPasswordCost, cost)
	}
}

func TestGenerateToken(t *testing.T) {
	first, err := GenerateToken(40)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := GenerateToken(40)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	// 40 random bytes encode to 54 raw base64url characters.
	if len(first) != 54 {
		t.Fatalf("expected 54 characters, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected tokens to differ")
	}

	if _, err := GenerateToken(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestHashToken(t *testing.T) {
	hash := HashToken("abc")
	if hash != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected digest %s", hash)
	}
	if !TokenMatches("abc", hash) {
		t.Fatal("expected token to match its own hash")
	}
	if TokenMatches("abd", hash) {
		t.Fatal("expected different token not to match")
	}
}
