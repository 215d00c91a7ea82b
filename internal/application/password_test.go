package application

import (
	"errors"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	params := Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := CreatePasswordHash("correct horse", params)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}

	if err := VerifyPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to verify, got %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	other, err := CreatePasswordHash("correct horse", params)
	if err != nil {
		t.Fatalf("CreatePasswordHash failed: %v", err)
	}
	if other == hash {
		t.Fatalf("expected random salt to produce distinct hashes")
	}
}

func TestVerifyPassword_MalformedHashes(t *testing.T) {
	t.Parallel()

	tests := map[string]error{
		"plain":                                   ErrInvalidPasswordHash,
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA":  ErrInvalidPasswordHash,
		"$argon2id$v=1$m=1,t=1,p=1$c2FsdA$aGFzaA": ErrIncompatiblePasswordVersion,
		"$argon2id$v=19$garbage$c2FsdA$aGFzaA":    ErrInvalidPasswordHash,
		"$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA":   ErrInvalidPasswordHash,
	}

	for hash, want := range tests {
		hash, want := hash, want
		t.Run(hash, func(t *testing.T) {
			t.Parallel()
			if err := VerifyPassword(hash, "secret"); !errors.Is(err, want) {
				t.Fatalf("VerifyPassword(%q) = %v, want %v", hash, err, want)
			}
		})
	}
}
