package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword_NonDeterministic(t *testing.T) {
	p := "correct horse battery staple"
	h1, err := HashPassword(p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword(p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected different hashes for same password")
	}
}

func TestVerifyPassword(t *testing.T) {
	p := "correct horse battery staple"
	h, err := HashPassword(p)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword(h, p)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = VerifyPassword(h, "wrong password")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	if err := CheckPasswordPolicy("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password: %v", err)
	}
	if err := CheckPasswordPolicy(strings.Repeat("a", MaxPasswordLength+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("long password: %v", err)
	}
	if err := CheckPasswordPolicy("correct horse"); err != nil {
		t.Fatalf("valid password: %v", err)
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5"} {
		if _, err := VerifyPassword(h, "pw"); err == nil {
			t.Fatalf("expected error for hash %q", h)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	current, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if NeedsRehash(current) {
		t.Fatalf("hash with default params should not need rehash")
	}

	weak := defaultArgon2idParams
	weak.iterations = 1
	weak.memory = 8 * 1024
	old, err := hashPasswordWithParams("correct horse", weak)
	if err != nil {
		t.Fatalf("hashPasswordWithParams: %v", err)
	}
	if !NeedsRehash(old) {
		t.Fatalf("hash with weaker params should need rehash")
	}
	if ok, err := VerifyPassword(old, "correct horse"); err != nil || !ok {
		t.Fatalf("old hash must still verify: %v %v", ok, err)
	}
	if !NeedsRehash("garbage") {
		t.Fatalf("unparseable hash should need rehash")
	}
}
