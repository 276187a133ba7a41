package security

import "testing"

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a non-empty hash")
	}
	if !VerifyPassword(hash, "correct-horse-battery-staple") {
		t.Fatal("expected the original password to verify")
	}
	if VerifyPassword(hash, "wrong-password") {
		t.Fatal("expected a wrong password to fail verification")
	}
}

func TestHashPasswordProducesDistinctSalts(t *testing.T) {
	h1, err := HashPassword("cassandra")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("cassandra")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected bcrypt to salt each hash distinctly")
	}
}
