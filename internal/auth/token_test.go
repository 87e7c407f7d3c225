package auth

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("acc-1", "jdoe01", "Student", "sess-token-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "acc-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.UserID != "jdoe01" {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
	if claims.Role != "student" {
		t.Fatalf("role was not normalized: %s", claims.Role)
	}
	if claims.SessionToken != "sess-token-1" {
		t.Fatalf("unexpected session token: %s", claims.SessionToken)
	}
}

func TestGenerateTokenRequiresFields(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	if _, err := GenerateToken("", "jdoe01", "student", "tok", time.Hour); err == nil {
		t.Fatal("expected error for empty account id")
	}
	if _, err := GenerateToken("acc-1", "jdoe01", "student", "", time.Hour); err == nil {
		t.Fatal("expected error for empty session token")
	}
	if _, err := GenerateToken("acc-1", "jdoe01", "student", "tok", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestParseExpiredToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("acc-1", "jdoe01", "student", "tok", time.Nanosecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseTamperedToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("acc-1", "jdoe01", "student", "tok", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Setenv(secretEnvVariable, "other-secret")
	ResetSecretForTests()
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("acc-1", "jdoe01", "student", "tok", time.Hour); err == nil {
		t.Fatal("expected error when secret is not configured")
	}
}

func TestContextHelpers(t *testing.T) {
	p := Principal{AccountID: "acc-1", UserID: "jdoe01", Role: "admin", SessionToken: "tok"}
	ctx := ContextWithPrincipal(context.Background(), p)

	got, ok := PrincipalFromContext(ctx)
	if !ok || got != p {
		t.Fatalf("unexpected principal: %+v ok=%v", got, ok)
	}
	if !got.IsAdmin() {
		t.Fatal("expected admin principal")
	}
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal in fresh context")
	}

	ctx = ContextWithToken(ctx, "raw-token")
	raw, ok := TokenFromContext(ctx)
	if !ok || raw != "raw-token" {
		t.Fatalf("unexpected token: %q ok=%v", raw, ok)
	}
}
