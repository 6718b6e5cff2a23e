package utils

import (
	"testing"
	"time"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("user-1", "admin", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ValidateJWT(token, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Issuer != "legal-assistant-platform" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT("user-1", "viewer", "secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateJWT(token, "other-secret"); err == nil {
		t.Fatal("expected error for a token signed with a different secret")
	}
}

func TestValidateJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT("user-1", "viewer", "secret", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ValidateJWT(token, "secret"); err == nil {
		t.Fatal("expected error for an expired token")
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":  "abc",
		"bearer abc":  "",
		"abc":         "",
		"":            "",
		"Bearer":      "",
		"Bearer a b":  "",
	}
	for in, want := range cases {
		if got := ExtractTokenFromHeader(in); got != want {
			t.Errorf("ExtractTokenFromHeader(%q) = %q, want %q", in, got, want)
		}
	}
}
