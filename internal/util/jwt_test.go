package util

import (
	"testing"
	"time"

	"scorm_lms_backend/internal/model"
)

func testUser() *model.User {
	u := &model.User{
		Name:  "Ada",
		Email: "ada@example.com",
		Role:  model.Student,
	}
	u.ID = 42
	return u
}

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"

	token, err := GenerateJWT(testUser(), secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Role != model.Student {
		t.Errorf("Role = %q, want student", claims.Role)
	}
	if claims.Email != "ada@example.com" {
		t.Errorf("Email = %q", claims.Email)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(testUser(), "0123456789abcdef0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ParseJWT(token, "another-secret-entirely-0000000000"); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	token, err := GenerateJWT(testUser(), "0123456789abcdef0123456789abcdef", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	if _, err := ParseJWT(token, "0123456789abcdef0123456789abcdef"); err == nil {
		t.Error("expected error for expired token")
	}
}
