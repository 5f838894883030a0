package auth_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/kdotgoat/toms-api/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	staffID := uuid.New()

	token, err := auth.GenerateToken(secret, staffID, "STAFF", "0712345678", "Amina", "Odhiambo")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.StaffID != staffID {
		t.Errorf("staff ID: got %v, want %v", claims.StaffID, staffID)
	}
	if claims.Role != "STAFF" {
		t.Errorf("role: got %v, want STAFF", claims.Role)
	}
	if claims.PhoneNumber != "0712345678" {
		t.Errorf("phone: got %v, want 0712345678", claims.PhoneNumber)
	}
	if claims.FirstName != "Amina" || claims.LastName != "Odhiambo" {
		t.Errorf("name: got %v %v, want Amina Odhiambo", claims.FirstName, claims.LastName)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), "STAFF", "0712345678", "Amina", "Odhiambo")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}
