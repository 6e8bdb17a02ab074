package utils

import (
	"testing"
	"time"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
)

func TestGenerateAndValidateToken(t *testing.T) {
	user := &models.User{ProviderID: 4, Role: models.UserRoleScheduler}
	user.ID = 9

	token, err := GenerateToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateToken(token, "secret")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != 9 || claims.ProviderID != 4 || claims.Role != "scheduler" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	user := &models.User{ProviderID: 1}
	user.ID = 1

	token, err := GenerateToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(token, "other"); err == nil {
		t.Fatalf("expected signature error")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	user := &models.User{ProviderID: 1}
	user.ID = 1

	token, err := GenerateToken(user, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(token, "secret"); err == nil {
		t.Fatalf("expected expiry error")
	}
}
