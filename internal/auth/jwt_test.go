package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/example/ride-hail/internal/apperr"
	"github.com/example/ride-hail/internal/models"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, err := m.Issue("acct-1", models.RoleCaptain)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "acct-1" || claims.Role != models.RoleCaptain {
		t.Fatalf("wrong claims: %+v", claims)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	m := NewManager("test-secret", time.Hour)
	token, _ := m.Issue("acct-1", models.RoleRider)

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := m.Verify(tampered); apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _ := NewManager("secret-a", time.Hour).Issue("acct-1", models.RoleRider)
	if _, err := NewManager("secret-b", time.Hour).Verify(token); apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	m := NewManager("test-secret", -time.Minute)
	token, _ := m.Issue("acct-1", models.RoleRider)
	if _, err := m.Verify(token); apperr.KindOf(err) != apperr.KindAuth {
		t.Fatalf("expected auth error for expired token, got %v", err)
	}
}
