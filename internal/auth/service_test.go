package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestIssueAndValidateAccessToken(t *testing.T) {
	svc := NewService("secret")

	token, err := svc.IssueAccessToken("user-9")
	if err != nil || token == "" {
		t.Fatalf("issue: %v", err)
	}
	userID, err := svc.ValidateAccessToken(token)
	if err != nil || userID != "user-9" {
		t.Fatalf("validate: %q %v", userID, err)
	}

	if _, err := svc.IssueAccessToken(""); err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if _, err := svc.ValidateAccessToken("not-a-token"); err == nil {
		t.Fatalf("expected error for garbage token")
	}
}

func TestVerifyRoute(t *testing.T) {
	svc := NewService("secret")
	app := fiber.New()
	RegisterRoutes(app.Group("/auth"), svc)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized without token")
	}

	token, _ := svc.IssueAccessToken("user-1")
	req := httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/jwt/verify", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized for broken token")
	}
}
