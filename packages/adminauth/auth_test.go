package adminauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateAndValidateToken(t *testing.T) {
	e := New("test-secret")

	token, err := e.GenerateToken(RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := e.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := New("secret-a")
	verifier := New("secret-b")

	token, err := issuer.GenerateToken(RoleReadonly)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("ValidateToken should reject a token signed with a different secret")
	}
}

func TestMiddlewareRejectsMissingBearer(t *testing.T) {
	e := New("test-secret")
	handler := e.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a valid token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	e := New("test-secret")
	token, _ := e.GenerateToken(RoleReadonly)

	called := false
	protected := RequireRole(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), RoleAdmin)
	handler := e.Middleware(protected)

	req := httptest.NewRequest(http.MethodPut, "/admin/settings/blacklist_threshold", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
	if called {
		t.Error("handler should not run for a readonly caller on an admin-only route")
	}
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	e := New("test-secret")
	token, _ := e.GenerateToken(RoleAdmin)

	called := false
	protected := RequireRole(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), RoleAdmin, RoleReadonly)
	handler := e.Middleware(protected)

	req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if !called {
		t.Error("handler should run for an allowed role")
	}
}
