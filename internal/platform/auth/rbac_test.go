package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestAs(userID string, roles ...string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID == "" {
		return req
	}
	return req.WithContext(WithIdentity(context.Background(), userID, "", roles))
}

func TestRequireRole_Allowed(t *testing.T) {
	_, _, err := serve(t, RequireRole(RolePatient), requestAs("u1", RolePatient))
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_AdminSatisfiesAny(t *testing.T) {
	_, _, err := serve(t, RequireRole(RolePatient), requestAs("u1", RoleAdmin))
	if err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	_, _, err := serve(t, RequireRole(RoleStaff), requestAs("u1", RolePatient))
	assertStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_Anonymous(t *testing.T) {
	_, _, err := serve(t, RequireRole(RolePatient), requestAs(""))
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestHasAnyRole(t *testing.T) {
	if HasAnyRole(nil, RolePatient) {
		t.Error("no roles should never match")
	}
	if !HasAnyRole([]string{RoleStaff}, RolePatient, RoleStaff) {
		t.Error("expected staff to match")
	}
	if HasAnyRole([]string{RolePatient}, RoleDoctor) {
		t.Error("patient must not pass a doctor guard")
	}
	if !HasAnyRole([]string{RoleAdmin}) {
		t.Error("admin passes even an empty guard")
	}
}
