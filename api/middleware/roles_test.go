package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func requestAs(role enums.UserRole, id uuid.UUID, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if role == "" {
		return req
	}
	return req.WithContext(WithPrincipal(req.Context(), Principal{UserID: id, Role: role, SessionID: "s"}))
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		guard  func(http.Handler) http.Handler
		role   enums.UserRole
		status int
	}{
		{name: "anonymous", guard: RequireRole(nil, enums.UserRoleSeller), status: http.StatusUnauthorized},
		{name: "matching role", guard: RequireRole(nil, enums.UserRoleSeller), role: enums.UserRoleSeller, status: http.StatusOK},
		{name: "wrong role", guard: RequireRole(nil, enums.UserRoleSeller), role: enums.UserRoleBuyer, status: http.StatusForbidden},
		{name: "admin not implied", guard: RequireRole(nil, enums.UserRoleSeller), role: enums.UserRoleAdmin, status: http.StatusForbidden},
		{name: "admin guard", guard: RequireAdmin(nil), role: enums.UserRoleAdmin, status: http.StatusOK},
		{name: "admin guard buyer", guard: RequireAdmin(nil), role: enums.UserRoleBuyer, status: http.StatusForbidden},
		{name: "admin or seller", guard: RequireAdminOrSeller(nil), role: enums.UserRoleSeller, status: http.StatusOK},
		{name: "admin or seller buyer", guard: RequireAdminOrSeller(nil), role: enums.UserRoleBuyer, status: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			tc.guard(okHandler()).ServeHTTP(resp, requestAs(tc.role, uuid.New(), "/"))
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	owner := uuid.New()
	router := chi.NewRouter()
	router.With(RequireOwnerOrAdmin("id", nil)).Get("/users/{id}", okHandler().ServeHTTP)

	cases := []struct {
		name   string
		role   enums.UserRole
		caller uuid.UUID
		target string
		status int
	}{
		{name: "owner", role: enums.UserRoleBuyer, caller: owner, target: owner.String(), status: http.StatusOK},
		{name: "owner upper case", role: enums.UserRoleBuyer, caller: owner, target: strings.ToUpper(owner.String()), status: http.StatusOK},
		{name: "other user", role: enums.UserRoleSeller, caller: uuid.New(), target: owner.String(), status: http.StatusForbidden},
		{name: "admin", role: enums.UserRoleAdmin, caller: uuid.New(), target: owner.String(), status: http.StatusOK},
		{name: "anonymous", target: owner.String(), status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, requestAs(tc.role, tc.caller, "/users/"+tc.target))
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.Code)
			}
		})
	}
}
