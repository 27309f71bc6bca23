package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/packfinderz-identity/internal/auth"
	"github.com/angelmondragon/packfinderz-identity/internal/users"
	pkgAuth "github.com/angelmondragon/packfinderz-identity/pkg/auth"
	"github.com/angelmondragon/packfinderz-identity/pkg/config"
	"github.com/angelmondragon/packfinderz-identity/pkg/db/models"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/angelmondragon/packfinderz-identity/pkg/metrics"
	"github.com/angelmondragon/packfinderz-identity/pkg/pagination"
	"github.com/google/uuid"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryCounters struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memoryCounters) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryCounters) TTL(context.Context, string) (time.Duration, error) {
	return time.Minute, nil
}

// stubAuthService verifies a fixed set of bearer tokens.
type stubAuthService struct {
	tokens map[string]*pkgAuth.Claims
}

func (s stubAuthService) VerifyToken(_ context.Context, token string) (*pkgAuth.Claims, error) {
	if claims, ok := s.tokens[token]; ok {
		return claims, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired token")
}

func (stubAuthService) Register(context.Context, auth.RegisterRequest) (*auth.AuthResult, error) {
	return &auth.AuthResult{User: &users.UserDTO{}, Tokens: &auth.TokenPair{AccessToken: "a"}}, nil
}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.AuthResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func (stubAuthService) GenerateTokens(context.Context, *models.User) (*auth.TokenPair, error) {
	return &auth.TokenPair{}, nil
}

func (stubAuthService) RefreshToken(context.Context, string) (*auth.TokenPair, error) {
	return &auth.TokenPair{}, nil
}

func (stubAuthService) Logout(context.Context, uuid.UUID, string) error { return nil }

func (stubAuthService) LogoutAll(context.Context, uuid.UUID) (int, error) { return 2, nil }

func (stubAuthService) RequestPasswordReset(context.Context, string) error { return nil }

func (stubAuthService) ResetPassword(context.Context, string, string) error { return nil }

func (stubAuthService) ChangePassword(context.Context, uuid.UUID, string, string) error { return nil }

func (stubAuthService) GetActiveSessionsCount(context.Context, uuid.UUID) (int, error) { return 1, nil }

func (stubAuthService) Drain(context.Context) error { return nil }

type stubUserService struct{}

func (stubUserService) GetUser(_ context.Context, id string) (*users.UserDTO, error) {
	return &users.UserDTO{Email: id + "@example.com"}, nil
}

func (stubUserService) GetUserWithProfile(_ context.Context, id string) (*users.UserDTO, error) {
	return &users.UserDTO{Email: id + "@example.com"}, nil
}

func (stubUserService) UpdateUser(context.Context, users.Actor, string, users.UserUpdate) (*users.UserDTO, error) {
	return &users.UserDTO{}, nil
}

func (stubUserService) UpdateProfile(context.Context, string, users.ProfileUpdate) (*users.UserDTO, error) {
	return &users.UserDTO{}, nil
}

func (stubUserService) DeleteUser(context.Context, string) error { return nil }

func (stubUserService) ListUsers(context.Context, *enums.UserRole, pagination.Params) (*users.UserList, error) {
	return &users.UserList{Users: []users.UserDTO{}}, nil
}

func (stubUserService) SearchUsers(context.Context, string, pagination.Params) (*users.UserList, error) {
	return &users.UserList{Users: []users.UserDTO{}}, nil
}

func (stubUserService) VerifyEmail(context.Context, string) (*users.UserDTO, error) {
	return &users.UserDTO{EmailVerified: true}, nil
}

func (stubUserService) GetStats(context.Context) (users.Stats, error) {
	return users.Stats{}, nil
}

type fixture struct {
	handler http.Handler
	buyer   uuid.UUID
}

func newFixture(t *testing.T, maxRequests int) fixture {
	t.Helper()
	buyer := uuid.New()
	claims := func(id uuid.UUID, role enums.UserRole) *pkgAuth.Claims {
		return &pkgAuth.Claims{UserID: id, Email: string(role) + "@example.com", Role: role, Type: enums.TokenTypeAccess, SessionID: "s-" + string(role)}
	}
	authSvc := stubAuthService{tokens: map[string]*pkgAuth.Claims{
		"admin-token":  claims(uuid.New(), enums.UserRoleAdmin),
		"seller-token": claims(uuid.New(), enums.UserRoleSeller),
		"buyer-token":  claims(buyer, enums.UserRoleBuyer),
	}}

	cfg := &config.Config{
		App:       config.AppConfig{Env: "test"},
		RateLimit: config.RateLimitConfig{Window: time.Minute, MaxRequests: maxRequests},
		AuthRateLimit: config.AuthRateLimitConfig{
			LoginWindow: time.Minute, LoginIPLimit: 100, LoginEmailLimit: 100,
		},
	}
	reg := prometheus.NewRegistry()
	handler := NewRouter(Deps{
		Config:      cfg,
		Metrics:     metrics.NewAuthMetrics(reg),
		Gatherer:    reg,
		RateLimits:  &memoryCounters{},
		AuthService: authSvc,
		UserService: stubUserService{},
		DB:          stubPinger{},
		Redis:       stubPinger{},
	})
	return fixture{handler: handler, buyer: buyer}
}

func (f fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	f := newFixture(t, 100)

	if resp := f.do(http.MethodGet, "/health/live", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	resp := f.do(http.MethodGet, "/health/ready", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"mongo":"skipped"`) {
		t.Fatalf("expected mongo skipped, got %s", resp.Body.String())
	}

	f.do(http.MethodGet, "/health/live", "", "")
	resp = f.do(http.MethodGet, "/metrics", "", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "identity_http_request_duration_seconds") {
		t.Fatalf("metrics: code=%d body=%s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header on every response")
	}
}

func TestUserRoutesEnforceRoles(t *testing.T) {
	f := newFixture(t, 1000)
	other := uuid.New()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{name: "list anonymous", method: http.MethodGet, path: "/api/v1/users", status: http.StatusUnauthorized},
		{name: "list bad token", method: http.MethodGet, path: "/api/v1/users", token: "forged", status: http.StatusUnauthorized},
		{name: "list buyer", method: http.MethodGet, path: "/api/v1/users", token: "buyer-token", status: http.StatusForbidden},
		{name: "list admin", method: http.MethodGet, path: "/api/v1/users?role=buyer", token: "admin-token", status: http.StatusOK},
		{name: "search seller", method: http.MethodGet, path: "/api/v1/users/search?q=acme", token: "seller-token", status: http.StatusOK},
		{name: "search buyer", method: http.MethodGet, path: "/api/v1/users/search?q=acme", token: "buyer-token", status: http.StatusForbidden},
		{name: "stats seller", method: http.MethodGet, path: "/api/v1/users/stats", token: "seller-token", status: http.StatusForbidden},
		{name: "stats admin", method: http.MethodGet, path: "/api/v1/users/stats", token: "admin-token", status: http.StatusOK},
		{name: "get self", method: http.MethodGet, path: "/api/v1/users/" + f.buyer.String(), token: "buyer-token", status: http.StatusOK},
		{name: "get other", method: http.MethodGet, path: "/api/v1/users/" + other.String(), token: "buyer-token", status: http.StatusForbidden},
		{name: "get other admin", method: http.MethodGet, path: "/api/v1/users/" + other.String(), token: "admin-token", status: http.StatusOK},
		{name: "profile self", method: http.MethodPut, path: "/api/v1/users/" + f.buyer.String() + "/profile", token: "buyer-token", status: http.StatusOK},
		{name: "verify self", method: http.MethodPost, path: "/api/v1/users/" + f.buyer.String() + "/verify-email", token: "buyer-token", status: http.StatusForbidden},
		{name: "delete admin", method: http.MethodDelete, path: "/api/v1/users/" + other.String(), token: "admin-token", status: http.StatusOK},
		{name: "delete self", method: http.MethodDelete, path: "/api/v1/users/" + f.buyer.String(), token: "buyer-token", status: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := ""
			if tc.method == http.MethodPut {
				body = `{"first_name":"Ada"}`
			}
			resp := f.do(tc.method, tc.path, tc.token, body)
			if resp.Code != tc.status {
				t.Fatalf("expected %d got %d (body=%s)", tc.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestAuthRoutes(t *testing.T) {
	f := newFixture(t, 1000)

	if resp := f.do(http.MethodPost, "/api/v1/auth/register", "", `{"email":"new@example.com","password":"Str0ng!Pass"}`); resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201 got %d", resp.Code)
	}
	if resp := f.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"new@example.com","password":"wrong"}`); resp.Code != http.StatusUnauthorized {
		t.Fatalf("login: expected 401 got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/auth/me", "", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("me anonymous: expected 401 got %d", resp.Code)
	}

	resp := f.do(http.MethodPost, "/api/v1/auth/logout-all", "buyer-token", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("logout-all: expected 200 got %d", resp.Code)
	}
	var env struct {
		Data auth.LogoutAllResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data.DevicesLoggedOut != 2 {
		t.Fatalf("unexpected payload %+v", env.Data)
	}
}

func TestAPIRoutesArePrincipalRateLimited(t *testing.T) {
	f := newFixture(t, 2)

	for i := 0; i < 2; i++ {
		if resp := f.do(http.MethodGet, "/api/v1/auth/sessions", "buyer-token", ""); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
	}
	resp := f.do(http.MethodGet, "/api/v1/auth/sessions", "buyer-token", "")
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") != "60" {
		t.Fatalf("unexpected Retry-After %q", resp.Header().Get("Retry-After"))
	}

	// another principal keeps its own window
	if resp := f.do(http.MethodGet, "/api/v1/auth/sessions", "admin-token", ""); resp.Code != http.StatusOK {
		t.Fatalf("admin: expected 200 got %d", resp.Code)
	}
	// health is outside the limited surface
	if resp := f.do(http.MethodGet, "/health/live", "buyer-token", ""); resp.Code != http.StatusOK {
		t.Fatalf("health: expected 200 got %d", resp.Code)
	}
}
