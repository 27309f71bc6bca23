package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/packfinderz-identity/api/middleware"
	"github.com/angelmondragon/packfinderz-identity/internal/auth"
	"github.com/angelmondragon/packfinderz-identity/internal/users"
	pkgAuth "github.com/angelmondragon/packfinderz-identity/pkg/auth"
	"github.com/angelmondragon/packfinderz-identity/pkg/db/models"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	"github.com/angelmondragon/packfinderz-identity/pkg/pagination"
	"github.com/google/uuid"
)

type stubAuthService struct {
	result   *auth.AuthResult
	tokens   *auth.TokenPair
	err      error
	sessions int

	lastRegister auth.RegisterRequest
	lastLogout   string
	resetEmail   string
}

func (s *stubAuthService) Register(_ context.Context, req auth.RegisterRequest) (*auth.AuthResult, error) {
	s.lastRegister = req
	return s.result, s.err
}

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.AuthResult, error) {
	return s.result, s.err
}

func (s *stubAuthService) GenerateTokens(context.Context, *models.User) (*auth.TokenPair, error) {
	return s.tokens, s.err
}

func (s *stubAuthService) VerifyToken(context.Context, string) (*pkgAuth.Claims, error) {
	return nil, s.err
}

func (s *stubAuthService) RefreshToken(context.Context, string) (*auth.TokenPair, error) {
	return s.tokens, s.err
}

func (s *stubAuthService) Logout(_ context.Context, userID uuid.UUID, sessionID string) error {
	s.lastLogout = userID.String() + "/" + sessionID
	return s.err
}

func (s *stubAuthService) LogoutAll(context.Context, uuid.UUID) (int, error) {
	return s.sessions, s.err
}

func (s *stubAuthService) RequestPasswordReset(_ context.Context, email string) error {
	s.resetEmail = email
	return s.err
}

func (s *stubAuthService) ResetPassword(context.Context, string, string) error {
	return s.err
}

func (s *stubAuthService) ChangePassword(context.Context, uuid.UUID, string, string) error {
	return s.err
}

func (s *stubAuthService) GetActiveSessionsCount(context.Context, uuid.UUID) (int, error) {
	return s.sessions, s.err
}

func (s *stubAuthService) Drain(context.Context) error { return nil }

type stubUserService struct {
	user  *users.UserDTO
	list  *users.UserList
	stats users.Stats
	err   error

	lastID    string
	lastActor users.Actor
	lastRole  *enums.UserRole
	lastPage  pagination.Params
	lastQuery string
}

func (s *stubUserService) GetUser(_ context.Context, id string) (*users.UserDTO, error) {
	s.lastID = id
	return s.user, s.err
}

func (s *stubUserService) GetUserWithProfile(_ context.Context, id string) (*users.UserDTO, error) {
	s.lastID = id
	return s.user, s.err
}

func (s *stubUserService) UpdateUser(_ context.Context, actor users.Actor, id string, _ users.UserUpdate) (*users.UserDTO, error) {
	s.lastActor, s.lastID = actor, id
	return s.user, s.err
}

func (s *stubUserService) UpdateProfile(_ context.Context, id string, _ users.ProfileUpdate) (*users.UserDTO, error) {
	s.lastID = id
	return s.user, s.err
}

func (s *stubUserService) DeleteUser(_ context.Context, id string) error {
	s.lastID = id
	return s.err
}

func (s *stubUserService) ListUsers(_ context.Context, role *enums.UserRole, page pagination.Params) (*users.UserList, error) {
	s.lastRole, s.lastPage = role, page
	return s.list, s.err
}

func (s *stubUserService) SearchUsers(_ context.Context, query string, page pagination.Params) (*users.UserList, error) {
	s.lastQuery, s.lastPage = query, page
	return s.list, s.err
}

func (s *stubUserService) VerifyEmail(_ context.Context, id string) (*users.UserDTO, error) {
	s.lastID = id
	return s.user, s.err
}

func (s *stubUserService) GetStats(context.Context) (users.Stats, error) {
	return s.stats, s.err
}

func withPrincipal(req *http.Request, role enums.UserRole) (*http.Request, middleware.Principal) {
	p := middleware.Principal{UserID: uuid.New(), Email: "caller@example.com", Role: role, SessionID: "sess-1"}
	return req.WithContext(middleware.WithPrincipal(req.Context(), p)), p
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, resp.Body.String())
	}
	return env
}
