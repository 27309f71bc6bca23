package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-identity/internal/users"
	pkgAuth "github.com/angelmondragon/packfinderz-identity/pkg/auth"
	"github.com/angelmondragon/packfinderz-identity/pkg/auth/session"
	"github.com/angelmondragon/packfinderz-identity/pkg/config"
	"github.com/angelmondragon/packfinderz-identity/pkg/db/models"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
	"github.com/angelmondragon/packfinderz-identity/pkg/metrics"
	"github.com/angelmondragon/packfinderz-identity/pkg/security"
	"github.com/google/uuid"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	invalidTokenMessage       = "invalid or expired token"
)

// Service defines the session and credential operations used by controllers and middleware.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	GenerateTokens(ctx context.Context, user *models.User) (*TokenPair, error)
	VerifyToken(ctx context.Context, accessToken string) (*pkgAuth.Claims, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID, sessionID string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) (int, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	GetActiveSessionsCount(ctx context.Context, userID uuid.UUID) (int, error)
	// Drain waits for background event deliveries; call it before closing the publisher.
	Drain(ctx context.Context) error
}

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, input users.CreateUserInput) (*models.User, error)
	VerifyPassword(plain, hash string) bool
	ChangePassword(ctx context.Context, userID, newPassword string) error
}

type sessionRegistry interface {
	Save(ctx context.Context, userID uuid.UUID, sessionID, token string) error
	Matches(ctx context.Context, userID uuid.UUID, sessionID, token string) (bool, error)
	Revoke(ctx context.Context, userID uuid.UUID, sessionID string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) (int, error)
	Count(ctx context.Context, userID uuid.UUID) (int, error)
	SaveReset(ctx context.Context, userID uuid.UUID, token string) error
	MatchesReset(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	RevokeReset(ctx context.Context, userID uuid.UUID) error
}

// EventPublisher fans identity events out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// AuditRecorder keeps an append-only trail of auth events.
type AuditRecorder interface {
	Insert(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) error
}

// ServiceParams bundles the dependencies required to build an auth service.
// Publisher, Audit and Metrics are optional.
type ServiceParams struct {
	Users     userStore
	Sessions  sessionRegistry
	JWTConfig config.JWTConfig
	Publisher EventPublisher
	Audit     AuditRecorder
	Metrics   *metrics.AuthMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	users      userStore
	sessions   sessionRegistry
	jwtCfg     config.JWTConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
	events     *eventSink
	metrics    *metrics.AuthMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	accessTTL, err := params.JWTConfig.AccessTTL()
	if err != nil {
		return nil, fmt.Errorf("access lifetime: %w", err)
	}
	refreshTTL, err := params.JWTConfig.RefreshTTL()
	if err != nil {
		return nil, fmt.Errorf("refresh lifetime: %w", err)
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		users:      params.Users,
		sessions:   params.Sessions,
		jwtCfg:     params.JWTConfig,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		events:     &eventSink{publisher: params.Publisher, audit: params.Audit, logg: params.Logger},
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (result *AuthResult, err error) {
	defer func() { s.metrics.ObserveAuth("register", err) }()

	role := enums.UserRoleBuyer
	if strings.TrimSpace(req.Role) != "" {
		role, err = enums.ParseUserRole(req.Role)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
		}
	}
	if role == enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin accounts cannot self-register")
	}

	user, err := s.users.Create(ctx, users.CreateUserInput{
		Email:    normalizeEmail(req.Email),
		Password: req.Password,
		Role:     role,
		Profile:  req.Profile,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.GenerateTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, EventUserRegistered, user.ID, map[string]any{
		"email": user.Email,
		"role":  string(user.Role),
	})
	return &AuthResult{User: users.FromModel(user), Tokens: tokens}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (result *AuthResult, err error) {
	defer func() { s.metrics.ObserveAuth("login", err) }()

	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	tokens, err := s.GenerateTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.events.emit(ctx, EventUserLoggedIn, user.ID, nil)
	return &AuthResult{User: users.FromModel(user), Tokens: tokens}, nil
}

// authenticate gives unknown emails and wrong passwords the same answer and roughly the same latency.
func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		security.BurnCompare(password)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			security.BurnCompare(password)
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, err
	}
	if user == nil {
		security.BurnCompare(password)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if !s.users.VerifyPassword(password, user.PasswordHash) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// GenerateTokens opens a new session for user.
func (s *service) GenerateTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user required to mint tokens")
	}
	return s.issue(ctx, user, session.NewSessionID())
}

// issue mints an access/refresh pair bound to sessionID and records the refresh token.
func (s *service) issue(ctx context.Context, user *models.User, sessionID string) (*TokenPair, error) {
	now := s.now()
	payload := pkgAuth.Payload{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
	}

	payload.Type = enums.TokenTypeAccess
	access, err := pkgAuth.Mint(s.jwtCfg, now, s.accessTTL, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	payload.Type = enums.TokenTypeRefresh
	refresh, err := pkgAuth.Mint(s.jwtCfg, now, s.refreshTTL, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint refresh token")
	}

	if err := s.sessions.Save(ctx, user.ID, sessionID, refresh); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

// VerifyToken accepts only live access tokens whose user still exists.
func (s *service) VerifyToken(ctx context.Context, accessToken string) (*pkgAuth.Claims, error) {
	claims, err := s.parse(accessToken, enums.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, claims.UserID.String())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user no longer exists")
	}
	return claims, nil
}

// RefreshToken rotates the session: the presented token must be the one on record,
// and the new pair replaces it under the same session key.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer func() { s.metrics.ObserveAuth("refresh", err) }()

	claims, err := s.parse(refreshToken, enums.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	ok, err := s.sessions.Matches(ctx, claims.UserID, claims.SessionID, refreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refresh token")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}

	user, err := s.users.FindByEmail(ctx, claims.Email)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
		}
		return nil, err
	}
	if user == nil || user.ID != claims.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}
	return s.issue(ctx, user, claims.SessionID)
}

// Logout ends one session. Access tokens already issued stay valid until they expire.
func (s *service) Logout(ctx context.Context, userID uuid.UUID, sessionID string) (err error) {
	defer func() { s.metrics.ObserveAuth("logout", err) }()

	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.sessions.Revoke(ctx, userID, sessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) LogoutAll(ctx context.Context, userID uuid.UUID) (count int, err error) {
	defer func() { s.metrics.ObserveAuth("logout_all", err) }()

	count, err = s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke sessions")
	}
	s.events.emit(ctx, EventUserLoggedOutAll, userID, map[string]any{"devices": count})
	return count, nil
}

// RequestPasswordReset never reveals whether email belongs to an account: every outcome
// after the lookup answers like an unknown email, and delivery happens off the request.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeValidation) {
			return nil
		}
		return err
	}
	if user == nil {
		s.logg.Debug(ctx, "password reset requested for unknown email")
		return nil
	}

	logCtx := s.logg.WithUserID(ctx, user.ID.String())
	now := s.now()
	token, err := pkgAuth.Mint(s.jwtCfg, now, session.ResetTokenTTL, pkgAuth.Payload{
		UserID: user.ID,
		Type:   enums.TokenTypePasswordReset,
	})
	if err != nil {
		s.logg.Error(logCtx, "mint reset token", err)
		return nil
	}
	if err := s.sessions.SaveReset(ctx, user.ID, token); err != nil {
		s.logg.Error(logCtx, "store reset token", err)
		return nil
	}

	// Delivery belongs to whoever consumes the event; the audit trail never sees the token.
	data := map[string]any{
		"email":       user.Email,
		"reset_token": token,
		"expires_at":  now.Add(session.ResetTokenTTL),
	}
	s.events.detach(ctx, func(dctx context.Context) {
		s.events.publish(dctx, EventPasswordResetRequested, user.ID, data)
		s.events.record(dctx, EventPasswordResetRequested, user.ID, nil)
	})
	return nil
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.metrics.ObserveAuth("password_reset", err) }()

	claims, err := s.parse(token, enums.TokenTypePasswordReset)
	if err != nil {
		return err
	}
	ok, err := s.sessions.MatchesReset(ctx, claims.UserID, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reset token")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
	}

	if err := s.users.ChangePassword(ctx, claims.UserID.String(), newPassword); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidTokenMessage)
		}
		return err
	}
	if err := s.sessions.RevokeReset(ctx, claims.UserID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume reset token")
	}
	if _, err := s.LogoutAll(ctx, claims.UserID); err != nil {
		return err
	}
	s.events.emit(ctx, EventPasswordReset, claims.UserID, nil)
	return nil
}

func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) (err error) {
	defer func() { s.metrics.ObserveAuth("password_change", err) }()

	user, err := s.users.FindByID(ctx, userID.String())
	if err != nil {
		return err
	}
	if user == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if !s.users.VerifyPassword(currentPassword, user.PasswordHash) {
		return pkgerrors.New(pkgerrors.CodeValidation, "current password is incorrect")
	}
	if err := s.users.ChangePassword(ctx, userID.String(), newPassword); err != nil {
		return err
	}
	if _, err := s.LogoutAll(ctx, userID); err != nil {
		return err
	}
	s.events.emit(ctx, EventPasswordChanged, userID, nil)
	return nil
}

func (s *service) GetActiveSessionsCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := s.sessions.Count(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count sessions")
	}
	return n, nil
}

func (s *service) Drain(ctx context.Context) error {
	return s.events.drain(ctx)
}

// parse verifies signature, issuer and expiry and insists on the expected token type.
func (s *service) parse(token string, want enums.TokenType) (*pkgAuth.Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "token required")
	}
	claims, err := pkgAuth.Parse(s.jwtCfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, invalidTokenMessage)
	}
	if claims.Type != want {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "wrong token type")
	}
	return claims, nil
}
