package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	refreshKeyPrefix = "refresh_token"
	resetKeyPrefix   = "password_reset"

	// ResetTokenTTL is the fixed lifetime of a password reset token.
	ResetTokenTTL = time.Hour
)

// Store is the key-value surface the registry needs. *redis.Client satisfies it.
type Store interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Manager is the server-side registry of refresh and reset tokens.
// Each login owns one key, refresh_token:{userId}:{sessionId}, so devices do not evict each other.
type Manager struct {
	store      Store
	refreshTTL time.Duration
}

// NewManager constructs a registry whose refresh records expire after refreshTTL.
func NewManager(store Store, refreshTTL time.Duration) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if refreshTTL <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	return &Manager{store: store, refreshTTL: refreshTTL}, nil
}

// NewSessionID returns an identifier for a new login session.
func NewSessionID() string {
	return uuid.NewString()
}

// RefreshKey builds the registry key for one session.
func RefreshKey(userID uuid.UUID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", refreshKeyPrefix, userID, sessionID)
}

// ResetKey builds the key holding a user's single active reset token.
func ResetKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", resetKeyPrefix, userID)
}

func userPattern(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:*", refreshKeyPrefix, userID)
}

// Save stores token for the session, replacing whatever the session held before.
func (m *Manager) Save(ctx context.Context, userID uuid.UUID, sessionID, token string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.Set(ctx, RefreshKey(userID, sessionID), token, m.refreshTTL)
}

// Matches reports whether token is byte-identical to the stored refresh token.
// An absent record is a mismatch, not an error.
func (m *Manager) Matches(ctx context.Context, userID uuid.UUID, sessionID, token string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	return m.matches(ctx, RefreshKey(userID, sessionID), token)
}

// Revoke deletes a single session.
func (m *Manager) Revoke(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := m.store.Del(ctx, RefreshKey(userID, sessionID))
	return err
}

// RevokeAll deletes every session of the user and returns how many were removed.
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	keys, err := m.store.Keys(ctx, userPattern(userID))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := m.store.Del(ctx, keys...)
	if err != nil {
		return 0, err
	}
	return int(removed), nil
}

// Count returns the number of live sessions for the user.
func (m *Manager) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	keys, err := m.store.Keys(ctx, userPattern(userID))
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// SaveReset stores the reset token, overwriting any earlier request.
func (m *Manager) SaveReset(ctx context.Context, userID uuid.UUID, token string) error {
	return m.store.Set(ctx, ResetKey(userID), token, ResetTokenTTL)
}

// MatchesReset reports whether token is the user's active reset token.
func (m *Manager) MatchesReset(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	return m.matches(ctx, ResetKey(userID), token)
}

// RevokeReset consumes the reset token.
func (m *Manager) RevokeReset(ctx context.Context, userID uuid.UUID) error {
	_, err := m.store.Del(ctx, ResetKey(userID))
	return err
}

func (m *Manager) matches(ctx context.Context, key, token string) (bool, error) {
	stored, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok || token == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}
