package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-identity/pkg/config"
	"github.com/angelmondragon/packfinderz-identity/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret: strings.Repeat("s", 32),
		Issuer: "packfinderz-identity",
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()

	token, err := Mint(cfg, time.Now(), 15*time.Minute, Payload{
		UserID:    userID,
		Email:     "a@b.com",
		Role:      enums.UserRoleBuyer,
		Type:      enums.TokenTypeAccess,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("expected three-part token, got %d parts", len(parts))
	}

	claims, err := Parse(cfg, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != userID || claims.Email != "a@b.com" || claims.Role != enums.UserRoleBuyer {
		t.Fatalf("claims not preserved: %+v", claims)
	}
	if claims.Type != enums.TokenTypeAccess || claims.SessionID != "sess-1" {
		t.Fatalf("type/session not preserved: %+v", claims)
	}
	if claims.Issuer != cfg.Issuer || claims.ID == "" {
		t.Fatalf("registered claims missing: %+v", claims.RegisteredClaims)
	}
}

func TestMintProducesDistinctTokens(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	payload := Payload{UserID: uuid.New(), Role: enums.UserRoleSeller, Type: enums.TokenTypeRefresh}

	first, err := Mint(cfg, now, time.Hour, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, err := Mint(cfg, now, time.Hour, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if first == second {
		t.Fatal("tokens minted at the same instant must differ")
	}
}

func TestMintRejectsInvalidPayloads(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	cases := map[string]struct {
		cfg     config.JWTConfig
		ttl     time.Duration
		payload Payload
	}{
		"missing secret": {cfg: config.JWTConfig{Issuer: "x"}, ttl: time.Minute, payload: Payload{UserID: uuid.New(), Role: enums.UserRoleAdmin, Type: enums.TokenTypeAccess}},
		"zero ttl":       {cfg: cfg, ttl: 0, payload: Payload{UserID: uuid.New(), Role: enums.UserRoleAdmin, Type: enums.TokenTypeAccess}},
		"nil user":       {cfg: cfg, ttl: time.Minute, payload: Payload{Role: enums.UserRoleAdmin, Type: enums.TokenTypeAccess}},
		"bad role":       {cfg: cfg, ttl: time.Minute, payload: Payload{UserID: uuid.New(), Role: "root", Type: enums.TokenTypeAccess}},
		"bad type":       {cfg: cfg, ttl: time.Minute, payload: Payload{UserID: uuid.New(), Role: enums.UserRoleAdmin, Type: "api"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Mint(tc.cfg, now, tc.ttl, tc.payload); err == nil {
				t.Fatal("expected mint error")
			}
		})
	}

	// reset tokens carry no role
	if _, err := Mint(cfg, now, time.Hour, Payload{UserID: uuid.New(), Type: enums.TokenTypePasswordReset}); err != nil {
		t.Fatalf("reset token should mint without role: %v", err)
	}
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	cfg := testJWTConfig()
	payload := Payload{UserID: uuid.New(), Role: enums.UserRoleBuyer, Type: enums.TokenTypeAccess}

	expired, err := Mint(cfg, time.Now().Add(-2*time.Hour), time.Hour, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := Parse(cfg, expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}

	valid, err := Mint(cfg, time.Now(), time.Hour, payload)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	other := cfg
	other.Secret = strings.Repeat("x", 32)
	if _, err := Parse(other, valid); err == nil {
		t.Fatal("expected signature failure with a different secret")
	}
	other = cfg
	other.Issuer = "someone-else"
	if _, err := Parse(other, valid); err == nil {
		t.Fatal("expected issuer mismatch")
	}
	if _, err := Parse(cfg, "not.a.jwt"); err == nil {
		t.Fatal("expected malformed token error")
	}
}
