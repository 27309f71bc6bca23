package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-identity/api/responses"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
	"github.com/angelmondragon/packfinderz-identity/pkg/metrics"
)

const (
	authLimitKeyPrefix = "authlimit:"
	maxEmailPeekBytes  = 1 << 20
)

// AuthRateLimitPolicy throttles a credential endpoint per client and per submitted email.
// A zero PerIP or PerEmail disables that scope.
type AuthRateLimitPolicy struct {
	Name     string
	Window   time.Duration
	PerIP    int
	PerEmail int
}

func (p AuthRateLimitPolicy) enabled() bool {
	return p.Window > 0 && (p.PerIP > 0 || p.PerEmail > 0)
}

func (p AuthRateLimitPolicy) label() string {
	if name := strings.ToLower(strings.TrimSpace(p.Name)); name != "" {
		return name
	}
	return "auth"
}

// authSubject is one counter a request must stay under.
type authSubject struct {
	scope string
	key   string
	limit int
}

func (p AuthRateLimitPolicy) subjects(r *http.Request) ([]authSubject, error) {
	var out []authSubject
	if p.PerIP > 0 {
		out = append(out, authSubject{scope: "ip", key: p.key("ip", clientSubject(r)), limit: p.PerIP})
	}
	if p.PerEmail > 0 {
		email, err := peekEmail(r)
		if err != nil {
			return nil, err
		}
		if email != "" {
			sum := sha256.Sum256([]byte(email))
			out = append(out, authSubject{scope: "email", key: p.key("email", hex.EncodeToString(sum[:])), limit: p.PerEmail})
		}
	}
	return out, nil
}

func (p AuthRateLimitPolicy) key(scope, subject string) string {
	return authLimitKeyPrefix + p.label() + ":" + scope + ":" + subject
}

// AuthRateLimit runs every subject of the policy through its own fixed window.
// Store failures reject the request with DEPENDENCY_ERROR.
func AuthRateLimit(policy AuthRateLimitPolicy, store windowStore, logg *logger.Logger, m *metrics.AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			subjects, err := policy.subjects(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}

			for _, s := range subjects {
				limiter := fixedWindow{store: store, length: policy.Window, max: int64(s.limit)}
				hit, err := limiter.hit(ctx, s.key)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
					return
				}
				if !hit.blocked() {
					continue
				}

				m.IncRateLimited(policy.label() + "_" + s.scope)
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"scope":       s.scope,
						"policy":      policy.label(),
						"attempts":    hit.count,
						"limit":       s.limit,
						"retry_after": hit.retryAfter,
					}), "auth.rate_limit.blocked")
				}
				writeRateLimited(ctx, w, "too many attempts, try again later", hit.retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// peekEmail reads the email field from a JSON body and restores the body for the handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, maxEmailPeekBytes))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(head, &payload) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(payload.Email)), nil
}
