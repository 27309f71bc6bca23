package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
	"github.com/angelmondragon/packfinderz-identity/pkg/metrics"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimitPolicy is a fixed window of Window length admitting Max requests per principal.
type RateLimitPolicy struct {
	Window time.Duration
	Max    int
}

func (p RateLimitPolicy) enabled() bool {
	return p.Window > 0 && p.Max > 0
}

// RateLimit counts requests per principal: the user id when authenticated, else the client IP.
// Store failures let the request through.
func RateLimit(policy RateLimitPolicy, store windowStore, logg *logger.Logger, m *metrics.AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		limiter := fixedWindow{store: store, length: policy.Window, max: int64(policy.Max)}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := rateLimitKeyPrefix + principalKey(r)

			hit, err := limiter.hit(ctx, key)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "rate_limit_key", key), "rate_limit.store_unavailable", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(hit.remaining, 10))

			if !hit.blocked() {
				next.ServeHTTP(w, r)
				return
			}

			m.IncRateLimited("principal")
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"rate_limit_key": key,
					"attempts":       hit.count,
					"limit":          policy.Max,
				}), "rate_limit.blocked")
			}
			writeRateLimited(ctx, w, "too many requests", hit.retryAfter)
		})
	}
}
