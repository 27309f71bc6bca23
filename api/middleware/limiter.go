package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/packfinderz-identity/api/responses"
	pkgerrors "github.com/angelmondragon/packfinderz-identity/pkg/errors"
)

const anonymousPrincipal = "anonymous"

// windowStore is the counter surface both limiters run on. pkg/redis satisfies it.
type windowStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// fixedWindow admits max hits per key until the key's TTL runs out.
type fixedWindow struct {
	store  windowStore
	length time.Duration
	max    int64
}

type windowHit struct {
	count      int64
	remaining  int64
	retryAfter int
}

func (h windowHit) blocked() bool {
	return h.retryAfter > 0
}

func (fw fixedWindow) hit(ctx context.Context, key string) (windowHit, error) {
	count, err := fw.store.IncrWithTTL(ctx, key, fw.length)
	if err != nil {
		return windowHit{}, err
	}
	h := windowHit{count: count, remaining: max(fw.max-count, 0)}
	if count > fw.max {
		h.retryAfter = retryAfterSeconds(ctx, fw.store, key, fw.length)
	}
	return h, nil
}

// retryAfterSeconds reports the remaining window, falling back to the full window
// when the key has no readable expiry.
func retryAfterSeconds(ctx context.Context, store windowStore, key string, window time.Duration) int {
	ttl, err := store.TTL(ctx, key)
	if err != nil || ttl <= 0 {
		ttl = window
	}
	secs := int(math.Ceil(ttl.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeRateLimited(ctx context.Context, w http.ResponseWriter, message string, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	err := pkgerrors.New(pkgerrors.CodeRateLimit, message).
		WithDetails(map[string]any{"retry_after_seconds": retryAfter})
	responses.WriteError(ctx, nil, w, err)
}

// principalKey is the authenticated user id, else the client subject.
func principalKey(r *http.Request) string {
	if id := UserIDFromContext(r.Context()); id != "" {
		return id
	}
	return clientSubject(r)
}

// clientSubject is the client IP, or anonymous when none can be derived.
func clientSubject(r *http.Request) string {
	if ip := clientIP(r); ip != "" {
		return ip
	}
	return anonymousPrincipal
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
