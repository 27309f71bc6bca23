package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	ttl    time.Duration
	ttlErr error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}, ttl: 42*time.Second + 300*time.Millisecond}
}

func (f *fakeRateStore) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRateStore) TTL(context.Context, string) (time.Duration, error) {
	return f.ttl, f.ttlErr
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name   string
		ttl    time.Duration
		ttlErr error
		want   int
	}{
		{name: "rounds remaining ttl up", ttl: 42*time.Second + 300*time.Millisecond, want: 43},
		{name: "sub second becomes one", ttl: 200 * time.Millisecond, want: 1},
		{name: "missing expiry uses window", ttl: -1, want: 60},
		{name: "store error uses window", ttlErr: errors.New("timeout"), want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeRateStore{counts: map[string]int64{}, ttl: tt.ttl, ttlErr: tt.ttlErr}
			if got := retryAfterSeconds(context.Background(), store, "k", time.Minute); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestFixedWindowBlocksPastMax(t *testing.T) {
	store := newFakeRateStore()
	fw := fixedWindow{store: store, length: time.Minute, max: 2}

	for i := 1; i <= 3; i++ {
		hit, err := fw.hit(context.Background(), "k")
		if err != nil {
			t.Fatalf("hit %d: %v", i, err)
		}
		if i <= 2 && hit.blocked() {
			t.Fatalf("hit %d should pass", i)
		}
		if i == 3 && (!hit.blocked() || hit.retryAfter != 43 || hit.remaining != 0) {
			t.Fatalf("hit 3 should block with retry 43, got %+v", hit)
		}
	}
}

func TestClientSubject(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded first hop", header: map[string]string{"X-Forwarded-For": " 7.7.7.7, 10.0.0.1"}, remote: "1.1.1.1:1", want: "7.7.7.7"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "8.8.8.8"}, remote: "1.1.1.1:1", want: "8.8.8.8"},
		{name: "remote addr host", remote: "1.1.1.1:9000", want: "1.1.1.1"},
		{name: "nothing known", remote: "", want: anonymousPrincipal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			if got := clientSubject(req); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
