package auth

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-identity/pkg/logger"
	"github.com/google/uuid"
)

const (
	EventUserRegistered         = "user.registered"
	EventUserLoggedIn           = "user.logged_in"
	EventUserLoggedOutAll       = "user.logged_out_all"
	EventPasswordResetRequested = "user.password_reset_requested"
	EventPasswordReset          = "user.password_reset"
	EventPasswordChanged        = "user.password_changed"
)

const detachedEventTimeout = 10 * time.Second

// eventSink delivers identity events to the optional publisher and audit trail.
// Delivery failures are logged and never fail the calling operation.
type eventSink struct {
	publisher EventPublisher
	audit     AuditRecorder
	logg      *logger.Logger
	inflight  sync.WaitGroup
}

type identityEvent struct {
	UserID uuid.UUID      `json:"user_id"`
	Data   map[string]any `json:"data,omitempty"`
}

func (e *eventSink) emit(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) {
	e.publish(ctx, eventType, userID, data)
	e.record(ctx, eventType, userID, data)
}

func (e *eventSink) publish(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, eventType, identityEvent{UserID: userID, Data: data}); err != nil {
		e.warn(ctx, "identity event publish failed", eventType, userID, err)
	}
}

func (e *eventSink) record(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) {
	if e == nil || e.audit == nil {
		return
	}
	if err := e.audit.Insert(ctx, eventType, userID, data); err != nil {
		e.warn(ctx, "audit insert failed", eventType, userID, err)
	}
}

// detach runs deliver outside the caller's lifetime, bounded by detachedEventTimeout.
func (e *eventSink) detach(ctx context.Context, deliver func(context.Context)) {
	if e == nil {
		return
	}
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedEventTimeout)
		defer cancel()
		deliver(dctx)
	}()
}

// drain waits for detached deliveries until ctx ends.
func (e *eventSink) drain(ctx context.Context) error {
	if e == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *eventSink) warn(ctx context.Context, msg, eventType string, userID uuid.UUID, err error) {
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"event_type": eventType,
		"user_id":    userID.String(),
	})
	e.logg.Warn(ctx, msg, err)
}
