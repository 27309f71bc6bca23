package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
)

const defaultPublishTimeout = 5 * time.Second

// Envelope is the JSON body of every identity event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

// EventPublisher emits identity lifecycle events onto a single topic.
type EventPublisher struct {
	pub     publisher
	stop    func()
	now     func() time.Time
	timeout time.Duration
}

// NewEventPublisher wraps the client's identity topic.
func NewEventPublisher(c *Client) (*EventPublisher, error) {
	p := c.IdentityPublisher()
	if p == nil {
		return nil, errors.New("identity publisher not configured")
	}
	return &EventPublisher{
		pub:     &gcpPublisher{Publisher: p},
		stop:    p.Stop,
		now:     time.Now,
		timeout: defaultPublishTimeout,
	}, nil
}

// Publish sends one event and waits for the server ack.
func (e *EventPublisher) Publish(ctx context.Context, eventType string, data any) error {
	if e == nil || e.pub == nil {
		return errors.New("event publisher not initialized")
	}
	msg, err := e.buildMessage(eventType, data)
	if err != nil {
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	result := e.pub.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil for %s", eventType)
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (e *EventPublisher) buildMessage(eventType string, data any) (*pubsub.Message, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	envelope := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: e.now().UTC(),
		Data:       payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":    envelope.EventID,
			"event_type":  eventType,
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}, nil
}

// Stop flushes pending messages.
func (e *EventPublisher) Stop() {
	if e == nil || e.stop == nil {
		return
	}
	e.stop()
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
