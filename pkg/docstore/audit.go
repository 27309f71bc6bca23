package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// AuditEvent is one document in the auth audit trail.
type AuditEvent struct {
	ID        bson.ObjectID  `bson:"_id,omitempty"`
	EventType string         `bson:"eventType"`
	UserID    string         `bson:"userId"`
	Data      map[string]any `bson:"data,omitempty"`
	CreatedAt time.Time      `bson:"createdAt"`
}

// AuditLog appends auth lifecycle events to a collection.
type AuditLog struct {
	insert func(ctx context.Context, doc any) error
	now    func() time.Time
}

// NewAuditLog writes to the configured audit collection.
func NewAuditLog(c *Client) (*AuditLog, error) {
	coll := c.Collection(c.cfg.AuditColl)
	if coll == nil {
		return nil, errors.New("audit collection not configured")
	}
	return &AuditLog{
		insert: func(ctx context.Context, doc any) error {
			_, err := coll.InsertOne(ctx, doc)
			return err
		},
		now: time.Now,
	}, nil
}

// Insert records eventType for userID.
func (a *AuditLog) Insert(ctx context.Context, eventType string, userID uuid.UUID, data map[string]any) error {
	if a == nil || a.insert == nil {
		return errors.New("audit log not initialized")
	}
	event := AuditEvent{
		ID:        bson.NewObjectID(),
		EventType: eventType,
		UserID:    userID.String(),
		Data:      data,
		CreatedAt: a.now().UTC(),
	}
	if err := a.insert(ctx, event); err != nil {
		return fmt.Errorf("insert audit event %s: %w", eventType, err)
	}
	return nil
}
