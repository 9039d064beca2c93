// Package events publishes best-effort user change notifications for downstream consumers.
package events

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"user-directory/internal/user/domain"
)

// Type names a user change.
type Type string

const (
	TypeCreated  Type = "user.created"
	TypeUpdated  Type = "user.updated"
	TypeEnabled  Type = "user.enabled"
	TypeDisabled Type = "user.disabled"
	TypeDeleted  Type = "user.deleted"
)

// publishTimeout bounds a single asynchronous publish.
const publishTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before closing publishers,
// so in-flight PublishAsync calls can complete. Must be >= publishTimeout.
const ShutdownDrainDuration = publishTimeout

// Event is one user change notification.
type Event struct {
	Type       Type      `json:"type"`
	UserID     int64     `json:"user_id"`
	Status     int       `json:"status"`
	Deleted    bool      `json:"deleted"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent returns an event of type t describing u.
func NewEvent(t Type, u *domain.User) Event {
	return Event{
		Type:       t,
		UserID:     u.ID,
		Status:     int(u.Status),
		Deleted:    u.Deleted,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	// Close releases resources. Safe to call more than once.
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishAsync publishes e in a goroutine with its own timeout so request cancellation does not
// abort delivery. Errors are logged.
func PublishAsync(p Publisher, log *zap.Logger, e Event) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.Publish(ctx, e); err != nil && log != nil {
			log.Warn("events: publish failed",
				zap.String("type", string(e.Type)),
				zap.Int64("user_id", e.UserID),
				zap.Error(err))
		}
	}()
}
