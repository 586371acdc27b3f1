package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
)

// Message is a notification handed to a Notifier.
type Message struct {
	CaseID   string
	Category string
	Priority string
	Title    string
	Body     string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Notify(context.Context, Message) error { return nil }

// OutboxStore is the subset of the record store the outbox writes to.
type OutboxStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) (int64, error)
}

// Outbox persists messages for later delivery by a Dispatcher.
type Outbox struct {
	Store OutboxStore
	Now   func() time.Time
}

func (o Outbox) Notify(ctx context.Context, msg Message) error {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	if msg.Category == "" {
		msg.Category = domain.CategoryCase
	}
	_, err := o.Store.InsertNotification(ctx, domain.Notification{
		CaseID:    msg.CaseID,
		Category:  msg.Category,
		Priority:  msg.Priority,
		Title:     msg.Title,
		Body:      msg.Body,
		CreatedAt: now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}
