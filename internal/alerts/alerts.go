// Package alerts persists workflow alerts and forwards them to a notifier.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
)

var (
	ErrTitleRequired   = errors.New("alert title required")
	ErrInvalidPriority = errors.New("invalid alert priority")
)

type Store interface {
	InsertAlert(ctx context.Context, a domain.WorkflowAlert, actorID string) error
	GetAlert(ctx context.Context, id string) (domain.WorkflowAlert, error)
	ListAlerts(ctx context.Context, caseID, status string) ([]domain.WorkflowAlert, error)
	ResolveAlert(ctx context.Context, id, resolvedBy, resolvedAt string) error
}

// Service is the alert sink shared by the workflow and verification engines.
type Service struct {
	Store    Store
	Notifier notify.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
	// ActorID is recorded as the author of alerts raised through CreateAlert.
	ActorID string
}

func New(store Store, notifier notify.Notifier) Service {
	return Service{Store: store, Notifier: notifier, Now: time.Now, ActorID: "coordenador"}
}

func (s Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// CreateAlert inserts a pending alert and dispatches a case notification with
// the same priority. A missing priority defaults to medium. Notification
// failures are logged and do not fail the call.
func (s Service) CreateAlert(ctx context.Context, caseID string, in domain.AlertInput) (domain.WorkflowAlert, error) {
	if strings.TrimSpace(in.Title) == "" {
		return domain.WorkflowAlert{}, ErrTitleRequired
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.IsValidPriority(priority) {
		return domain.WorkflowAlert{}, fmt.Errorf("%w: %s", ErrInvalidPriority, priority)
	}
	alert := domain.WorkflowAlert{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		Status:      domain.AlertPending,
		CreatedAt:   s.now().UTC().Format(time.RFC3339),
	}
	if err := s.Store.InsertAlert(ctx, alert, s.ActorID); err != nil {
		return domain.WorkflowAlert{}, err
	}
	if s.Notifier != nil {
		err := s.Notifier.Notify(ctx, notify.Message{
			CaseID:   caseID,
			Category: domain.CategoryCase,
			Priority: priority,
			Title:    alert.Title,
			Body:     alert.Description,
		})
		if err != nil {
			s.logger().Warn("alert notification failed", "case_id", caseID, "alert_id", alert.ID, "err", err)
		}
	}
	return alert, nil
}

// ResolveAlert marks an alert resolved and returns the stored row.
func (s Service) ResolveAlert(ctx context.Context, alertID, actorID string) (domain.WorkflowAlert, error) {
	if err := s.Store.ResolveAlert(ctx, alertID, actorID, s.now().UTC().Format(time.RFC3339)); err != nil {
		return domain.WorkflowAlert{}, err
	}
	return s.Store.GetAlert(ctx, alertID)
}

func (s Service) ListAlerts(ctx context.Context, caseID, status string) ([]domain.WorkflowAlert, error) {
	return s.Store.ListAlerts(ctx, caseID, status)
}
