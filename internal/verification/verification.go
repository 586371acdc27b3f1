// Package verification runs rule-based conformity checks over drafted legal
// documents and keeps every run as an append-only history.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
)

// Store persists verification runs.
type Store interface {
	InsertVerification(ctx context.Context, v domain.VerificationResult) error
}

// AlertSink raises case alerts.
type AlertSink interface {
	CreateAlert(ctx context.Context, caseID string, in domain.AlertInput) (domain.WorkflowAlert, error)
}

type Engine struct {
	Store  Store
	Alerts AlertSink
	Logger *slog.Logger
	Now    func() time.Time
	// FailurePriority is the priority of the alert raised when a document
	// misses its formal requirements. Empty disables the alert.
	FailurePriority string
}

func New(store Store, alerts AlertSink) Engine {
	return Engine{
		Store:           store,
		Alerts:          alerts,
		Logger:          slog.Default(),
		Now:             time.Now,
		FailurePriority: domain.PriorityMedium,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Verify checks doc and records a new result. Re-verifying the same document
// always produces a new row.
func (e Engine) Verify(ctx context.Context, doc domain.DraftedDocument) (domain.VerificationResult, error) {
	if doc.ID == "" {
		return domain.VerificationResult{}, errors.New("document id is required")
	}
	if e.Store == nil {
		return domain.VerificationResult{}, errors.New("verification store not configured")
	}
	rep := Check(doc)
	res := domain.VerificationResult{
		ID:              uuid.New().String(),
		DocumentID:      doc.ID,
		DocumentTitle:   doc.Title,
		Criteria:        rep.Criteria,
		Recommendations: rep.Recommendations,
		CreatedAt:       e.now().UTC().Format(time.RFC3339),
	}
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	if err := e.Store.InsertVerification(ctx, res); err != nil {
		return domain.VerificationResult{}, fmt.Errorf("insert verification: %w", err)
	}
	if !rep.Passed() && e.Alerts != nil && e.FailurePriority != "" {
		_, err := e.Alerts.CreateAlert(ctx, doc.CaseID, domain.AlertInput{
			Title:       fmt.Sprintf("Documento \"%s\" não atende aos requisitos formais", doc.Title),
			Description: strings.Join(rep.Recommendations, "\n"),
			Priority:    e.FailurePriority,
		})
		if err != nil {
			e.logger().Warn("verification alert failed", "document_id", doc.ID, "case_id", doc.CaseID, "error", err)
		}
	}
	return res, nil
}
