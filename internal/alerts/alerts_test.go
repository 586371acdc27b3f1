package alerts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/alerts"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/db"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/migrate"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/repo"
)

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, notify.Message) error {
	f.calls++
	return errors.New("smtp down")
}

func newService(t *testing.T) (alerts.Service, repo.Repo) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn)
	now := func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	svc := alerts.New(r, notify.Outbox{Store: r, Now: now})
	svc.Now = now
	return svc, r
}

func TestCreateAlertQueuesCaseNotification(t *testing.T) {
	svc, r := newService(t)
	ctx := context.Background()
	a, err := svc.CreateAlert(ctx, "c1", domain.AlertInput{Title: "Documentos pendentes", Priority: domain.PriorityHigh})
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != domain.AlertPending || a.Priority != domain.PriorityHigh {
		t.Fatalf("unexpected alert %+v", a)
	}
	pending, err := r.PendingNotifications(ctx, 0, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending=%d err=%v", len(pending), err)
	}
	if pending[0].Category != domain.CategoryCase || pending[0].Priority != domain.PriorityHigh {
		t.Fatalf("notification must mirror the alert: %+v", pending[0])
	}
}

func TestCreateAlertDefaultsAndValidates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.CreateAlert(ctx, "c1", domain.AlertInput{Title: "x"})
	if err != nil || a.Priority != domain.PriorityMedium {
		t.Fatalf("alert=%+v err=%v", a, err)
	}
	if _, err := svc.CreateAlert(ctx, "c1", domain.AlertInput{Title: " "}); !errors.Is(err, alerts.ErrTitleRequired) {
		t.Fatalf("expected title error, got %v", err)
	}
	if _, err := svc.CreateAlert(ctx, "c1", domain.AlertInput{Title: "x", Priority: "urgent"}); !errors.Is(err, alerts.ErrInvalidPriority) {
		t.Fatalf("expected priority error, got %v", err)
	}
}

func TestNotifierFailureDoesNotFailAlert(t *testing.T) {
	svc, r := newService(t)
	n := &failingNotifier{}
	svc.Notifier = n
	ctx := context.Background()
	a, err := svc.CreateAlert(ctx, "c1", domain.AlertInput{Title: "x", Priority: domain.PriorityLow})
	if err != nil {
		t.Fatal(err)
	}
	if n.calls != 1 {
		t.Fatalf("notifier calls %d", n.calls)
	}
	if _, err := r.GetAlert(ctx, a.ID); err != nil {
		t.Fatalf("alert not stored: %v", err)
	}
}

func TestResolveAlert(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.CreateAlert(ctx, "c1", domain.AlertInput{Title: "x"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.ResolveAlert(ctx, a.ID, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.AlertResolved || got.ResolvedAt == nil || *got.ResolvedAt != "2024-06-01T08:00:00Z" {
		t.Fatalf("unexpected %+v", got)
	}
	if _, err := svc.ResolveAlert(ctx, a.ID, "ana"); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	open, err := svc.ListAlerts(ctx, "c1", domain.AlertPending)
	if err != nil || len(open) != 0 {
		t.Fatalf("open=%d err=%v", len(open), err)
	}
}
