package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/agents"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/config"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/db"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/engine"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/migrate"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/repo"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default("office-1"), nil)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func countInProgress(t *testing.T, env testEnv, caseID string) int {
	t.Helper()
	list, err := env.Engine.Repo.ListStages(env.Ctx, caseID)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, s := range list {
		if s.Status == domain.StatusInProgress {
			n++
		}
	}
	return n
}

func TestInitializeWorkflowOnce(t *testing.T) {
	env := newTestEnv(t)
	st, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if st.StageName != stages.Reception || st.Status != domain.StatusInProgress || st.StartedAt == nil {
		t.Fatalf("unexpected first stage %+v", st)
	}
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana"); !errors.Is(err, engine.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	list, _ := env.Engine.Repo.ListStages(env.Ctx, "case-1")
	if len(list) != 1 || countInProgress(t, env, "case-1") != 1 {
		t.Fatalf("expected a single stage row, got %d", len(list))
	}
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, " ", "ana"); !errors.Is(err, engine.ErrCaseRequired) {
		t.Fatalf("expected ErrCaseRequired, got %v", err)
	}
}

func TestAdvanceThroughAllStages(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana"); err != nil {
		t.Fatal(err)
	}
	ordered := stages.Ordered()
	for i := 0; i < len(ordered); i++ {
		res, err := env.Engine.AdvanceWorkflow(env.Ctx, "case-1", "ana")
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if res.PreviousStage.StageName != ordered[i].StageName || res.PreviousStage.Status != domain.StatusCompleted {
			t.Fatalf("advance %d previous %+v", i, res.PreviousStage)
		}
		if i == len(ordered)-1 {
			if res.CurrentStage != nil {
				t.Fatalf("expected workflow end, got %+v", res.CurrentStage)
			}
			continue
		}
		if res.CurrentStage == nil || res.CurrentStage.StageName != ordered[i+1].StageName || res.CurrentStage.StageNumber != i+2 {
			t.Fatalf("advance %d current %+v", i, res.CurrentStage)
		}
	}
	if n := countInProgress(t, env, "case-1"); n != 0 {
		t.Fatalf("expected no stage in progress, got %d", n)
	}
	cur, err := env.Engine.CurrentStage(env.Ctx, "case-1")
	if err != nil || cur != nil {
		t.Fatalf("current=%v err=%v", cur, err)
	}
	acts, err := env.Engine.Repo.ListActivity(env.Ctx, "case-1")
	if err != nil || len(acts) != len(ordered) {
		t.Fatalf("activities=%d err=%v", len(acts), err)
	}
	if acts[0].Agent != engine.CoordinatorAgent || acts[0].Action != "advance_workflow" {
		t.Fatalf("unexpected activity %+v", acts[0])
	}
	snap, err := env.Engine.Snapshot(env.Ctx, "case-1")
	if err != nil || !snap.Finished || snap.Current != nil {
		t.Fatalf("snapshot=%+v err=%v", snap, err)
	}
}

func TestAdvanceWithoutActiveStageWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	before, _ := env.Engine.Repo.CountEvents(env.Ctx, "case-1")
	if _, err := env.Engine.AdvanceWorkflow(env.Ctx, "case-1", "ana"); !errors.Is(err, engine.ErrNoActiveStage) {
		t.Fatalf("expected ErrNoActiveStage, got %v", err)
	}
	after, _ := env.Engine.Repo.CountEvents(env.Ctx, "case-1")
	acts, _ := env.Engine.Repo.ListActivity(env.Ctx, "case-1")
	list, _ := env.Engine.Repo.ListStages(env.Ctx, "case-1")
	if before != after || len(acts) != 0 || len(list) != 0 {
		t.Fatalf("expected no writes: events %d->%d activities %d stages %d", before, after, len(acts), len(list))
	}
}

type staticStages struct {
	rows   []domain.WorkflowStage
	writes int
}

func (s *staticStages) ListStages(context.Context, string) ([]domain.WorkflowStage, error) {
	return s.rows, nil
}

func (s *staticStages) InsertStage(context.Context, domain.WorkflowStage, string) error {
	s.writes++
	return nil
}

func (s *staticStages) UpdateStage(context.Context, string, string, domain.StagePatch) error {
	s.writes++
	return nil
}

func TestCurrentStageIntegrityError(t *testing.T) {
	env := newTestEnv(t)
	store := &staticStages{rows: []domain.WorkflowStage{
		{ID: "1", CaseID: "c", StageName: stages.Reception, StageNumber: 1, Status: domain.StatusInProgress},
		{ID: "2", CaseID: "c", StageName: stages.Planning, StageNumber: 2, Status: domain.StatusInProgress},
	}}
	eng := env.Engine
	eng.Stages = store
	if _, err := eng.CurrentStage(env.Ctx, "c"); !errors.Is(err, engine.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
	if _, err := eng.AdvanceWorkflow(env.Ctx, "c", "ana"); !errors.Is(err, engine.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity on advance, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("integrity failure must not write, got %d writes", store.writes)
	}
}

type brokenActivity struct{ calls int }

func (b *brokenActivity) RecordActivity(context.Context, domain.ActivityRecord) error {
	b.calls++
	return errors.New("activity log offline")
}

func TestActivityFailureDoesNotFailAdvance(t *testing.T) {
	env := newTestEnv(t)
	eng := env.Engine
	log := &brokenActivity{}
	eng.Activity = log
	if _, err := eng.InitializeWorkflow(env.Ctx, "case-1", "ana"); err != nil {
		t.Fatal(err)
	}
	res, err := eng.AdvanceWorkflow(env.Ctx, "case-1", "ana")
	if err != nil {
		t.Fatalf("advance must succeed despite activity failure: %v", err)
	}
	if res.CurrentStage == nil || res.CurrentStage.StageName != stages.Planning || log.calls != 1 {
		t.Fatalf("res=%+v calls=%d", res, log.calls)
	}
}

type failingInsert struct {
	engine.StageStore
}

func (f failingInsert) InsertStage(context.Context, domain.WorkflowStage, string) error {
	return errors.New("disk I/O error")
}

func TestPartialAdvanceRaisesAlert(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana"); err != nil {
		t.Fatal(err)
	}
	eng := env.Engine
	eng.Stages = failingInsert{StageStore: env.Engine.Repo}
	_, err := eng.AdvanceWorkflow(env.Ctx, "case-1", "ana")
	var perr *engine.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	alerts, err := eng.ListAlerts(env.Ctx, "case-1", domain.AlertPending)
	if err != nil || len(alerts) != 1 || alerts[0].Priority != domain.PriorityHigh {
		t.Fatalf("alerts=%+v err=%v", alerts, err)
	}
	cur, err := eng.CurrentStage(env.Ctx, "case-1")
	if err != nil || cur != nil {
		t.Fatalf("after partial failure no stage is active: cur=%v err=%v", cur, err)
	}
	// the operator restores the next stage by hand
	st, err := env.Engine.UpdateStageStatus(env.Ctx, "case-1", stages.Planning, domain.StatusInProgress, "ana")
	if err != nil || st.Status != domain.StatusInProgress {
		t.Fatalf("override: %+v %v", st, err)
	}
}

func TestVerifyStageCompleteness(t *testing.T) {
	env := newTestEnv(t)
	comp, err := env.Engine.VerifyStageCompleteness(env.Ctx, "case-1", stages.Reception, nil)
	if err != nil {
		t.Fatal(err)
	}
	if comp.Complete || len(comp.MissingItems) != 3 {
		t.Fatalf("unexpected %+v", comp)
	}
	comp, _ = env.Engine.VerifyStageCompleteness(env.Ctx, "case-1", stages.Reception, engine.Evidence{
		stages.ArtifactCaseRegistered: true, stages.ArtifactClientIdentified: true, stages.ArtifactDocumentsReceived: true,
	})
	if !comp.Complete || len(comp.MissingItems) != 0 {
		t.Fatalf("expected complete, got %+v", comp)
	}
	if _, err := env.Engine.VerifyStageCompleteness(env.Ctx, "case-1", "archive", nil); !errors.Is(err, engine.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}

	comp, _ = env.Engine.VerifyStageCompleteness(env.Ctx, "case-1", stages.Drafting, nil)
	if comp.Complete {
		t.Fatalf("drafting needs a draft")
	}
	if _, err := env.Engine.CreateDraft(env.Ctx, "case-1", drafting.Input{DocumentType: stages.DocPeticaoInicial}, "ana"); err != nil {
		t.Fatal(err)
	}
	comp, _ = env.Engine.VerifyStageCompleteness(env.Ctx, "case-1", stages.Drafting, nil)
	if !comp.Complete {
		t.Fatalf("stored draft must satisfy drafting: %+v", comp)
	}
}

func TestAdvanceIfCompleteRaisesAlert(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.AdvanceIfComplete(env.Ctx, "case-1", engine.Evidence{stages.ArtifactCaseRegistered: true}, "ana")
	var inc *engine.IncompleteStageError
	if !errors.As(err, &inc) || inc.Stage != stages.Reception || len(inc.Missing) != 2 {
		t.Fatalf("expected IncompleteStageError, got %v", err)
	}
	alerts, _ := env.Engine.ListAlerts(env.Ctx, "case-1", "")
	if len(alerts) != 1 || alerts[0].Priority != domain.PriorityMedium {
		t.Fatalf("alerts=%+v", alerts)
	}
	cur, _ := env.Engine.CurrentStage(env.Ctx, "case-1")
	if cur == nil || cur.StageName != stages.Reception {
		t.Fatalf("stage must not move: %+v", cur)
	}
	res, err := env.Engine.AdvanceIfComplete(env.Ctx, "case-1", engine.Evidence{
		stages.ArtifactCaseRegistered: true, stages.ArtifactClientIdentified: true, stages.ArtifactDocumentsReceived: true,
	}, "ana")
	if err != nil || res.CurrentStage == nil || res.CurrentStage.StageName != stages.Planning {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestRunAgentFailureRaisesAlert(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.RunAgent(env.Ctx, "case-1", "", agents.Task{}); !errors.Is(err, engine.ErrNoActiveStage) {
		t.Fatalf("expected ErrNoActiveStage, got %v", err)
	}
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana"); err != nil {
		t.Fatal(err)
	}
	run, err := env.Engine.RunAgent(env.Ctx, "case-1", "", agents.Task{})
	if err != nil {
		t.Fatal(err)
	}
	if run.Agent != "triagem" || run.Stage != stages.Reception || run.Result.Success {
		t.Fatalf("unexpected run %+v", run)
	}
	alerts, _ := env.Engine.ListAlerts(env.Ctx, "case-1", domain.AlertPending)
	if len(alerts) != 1 || alerts[0].Priority != domain.PriorityHigh {
		t.Fatalf("alerts=%+v", alerts)
	}
	acts, _ := env.Engine.Repo.ListActivity(env.Ctx, "case-1")
	if len(acts) != 1 || acts[0].Agent != "triagem" {
		t.Fatalf("activity=%+v", acts)
	}
	if _, err := env.Engine.RunAgent(env.Ctx, "case-1", "oraculo", agents.Task{}); !errors.Is(err, agents.ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRunWriterAndReviewerAgents(t *testing.T) {
	env := newTestEnv(t)
	in := &drafting.Input{DocumentType: stages.DocPeticaoInicial}
	run, err := env.Engine.RunAgent(env.Ctx, "case-1", "redator", agents.Task{Input: in})
	if err != nil || !run.Result.Success {
		t.Fatalf("redator: %+v %v", run, err)
	}
	docID, _ := run.Result.Details["document_id"].(string)
	if docID == "" {
		t.Fatalf("redator must report the document id")
	}
	run, err = env.Engine.RunAgent(env.Ctx, "case-1", "revisor", agents.Task{DocumentID: docID})
	if err != nil {
		t.Fatal(err)
	}
	history, err := env.Engine.Repo.ListVerifications(env.Ctx, docID)
	if err != nil || len(history) != 1 {
		t.Fatalf("history=%d err=%v", len(history), err)
	}
	if run.Result.Success != history[0].Criteria.FormalRequirements {
		t.Fatalf("revisor must follow formal requirements: %+v vs %+v", run.Result, history[0].Criteria)
	}
}

func TestUpdateStageStatusOverride(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.InitializeWorkflow(env.Ctx, "case-1", "ana"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.UpdateStageStatus(env.Ctx, "case-1", stages.Analysis, domain.StatusInProgress, "ana"); !errors.Is(err, engine.ErrStageAlreadyInFlight) {
		t.Fatalf("expected ErrStageAlreadyInFlight, got %v", err)
	}
	if _, err := env.Engine.UpdateStageStatus(env.Ctx, "case-1", stages.Analysis, "done", "ana"); !errors.Is(err, engine.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := env.Engine.UpdateStageStatus(env.Ctx, "case-1", "archive", domain.StatusPending, "ana"); !errors.Is(err, engine.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
	st, err := env.Engine.UpdateStageStatus(env.Ctx, "case-1", stages.Planning, domain.StatusCompleted, "ana")
	if err != nil || st.Status != domain.StatusCompleted || st.CompletedAt == nil {
		t.Fatalf("lazy create: %+v %v", st, err)
	}
	// advancing re-enters the planning row instead of inserting a duplicate
	res, err := env.Engine.AdvanceWorkflow(env.Ctx, "case-1", "ana")
	if err != nil || res.CurrentStage == nil || res.CurrentStage.StageName != stages.Planning {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	list, _ := env.Engine.Repo.ListStages(env.Ctx, "case-1")
	if len(list) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(list))
	}
	if countInProgress(t, env, "case-1") != 1 {
		t.Fatalf("exactly one stage must be active")
	}
}

func TestDraftAndVerifyDocument(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateDraft(env.Ctx, "case-1", drafting.Input{DocumentType: "memorando"}, "ana"); !errors.Is(err, engine.ErrUnknownDocumentType) {
		t.Fatalf("expected ErrUnknownDocumentType, got %v", err)
	}
	doc, err := env.Engine.CreateDraft(env.Ctx, "case-1", drafting.Input{DocumentType: stages.DocParecer}, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt != "2024-01-01T00:00:00Z" || len(doc.Sections) == 0 {
		t.Fatalf("unexpected doc %+v", doc)
	}
	first, err := env.Engine.VerifyDocument(env.Ctx, doc.ID, "ana")
	if err != nil {
		t.Fatal(err)
	}
	second, err := env.Engine.VerifyDocument(env.Ctx, doc.ID, "ana")
	if err != nil || second.ID == first.ID {
		t.Fatalf("re-verification must create a new result: %v", err)
	}
	if _, err := env.Engine.VerifyDocument(env.Ctx, "missing", "ana"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecommendedAgent(t *testing.T) {
	env := newTestEnv(t)
	if agent, ok := env.Engine.RecommendedAgent(stages.Drafting); !ok || agent != "redator" {
		t.Fatalf("drafting agent %q %v", agent, ok)
	}
	if agent, ok := env.Engine.RecommendedAgent("nope"); ok || agent != "" {
		t.Fatalf("unknown stage must return no agent")
	}
}
