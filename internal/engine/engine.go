package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/agents"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/alerts"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/config"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/events"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/notify"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/repo"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/verification"
)

// CoordinatorAgent is the agent name recorded for workflow bookkeeping.
const CoordinatorAgent = "coordenador"

// StageStore persists stage rows. ListStages orders by stage number.
type StageStore interface {
	ListStages(ctx context.Context, caseID string) ([]domain.WorkflowStage, error)
	InsertStage(ctx context.Context, s domain.WorkflowStage, actorID string) error
	UpdateStage(ctx context.Context, caseID, stageName string, patch domain.StagePatch) error
}

type ActivityLog interface {
	RecordActivity(ctx context.Context, a domain.ActivityRecord) error
}

type AlertSink interface {
	CreateAlert(ctx context.Context, caseID string, in domain.AlertInput) (domain.WorkflowAlert, error)
	ResolveAlert(ctx context.Context, alertID, actorID string) (domain.WorkflowAlert, error)
	ListAlerts(ctx context.Context, caseID, status string) ([]domain.WorkflowAlert, error)
}

type DocumentStore interface {
	InsertDocument(ctx context.Context, d domain.DraftedDocument, actorID string) error
	GetDocument(ctx context.Context, id string) (domain.DraftedDocument, error)
	HasDraft(ctx context.Context, caseID string) (bool, error)
	HasPassingVerification(ctx context.Context, caseID string) (bool, error)
}

type Engine struct {
	Repo         repo.Repo
	Stages       StageStore
	Activity     ActivityLog
	Alerts       AlertSink
	Documents    DocumentStore
	Verification verification.Engine
	Agents       agents.Set
	Config       *config.Config
	Logger       *slog.Logger
	Now          func() time.Time
}

// New wires an engine over db. Alerts go through an alerts.Service that
// forwards to notifier; a nil notifier discards notifications.
func New(db *sql.DB, cfg *config.Config, notifier notify.Notifier) Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	r := repo.New(db)
	r.Events = events.Writer{}
	alertSvc := alerts.New(r, notifier)
	ver := verification.New(r, alertSvc)
	ver.FailurePriority = cfg.AlertPriority("verification_failure", domain.PriorityMedium)
	e := Engine{
		Repo:         r,
		Stages:       r,
		Activity:     r,
		Alerts:       alertSvc,
		Documents:    r,
		Verification: ver,
		Config:       cfg,
		Logger:       slog.Default(),
		Now:          time.Now,
	}
	e.Agents = agents.Default(e, e, notifier)
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func strPtr(s string) *string { return &s }

// activeStage returns the single in-progress row, nil when there is none and
// ErrIntegrity when more than one exists.
func activeStage(caseID string, list []domain.WorkflowStage) (*domain.WorkflowStage, error) {
	var found []domain.WorkflowStage
	for _, s := range list {
		if s.Status == domain.StatusInProgress {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		cur := found[0]
		return &cur, nil
	}
	names := make([]string, len(found))
	for i, s := range found {
		names[i] = s.StageName
	}
	return nil, fmt.Errorf("%w: case %s has %d stages in progress (%s)", ErrIntegrity, caseID, len(found), strings.Join(names, ", "))
}

func findStage(list []domain.WorkflowStage, name string) (domain.WorkflowStage, bool) {
	for _, s := range list {
		if s.StageName == name {
			return s, true
		}
	}
	return domain.WorkflowStage{}, false
}

func (e Engine) listStages(ctx context.Context, caseID string) ([]domain.WorkflowStage, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, ErrCaseRequired
	}
	list, err := e.Stages.ListStages(ctx, caseID)
	if err != nil {
		return nil, persistence("list stages", err)
	}
	return list, nil
}

// InitializeWorkflow starts the first stage of a case. It fails with
// ErrAlreadyInitialized when the case already has stage rows, including when
// a concurrent call won the insert.
func (e Engine) InitializeWorkflow(ctx context.Context, caseID, initiatorID string) (domain.WorkflowStage, error) {
	list, err := e.listStages(ctx, caseID)
	if err != nil {
		return domain.WorkflowStage{}, err
	}
	if len(list) > 0 {
		return domain.WorkflowStage{}, ErrAlreadyInitialized
	}
	first := stages.First()
	st := domain.WorkflowStage{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		StageName:   first.StageName,
		StageNumber: first.StageNumber,
		Status:      domain.StatusInProgress,
		StartedAt:   strPtr(e.timestamp()),
	}
	if err := e.Stages.InsertStage(ctx, st, initiatorID); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.WorkflowStage{}, ErrAlreadyInitialized
		}
		return domain.WorkflowStage{}, persistence("insert first stage", err)
	}
	return st, nil
}

// CurrentStage returns the in-progress stage, or nil when the workflow is
// not initialized or already finished.
func (e Engine) CurrentStage(ctx context.Context, caseID string) (*domain.WorkflowStage, error) {
	list, err := e.listStages(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return activeStage(caseID, list)
}

type AdvanceResult struct {
	PreviousStage domain.WorkflowStage  `json:"previous_stage"`
	CurrentStage  *domain.WorkflowStage `json:"current_stage"`
}

// AdvanceWorkflow completes the current stage and starts the next one in
// registry order. CurrentStage is nil once the last stage completes. Both
// writes are guarded by the status read beforehand, so a concurrent advance
// fails with repo.ErrConflict instead of skipping a stage.
func (e Engine) AdvanceWorkflow(ctx context.Context, caseID, actorID string) (AdvanceResult, error) {
	list, err := e.listStages(ctx, caseID)
	if err != nil {
		return AdvanceResult{}, err
	}
	cur, err := activeStage(caseID, list)
	if err != nil {
		return AdvanceResult{}, err
	}
	if cur == nil {
		return AdvanceResult{}, ErrNoActiveStage
	}
	ts := e.timestamp()
	err = e.Stages.UpdateStage(ctx, caseID, cur.StageName, domain.StagePatch{
		Status:       domain.StatusCompleted,
		CompletedAt:  strPtr(ts),
		ExpectStatus: domain.StatusInProgress,
		ActorID:      actorID,
	})
	if err != nil {
		return AdvanceResult{}, persistence("complete stage "+cur.StageName, err)
	}
	prev := *cur
	prev.Status = domain.StatusCompleted
	prev.CompletedAt = strPtr(ts)
	res := AdvanceResult{PreviousStage: prev}

	next, ok := stages.Next(cur.StageName)
	if ok {
		started, err := e.startStage(ctx, caseID, next, list, ts, actorID)
		if err != nil {
			e.raise(ctx, caseID, domain.AlertInput{
				Title:       fmt.Sprintf("Falha ao iniciar a etapa %s", next.DisplayName),
				Description: fmt.Sprintf("A etapa %s foi concluída mas a etapa seguinte não foi iniciada: %v", prev.StageName, err),
				Priority:    e.Config.AlertPriority("persistence_failure", domain.PriorityHigh),
			})
			return res, persistence("start stage "+next.StageName, err)
		}
		res.CurrentStage = &started
	}

	summary := fmt.Sprintf("%s concluída", cur.StageName)
	if res.CurrentStage != nil {
		summary += fmt.Sprintf("; %s iniciada", res.CurrentStage.StageName)
	} else {
		summary += "; fluxo encerrado"
	}
	e.recordActivity(ctx, caseID, CoordinatorAgent, "advance_workflow", summary)
	return res, nil
}

// startStage moves an existing row to in_progress or inserts it.
func (e Engine) startStage(ctx context.Context, caseID string, cfg stages.Config, list []domain.WorkflowStage, ts, actorID string) (domain.WorkflowStage, error) {
	if row, ok := findStage(list, cfg.StageName); ok {
		err := e.Stages.UpdateStage(ctx, caseID, cfg.StageName, domain.StagePatch{
			Status:       domain.StatusInProgress,
			StartedAt:    strPtr(ts),
			CompletedAt:  strPtr(""),
			ExpectStatus: row.Status,
			ActorID:      actorID,
		})
		if err != nil {
			return domain.WorkflowStage{}, err
		}
		row.Status = domain.StatusInProgress
		row.StartedAt = strPtr(ts)
		row.CompletedAt = nil
		return row, nil
	}
	st := domain.WorkflowStage{
		ID:          uuid.NewString(),
		CaseID:      caseID,
		StageName:   cfg.StageName,
		StageNumber: cfg.StageNumber,
		Status:      domain.StatusInProgress,
		StartedAt:   strPtr(ts),
	}
	if err := e.Stages.InsertStage(ctx, st, actorID); err != nil {
		return domain.WorkflowStage{}, err
	}
	return st, nil
}

// RecommendedAgent looks up the agent for a stage; false for unknown names.
func (e Engine) RecommendedAgent(stageName string) (string, bool) {
	cfg, ok := stages.Lookup(stageName)
	if !ok {
		return "", false
	}
	return cfg.RecommendedAgent, true
}

// Evidence maps artifact keys to whether they are present.
type Evidence map[string]bool

type Completeness struct {
	Stage        string   `json:"stage"`
	Complete     bool     `json:"complete"`
	MissingItems []string `json:"missing_items"`
}

// VerifyStageCompleteness checks the stage checklist against evidence. Draft
// artifacts are also derived from the store. Nothing is written.
func (e Engine) VerifyStageCompleteness(ctx context.Context, caseID, stageName string, evidence Evidence) (Completeness, error) {
	if !stages.IsKnown(stageName) {
		return Completeness{}, fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}
	if strings.TrimSpace(caseID) == "" {
		return Completeness{}, ErrCaseRequired
	}
	required := e.Config.RequiredArtifacts(stageName)
	have := make(Evidence, len(evidence)+2)
	for k, v := range evidence {
		have[k] = v
	}
	for _, art := range required {
		if have[art] || e.Documents == nil {
			continue
		}
		var (
			ok  bool
			err error
		)
		switch art {
		case stages.ArtifactDraftProduced:
			ok, err = e.Documents.HasDraft(ctx, caseID)
		case stages.ArtifactDraftVerified:
			ok, err = e.Documents.HasPassingVerification(ctx, caseID)
		default:
			continue
		}
		if err != nil {
			return Completeness{}, persistence("derive evidence "+art, err)
		}
		have[art] = ok
	}
	missing := []string{}
	for _, art := range required {
		if !have[art] {
			missing = append(missing, art)
		}
	}
	return Completeness{Stage: stageName, Complete: len(missing) == 0, MissingItems: missing}, nil
}

// CreateAlert raises an alert for the case. Stage state is untouched.
func (e Engine) CreateAlert(ctx context.Context, caseID string, in domain.AlertInput) (domain.WorkflowAlert, error) {
	if strings.TrimSpace(caseID) == "" {
		return domain.WorkflowAlert{}, ErrCaseRequired
	}
	return e.Alerts.CreateAlert(ctx, caseID, in)
}

func (e Engine) ResolveAlert(ctx context.Context, alertID, actorID string) (domain.WorkflowAlert, error) {
	return e.Alerts.ResolveAlert(ctx, alertID, actorID)
}

func (e Engine) ListAlerts(ctx context.Context, caseID, status string) ([]domain.WorkflowAlert, error) {
	return e.Alerts.ListAlerts(ctx, caseID, status)
}

// raise creates an alert and only logs when that fails.
func (e Engine) raise(ctx context.Context, caseID string, in domain.AlertInput) {
	if e.Alerts == nil {
		return
	}
	if _, err := e.Alerts.CreateAlert(ctx, caseID, in); err != nil {
		e.logger().Error("create alert failed", "case_id", caseID, "title", in.Title, "err", err)
	}
}

// recordActivity appends to the activity log. Failures are logged only.
func (e Engine) recordActivity(ctx context.Context, caseID, agent, action, result string) {
	if e.Activity == nil {
		return
	}
	err := e.Activity.RecordActivity(ctx, domain.ActivityRecord{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		Agent:     agent,
		Action:    action,
		Result:    result,
		CreatedAt: e.timestamp(),
	})
	if err != nil {
		e.logger().Warn("record activity failed", "case_id", caseID, "agent", agent, "action", action, "err", err)
	}
}

// UpdateStageStatus is the operator override for a single stage. The row is
// created when missing. Moving a stage to in_progress while another one is
// active fails with ErrStageAlreadyInFlight.
func (e Engine) UpdateStageStatus(ctx context.Context, caseID, stageName, status, actorID string) (domain.WorkflowStage, error) {
	cfg, ok := stages.Lookup(stageName)
	if !ok {
		return domain.WorkflowStage{}, fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}
	if !domain.IsValidStageStatus(status) {
		return domain.WorkflowStage{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	list, err := e.listStages(ctx, caseID)
	if err != nil {
		return domain.WorkflowStage{}, err
	}
	if status == domain.StatusInProgress {
		cur, err := activeStage(caseID, list)
		if err != nil {
			return domain.WorkflowStage{}, err
		}
		if cur != nil && cur.StageName != stageName {
			return domain.WorkflowStage{}, fmt.Errorf("%w: %s", ErrStageAlreadyInFlight, cur.StageName)
		}
	}
	ts := e.timestamp()
	var started, completed *string
	switch status {
	case domain.StatusInProgress:
		started, completed = strPtr(ts), strPtr("")
	case domain.StatusCompleted:
		completed = strPtr(ts)
	case domain.StatusPending:
		started, completed = strPtr(""), strPtr("")
	}

	row, exists := findStage(list, stageName)
	if exists {
		if row.Status == status {
			return row, nil
		}
		err := e.Stages.UpdateStage(ctx, caseID, stageName, domain.StagePatch{
			Status:       status,
			StartedAt:    started,
			CompletedAt:  completed,
			ExpectStatus: row.Status,
			ActorID:      actorID,
		})
		if err != nil {
			return domain.WorkflowStage{}, persistence("update stage "+stageName, err)
		}
	} else {
		row = domain.WorkflowStage{
			ID:          uuid.NewString(),
			CaseID:      caseID,
			StageName:   cfg.StageName,
			StageNumber: cfg.StageNumber,
			Status:      status,
		}
		if started != nil && *started != "" {
			row.StartedAt = started
		}
		if completed != nil && *completed != "" {
			row.CompletedAt = completed
		}
		if err := e.Stages.InsertStage(ctx, row, actorID); err != nil {
			return domain.WorkflowStage{}, persistence("insert stage "+stageName, err)
		}
		e.recordActivity(ctx, caseID, CoordinatorAgent, "update_stage_status", fmt.Sprintf("%s: -> %s", stageName, status))
		return row, nil
	}
	fresh, err := e.listStages(ctx, caseID)
	if err != nil {
		return domain.WorkflowStage{}, err
	}
	updated, _ := findStage(fresh, stageName)
	e.recordActivity(ctx, caseID, CoordinatorAgent, "update_stage_status", fmt.Sprintf("%s: %s -> %s", stageName, row.Status, status))
	return updated, nil
}

// AdvanceIfComplete advances only when the current stage's checklist is
// satisfied. Otherwise it raises an alert and returns *IncompleteStageError.
func (e Engine) AdvanceIfComplete(ctx context.Context, caseID string, evidence Evidence, actorID string) (AdvanceResult, error) {
	cur, err := e.CurrentStage(ctx, caseID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if cur == nil {
		return AdvanceResult{}, ErrNoActiveStage
	}
	comp, err := e.VerifyStageCompleteness(ctx, caseID, cur.StageName, evidence)
	if err != nil {
		return AdvanceResult{}, err
	}
	if !comp.Complete {
		cfg, _ := stages.Lookup(cur.StageName)
		e.raise(ctx, caseID, domain.AlertInput{
			Title:       fmt.Sprintf("Etapa %s incompleta", cfg.DisplayName),
			Description: "Itens pendentes: " + strings.Join(comp.MissingItems, ", "),
			Priority:    e.Config.AlertPriority("incomplete_stage", domain.PriorityMedium),
		})
		return AdvanceResult{}, &IncompleteStageError{Stage: cur.StageName, Missing: comp.MissingItems}
	}
	return e.AdvanceWorkflow(ctx, caseID, actorID)
}

type AgentRun struct {
	Agent  string        `json:"agent"`
	Stage  string        `json:"stage,omitempty"`
	Result agents.Result `json:"result"`
}

// RunAgent executes kind, or the agent recommended for the current stage
// when kind is empty. Agent errors become an unsuccessful result; every
// unsuccessful result raises an alert.
func (e Engine) RunAgent(ctx context.Context, caseID, kind string, task agents.Task) (AgentRun, error) {
	if strings.TrimSpace(caseID) == "" {
		return AgentRun{}, ErrCaseRequired
	}
	stageName := task.Stage
	if kind == "" {
		cur, err := e.CurrentStage(ctx, caseID)
		if err != nil {
			return AgentRun{}, err
		}
		if cur == nil {
			return AgentRun{}, ErrNoActiveStage
		}
		stageName = cur.StageName
		kind, _ = e.RecommendedAgent(cur.StageName)
	}
	if !e.Config.AgentEnabled(kind) {
		return AgentRun{}, fmt.Errorf("%w: %s", ErrAgentDisabled, kind)
	}
	agent, ok := e.Agents.Get(kind)
	if !ok {
		return AgentRun{}, fmt.Errorf("%w: %s", agents.ErrUnknownAgent, kind)
	}
	task.CaseID = caseID
	task.Stage = stageName
	res, err := agent.Execute(ctx, task)
	if err != nil {
		e.logger().Warn("agent execution failed", "case_id", caseID, "agent", kind, "err", err)
		res = agents.Result{Success: false, Message: err.Error()}
	}
	e.recordActivity(ctx, caseID, kind, "execute", res.Message)
	if !res.Success {
		e.raise(ctx, caseID, domain.AlertInput{
			Title:       fmt.Sprintf("Falha do agente %s", kind),
			Description: res.Message,
			Priority:    e.Config.AlertPriority("agent_failure", domain.PriorityHigh),
		})
	}
	return AgentRun{Agent: kind, Stage: stageName, Result: res}, nil
}

// CreateDraft renders in and stores it as a new document of the case.
func (e Engine) CreateDraft(ctx context.Context, caseID string, in drafting.Input, actorID string) (domain.DraftedDocument, error) {
	if strings.TrimSpace(caseID) == "" {
		return domain.DraftedDocument{}, ErrCaseRequired
	}
	if _, ok := stages.Structure(in.DocumentType); !ok {
		return domain.DraftedDocument{}, fmt.Errorf("%w: %s", ErrUnknownDocumentType, in.DocumentType)
	}
	d := drafting.Render(in)
	doc := domain.DraftedDocument{
		ID:           uuid.NewString(),
		CaseID:       caseID,
		DocumentType: d.DocumentType,
		Title:        d.Title,
		Sections:     d.Sections,
		Content:      d.Content,
		CreatedAt:    e.timestamp(),
	}
	if err := e.Documents.InsertDocument(ctx, doc, actorID); err != nil {
		return domain.DraftedDocument{}, persistence("insert document", err)
	}
	return doc, nil
}

// VerifyDocument runs the verification engine on a stored draft.
func (e Engine) VerifyDocument(ctx context.Context, documentID, actorID string) (domain.VerificationResult, error) {
	doc, err := e.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	res, err := e.Verification.Verify(ctx, doc)
	if err != nil {
		return domain.VerificationResult{}, persistence("verify document", err)
	}
	return res, nil
}

type StageView struct {
	stages.Config
	Status      string  `json:"status"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type Snapshot struct {
	CaseID           string                `json:"case_id"`
	Stages           []StageView           `json:"stages"`
	Current          *domain.WorkflowStage `json:"current,omitempty"`
	RecommendedAgent string                `json:"recommended_agent,omitempty"`
	Initialized      bool                  `json:"initialized"`
	Finished         bool                  `json:"finished"`
}

// Snapshot lists all seven stages with their stored state; stages without a
// row are reported as pending.
func (e Engine) Snapshot(ctx context.Context, caseID string) (Snapshot, error) {
	list, err := e.listStages(ctx, caseID)
	if err != nil {
		return Snapshot{}, err
	}
	cur, err := activeStage(caseID, list)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{CaseID: caseID, Current: cur, Initialized: len(list) > 0}
	completed := 0
	for _, cfg := range stages.Ordered() {
		view := StageView{Config: cfg, Status: domain.StatusPending}
		if row, ok := findStage(list, cfg.StageName); ok {
			view.Status = row.Status
			view.StartedAt = row.StartedAt
			view.CompletedAt = row.CompletedAt
		}
		if view.Status == domain.StatusCompleted {
			completed++
		}
		snap.Stages = append(snap.Stages, view)
	}
	if cur != nil {
		snap.RecommendedAgent, _ = e.RecommendedAgent(cur.StageName)
	}
	snap.Finished = completed == stages.Count
	return snap, nil
}
