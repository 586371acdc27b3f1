package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/agents"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/engine"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

type casePath struct {
	CaseID string `path:"case_id"`
}

func registerCatalog(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/stages",
		Summary:     "List the workflow stages in order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StagesResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		items := stages.Ordered()
		for i := range items {
			items[i].RequiredArtifacts = e.Config.RequiredArtifacts(items[i].StageName)
		}
		return &struct {
			Body StagesResponse `json:"body"`
		}{Body: StagesResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stage",
		Method:      http.MethodGet,
		Path:        "/stages/{stage}",
		Summary:     "Get a stage definition",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Stage string `path:"stage"`
	}) (*struct {
		Body stages.Config `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		cfg, ok := stages.Lookup(input.Stage)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "unknown stage "+input.Stage, nil)
		}
		cfg.RequiredArtifacts = e.Config.RequiredArtifacts(cfg.StageName)
		return &struct {
			Body stages.Config `json:"body"`
		}{Body: cfg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-document-types",
		Method:      http.MethodGet,
		Path:        "/document-types",
		Summary:     "List draftable document types and their sections",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DocumentTypesResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentTypesResponse `json:"body"`
		}{Body: DocumentTypesResponse{Items: documentTypes()}}, nil
	})
}

func registerWorkflow(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "initialize-workflow",
		Method:        http.MethodPost,
		Path:          "/cases/{case_id}/workflow",
		Summary:       "Start the workflow of a case at its first stage",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *casePath) (*struct {
		Body domain.WorkflowStage `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "workflow.write")
		if err != nil {
			return nil, handleError(err)
		}
		stage, err := e.InitializeWorkflow(ctx, input.CaseID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowStage `json:"body"`
		}{Body: stage}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workflow",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/workflow",
		Summary:     "All stages of a case with their state",
	}, func(ctx context.Context, input *casePath) (*struct {
		Body engine.Snapshot `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		snap, err := e.Snapshot(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Snapshot `json:"body"`
		}{Body: snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-current-stage",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/workflow/current",
		Summary:     "The stage in progress, if any",
	}, func(ctx context.Context, input *casePath) (*struct {
		Body CurrentStageResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		cur, err := e.CurrentStage(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := CurrentStageResponse{Current: cur}
		if cur != nil {
			resp.RecommendedAgent, _ = e.RecommendedAgent(cur.StageName)
		}
		return &struct {
			Body CurrentStageResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "advance-workflow",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/workflow/advance",
		Summary:     "Complete the current stage and start the next",
		Errors:      []int{http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		CaseID string          `path:"case_id"`
		Body   *AdvanceRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body engine.AdvanceResult `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "workflow.write")
		if err != nil {
			return nil, handleError(err)
		}
		var res engine.AdvanceResult
		if input.Body != nil && input.Body.RequireComplete {
			res, err = e.AdvanceIfComplete(ctx, input.CaseID, input.Body.Evidence, principal.ActorID)
		} else {
			res, err = e.AdvanceWorkflow(ctx, input.CaseID, principal.ActorID)
		}
		if err != nil {
			logger(e).Warn("advance failed", "case_id", input.CaseID, "err", err)
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AdvanceResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stage-status",
		Method:      http.MethodPatch,
		Path:        "/cases/{case_id}/workflow/stages/{stage}",
		Summary:     "Operator override of one stage's status",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		CaseID string             `path:"case_id"`
		Stage  string             `path:"stage"`
		Body   UpdateStageRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowStage `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "workflow.write")
		if err != nil {
			return nil, handleError(err)
		}
		stage, err := e.UpdateStageStatus(ctx, input.CaseID, input.Stage, input.Body.Status, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowStage `json:"body"`
		}{Body: stage}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-stage-completeness",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/workflow/stages/{stage}/completeness",
		Summary:     "Check a stage's checklist against the supplied evidence",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		CaseID string               `path:"case_id"`
		Stage  string               `path:"stage"`
		Body   *CompletenessRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body engine.Completeness `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		var evidence engine.Evidence
		if input.Body != nil {
			evidence = input.Body.Evidence
		}
		res, err := e.VerifyStageCompleteness(ctx, input.CaseID, input.Stage, evidence)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Completeness `json:"body"`
		}{Body: res}, nil
	})
}

func registerAgents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "run-agent",
		Method:      http.MethodPost,
		Path:        "/agents/run",
		Summary:     "Run an agent, or the current stage's recommended agent, on a case",
		Errors:      []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body RunAgentRequest `json:"body"`
	}) (*struct {
		Body engine.AgentRun `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "agents.run")
		if err != nil {
			return nil, handleError(err)
		}
		run, err := e.RunAgent(ctx, input.Body.CaseID, input.Body.Agent, agents.Task{
			Stage:      input.Body.Stage,
			ActorID:    principal.ActorID,
			Input:      input.Body.Input,
			DocumentID: input.Body.DocumentID,
			Message:    input.Body.Message,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.AgentRun `json:"body"`
		}{Body: run}, nil
	})
}

func registerAlerts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-alert",
		Method:        http.MethodPost,
		Path:          "/alerts",
		Summary:       "Raise an alert on a case",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateAlertRequest `json:"body"`
	}) (*struct {
		Body domain.WorkflowAlert `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "alerts.write"); err != nil {
			return nil, handleError(err)
		}
		alert, err := e.CreateAlert(ctx, input.Body.CaseID, domain.AlertInput{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowAlert `json:"body"`
		}{Body: alert}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/alerts",
		Summary:     "List alerts",
	}, func(ctx context.Context, input *struct {
		CaseID string `query:"case_id"`
		Status string `query:"status" enum:"pending,resolved"`
	}) (*struct {
		Body AlertsResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListAlerts(ctx, input.CaseID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AlertsResponse `json:"body"`
		}{Body: AlertsResponse{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-alert",
		Method:      http.MethodPost,
		Path:        "/alerts/{alert_id}/resolve",
		Summary:     "Resolve a pending alert",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		AlertID string `path:"alert_id"`
	}) (*struct {
		Body domain.WorkflowAlert `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "alerts.write")
		if err != nil {
			return nil, handleError(err)
		}
		alert, err := e.ResolveAlert(ctx, input.AlertID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.WorkflowAlert `json:"body"`
		}{Body: alert}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Render and store a draft",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*struct {
		Body domain.DraftedDocument `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "documents.write")
		if err != nil {
			return nil, handleError(err)
		}
		doc, err := e.CreateDraft(ctx, input.Body.CaseID, input.Body.Input, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DraftedDocument `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List the drafts of a case",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		CaseID string `query:"case_id" required:"true"`
	}) (*struct {
		Body DocumentsResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListDocuments(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentsResponse `json:"body"`
		}{Body: DocumentsResponse{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{document_id}",
		Summary:     "Get a draft",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string `path:"document_id"`
	}) (*struct {
		Body domain.DraftedDocument `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		doc, err := e.Repo.GetDocument(ctx, input.DocumentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DraftedDocument `json:"body"`
		}{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "verify-document",
		Method:        http.MethodPost,
		Path:          "/verifications",
		Summary:       "Verify a stored draft",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body VerifyRequest `json:"body"`
	}) (*struct {
		Body domain.VerificationResult `json:"body"`
	}, error) {
		principal, err := requirePermission(ctx, e, "verifications.write")
		if err != nil {
			return nil, handleError(err)
		}
		res, err := e.VerifyDocument(ctx, input.Body.DocumentID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.VerificationResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-verifications",
		Method:      http.MethodGet,
		Path:        "/documents/{document_id}/verifications",
		Summary:     "List the verifications of a draft",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		DocumentID string `path:"document_id"`
	}) (*struct {
		Body VerificationsResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Repo.GetDocument(ctx, input.DocumentID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListVerifications(ctx, input.DocumentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VerificationsResponse `json:"body"`
		}{Body: VerificationsResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerActivity(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/activity",
		Summary:     "Agent activity log of a case",
	}, func(ctx context.Context, input *casePath) (*struct {
		Body ActivityResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListActivity(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActivityResponse `json:"body"`
		}{Body: ActivityResponse{Items: nonNilSlice(items)}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events, newest first",
	}, func(ctx context.Context, input *struct {
		CaseID     string `query:"case_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"stage,document,verification,alert,activity"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body EventsResponse `json:"body"`
	}, error) {
		if _, err := requirePermission(ctx, e, "workflow.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.CaseID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventsResponse `json:"body"`
		}{Body: EventsResponse{Items: nonNilSlice(items)}}, nil
	})
}
