package server

import (
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/drafting"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

// Request payloads

type AdvanceRequest struct {
	// RequireComplete refuses to advance while the current stage's checklist
	// is not satisfied.
	RequireComplete bool            `json:"require_complete,omitempty"`
	Evidence        map[string]bool `json:"evidence,omitempty"`
}

type UpdateStageRequest struct {
	Status string `json:"status" enum:"pending,in_progress,completed"`
}

type CompletenessRequest struct {
	Evidence map[string]bool `json:"evidence,omitempty"`
}

type RunAgentRequest struct {
	CaseID     string          `json:"case_id"`
	Agent      string          `json:"agent,omitempty"`
	Stage      string          `json:"stage,omitempty"`
	Input      *drafting.Input `json:"input,omitempty"`
	DocumentID string          `json:"document_id,omitempty"`
	Message    string          `json:"message,omitempty"`
}

type CreateAlertRequest struct {
	CaseID      string `json:"case_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
}

type CreateDocumentRequest struct {
	CaseID string `json:"case_id"`
	drafting.Input
}

type VerifyRequest struct {
	DocumentID string `json:"document_id"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Source      string   `json:"source"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type DocumentTypeResponse struct {
	DocumentType string   `json:"document_type"`
	Title        string   `json:"title"`
	Sections     []string `json:"sections"`
	Judicial     bool     `json:"judicial"`
}

type CurrentStageResponse struct {
	Current          *domain.WorkflowStage `json:"current"`
	RecommendedAgent string                `json:"recommended_agent,omitempty"`
}

type StagesResponse struct {
	Items []stages.Config `json:"items"`
}

type DocumentTypesResponse struct {
	Items []DocumentTypeResponse `json:"items"`
}

type AlertsResponse struct {
	Items []domain.WorkflowAlert `json:"items"`
}

type DocumentsResponse struct {
	Items []domain.DraftedDocument `json:"items"`
}

type VerificationsResponse struct {
	Items []domain.VerificationResult `json:"items"`
}

type ActivityResponse struct {
	Items []domain.ActivityRecord `json:"items"`
}

type EventsResponse struct {
	Items []domain.Event `json:"items"`
}

func documentTypes() []DocumentTypeResponse {
	out := []DocumentTypeResponse{}
	for _, dt := range stages.DocumentTypes() {
		sections, _ := stages.Structure(dt)
		out = append(out, DocumentTypeResponse{
			DocumentType: dt,
			Title:        stages.DocumentTitle(dt),
			Sections:     sections,
			Judicial:     stages.IsJudicial(dt),
		})
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
