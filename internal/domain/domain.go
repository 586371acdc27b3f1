package domain

// Stage statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Alert priorities and statuses.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	AlertPending  = "pending"
	AlertResolved = "resolved"
)

// CategoryCase is the notification category used for every case-scoped alert.
const CategoryCase = "case"

type WorkflowStage struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	StageName   string  `json:"stage_name" enum:"reception,planning,analysis,research,drafting,review,delivery"`
	StageNumber int     `json:"stage_number" minimum:"1" maximum:"7"`
	Status      string  `json:"status" enum:"pending,in_progress,completed"`
	StartedAt   *string `json:"started_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
}

type DraftedDocument struct {
	ID           string   `json:"id"`
	CaseID       string   `json:"case_id"`
	DocumentType string   `json:"document_type"`
	Title        string   `json:"title"`
	Sections     []string `json:"sections"`
	Content      string   `json:"content"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
}

type Criteria struct {
	FormalRequirements      bool `json:"formal_requirements"`
	LegalCompliance         bool `json:"legal_compliance"`
	Citations               bool `json:"citations"`
	LogicalCoherence        bool `json:"logical_coherence"`
	AlignmentWithObjectives bool `json:"alignment_with_objectives"`
}

type VerificationResult struct {
	ID              string   `json:"id"`
	DocumentID      string   `json:"document_id"`
	DocumentTitle   string   `json:"document_title"`
	Criteria        Criteria `json:"criteria"`
	Recommendations []string `json:"recommendations"`
	CreatedAt       string   `json:"created_at" format:"date-time"`
}

type WorkflowAlert struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Priority    string  `json:"priority" enum:"low,medium,high"`
	Status      string  `json:"status" enum:"pending,resolved"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	ResolvedAt  *string `json:"resolved_at,omitempty" format:"date-time"`
	ResolvedBy  *string `json:"resolved_by,omitempty"`
}

// AlertInput is what callers supply to raise an alert.
type AlertInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high"`
}

type ActivityRecord struct {
	ID        string `json:"id"`
	CaseID    string `json:"case_id"`
	Agent     string `json:"agent"`
	Action    string `json:"action"`
	Result    string `json:"result"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID          int64   `json:"id"`
	CaseID      string  `json:"case_id"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	Title       string  `json:"title"`
	Body        string  `json:"body,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	DeliveredAt *string `json:"delivered_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	CaseID     string `json:"case_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// IsValidPriority reports whether p is one of the alert priorities.
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IsValidStageStatus reports whether s is one of the stage statuses.
func IsValidStageStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// StagePatch describes a guarded stage update. When ExpectStatus is set the
// update only applies if the stored status still matches it.
type StagePatch struct {
	Status       string
	StartedAt    *string
	CompletedAt  *string
	ExpectStatus string
	ActorID      string
}
