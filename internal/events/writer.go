package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written to the audit log.
const (
	WorkflowInitialized = "workflow.initialized"
	WorkflowCompleted   = "workflow.completed"
	StageStarted        = "stage.started"
	StageCompleted      = "stage.completed"
	StageStatusSet      = "stage.status_set"
	DocumentDrafted     = "document.drafted"
	DocumentVerified    = "document.verified"
	AlertCreated        = "alert.created"
	AlertResolved       = "alert.resolved"
	AgentExecuted       = "agent.executed"
)

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Append writes one event using ex, normally the transaction that carries the
// mutation being audited.
func (w Writer) Append(ctx context.Context, ex Execer, evtType, caseID, entityKind, entityID, actorID string, payload Payload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	if actorID == "" {
		actorID = "system"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO events(ts,type,case_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(caseID), entityKind, nullable(entityID), actorID, string(data))
	if err != nil {
		return fmt.Errorf("append event %s: %w", evtType, err)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
