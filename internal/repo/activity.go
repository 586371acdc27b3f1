package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/events"
)

// RecordActivity stores an agent activity entry.
func (r Repo) RecordActivity(ctx context.Context, a domain.ActivityRecord) error {
	if a.ID == "" || a.CaseID == "" || a.Agent == "" {
		return errors.New("id, case_id and agent required")
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO agent_activities(id,case_id,agent,action,result,created_at) VALUES (?,?,?,?,?,?)`,
			a.ID, a.CaseID, a.Agent, a.Action, a.Result, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		return r.Events.Append(ctx, tx, events.AgentExecuted, a.CaseID, "activity", a.ID, a.Agent, events.Payload{
			"action": a.Action,
		})
	})
}

// ListActivity returns the activity of a case, oldest first.
func (r Repo) ListActivity(ctx context.Context, caseID string) ([]domain.ActivityRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,agent,action,result,created_at FROM agent_activities WHERE case_id=? ORDER BY created_at, rowid`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ActivityRecord
	for rows.Next() {
		var a domain.ActivityRecord
		if err := rows.Scan(&a.ID, &a.CaseID, &a.Agent, &a.Action, &a.Result, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
