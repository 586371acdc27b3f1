package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/events"
)

const alertColumns = `id,case_id,title,COALESCE(description,''),priority,status,created_at,resolved_at,resolved_by`

func scanAlert(scan func(dest ...any) error) (domain.WorkflowAlert, error) {
	var a domain.WorkflowAlert
	var resolvedAt, resolvedBy sql.NullString
	if err := scan(&a.ID, &a.CaseID, &a.Title, &a.Description, &a.Priority, &a.Status, &a.CreatedAt, &resolvedAt, &resolvedBy); err != nil {
		return domain.WorkflowAlert{}, err
	}
	a.ResolvedAt = ptrFromNull(resolvedAt)
	a.ResolvedBy = ptrFromNull(resolvedBy)
	return a, nil
}

func (r Repo) InsertAlert(ctx context.Context, a domain.WorkflowAlert, actorID string) error {
	if a.ID == "" || a.CaseID == "" {
		return errors.New("id and case_id required")
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO workflow_alerts(id,case_id,title,description,priority,status,created_at) VALUES (?,?,?,?,?,?,?)`,
			a.ID, a.CaseID, a.Title, nullable(a.Description), a.Priority, a.Status, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
		return r.Events.Append(ctx, tx, events.AlertCreated, a.CaseID, "alert", a.ID, actorID, events.Payload{
			"title":    a.Title,
			"priority": a.Priority,
		})
	})
}

func (r Repo) GetAlert(ctx context.Context, id string) (domain.WorkflowAlert, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM workflow_alerts WHERE id=?`, id)
	a, err := scanAlert(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkflowAlert{}, ErrNotFound
	}
	return a, err
}

// ListAlerts returns alerts of a case newest first. status filters when non-empty.
func (r Repo) ListAlerts(ctx context.Context, caseID, status string) ([]domain.WorkflowAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM workflow_alerts WHERE case_id=?`
	args := []any{caseID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.WorkflowAlert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveAlert marks a pending alert resolved. Resolving an already resolved
// alert yields ErrConflict.
func (r Repo) ResolveAlert(ctx context.Context, id, resolvedBy, resolvedAt string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE workflow_alerts SET status=?, resolved_at=?, resolved_by=? WHERE id=? AND status=?`,
			domain.AlertResolved, resolvedAt, nullable(resolvedBy), id, domain.AlertPending)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		var caseID string
		err = tx.QueryRowContext(ctx, `SELECT case_id FROM workflow_alerts WHERE id=?`, id).Scan(&caseID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("alert %s already resolved: %w", id, ErrConflict)
		}
		return r.Events.Append(ctx, tx, events.AlertResolved, caseID, "alert", id, resolvedBy, nil)
	})
}
