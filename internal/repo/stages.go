package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/events"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/stages"
)

const stageColumns = `id,case_id,stage_name,stage_number,status,started_at,completed_at`

func scanStage(scan func(dest ...any) error) (domain.WorkflowStage, error) {
	var s domain.WorkflowStage
	var started, completed sql.NullString
	if err := scan(&s.ID, &s.CaseID, &s.StageName, &s.StageNumber, &s.Status, &started, &completed); err != nil {
		return domain.WorkflowStage{}, err
	}
	s.StartedAt = ptrFromNull(started)
	s.CompletedAt = ptrFromNull(completed)
	return s, nil
}

// ListStages returns the stage rows of a case ordered by stage number.
func (r Repo) ListStages(ctx context.Context, caseID string) ([]domain.WorkflowStage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+stageColumns+` FROM workflow_stages WHERE case_id=? ORDER BY stage_number`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.WorkflowStage
	for rows.Next() {
		s, err := scanStage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStage returns one stage row.
func (r Repo) GetStage(ctx context.Context, caseID, stageName string) (domain.WorkflowStage, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM workflow_stages WHERE case_id=? AND stage_name=?`, caseID, stageName)
	s, err := scanStage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WorkflowStage{}, ErrNotFound
	}
	return s, err
}

// InsertStage creates a stage row. A row that already exists for the same
// case and stage (or a second in-progress row) yields ErrConflict.
func (r Repo) InsertStage(ctx context.Context, s domain.WorkflowStage, actorID string) error {
	if s.ID == "" || s.CaseID == "" || s.StageName == "" {
		return errors.New("id, case_id and stage_name required")
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO workflow_stages(`+stageColumns+`) VALUES (?,?,?,?,?,?,?)`,
			s.ID, s.CaseID, s.StageName, s.StageNumber, s.Status, nullableStringPtr(s.StartedAt), nullableStringPtr(s.CompletedAt))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert stage %s: %w", s.StageName, ErrConflict)
			}
			return fmt.Errorf("insert stage %s: %w", s.StageName, err)
		}
		evt := events.StageStarted
		if s.Status != domain.StatusInProgress {
			evt = events.StageStatusSet
		}
		if s.StageNumber == 1 && s.Status == domain.StatusInProgress {
			evt = events.WorkflowInitialized
		}
		return r.Events.Append(ctx, tx, evt, s.CaseID, "stage", s.ID, actorID, events.Payload{
			"stage_name":   s.StageName,
			"stage_number": s.StageNumber,
			"status":       s.Status,
		})
	})
}

// UpdateStage applies patch to the stage row. With ExpectStatus set, the
// update is conditional and returns ErrConflict when the stored status
// differs. ErrNotFound means the row does not exist at all.
func (r Repo) UpdateStage(ctx context.Context, caseID, stageName string, patch domain.StagePatch) error {
	var sets []string
	var args []any
	if patch.Status != "" {
		sets = append(sets, "status=?")
		args = append(args, patch.Status)
	}
	if patch.StartedAt != nil {
		sets = append(sets, "started_at=?")
		args = append(args, nullableStringPtr(patch.StartedAt))
	}
	if patch.CompletedAt != nil {
		sets = append(sets, "completed_at=?")
		args = append(args, nullableStringPtr(patch.CompletedAt))
	}
	if len(sets) == 0 {
		return errors.New("empty stage patch")
	}
	where := "case_id=? AND stage_name=?"
	args = append(args, caseID, stageName)
	if patch.ExpectStatus != "" {
		where += " AND status=?"
		args = append(args, patch.ExpectStatus)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE workflow_stages SET `+strings.Join(sets, ",")+` WHERE `+where, args...)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("update stage %s: %w", stageName, ErrConflict)
			}
			return fmt.Errorf("update stage %s: %w", stageName, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workflow_stages WHERE case_id=? AND stage_name=?`, caseID, stageName).Scan(&exists)
			if err != nil {
				return err
			}
			if exists == 0 {
				return ErrNotFound
			}
			return fmt.Errorf("stage %s is no longer %s: %w", stageName, patch.ExpectStatus, ErrConflict)
		}
		var stageID string
		if err := tx.QueryRowContext(ctx, `SELECT id FROM workflow_stages WHERE case_id=? AND stage_name=?`, caseID, stageName).Scan(&stageID); err != nil {
			return err
		}
		evt := events.StageStatusSet
		switch {
		case patch.Status == domain.StatusCompleted && patch.ExpectStatus == domain.StatusInProgress:
			evt = events.StageCompleted
		case patch.Status == domain.StatusInProgress && patch.ExpectStatus == domain.StatusPending:
			evt = events.StageStarted
		}
		if evt == events.StageCompleted && stages.IsLast(stageName) {
			evt = events.WorkflowCompleted
		}
		return r.Events.Append(ctx, tx, evt, caseID, "stage", stageID, patch.ActorID, events.Payload{
			"stage_name": stageName,
			"status":     patch.Status,
		})
	})
}
