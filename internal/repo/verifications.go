package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/events"
)

// InsertVerification appends a verification result. Results are never
// overwritten; every run is kept as history.
func (r Repo) InsertVerification(ctx context.Context, v domain.VerificationResult) error {
	if v.ID == "" || v.DocumentID == "" {
		return errors.New("id and document_id required")
	}
	recs, err := marshalStrings(v.Recommendations)
	if err != nil {
		return err
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var caseID string
		err := tx.QueryRowContext(ctx, `SELECT case_id FROM drafted_documents WHERE id=?`, v.DocumentID).Scan(&caseID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		c := v.Criteria
		_, err = tx.ExecContext(ctx, `INSERT INTO verification_results(id,document_id,document_title,formal_requirements,legal_compliance,citations,logical_coherence,alignment_with_objectives,recommendations_json,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
			v.ID, v.DocumentID, v.DocumentTitle,
			boolInt(c.FormalRequirements), boolInt(c.LegalCompliance), boolInt(c.Citations),
			boolInt(c.LogicalCoherence), boolInt(c.AlignmentWithObjectives),
			recs, v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert verification: %w", err)
		}
		return r.Events.Append(ctx, tx, events.DocumentVerified, caseID, "verification", v.ID, "revisor", events.Payload{
			"document_id": v.DocumentID,
			"criteria":    c,
		})
	})
}

// ListVerifications returns the verification history of a document, oldest first.
func (r Repo) ListVerifications(ctx context.Context, documentID string) ([]domain.VerificationResult, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,document_id,document_title,formal_requirements,legal_compliance,citations,logical_coherence,alignment_with_objectives,recommendations_json,created_at
FROM verification_results WHERE document_id=? ORDER BY created_at, rowid`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VerificationResult
	for rows.Next() {
		var v domain.VerificationResult
		var recs string
		if err := rows.Scan(&v.ID, &v.DocumentID, &v.DocumentTitle,
			&v.Criteria.FormalRequirements, &v.Criteria.LegalCompliance, &v.Criteria.Citations,
			&v.Criteria.LogicalCoherence, &v.Criteria.AlignmentWithObjectives,
			&recs, &v.CreatedAt); err != nil {
			return nil, err
		}
		list, err := unmarshalStrings(recs)
		if err != nil {
			return nil, err
		}
		v.Recommendations = list
		out = append(out, v)
	}
	return out, rows.Err()
}
