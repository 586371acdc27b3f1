package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/events"
)

const documentColumns = `id,case_id,document_type,title,sections_json,content,created_at`

func scanDocument(scan func(dest ...any) error) (domain.DraftedDocument, error) {
	var d domain.DraftedDocument
	var sections string
	if err := scan(&d.ID, &d.CaseID, &d.DocumentType, &d.Title, &sections, &d.Content, &d.CreatedAt); err != nil {
		return domain.DraftedDocument{}, err
	}
	list, err := unmarshalStrings(sections)
	if err != nil {
		return domain.DraftedDocument{}, err
	}
	d.Sections = list
	return d, nil
}

// InsertDocument stores a drafted document and records document.drafted.
func (r Repo) InsertDocument(ctx context.Context, d domain.DraftedDocument, actorID string) error {
	if d.ID == "" || d.CaseID == "" {
		return errors.New("id and case_id required")
	}
	sections, err := marshalStrings(d.Sections)
	if err != nil {
		return err
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO drafted_documents(`+documentColumns+`) VALUES (?,?,?,?,?,?,?)`,
			d.ID, d.CaseID, d.DocumentType, d.Title, sections, d.Content, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		return r.Events.Append(ctx, tx, events.DocumentDrafted, d.CaseID, "document", d.ID, actorID, events.Payload{
			"document_type": d.DocumentType,
			"title":         d.Title,
		})
	})
}

func (r Repo) GetDocument(ctx context.Context, id string) (domain.DraftedDocument, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM drafted_documents WHERE id=?`, id)
	d, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DraftedDocument{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns the drafts of a case, oldest first.
func (r Repo) ListDocuments(ctx context.Context, caseID string) ([]domain.DraftedDocument, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM drafted_documents WHERE case_id=? ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DraftedDocument
	for rows.Next() {
		d, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// HasDraft reports whether at least one document was drafted for the case.
func (r Repo) HasDraft(ctx context.Context, caseID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafted_documents WHERE case_id=?`, caseID).Scan(&n)
	return n > 0, err
}

// HasPassingVerification reports whether any document of the case has a
// verification that met the formal requirements.
func (r Repo) HasPassingVerification(ctx context.Context, caseID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM verification_results v
JOIN drafted_documents d ON d.id = v.document_id
WHERE d.case_id=? AND v.formal_requirements=1`, caseID).Scan(&n)
	return n > 0, err
}
