package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/eduardopasouza/virtual-legal-scribe-sub001/internal/domain"
)

// InsertNotification queues a notification and returns its outbox id.
func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(case_id,category,priority,title,body,created_at) VALUES (?,?,?,?,?,?)`,
		n.CaseID, n.Category, n.Priority, n.Title, nullable(n.Body), n.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// PendingNotifications returns undelivered notifications with id > afterID in
// insertion order.
func (r Repo) PendingNotifications(ctx context.Context, afterID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,category,priority,title,COALESCE(body,''),created_at,delivered_at
FROM notifications WHERE delivered_at IS NULL AND id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var delivered sql.NullString
		if err := rows.Scan(&n.ID, &n.CaseID, &n.Category, &n.Priority, &n.Title, &n.Body, &n.CreatedAt, &delivered); err != nil {
			return nil, err
		}
		n.DeliveredAt = ptrFromNull(delivered)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkDelivered stamps a notification as delivered.
func (r Repo) MarkDelivered(ctx context.Context, id int64, at string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET delivered_at=? WHERE id=? AND delivered_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
