package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hrops/be-hr-attendance/internal/database"
	"github.com/hrops/be-hr-attendance/internal/errors"
)

// Notification statuses.
const (
	StatusSent   = "SENT"
	StatusFailed = "FAILED"
)

// EmailHistoryEntry is one notification attempt. The table is append-only:
// it is both the audit log and the dedup oracle. A SENT entry for a record
// is permanent proof of delivery.
type EmailHistoryEntry struct {
	ID           string
	CreatedAt    time.Time
	ToEmail      string
	CcManager    *string
	Subject      string
	Body         string
	Status       string
	EmployeeID   *string
	ManagerEmail *string
	BatchID      *string
	RecordID     *string
}

// NotificationRepository appends and reads the email notification log.
type NotificationRepository struct {
	q database.Querier
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(q database.Querier) *NotificationRepository {
	return &NotificationRepository{q: q}
}

// HasSent reports whether a SENT notification already exists for the record.
func (r *NotificationRepository) HasSent(ctx context.Context, recordID string) (bool, error) {
	var exists bool

	query := `
		SELECT EXISTS (
			SELECT 1 FROM email_history
			WHERE record_id = $1 AND status = $2
		)
	`
	if err := r.q.QueryRow(ctx, query, recordID, StatusSent).Scan(&exists); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "failed to check notification history")
	}

	return exists, nil
}

// Append inserts one notification attempt. Entries are never updated or
// deleted by normal operation.
func (r *NotificationRepository) Append(ctx context.Context, entry *EmailHistoryEntry) error {
	query := `
		INSERT INTO email_history
		    (id, to_email, cc_manager, subject, body, status,
		     employee_id, manager_email, batch_id, record_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		uuid.NewString(),
		entry.ToEmail,
		entry.CcManager,
		entry.Subject,
		entry.Body,
		entry.Status,
		entry.EmployeeID,
		entry.ManagerEmail,
		entry.BatchID,
		entry.RecordID,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append notification history")
	}

	return nil
}

// List returns notification attempts newest-first.
func (r *NotificationRepository) List(ctx context.Context, limit, offset int) ([]*EmailHistoryEntry, int64, error) {
	var total int64
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM email_history`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count notification history")
	}

	query := `
		SELECT id, created_at, to_email, cc_manager, subject, body, status,
		       employee_id, manager_email, batch_id, record_id
		FROM email_history
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notification history")
	}
	defer rows.Close()

	entries := make([]*EmailHistoryEntry, 0)
	for rows.Next() {
		e := &EmailHistoryEntry{}
		err := rows.Scan(&e.ID, &e.CreatedAt, &e.ToEmail, &e.CcManager,
			&e.Subject, &e.Body, &e.Status,
			&e.EmployeeID, &e.ManagerEmail, &e.BatchID, &e.RecordID)
		if err != nil {
			return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan notification history")
		}
		entries = append(entries, e)
	}

	return entries, total, nil
}
