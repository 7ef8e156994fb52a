package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"storefront/pkg/domain/model"
)

const notificationColumns = `id, order_id, recipient_address, subject, body, status, attempts, failure_reason, created_at, sent_at, claimed_at`

const (
	insertNotificationQuery = `INSERT INTO notifications (` + notificationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	claimNotificationQuery = `UPDATE notifications
SET status = ?, attempts = attempts + 1, claimed_at = ?
WHERE id = ? AND (status IN (?, ?) OR (status = ? AND claimed_at < ?))`
	updateNotificationQuery = `UPDATE notifications
SET status = ?, failure_reason = ?, sent_at = ?
WHERE id = ? AND status = ?`
	findUndeliveredQuery = `SELECT ` + notificationColumns + `
FROM notifications
WHERE (status IN (?, ?) OR (status = ? AND claimed_at < ?)) AND attempts < ?
ORDER BY created_at
LIMIT ?`
)

type notificationRow struct {
	ID               uuid.UUID      `db:"id"`
	OrderID          uuid.UUID      `db:"order_id"`
	RecipientAddress string         `db:"recipient_address"`
	Subject          string         `db:"subject"`
	Body             string         `db:"body"`
	Status           int            `db:"status"`
	Attempts         int            `db:"attempts"`
	FailureReason    sql.NullString `db:"failure_reason"`
	CreatedAt        time.Time      `db:"created_at"`
	SentAt           sql.NullTime   `db:"sent_at"`
	ClaimedAt        sql.NullTime   `db:"claimed_at"`
}

func NewNotificationRepository(db sqlx.ExtContext) model.NotificationRepository {
	return &notificationRepository{db: db}
}

type notificationRepository struct {
	db sqlx.ExtContext
}

func (r *notificationRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx, insertNotificationQuery,
		n.ID, n.OrderID, n.RecipientAddress, n.Subject, n.Body,
		int(n.Status), n.Attempts, nullString(n.FailureReason), n.CreatedAt, n.SentAt, n.ClaimedAt,
	)
	return errors.Wrap(err, "failed to insert notification")
}

// Claim is a single conditional update, so of two concurrent senders only one sees an affected row.
func (r *notificationRepository) Claim(ctx context.Context, n *model.Notification, staleBefore time.Time) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, claimNotificationQuery,
		int(model.Sending), now, n.ID,
		int(model.Pending), int(model.Failed), int(model.Sending), staleBefore,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim notification")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	if affected == 0 {
		return false, nil
	}

	n.Status = model.Sending
	n.Attempts++
	n.ClaimedAt = &now
	return true, nil
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) error {
	res, err := r.db.ExecContext(ctx, updateNotificationQuery,
		int(n.Status), nullString(n.FailureReason), n.SentAt, n.ID, int(model.Sending),
	)
	if err != nil {
		return errors.Wrap(err, "failed to update notification")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	// Leaving Sending always changes status, so a matching row always counts as changed.
	if affected == 0 {
		return model.ErrNotificationNotClaimed
	}
	return nil
}

func (r *notificationRepository) Find(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, r.db, &row, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotificationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load notification")
	}
	n := row.toModel()
	return &n, nil
}

func (r *notificationRepository) FindUndelivered(ctx context.Context, maxAttempts int, staleBefore time.Time, limit int) ([]model.Notification, error) {
	var rows []notificationRow
	err := sqlx.SelectContext(ctx, r.db, &rows, findUndeliveredQuery,
		int(model.Pending), int(model.Failed), int(model.Sending), staleBefore, maxAttempts, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list undelivered notifications")
	}

	notifications := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.toModel())
	}
	return notifications, nil
}

func (row notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:               row.ID,
		OrderID:          row.OrderID,
		RecipientAddress: row.RecipientAddress,
		Subject:          row.Subject,
		Body:             row.Body,
		Status:           model.NotificationStatus(row.Status),
		Attempts:         row.Attempts,
		FailureReason:    row.FailureReason.String,
		CreatedAt:        row.CreatedAt,
	}
	if row.SentAt.Valid {
		sentAt := row.SentAt.Time
		n.SentAt = &sentAt
	}
	if row.ClaimedAt.Valid {
		claimedAt := row.ClaimedAt.Time
		n.ClaimedAt = &claimedAt
	}
	return n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
