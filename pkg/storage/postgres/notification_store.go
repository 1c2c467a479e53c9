package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/storage"
)

// NotificationStore implements storage.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

var _ storage.NotificationStore = (*NotificationStore)(nil)

const notificationColumns = `id, user_id, title, body, type, swap_id, device_id, is_read, sent_at, delivered_at`

// Create inserts a new notification record.
func (s *NotificationStore) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	query := `
		INSERT INTO notifications (id, user_id, title, body, type, swap_id, device_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING ` + notificationColumns

	row := s.pool.QueryRow(ctx, query, n.ID, n.UserID, n.Title, n.Body, string(n.Type), n.SwapID, n.DeviceID)

	created, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return created, nil
}

// MarkDelivered stamps delivered_at once; later calls leave the original
// stamp in place.
func (s *NotificationStore) MarkDelivered(ctx context.Context, notificationID string) error {
	query := `UPDATE notifications SET delivered_at = now() WHERE id = $1 AND delivered_at IS NULL`

	if _, err := s.pool.Exec(ctx, query, notificationID); err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkRead flags a notification as read.
func (s *NotificationStore) MarkRead(ctx context.Context, notificationID string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, notificationID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FindByUser returns a user's notifications, newest first.
func (s *NotificationStore) FindByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1 ORDER BY sent_at DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications by user: %w", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification rows: %w", err)
	}
	return out, nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n   model.Notification
		typ string
	)

	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Body,
		&typ,
		&n.SwapID,
		&n.DeviceID,
		&n.IsRead,
		&n.SentAt,
		&n.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}

	n.Type = model.NotificationType(typ)
	return &n, nil
}
