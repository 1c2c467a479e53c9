package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/storage"
)

// DeviceStore implements storage.DeviceStore using PostgreSQL.
type DeviceStore struct {
	pool *Pool
}

// NewDeviceStore creates a new DeviceStore.
func NewDeviceStore(pool *Pool) *DeviceStore {
	return &DeviceStore{pool: pool}
}

var _ storage.DeviceStore = (*DeviceStore)(nil)

const deviceColumns = `id, user_id, device_token, device_type, is_active, created_at, updated_at`

// Upsert registers a device token. A conflicting token is reassigned to the
// given user and reactivated; the row is never duplicated.
func (s *DeviceStore) Upsert(ctx context.Context, userID, deviceToken string, deviceType model.DeviceType) (*model.Device, error) {
	query := `
		INSERT INTO devices (id, user_id, device_token, device_type)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (device_token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			device_type = EXCLUDED.device_type,
			is_active = TRUE,
			updated_at = now()
		RETURNING ` + deviceColumns

	row := s.pool.QueryRow(ctx, query, uuid.NewString(), userID, deviceToken, string(deviceType))

	device, err := scanDevice(row)
	if err != nil {
		return nil, fmt.Errorf("upsert device: %w", err)
	}
	return device, nil
}

// Deactivate soft-deletes a device. The row survives so notification
// history keeps its device references.
func (s *DeviceStore) Deactivate(ctx context.Context, deviceToken string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE devices SET is_active = FALSE, updated_at = now() WHERE device_token = $1`,
		deviceToken)
	if err != nil {
		return fmt.Errorf("deactivate device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ActiveByUser returns a user's dispatch-eligible devices.
func (s *DeviceStore) ActiveByUser(ctx context.Context, userID string) ([]*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE user_id = $1 AND is_active ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query active devices: %w", err)
	}
	defer rows.Close()

	var out []*model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate device rows: %w", err)
	}
	return out, nil
}

func scanDevice(row pgx.Row) (*model.Device, error) {
	var (
		d   model.Device
		typ string
	)

	err := row.Scan(&d.ID, &d.UserID, &d.DeviceToken, &typ, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.DeviceType = model.DeviceType(typ)
	return &d, nil
}
