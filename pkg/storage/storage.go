// Package storage defines the persistence contracts consumed by the
// reconciliation core. The stores are the single durable authority for swap
// state; the core never caches entity state across reconciliation ticks.
package storage

import (
	"context"
	"errors"

	"github.com/shapeshift/notification-server/pkg/model"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicate is returned when a unique constraint is violated, e.g.
	// creating a swap whose external id already exists.
	ErrDuplicate = errors.New("storage: duplicate key")
)

// SwapUpdate carries the fields a reconciliation transition persists.
// BuyTxHash and TxLink are applied only when non-empty so an already
// observed hash is never cleared by a later poll.
type SwapUpdate struct {
	Status        model.SwapStatus
	StatusMessage string
	BuyTxHash     string
	TxLink        string
}

// SwapStore is the swap repository contract.
type SwapStore interface {
	Create(ctx context.Context, swap *model.Swap) (*model.Swap, error)

	// FindNonTerminal returns all swaps whose stored status is IDLE or
	// PENDING. Terminal swaps are never returned.
	FindNonTerminal(ctx context.Context) ([]*model.Swap, error)

	// FindBySwapID looks a swap up by its external identifier.
	FindBySwapID(ctx context.Context, swapID string) (*model.Swap, error)

	FindByUser(ctx context.Context, userID string, limit int) ([]*model.Swap, error)

	// FindByAccountID matches either side of the swap. The caller passes the
	// hashed account id; raw identifiers never reach the store.
	FindByAccountID(ctx context.Context, hashedAccountID string) ([]*model.Swap, error)

	// UpdateStatus persists a transition keyed by external swap id and
	// returns the updated record.
	UpdateStatus(ctx context.Context, swapID string, upd SwapUpdate) (*model.Swap, error)
}

// NotificationStore persists user-facing notification records.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)

	// MarkDelivered stamps deliveredAt. The stamp is write-once: a second
	// call for the same notification is a no-op.
	MarkDelivered(ctx context.Context, notificationID string) error

	MarkRead(ctx context.Context, notificationID string) error

	FindByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// DeviceStore persists push/session delivery targets.
type DeviceStore interface {
	// Upsert registers a device token. If the token already exists it is
	// reassigned to the given user and reactivated.
	Upsert(ctx context.Context, userID, deviceToken string, deviceType model.DeviceType) (*model.Device, error)

	// Deactivate soft-deletes a device by token.
	Deactivate(ctx context.Context, deviceToken string) error

	// ActiveByUser returns only devices eligible for dispatch.
	ActiveByUser(ctx context.Context, userID string) ([]*model.Device, error)
}
