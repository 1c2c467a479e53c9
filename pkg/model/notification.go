package model

import "time"

// NotificationType tags the user-facing event a notification records.
type NotificationType string

const (
	NotificationSwapStatusUpdate NotificationType = "SWAP_STATUS_UPDATE"
	NotificationSwapCompleted    NotificationType = "SWAP_COMPLETED"
	NotificationSwapFailed       NotificationType = "SWAP_FAILED"
)

// Notification is an auditable record of a single user-facing event.
// DeliveredAt is stamped once, after the push fan-out has been attempted,
// regardless of per-chunk outcome. It records dispatch, not receipt.
type Notification struct {
	ID     string           `json:"id"`
	UserID string           `json:"userId"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Type   NotificationType `json:"type"`

	SwapID   string `json:"swapId,omitempty"`
	DeviceID string `json:"deviceId,omitempty"`

	IsRead      bool       `json:"isRead"`
	SentAt      time.Time  `json:"sentAt"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}
