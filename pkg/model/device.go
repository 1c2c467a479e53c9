package model

import "time"

// DeviceType distinguishes push-capable mobile devices from web sessions.
type DeviceType string

const (
	DeviceTypeMobile DeviceType = "MOBILE"
	DeviceTypeWeb    DeviceType = "WEB"
)

// Device is a delivery target. DeviceToken is a push token for mobile
// devices and a session/channel identifier for web. Tokens are globally
// unique; re-registering an existing token reassigns ownership and
// reactivates it. Removal is a soft delete so notification history stays
// intact.
type Device struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	DeviceToken string     `json:"deviceToken"`
	DeviceType  DeviceType `json:"deviceType"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
