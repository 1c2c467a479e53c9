// Package notify turns swap-status transitions into notification records,
// push deliveries, and realtime fanout events.
package notify

import (
	"context"
	"fmt"

	"github.com/shapeshift/notification-server/pkg/fanout"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/push"
	"github.com/shapeshift/notification-server/pkg/storage"
	"go.uber.org/zap"
)

// Emitter is the realtime delivery surface the dispatcher fans out to.
// Satisfied by fanout.Fanout.
type Emitter interface {
	Emit(ctx context.Context, userID, event string, payload any)
}

// Dispatcher handles detected transitions. Transitions into SUCCESS or
// FAILED produce a notification record plus push and socket delivery; every
// transition produces a swap-update socket event.
type Dispatcher struct {
	Notifications storage.NotificationStore
	Devices       storage.DeviceStore
	Gateway       push.Gateway
	Fanout        Emitter
	Logger        *zap.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	notifications storage.NotificationStore,
	devices storage.DeviceStore,
	gateway push.Gateway,
	emitter Emitter,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		Notifications: notifications,
		Devices:       devices,
		Gateway:       gateway,
		Fanout:        emitter,
		Logger:        logger,
	}
}

// OnTransition is invoked once per detected transition, after the new
// status has been durably persisted. The swap passed in is the updated
// record, never a stale snapshot.
func (d *Dispatcher) OnTransition(ctx context.Context, swap *model.Swap) error {
	d.Fanout.Emit(ctx, swap.UserID, fanout.EventSwapUpdate, swap)

	title, body, typ, worthy := notificationContent(swap)
	if !worthy {
		return nil
	}

	notification, err := d.Notifications.Create(ctx, &model.Notification{
		UserID: swap.UserID,
		Title:  title,
		Body:   body,
		Type:   typ,
		SwapID: swap.ID,
	})
	if err != nil {
		return fmt.Errorf("create notification for swap %s: %w", swap.SwapID, err)
	}

	d.Fanout.Emit(ctx, swap.UserID, fanout.EventNotification, notification)

	d.sendPush(ctx, notification)
	return nil
}

// notificationContent decides whether a transition is notification-worthy
// and renders its title/body. Only terminal statuses notify.
func notificationContent(swap *model.Swap) (title, body string, typ model.NotificationType, worthy bool) {
	switch swap.Status {
	case model.SwapStatusSuccess:
		return "Swap Completed!",
			fmt.Sprintf("Your %s to %s swap has been completed successfully", swap.SellAsset.Symbol, swap.BuyAsset.Symbol),
			model.NotificationSwapCompleted,
			true
	case model.SwapStatusFailed:
		return "Swap Failed",
			fmt.Sprintf("Your %s to %s swap has failed", swap.SellAsset.Symbol, swap.BuyAsset.Symbol),
			model.NotificationSwapFailed,
			true
	default:
		return "", "", "", false
	}
}

// sendPush fans the notification out to the user's active mobile devices.
// Every failure mode here is absorbed: partial delivery is acceptable and
// the notification stays queryable either way.
func (d *Dispatcher) sendPush(ctx context.Context, notification *model.Notification) {
	devices, err := d.Devices.ActiveByUser(ctx, notification.UserID)
	if err != nil {
		d.Logger.Error("Failed to load devices for push",
			zap.String("userId", notification.UserID),
			zap.String("notificationId", notification.ID),
			zap.Error(err))
		return
	}

	if len(devices) == 0 {
		d.Logger.Info("No active devices found for user",
			zap.String("userId", notification.UserID))
		return
	}

	messages := d.buildMessages(notification, devices)

	chunks := d.Gateway.Chunk(messages)
	sent := 0
	for i, chunk := range chunks {
		tickets, err := d.Gateway.Send(ctx, chunk)
		if err != nil {
			d.Logger.Error("Error sending push chunk",
				zap.String("notificationId", notification.ID),
				zap.Int("chunk", i),
				zap.Error(err))
			continue
		}
		sent += len(tickets)
	}

	// Delivery stamp records that dispatch was attempted, once, even when
	// some or all chunks failed.
	if err := d.Notifications.MarkDelivered(ctx, notification.ID); err != nil {
		d.Logger.Error("Failed to stamp notification delivery",
			zap.String("notificationId", notification.ID),
			zap.Error(err))
	}

	d.Logger.Info("Push fan-out attempted",
		zap.String("notificationId", notification.ID),
		zap.Int("devices", len(devices)),
		zap.Int("messages", len(messages)),
		zap.Int("tickets", sent))
}

// buildMessages converts a user's active mobile devices into push messages,
// dropping malformed tokens. Web devices are session targets and are served
// by the fanout path instead.
func (d *Dispatcher) buildMessages(notification *model.Notification, devices []*model.Device) []push.Message {
	var messages []push.Message
	for _, device := range devices {
		if device.DeviceType != model.DeviceTypeMobile {
			continue
		}
		if !d.Gateway.IsValidToken(device.DeviceToken) {
			d.Logger.Warn("Dropping malformed push token",
				zap.String("userId", device.UserID),
				zap.String("deviceId", device.ID))
			continue
		}
		messages = append(messages, push.Message{
			To:        device.DeviceToken,
			Title:     notification.Title,
			Body:      notification.Body,
			Sound:     "default",
			Priority:  "high",
			ChannelID: "swap-notifications",
			Data: map[string]any{
				"notificationId": notification.ID,
				"type":           string(notification.Type),
				"swapId":         notification.SwapID,
			},
		})
	}
	return messages
}
