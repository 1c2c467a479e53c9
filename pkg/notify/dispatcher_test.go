package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shapeshift/notification-server/pkg/fanout"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeNotificationStore struct {
	created      []*model.Notification
	deliveredIDs []string
	createErr    error
}

func (f *fakeNotificationStore) Create(_ context.Context, n *model.Notification) (*model.Notification, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	n.ID = uuid.NewString()
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeNotificationStore) MarkDelivered(_ context.Context, id string) error {
	f.deliveredIDs = append(f.deliveredIDs, id)
	return nil
}

func (f *fakeNotificationStore) MarkRead(context.Context, string) error { return nil }

func (f *fakeNotificationStore) FindByUser(context.Context, string, int) ([]*model.Notification, error) {
	return nil, nil
}

type fakeDeviceStore struct {
	devices []*model.Device
	err     error
}

func (f *fakeDeviceStore) Upsert(context.Context, string, string, model.DeviceType) (*model.Device, error) {
	return nil, nil
}

func (f *fakeDeviceStore) Deactivate(context.Context, string) error { return nil }

func (f *fakeDeviceStore) ActiveByUser(context.Context, string) ([]*model.Device, error) {
	return f.devices, f.err
}

type fakeGateway struct {
	chunkSize  int
	sentChunks [][]push.Message
	failChunks map[int]error
}

func (f *fakeGateway) IsValidToken(token string) bool {
	return token != "" && token != "malformed"
}

func (f *fakeGateway) Chunk(messages []push.Message) [][]push.Message {
	size := f.chunkSize
	if size <= 0 {
		size = 100
	}
	var chunks [][]push.Message
	for len(messages) > 0 {
		n := size
		if len(messages) < n {
			n = len(messages)
		}
		chunks = append(chunks, messages[:n])
		messages = messages[n:]
	}
	return chunks
}

func (f *fakeGateway) Send(_ context.Context, chunk []push.Message) ([]push.Ticket, error) {
	idx := len(f.sentChunks)
	f.sentChunks = append(f.sentChunks, chunk)
	if err, ok := f.failChunks[idx]; ok {
		return nil, err
	}
	tickets := make([]push.Ticket, len(chunk))
	for i := range tickets {
		tickets[i] = push.Ticket{Status: push.TicketStatusOK}
	}
	return tickets, nil
}

type recordingEmitter struct {
	events []struct {
		userID  string
		event   string
		payload any
	}
}

func (r *recordingEmitter) Emit(_ context.Context, userID, event string, payload any) {
	r.events = append(r.events, struct {
		userID  string
		event   string
		payload any
	}{userID, event, payload})
}

func (r *recordingEmitter) byEvent(event string) int {
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func successSwap() *model.Swap {
	return &model.Swap{
		ID:        "internal-1",
		SwapID:    "swap-1",
		UserID:    "user-1",
		Status:    model.SwapStatusSuccess,
		SellAsset: model.AssetRef{Symbol: "ETH"},
		BuyAsset:  model.AssetRef{Symbol: "BTC"},
	}
}

func newTestDispatcher(notifications *fakeNotificationStore, devices *fakeDeviceStore, gw *fakeGateway) (*Dispatcher, *recordingEmitter) {
	emitter := &recordingEmitter{}
	return NewDispatcher(notifications, devices, gw, emitter, zap.NewNop()), emitter
}

func TestOnTransition_SuccessCreatesNotificationAndPushes(t *testing.T) {
	notifications := &fakeNotificationStore{}
	devices := &fakeDeviceStore{devices: []*model.Device{
		{ID: "d-1", UserID: "user-1", DeviceToken: "tok-1", DeviceType: model.DeviceTypeMobile, IsActive: true},
		{ID: "d-2", UserID: "user-1", DeviceToken: "tok-2", DeviceType: model.DeviceTypeMobile, IsActive: true},
	}}
	gw := &fakeGateway{}
	d, emitter := newTestDispatcher(notifications, devices, gw)

	require.NoError(t, d.OnTransition(context.Background(), successSwap()))

	require.Len(t, notifications.created, 1)
	n := notifications.created[0]
	assert.Equal(t, model.NotificationSwapCompleted, n.Type)
	assert.Equal(t, "Swap Completed!", n.Title)
	assert.Contains(t, n.Body, "ETH to BTC")
	assert.Equal(t, "internal-1", n.SwapID)

	require.Len(t, gw.sentChunks, 1)
	assert.Len(t, gw.sentChunks[0], 2)

	assert.Equal(t, []string{n.ID}, notifications.deliveredIDs)
	assert.Equal(t, 1, emitter.byEvent(fanout.EventSwapUpdate))
	assert.Equal(t, 1, emitter.byEvent(fanout.EventNotification))
}

func TestOnTransition_FailedUsesFailureTemplate(t *testing.T) {
	notifications := &fakeNotificationStore{}
	d, _ := newTestDispatcher(notifications, &fakeDeviceStore{}, &fakeGateway{})

	swap := successSwap()
	swap.Status = model.SwapStatusFailed

	require.NoError(t, d.OnTransition(context.Background(), swap))

	require.Len(t, notifications.created, 1)
	assert.Equal(t, model.NotificationSwapFailed, notifications.created[0].Type)
	assert.Equal(t, "Swap Failed", notifications.created[0].Title)
	assert.Contains(t, notifications.created[0].Body, "has failed")
}

func TestOnTransition_NonTerminalEmitsUpdateOnly(t *testing.T) {
	for _, status := range []model.SwapStatus{model.SwapStatusIdle, model.SwapStatusPending} {
		notifications := &fakeNotificationStore{}
		gw := &fakeGateway{}
		d, emitter := newTestDispatcher(notifications, &fakeDeviceStore{}, gw)

		swap := successSwap()
		swap.Status = status

		require.NoError(t, d.OnTransition(context.Background(), swap))

		assert.Empty(t, notifications.created, "status %s", status)
		assert.Empty(t, gw.sentChunks, "status %s", status)
		assert.Equal(t, 1, emitter.byEvent(fanout.EventSwapUpdate), "status %s", status)
		assert.Equal(t, 0, emitter.byEvent(fanout.EventNotification), "status %s", status)
	}
}

func TestOnTransition_InactiveAndWebDevicesGetNoPush(t *testing.T) {
	// ActiveByUser already excludes inactive devices; web devices are
	// filtered by the dispatcher itself.
	notifications := &fakeNotificationStore{}
	devices := &fakeDeviceStore{devices: []*model.Device{
		{ID: "d-1", UserID: "user-1", DeviceToken: "tok-1", DeviceType: model.DeviceTypeMobile, IsActive: true},
		{ID: "d-2", UserID: "user-1", DeviceToken: "chan-1", DeviceType: model.DeviceTypeWeb, IsActive: true},
	}}
	gw := &fakeGateway{}
	d, _ := newTestDispatcher(notifications, devices, gw)

	swap := successSwap()
	swap.Status = model.SwapStatusFailed
	require.NoError(t, d.OnTransition(context.Background(), swap))

	require.Len(t, gw.sentChunks, 1)
	require.Len(t, gw.sentChunks[0], 1)
	assert.Equal(t, "tok-1", gw.sentChunks[0][0].To)
}

func TestOnTransition_MalformedTokenDropped(t *testing.T) {
	notifications := &fakeNotificationStore{}
	devices := &fakeDeviceStore{devices: []*model.Device{
		{ID: "d-1", DeviceToken: "malformed", DeviceType: model.DeviceTypeMobile},
		{ID: "d-2", DeviceToken: "tok-2", DeviceType: model.DeviceTypeMobile},
	}}
	gw := &fakeGateway{}
	d, _ := newTestDispatcher(notifications, devices, gw)

	require.NoError(t, d.OnTransition(context.Background(), successSwap()))

	require.Len(t, gw.sentChunks, 1)
	require.Len(t, gw.sentChunks[0], 1)
	assert.Equal(t, "tok-2", gw.sentChunks[0][0].To)
}

func TestOnTransition_ChunkFailureStillStampsDeliveryOnce(t *testing.T) {
	notifications := &fakeNotificationStore{}
	devices := &fakeDeviceStore{devices: []*model.Device{
		{ID: "d-1", DeviceToken: "tok-1", DeviceType: model.DeviceTypeMobile},
		{ID: "d-2", DeviceToken: "tok-2", DeviceType: model.DeviceTypeMobile},
	}}
	gw := &fakeGateway{
		chunkSize:  1,
		failChunks: map[int]error{0: errors.New("gateway unavailable")},
	}
	d, _ := newTestDispatcher(notifications, devices, gw)

	require.NoError(t, d.OnTransition(context.Background(), successSwap()))

	// Both chunks attempted despite the first failing.
	assert.Len(t, gw.sentChunks, 2)
	// Delivery stamped exactly once.
	assert.Len(t, notifications.deliveredIDs, 1)
}

func TestOnTransition_ZeroDevicesCreatesNotificationWithoutStamp(t *testing.T) {
	notifications := &fakeNotificationStore{}
	gw := &fakeGateway{}
	d, _ := newTestDispatcher(notifications, &fakeDeviceStore{}, gw)

	require.NoError(t, d.OnTransition(context.Background(), successSwap()))

	assert.Len(t, notifications.created, 1)
	assert.Empty(t, gw.sentChunks)
	assert.Empty(t, notifications.deliveredIDs)
}

func TestOnTransition_NotificationCreateFailureSurfaces(t *testing.T) {
	notifications := &fakeNotificationStore{createErr: errors.New("db down")}
	d, _ := newTestDispatcher(notifications, &fakeDeviceStore{}, &fakeGateway{})

	err := d.OnTransition(context.Background(), successSwap())
	assert.Error(t, err)
}
