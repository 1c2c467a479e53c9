package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/storage"
	"go.uber.org/zap"
)

type registerDeviceRequest struct {
	UserID      string           `json:"userId"`
	DeviceToken string           `json:"deviceToken"`
	DeviceType  model.DeviceType `json:"deviceType"`
}

// HandleRegisterDevice registers a push token for a user. Re-registering an
// existing token reassigns it to the given user and reactivates it.
func (c *Controller) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.DeviceToken == "" {
		writeError(w, http.StatusBadRequest, "userId and deviceToken are required")
		return
	}
	switch req.DeviceType {
	case model.DeviceTypeMobile, model.DeviceTypeWeb:
	case "":
		req.DeviceType = model.DeviceTypeMobile
	default:
		writeError(w, http.StatusBadRequest, "deviceType must be MOBILE or WEB")
		return
	}

	device, err := c.App.Devices.Upsert(r.Context(), req.UserID, req.DeviceToken, req.DeviceType)
	if err != nil {
		c.App.Logger.Error("Failed to register device", zap.String("userId", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to register device")
		return
	}

	writeJSON(w, http.StatusCreated, device)
}

// HandleDeactivateDevice soft-deletes a device by token so its notification
// history survives.
func (c *Controller) HandleDeactivateDevice(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing device token")
		return
	}

	if err := c.App.Devices.Deactivate(r.Context(), token); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		c.App.Logger.Error("Failed to deactivate device", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to deactivate device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
