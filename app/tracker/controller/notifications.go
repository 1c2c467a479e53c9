package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shapeshift/notification-server/pkg/model"
	"github.com/shapeshift/notification-server/pkg/storage"
	"go.uber.org/zap"
)

// HandleUserNotifications returns a user's notification history, newest
// first.
func (c *Controller) HandleUserNotifications(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	notifications, err := c.App.Notifications.FindByUser(r.Context(), userID, limit)
	if err != nil {
		c.App.Logger.Error("Failed to query notifications", zap.String("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if notifications == nil {
		notifications = []*model.Notification{}
	}

	writeJSON(w, http.StatusOK, notifications)
}

// HandleMarkNotificationRead marks a single notification as read.
func (c *Controller) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing notification id")
		return
	}

	if err := c.App.Notifications.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		c.App.Logger.Error("Failed to mark notification read", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
