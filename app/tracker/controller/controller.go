// Package controller exposes the swap tracker HTTP API: swap registration
// and queries, manual polling, notification history, device registration,
// and the realtime websocket endpoint.
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shapeshift/notification-server/app/tracker/types"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/swaps", c.HandleCreateSwap).Methods(http.MethodPost)
	r.HandleFunc("/swaps/by-account", c.HandleSwapsByAccount).Methods(http.MethodGet)
	r.HandleFunc("/swaps/{swapId}/poll", c.HandlePollSwap).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/swaps", c.HandleUserSwaps).Methods(http.MethodGet)

	r.HandleFunc("/users/{userId}/notifications", c.HandleUserNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{id}/read", c.HandleMarkNotificationRead).Methods(http.MethodPost)

	r.HandleFunc("/devices", c.HandleRegisterDevice).Methods(http.MethodPost)
	r.HandleFunc("/devices/{token}", c.HandleDeactivateDevice).Methods(http.MethodDelete)

	r.HandleFunc("/ws", c.HandleWebSocket)

	return r, nil
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Development: Echo back the origin to allow credentials with any origin
		// TODO: Restrict this in production to specific domains
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
