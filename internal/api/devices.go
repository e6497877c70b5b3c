package api

import (
	"database/sql"
	"net/http"

	"github.com/pantrylog/pantrylog/internal/store"
)

// DevicesHandler handles the push-notification device registry.
type DevicesHandler struct {
	DB *sql.DB
}

type registerDeviceRequest struct {
	PushEndpoint string `json:"push_endpoint"`
	UserAgent    string `json:"user_agent"`
}

// Register handles POST /api/devices.
func (h *DevicesHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req registerDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PushEndpoint == "" {
		jsonError(w, http.StatusBadRequest, "push_endpoint required")
		return
	}

	if err := store.RegisterDevice(r.Context(), h.DB, claims.UserID, req.PushEndpoint, req.UserAgent); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to register device")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "device registered"})
}

// Unregister handles DELETE /api/devices.
func (h *DevicesHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		jsonError(w, http.StatusBadRequest, "endpoint query parameter required")
		return
	}

	if err := store.UnregisterDevice(r.Context(), h.DB, endpoint); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to unregister device")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "device unregistered"})
}

// List handles GET /api/devices.
func (h *DevicesHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	devices, err := store.ListDevices(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []store.Device{}
	}
	jsonResponse(w, http.StatusOK, devices)
}
