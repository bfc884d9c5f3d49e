package telemetry

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jwmdev/transitspawn/internal/model"
)

// Handler adapts a Store to the minimal device-telemetry HTTP surface
// mounted by the unified backend (spec §6 C9).
type Handler struct {
	store *Store
}

// NewHandler builds a Handler over store.
func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// Mount registers the telemetry routes.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/telemetry/heartbeat", h.heartbeat)
	r.Get("/telemetry/devices", h.devices)
	r.Get("/telemetry/devices/{deviceId}", h.device)
}

type heartbeatRequest struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad_request", "message": "device_id is required"})
		return
	}
	h.store.Heartbeat(req.DeviceID, model.LatLon{Lat: req.Latitude, Lon: req.Longitude}, time.Now())
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) devices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"devices": h.store.All()})
}

func (h *Handler) device(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "deviceId")
	d, ok := h.store.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found", "message": "unknown device"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d)
}
