package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"netctld/internal/managers"
	"netctld/internal/models"
)

// HotspotHandler handles access-point lifecycle and client endpoints.
type HotspotHandler struct {
	hotspot *managers.HotspotManager
	devices *managers.DeviceManager
	iface   string
}

// NewHotspotHandler creates a new HotspotHandler instance.
func NewHotspotHandler(hotspot *managers.HotspotManager, devices *managers.DeviceManager, iface string) *HotspotHandler {
	return &HotspotHandler{
		hotspot: hotspot,
		devices: devices,
		iface:   iface,
	}
}

// Routes returns the router for hotspot endpoints.
func (h *HotspotHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.GetStatus)
	r.Post("/start", h.Start)
	r.Post("/stop", h.Stop)
	r.Get("/devices", h.GetDevices)
	r.Get("/devices/count", h.GetDeviceCount)

	return r
}

func (h *HotspotHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.hotspot.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *HotspotHandler) Start(w http.ResponseWriter, r *http.Request) {
	cfg := models.DefaultHotspotConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.hotspot.Start(r.Context(), cfg, h.iface); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HotspotHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.hotspot.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HotspotHandler) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.Devices(r.Context(), h.iface)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"count":   len(devices),
	})
}

func (h *HotspotHandler) GetDeviceCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.devices.Count(r.Context(), h.iface)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
