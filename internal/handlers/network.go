package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"netctld/internal/managers"
	"netctld/internal/models"
)

// NetworkHandler handles Wi-Fi and connection-profile endpoints.
type NetworkHandler struct {
	wifi *managers.WifiManager
	info *managers.InfoManager
}

// NewNetworkHandler creates a new NetworkHandler instance.
func NewNetworkHandler(wifi *managers.WifiManager, info *managers.InfoManager) *NetworkHandler {
	return &NetworkHandler{
		wifi: wifi,
		info: info,
	}
}

// Routes returns the router for network endpoints.
func (h *NetworkHandler) Routes() chi.Router {
	r := chi.NewRouter()

	// WiFi scanning and connection
	r.Get("/wifi/scan", h.ScanNetworks)
	r.Post("/wifi/connect", h.Connect)
	r.Post("/wifi/disconnect", h.Disconnect)
	r.Post("/wifi/activate", h.ActivateSaved)
	r.Get("/wifi/radio", h.GetRadio)
	r.Put("/wifi/radio", h.SetRadio)

	// Connection details
	r.Get("/info/{ssid}", h.GetNetworkInfo)
	r.Get("/active", h.GetActive)
	r.Get("/interfaces", h.GetInterfaces)

	// Saved networks
	r.Route("/saved", func(r chi.Router) {
		r.Get("/", h.GetSavedConnections)
		r.Delete("/{ssid}", h.ForgetNetwork)
		r.Get("/{ssid}/autoconnect", h.GetAutoconnect)
		r.Put("/{ssid}/autoconnect", h.SetAutoconnect)
		r.Get("/{ssid}/password", h.GetSavedPassword)
	})

	// Network profile groups
	r.Route("/profiles", func(r chi.Router) {
		r.Get("/eligible", h.GetEligibleConnections)
		r.Post("/apply", h.ApplyProfile)
	})

	return r
}

// =============================================================================
// WiFi
// =============================================================================

func (h *NetworkHandler) ScanNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.wifi.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, networks)
}

func (h *NetworkHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SSID == "" {
		writeError(w, http.StatusBadRequest, "ssid is required")
		return
	}

	var (
		status models.ConnectStatus
		err    error
	)
	if req.Password == "" {
		status, err = h.wifi.ConnectOpen(r.Context(), req.SSID)
	} else {
		status, err = h.wifi.ConnectSecured(r.Context(), req.SSID, req.Password, req.Security)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.ConnectStatus{"status": status})
}

func (h *NetworkHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SSID == "" {
		writeError(w, http.StatusBadRequest, "ssid is required")
		return
	}

	if err := h.wifi.Disconnect(r.Context(), req.SSID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.SuccessResponse{
		Status:  "success",
		Message: "Disconnected from " + req.SSID,
	})
}

func (h *NetworkHandler) ActivateSaved(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SSID == "" {
		writeError(w, http.StatusBadRequest, "ssid is required")
		return
	}

	status, err := h.wifi.ActivateSaved(r.Context(), req.SSID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.ConnectStatus{"status": status})
}

func (h *NetworkHandler) GetRadio(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.wifi.RadioEnabled(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *NetworkHandler) SetRadio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.wifi.SetRadioEnabled(r.Context(), req.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

// =============================================================================
// Connection details
// =============================================================================

func (h *NetworkHandler) GetNetworkInfo(w http.ResponseWriter, r *http.Request) {
	ssid := chi.URLParam(r, "ssid")
	info, err := h.info.NetworkInfo(r.Context(), ssid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *NetworkHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.info.Active(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, active)
}

func (h *NetworkHandler) GetInterfaces(w http.ResponseWriter, r *http.Request) {
	interfaces, err := h.info.Interfaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"interfaces": interfaces,
		"count":      len(interfaces),
	})
}

// =============================================================================
// Saved networks
// =============================================================================

func (h *NetworkHandler) GetSavedConnections(w http.ResponseWriter, r *http.Request) {
	saved, err := h.info.SavedConnections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *NetworkHandler) ForgetNetwork(w http.ResponseWriter, r *http.Request) {
	ssid := chi.URLParam(r, "ssid")
	if err := h.info.Forget(r.Context(), ssid); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.SuccessResponse{
		Status:  "success",
		Message: "Network " + ssid + " forgotten",
	})
}

func (h *NetworkHandler) GetAutoconnect(w http.ResponseWriter, r *http.Request) {
	ssid := chi.URLParam(r, "ssid")
	enabled, err := h.info.Autoconnect(r.Context(), ssid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"autoconnect": enabled})
}

func (h *NetworkHandler) SetAutoconnect(w http.ResponseWriter, r *http.Request) {
	ssid := chi.URLParam(r, "ssid")
	var req struct {
		Autoconnect bool `json:"autoconnect"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.info.SetAutoconnect(r.Context(), ssid, req.Autoconnect); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"autoconnect": req.Autoconnect})
}

func (h *NetworkHandler) GetSavedPassword(w http.ResponseWriter, r *http.Request) {
	ssid := chi.URLParam(r, "ssid")
	psk, err := h.info.SavedPassword(r.Context(), ssid)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ssid": ssid, "password": psk})
}

// =============================================================================
// Network profile groups
// =============================================================================

func (h *NetworkHandler) GetEligibleConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.info.EligibleConnections(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (h *NetworkHandler) ApplyProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.NetworkProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if profile.Name == "" {
		writeError(w, http.StatusBadRequest, "profile name is required")
		return
	}

	if err := h.info.ApplyProfile(r.Context(), profile); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.SuccessResponse{
		Status:  "success",
		Message: "Profile " + profile.Name + " applied",
	})
}
