package models

import "time"

// =============================================================================
// Wi-Fi
// =============================================================================

// Band labels as reported to clients. Networks outside the known frequency
// ranges are labelled Unknown rather than dropped.
const (
	Band24GHz   = "2.4 GHz"
	Band5GHz    = "5 GHz"
	Band6GHz    = "6 GHz"
	BandAuto    = "Auto"
	BandUnknown = "Unknown"
)

// WifiNetwork is one reconciled scan result. After reconciliation there is at
// most one entry per (SSID, band); the connected variant wins over duplicates,
// otherwise the strongest signal does.
type WifiNetwork struct {
	SSID         string `json:"ssid"`
	Signal       int    `json:"signal"`
	Secured      bool   `json:"secured"`
	Connected    bool   `json:"connected"`
	Band         string `json:"band"`
	Channel      int    `json:"channel"`
	FreqMHz      int    `json:"freq_mhz"`
	SecurityType string `json:"security_type"`
}

// Key returns the deduplication identity for scan reconciliation.
func (n WifiNetwork) Key() string {
	return n.SSID + "\x00" + n.Band
}

// ConnectStatus is the outcome of an activation request. Queued means
// NetworkManager accepted the request for asynchronous processing without
// confirming activation.
type ConnectStatus string

const (
	StatusConnected ConnectStatus = "connected"
	StatusQueued    ConnectStatus = "queued"
)

// ConnectRequest is the body for wifi connect/disconnect/activate endpoints.
type ConnectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password,omitempty"`
	Security string `json:"security,omitempty"`
}

// NetworkInfo is the merged view of a saved connection profile and the live
// device state. Fields neither source could answer stay empty.
type NetworkInfo struct {
	ConnectionType   string   `json:"connection_type,omitempty"`
	MACAddress       string   `json:"mac_address,omitempty"`
	IPAddress        string   `json:"ip_address,omitempty"`
	Gateway          string   `json:"gateway,omitempty"`
	SubnetMask       string   `json:"subnet_mask,omitempty"`
	DNS              []string `json:"dns,omitempty"`
	IPv6Address      string   `json:"ipv6_address,omitempty"`
	Interface        string   `json:"interface,omitempty"`
	LinkSpeedMbps    int      `json:"link_speed_mbps,omitempty"`
	State            string   `json:"state,omitempty"`
	UUID             string   `json:"uuid,omitempty"`
	DHCPLeaseSeconds int      `json:"dhcp_lease_seconds,omitempty"`
}

// SavedConnection identifies a known wireless network profile.
type SavedConnection struct {
	UUID string `json:"uuid"`
	SSID string `json:"ssid"`
}

// Connection is a NetworkManager connection profile as listed for network
// profile groups (only wifi and ethernet profiles reach clients).
type Connection struct {
	Name   string `json:"name"`
	UUID   string `json:"uuid"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// NetworkProfile groups connection UUIDs that should autoconnect together.
// Profile files themselves are persisted by the caller, not here.
type NetworkProfile struct {
	Name        string   `json:"name"`
	Connections []string `json:"connections"`
	Active      bool     `json:"active"`
}

// ActiveConnections summarises what is currently up.
type ActiveConnections struct {
	WifiSSID        string `json:"wifi_ssid,omitempty"`
	WiredConnection string `json:"wired_connection,omitempty"`
}

// InterfaceInfo is one host network interface with traffic counters.
type InterfaceInfo struct {
	Name      string `json:"name"`
	MAC       string `json:"mac_address,omitempty"`
	IPv4      string `json:"ipv4,omitempty"`
	IPv6      string `json:"ipv6,omitempty"`
	MTU       int    `json:"mtu"`
	Up        bool   `json:"up"`
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	TxPackets uint64 `json:"tx_packets"`
}

// =============================================================================
// Hotspot
// =============================================================================

// DeviceKind classifies a connected hotspot client for iconography.
type DeviceKind string

const (
	DevicePhone    DeviceKind = "phone"
	DeviceTv       DeviceKind = "tv"
	DeviceComputer DeviceKind = "computer"
	DeviceIot      DeviceKind = "iot"
	DeviceUnknown  DeviceKind = "unknown"
)

// ConnectedDevice is one client attached to the hotspot subnet. Identity is
// the MAC address, falling back to IP when the source has no link-layer data.
type ConnectedDevice struct {
	IP          string     `json:"ip"`
	MAC         string     `json:"mac"`
	Hostname    string     `json:"hostname,omitempty"`
	LeaseExpiry int64      `json:"lease_expiry,omitempty"`
	Kind        DeviceKind `json:"kind"`
}

// HotspotStatus reports whether the hotspot profile is activated.
type HotspotStatus struct {
	Active bool   `json:"active"`
	IP     string `json:"ip,omitempty"`
}

// =============================================================================
// Common API envelope
// =============================================================================

type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime_seconds"`
}
