// Package managers implements the network control and state reconciliation
// core: Wi-Fi scanning and connection, hotspot lifecycle, connected-device
// discovery, and connection/profile bookkeeping. Managers hold no cross-call
// state; every operation re-derives its view from live system output.
package managers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"netctld/internal/models"
	"netctld/internal/nmcli"
)

// cliError carries the raw nmcli failure message through the retry cascades
// so it can be classified and, if fatal, wrapped for the caller.
type cliError string

func (e cliError) Error() string { return string(e) }

// WifiManager drives Wi-Fi scanning and connection through nmcli.
type WifiManager struct {
	nm  nmcli.Runner
	log zerolog.Logger
}

// NewWifiManager creates a new WifiManager.
func NewWifiManager(nm nmcli.Runner) *WifiManager {
	return &WifiManager{
		nm:  nm,
		log: log.With().Str("component", "wifi").Logger(),
	}
}

// RadioEnabled reports whether the Wi-Fi radio is on.
func (m *WifiManager) RadioEnabled(ctx context.Context) (bool, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "WIFI", "radio")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out.Stdout) == "enabled", nil
}

// SetRadioEnabled switches the Wi-Fi radio on or off.
func (m *WifiManager) SetRadioEnabled(ctx context.Context, enabled bool) error {
	state := "off"
	if enabled {
		state = "on"
	}
	out, err := m.nm.Run(ctx, "radio", "wifi", state)
	if err != nil {
		return err
	}
	if !out.OK() {
		return fmt.Errorf("failed to set WiFi state: %s", out.Message())
	}
	return nil
}

// Scan triggers a rescan and returns the reconciled, ordered network list.
func (m *WifiManager) Scan(ctx context.Context) ([]models.WifiNetwork, error) {
	out, err := m.nm.Run(ctx,
		"-t",
		"-f", "SSID,SIGNAL,SECURITY,ACTIVE,CHAN,FREQ",
		"dev", "wifi", "list",
		"--rescan", "yes",
	)
	if err != nil {
		return nil, err
	}
	if !out.OK() {
		return nil, fmt.Errorf("failed to scan networks: %s", out.Message())
	}
	return reconcileScan(out.Stdout), nil
}

// reconcileScan parses raw terse scan output and merges duplicate
// (SSID, band) rows: a connected row beats a disconnected one, otherwise the
// stronger signal wins. Output is ordered connected-first, then by signal.
func reconcileScan(raw string) []models.WifiNetwork {
	byKey := make(map[string]models.WifiNetwork)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := nmcli.SplitFieldsRight(line, 6)
		if fields == nil {
			continue
		}
		ssid := fields[0]
		if ssid == "" {
			continue
		}
		security := fields[2]
		secured := security != "" && security != "--"
		freq := nmcli.ParseUintDigits(fields[5])

		network := models.WifiNetwork{
			SSID:         ssid,
			Signal:       nmcli.ParseUintDigits(fields[1]),
			Secured:      secured,
			Connected:    fields[3] == "yes",
			Band:         bandForFreq(freq),
			Channel:      nmcli.ParseUintDigits(fields[4]),
			FreqMHz:      freq,
			SecurityType: securityTypeFor(security, secured),
		}

		key := network.Key()
		existing, seen := byKey[key]
		if !seen {
			byKey[key] = network
			continue
		}
		if network.Connected && !existing.Connected {
			byKey[key] = network
		} else if network.Connected == existing.Connected && network.Signal > existing.Signal {
			byKey[key] = network
		}
	}

	networks := make([]models.WifiNetwork, 0, len(byKey))
	for _, n := range byKey {
		networks = append(networks, n)
	}
	sortNetworks(networks)
	return networks
}

// sortNetworks orders connected entries first, then by descending signal.
func sortNetworks(networks []models.WifiNetwork) {
	sort.SliceStable(networks, func(i, j int) bool {
		a, b := networks[i], networks[j]
		if a.Connected != b.Connected {
			return a.Connected
		}
		if a.Signal != b.Signal {
			return a.Signal > b.Signal
		}
		return a.SSID < b.SSID
	})
}

func bandForFreq(freqMHz int) string {
	switch {
	case freqMHz >= 2400 && freqMHz <= 2500:
		return models.Band24GHz
	case freqMHz >= 4900 && freqMHz <= 5900:
		return models.Band5GHz
	case freqMHz >= 5925 && freqMHz <= 7125:
		return models.Band6GHz
	default:
		return models.BandUnknown
	}
}

// securityTypeFor classifies the raw SECURITY column by substring precedence.
func securityTypeFor(security string, secured bool) string {
	switch {
	case strings.Contains(security, "WPA3"):
		return "WPA3"
	case strings.Contains(security, "WPA2"):
		return "WPA2"
	case strings.Contains(security, "WPA"):
		return "WPA"
	case strings.Contains(security, "WEP"):
		return "WEP"
	case secured:
		return "Secured"
	default:
		return "Open"
	}
}

// ActiveSSID returns the SSID of the in-use access point, if any.
func (m *WifiManager) ActiveSSID(ctx context.Context) (string, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "ACTIVE,SSID", "dev", "wifi")
	if err != nil {
		return "", err
	}
	if !out.OK() {
		return "", fmt.Errorf("failed to get active Wi-Fi: %s", out.Message())
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		active, ssid, ok := strings.Cut(line, ":")
		if ok && active == "yes" && ssid != "" {
			return ssid, nil
		}
	}
	return "", nil
}

// ConnectOpen connects to an open network. Interrupted and not-yet-scanned
// failures trigger one rescan-then-retry; enqueued activations come back as
// StatusQueued rather than an error.
func (m *WifiManager) ConnectOpen(ctx context.Context, ssid string) (models.ConnectStatus, error) {
	status, err := m.connectOpenOnce(ctx, ssid)
	if err == nil {
		return status, nil
	}
	if nmcli.IsConnectionInterrupted(err.Error()) || nmcli.IsNetworkNotFound(err.Error()) {
		m.rescan(ctx)
		status, err = m.connectOpenOnce(ctx, ssid)
	}
	if err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}
	return status, nil
}

// ConnectSecured connects to a secured network. On a missing key-mgmt
// property it falls back to explicit profile creation; interrupted and
// not-found failures get one rescan-then-retry.
func (m *WifiManager) ConnectSecured(ctx context.Context, ssid, password, securityHint string) (models.ConnectStatus, error) {
	status, err := m.connectSecuredOnce(ctx, ssid, password)
	if err == nil {
		return status, nil
	}
	if nmcli.IsKeyMgmtMissing(err.Error()) {
		return m.connectSecuredWithKeyMgmt(ctx, ssid, password, securityHint)
	}
	if nmcli.IsConnectionInterrupted(err.Error()) || nmcli.IsNetworkNotFound(err.Error()) {
		m.rescan(ctx)
		status, err = m.connectSecuredOnce(ctx, ssid, password)
	}
	if err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}
	return status, nil
}

// ActivateSaved brings up an existing connection profile by name.
func (m *WifiManager) ActivateSaved(ctx context.Context, ssid string) (models.ConnectStatus, error) {
	out, err := m.nm.Run(ctx, "connection", "up", ssid)
	if err != nil {
		return "", err
	}
	if out.OK() {
		return models.StatusConnected, nil
	}
	msg := out.Message()
	if nmcli.IsConnectionInterrupted(msg) {
		m.rescan(ctx)
		retry, err := m.nm.Run(ctx, "connection", "up", ssid)
		if err != nil {
			return "", err
		}
		if retry.OK() {
			return models.StatusConnected, nil
		}
	}
	if nmcli.IsActivationQueued(msg) {
		return models.StatusQueued, nil
	}
	return "", fmt.Errorf("failed to activate connection: %s", msg)
}

// Disconnect takes a network down, first at connection level, then at device
// level when the profile name does not match an active connection.
func (m *WifiManager) Disconnect(ctx context.Context, ssid string) error {
	out, err := m.nm.Run(ctx, "connection", "down", ssid)
	if err != nil {
		return err
	}
	if out.OK() {
		return nil
	}

	device, err := m.deviceForActiveSSID(ctx, ssid)
	if err != nil {
		return err
	}
	if device != "" {
		devOut, err := m.nm.Run(ctx, "device", "disconnect", device)
		if err != nil {
			return err
		}
		if devOut.OK() {
			return nil
		}
		return fmt.Errorf("failed to disconnect device %s: %s", device, devOut.Message())
	}
	return fmt.Errorf("failed to disconnect: %s", out.Message())
}

func (m *WifiManager) connectOpenOnce(ctx context.Context, ssid string) (models.ConnectStatus, error) {
	out, err := m.nm.Run(ctx, "dev", "wifi", "connect", ssid)
	if err != nil {
		return "", err
	}
	if out.OK() {
		return models.StatusConnected, nil
	}
	if nmcli.IsActivationQueued(out.Message()) {
		return models.StatusQueued, nil
	}
	return "", cliError(out.Message())
}

func (m *WifiManager) connectSecuredOnce(ctx context.Context, ssid, password string) (models.ConnectStatus, error) {
	out, err := m.nm.Run(ctx, "device", "wifi", "connect", ssid, "password", password)
	if err != nil {
		return "", err
	}
	if out.OK() {
		return models.StatusConnected, nil
	}
	if nmcli.IsActivationQueued(out.Message()) {
		return models.StatusQueued, nil
	}
	return "", cliError(out.Message())
}

// connectSecuredWithKeyMgmt is the fallback for supplicants that reject the
// one-shot connect with a missing key-mgmt property: create a bare profile,
// set security explicitly, then activate it.
func (m *WifiManager) connectSecuredWithKeyMgmt(ctx context.Context, ssid, password, securityHint string) (models.ConnectStatus, error) {
	keyMgmt := keyMgmtForSecurity(securityHint)
	device, err := m.wifiDevice(ctx)
	if err != nil {
		return "", err
	}

	addOut, err := m.nm.Run(ctx,
		"connection", "add",
		"type", "wifi",
		"ifname", device,
		"con-name", ssid,
		"ssid", ssid,
	)
	if err != nil {
		return "", err
	}
	if !addOut.OK() && !nmcli.IsAlreadyExists(addOut.Message()) {
		m.log.Warn().Str("ssid", ssid).Str("msg", addOut.Message()).Msg("failed to add connection")
	}

	var modifyArgs []string
	if keyMgmt == "none" {
		modifyArgs = []string{"connection", "modify", ssid, "wifi-sec.key-mgmt", "none", "wifi-sec.wep-key0", password}
	} else {
		modifyArgs = []string{"connection", "modify", ssid, "wifi-sec.key-mgmt", keyMgmt, "wifi-sec.psk", password}
	}
	modOut, err := m.nm.Run(ctx, modifyArgs...)
	if err != nil {
		return "", err
	}
	if !modOut.OK() {
		return "", fmt.Errorf("failed to set security: %s", modOut.Message())
	}

	return m.ActivateSaved(ctx, ssid)
}

// keyMgmtForSecurity maps a scan security hint to the nmcli key-mgmt value.
// WEP keys go to wifi-sec.wep-key0, everything unrecognised defaults to
// wpa-psk.
func keyMgmtForSecurity(securityHint string) string {
	sec := strings.ToLower(securityHint)
	switch {
	case strings.Contains(sec, "wpa3"):
		return "sae"
	case strings.Contains(sec, "wep"):
		return "none"
	default:
		return "wpa-psk"
	}
}

// wifiDevice resolves the first usable wireless interface.
func (m *WifiManager) wifiDevice(ctx context.Context) (string, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "DEVICE,TYPE,STATE", "device")
	if err != nil {
		return "", err
	}
	if !out.OK() {
		return "", fmt.Errorf("failed to list devices: %s", out.Message())
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			continue
		}
		if parts[1] == "wifi" && parts[2] != "unavailable" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no available Wi-Fi device found")
}

// deviceForActiveSSID finds the interface carrying the active connection for
// an SSID, or "" when none is.
func (m *WifiManager) deviceForActiveSSID(ctx context.Context, ssid string) (string, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "SSID,DEVICE,ACTIVE", "dev", "wifi", "list")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		fields := nmcli.SplitFieldsRight(line, 3)
		if fields == nil {
			continue
		}
		if fields[0] == ssid && fields[2] == "yes" {
			return fields[1], nil
		}
	}
	return "", nil
}

// rescan forces a supplicant rescan as a side effect before a retry. Failures
// are ignored; the retry itself decides the outcome.
func (m *WifiManager) rescan(ctx context.Context) {
	if _, err := m.nm.Run(ctx, "device", "wifi", "rescan"); err != nil {
		m.log.Debug().Err(err).Msg("rescan failed")
	}
}
