package managers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"netctld/internal/models"
	"netctld/internal/nmcli"
)

// HotspotProfileName is the reserved NetworkManager profile for the software
// access point. It is always recreated fresh rather than patched in place.
const HotspotProfileName = "Hotspot"

// hotspotSubnet is the fixed shared-IPv4 subnet used by the manual creation
// path. NetworkManager runs NAT/DHCP for clients on it.
const hotspotSubnet = "192.168.50.1/24"

// HotspotManager owns the access-point lifecycle: Off -> Starting -> On ->
// Stopping -> Off, with Error reachable from any transition. The radio and
// profile are externally-owned singletons, so every step re-reads state
// instead of trusting cached assumptions.
type HotspotManager struct {
	nm    nmcli.Runner
	log   zerolog.Logger
	sleep func(time.Duration)
}

// NewHotspotManager creates a new HotspotManager.
func NewHotspotManager(nm nmcli.Runner) *HotspotManager {
	return &HotspotManager{
		nm:    nm,
		log:   log.With().Str("component", "hotspot").Logger(),
		sleep: time.Sleep,
	}
}

// Start brings the hotspot up on iface. It is idempotent: an existing hotspot
// profile is torn down and recreated. The steps run strictly in order; waits
// between dependent steps give the radio time to settle.
func (m *HotspotManager) Start(ctx context.Context, cfg models.HotspotConfig, iface string) error {
	m.log.Info().Str("ssid", cfg.SSID).Str("iface", iface).Bool("hidden", cfg.Hidden).Msg("creating hotspot")

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.checkDevice(ctx, iface); err != nil {
		return err
	}
	if err := m.disconnectClientsOn(ctx, iface); err != nil {
		return err
	}
	if err := m.cleanupSharedConnections(ctx); err != nil {
		return err
	}

	exists, err := m.profileExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		m.log.Info().Msg("deleting existing hotspot profile to recreate fresh")
		if err := m.Stop(ctx); err != nil {
			m.log.Warn().Err(err).Msg("pre-emptive hotspot teardown failed")
		}
		m.sleep(500 * time.Millisecond)
	}

	if err := m.addHotspot(ctx, cfg, iface); err != nil {
		return err
	}

	// The fast creation path may already have activated the AP as a side
	// effect; read back active state before issuing a second activation.
	m.sleep(1 * time.Second)
	if active, err := m.Active(ctx); err == nil && active {
		m.log.Info().Msg("hotspot already active after creation")
		return nil
	}

	m.log.Info().Msg("hotspot not active, attempting activation")
	return m.activate(ctx)
}

// Stop deactivates and deletes the hotspot profile. A missing profile is
// success: stop is idempotent.
func (m *HotspotManager) Stop(ctx context.Context) error {
	m.log.Info().Msg("stopping hotspot")

	if _, err := m.nm.Run(ctx, "connection", "down", HotspotProfileName); err != nil {
		return err
	}
	m.sleep(200 * time.Millisecond)

	out, err := m.nm.Run(ctx, "connection", "delete", HotspotProfileName)
	if err != nil {
		return err
	}
	if !out.OK() && !nmcli.IsUnknownConnection(out.Message()) {
		return fmt.Errorf("failed to delete hotspot: %s", out.Message())
	}
	return nil
}

// Active reports whether the hotspot profile is in the activated state.
func (m *HotspotManager) Active(ctx context.Context) (bool, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "NAME,STATE", "connection", "show", "--active")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		name, state, ok := strings.Cut(line, ":")
		if ok && name == HotspotProfileName {
			return strings.TrimSpace(state) == "activated", nil
		}
	}
	return false, nil
}

// IP returns the hotspot's gateway address, if the profile has one.
func (m *HotspotManager) IP(ctx context.Context) (string, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "IP4.ADDRESS", "connection", "show", HotspotProfileName)
	if err != nil {
		return "", err
	}
	if !out.OK() {
		return "", nil
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		_, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" || value == "--" {
			continue
		}
		ip, _, _ := strings.Cut(value, "/")
		return ip, nil
	}
	return "", nil
}

// Status combines active state with the hotspot address.
func (m *HotspotManager) Status(ctx context.Context) (models.HotspotStatus, error) {
	active, err := m.Active(ctx)
	if err != nil {
		return models.HotspotStatus{}, err
	}
	status := models.HotspotStatus{Active: active}
	if active {
		if ip, err := m.IP(ctx); err == nil {
			status.IP = ip
		}
	}
	return status, nil
}

// WifiDevices lists wireless interfaces known to NetworkManager.
func (m *HotspotManager) WifiDevices(ctx context.Context) ([]string, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "DEVICE,TYPE", "device", "status")
	if err != nil {
		return nil, err
	}
	var devices []string
	for _, line := range strings.Split(out.Stdout, "\n") {
		device, devType, ok := strings.Cut(line, ":")
		if ok && devType == "wifi" {
			devices = append(devices, device)
		}
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no WiFi devices found, make sure a wireless adapter is present")
	}
	return devices, nil
}

// checkDevice verifies iface exists and is a wireless device. Fatal on
// mismatch; the hotspot never touches a wired interface.
func (m *HotspotManager) checkDevice(ctx context.Context, iface string) error {
	out, err := m.nm.Run(ctx, "-t", "-f", "DEVICE,TYPE", "device", "status")
	if err != nil {
		return err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		device, devType, ok := strings.Cut(line, ":")
		if !ok || device != iface {
			continue
		}
		devType = strings.TrimSpace(devType)
		if devType != "wifi" {
			return fmt.Errorf("device %s is not a WiFi device (type: %s)", iface, devType)
		}
		return nil
	}
	return fmt.Errorf("WiFi device %s not found", iface)
}

// disconnectClientsOn takes down client Wi-Fi connections active on iface so
// the radio is free for AP mode. The hotspot's own profile is left alone.
// When anything was disconnected the interface gets extra settle time.
func (m *HotspotManager) disconnectClientsOn(ctx context.Context, iface string) error {
	out, err := m.nm.Run(ctx, "-t", "-f", "NAME,DEVICE,TYPE", "connection", "show", "--active")
	if err != nil {
		return err
	}

	disconnectedAny := false
	for _, line := range strings.Split(out.Stdout, "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		name, device, connType := parts[0], parts[1], parts[2]
		if device != iface || !strings.Contains(connType, "wireless") {
			continue
		}
		if name == HotspotProfileName {
			continue
		}
		m.log.Info().Str("connection", name).Str("iface", iface).Msg("disconnecting client connection")
		if _, err := m.nm.Run(ctx, "connection", "down", name); err != nil {
			return err
		}
		disconnectedAny = true
	}

	if disconnectedAny {
		m.sleep(2 * time.Second)
	}
	return nil
}

// cleanupSharedConnections deactivates other wireless connections already in
// shared/AP mode so two access points never contend for one radio. Cleanup
// failures are ignored; this is an optimisation, not correctness.
func (m *HotspotManager) cleanupSharedConnections(ctx context.Context) error {
	out, err := m.nm.Run(ctx, "-t", "-f", "NAME,TYPE", "connection", "show", "--active")
	if err != nil {
		return err
	}

	for _, line := range strings.Split(out.Stdout, "\n") {
		name, connType, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if !strings.Contains(connType, "wireless") || name == HotspotProfileName {
			continue
		}
		detail, err := m.nm.Run(ctx, "-t", "-f", "ipv4.method,wifi.mode", "connection", "show", name)
		if err != nil {
			continue
		}
		if strings.Contains(detail.Stdout, "shared") || strings.Contains(detail.Stdout, "ap") {
			m.log.Info().Str("connection", name).Msg("deactivating conflicting shared connection")
			_, _ = m.nm.Run(ctx, "connection", "down", name)
		}
	}

	m.sleep(300 * time.Millisecond)
	return nil
}

func (m *HotspotManager) profileExists(ctx context.Context) (bool, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "NAME", "connection", "show")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		if strings.TrimSpace(line) == HotspotProfileName {
			return true, nil
		}
	}
	return false, nil
}

// addHotspot creates the AP profile. The one-shot `dev wifi hotspot` command
// is tried first; when the platform rejects it, a manual profile with
// explicit AP mode, shared IPv4 and disabled IPv6 is created instead.
func (m *HotspotManager) addHotspot(ctx context.Context, cfg models.HotspotConfig, iface string) error {
	args := []string{
		"dev", "wifi", "hotspot",
		"ifname", iface,
		"con-name", HotspotProfileName,
		"ssid", cfg.SSID,
	}
	if cfg.Password != "" {
		args = append(args, "password", cfg.Password)
	}
	if cfg.Band != models.BandAuto {
		args = append(args, "band", bandToNmcli(cfg.Band))
	}

	out, err := m.nm.Run(ctx, args...)
	if err != nil {
		return err
	}
	if out.OK() {
		m.log.Info().Msg("hotspot created via dev wifi hotspot")
		_, _ = m.nm.Run(ctx, "connection", "modify", HotspotProfileName, "autoconnect", "no")
		if cfg.Hidden {
			_, _ = m.nm.Run(ctx, "connection", "modify", HotspotProfileName, "wifi.hidden", "yes")
		}
		return nil
	}

	m.log.Warn().Str("msg", out.Message()).Msg("hotspot command failed, falling back to manual profile creation")

	addArgs := []string{
		"connection", "add",
		"type", "wifi",
		"ifname", iface,
		"con-name", HotspotProfileName,
		"autoconnect", "no",
		"ssid", cfg.SSID,
		"mode", "ap",
		"ipv4.method", "shared",
		"ipv4.addresses", hotspotSubnet,
		"ipv6.method", "disabled",
	}
	if cfg.Password != "" {
		addArgs = append(addArgs, "wifi-sec.key-mgmt", "wpa-psk", "wifi-sec.psk", cfg.Password)
	}
	if cfg.Band != models.BandAuto {
		addArgs = append(addArgs, "wifi.band", bandToNmcli(cfg.Band))
	}
	if cfg.Channel != "Auto" {
		addArgs = append(addArgs, "wifi.channel", cfg.Channel)
	}
	if cfg.Hidden {
		addArgs = append(addArgs, "wifi.hidden", "yes")
	}

	addOut, err := m.nm.Run(ctx, addArgs...)
	if err != nil {
		return err
	}
	if !addOut.OK() {
		return fmt.Errorf("failed to add hotspot: %s", addOut.Message())
	}
	return nil
}

// activate drives the activation sequence: attempt, verify by reading back
// active state (exit code alone is not trustworthy), retry once after a
// wait, verify again.
func (m *HotspotManager) activate(ctx context.Context) error {
	out, err := m.nm.Run(ctx, "connection", "up", HotspotProfileName)
	if err != nil {
		return err
	}
	if out.OK() {
		m.sleep(1 * time.Second)
		if active, err := m.Active(ctx); err == nil && active {
			return nil
		}
	}

	m.log.Warn().Str("msg", out.Message()).Msg("first hotspot activation attempt failed, retrying")
	m.sleep(2 * time.Second)

	retry, err := m.nm.Run(ctx, "connection", "up", HotspotProfileName)
	if err != nil {
		return err
	}
	if !retry.OK() {
		return fmt.Errorf("failed to activate hotspot: %s", retry.Message())
	}

	m.sleep(1 * time.Second)
	active, err := m.Active(ctx)
	if err != nil {
		return err
	}
	if !active {
		return fmt.Errorf("hotspot activation completed but not active")
	}
	return nil
}

func bandToNmcli(band string) string {
	switch band {
	case models.Band24GHz:
		return "bg"
	case models.Band5GHz:
		return "a"
	default:
		return "bg"
	}
}
