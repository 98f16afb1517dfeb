package managers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	psnet "github.com/shirou/gopsutil/v3/net"

	"netctld/internal/models"
	"netctld/internal/nmcli"
)

// InfoManager answers read-mostly queries about connection profiles, live
// device state and host interfaces, and manages saved-profile settings.
type InfoManager struct {
	nm  nmcli.Runner
	log zerolog.Logger
}

// NewInfoManager creates a new InfoManager.
func NewInfoManager(nm nmcli.Runner) *InfoManager {
	return &InfoManager{
		nm:  nm,
		log: log.With().Str("component", "netinfo").Logger(),
	}
}

// NetworkInfo merges the saved profile for ssid with live device state. Each
// field keeps the first source that could answer it; fields nothing could
// answer stay empty rather than failing the whole query.
func (m *InfoManager) NetworkInfo(ctx context.Context, ssid string) (models.NetworkInfo, error) {
	var info models.NetworkInfo

	if profile := m.profileFields(ctx, ssid); profile != nil {
		info.UUID = nmcli.Field(profile, "connection.uuid")
		info.ConnectionType = nmcli.Field(profile, "connection.type")
		info.MACAddress = profileMAC(profile)
		info.Interface = nmcli.Field(profile, "connection.interface-name")
	}

	device, err := m.deviceForSSID(ctx, ssid)
	if err != nil || device == "" {
		// Not currently active; the profile view is all we have.
		return info, nil
	}
	info.Interface = device

	out, err := m.nm.Run(ctx, "-t", "-f", "GENERAL,IP4,IP6,DHCP4", "device", "show", device)
	if err != nil {
		return info, err
	}
	if out.OK() {
		dev := nmcli.KeyValueMap(out.Stdout)

		if cidr := nmcli.Field(dev, "IP4.ADDRESS[1]"); cidr != "" {
			if ip, mask, ok := nmcli.ParseIPv4CIDR(cidr); ok {
				info.IPAddress = ip
				info.SubnetMask = mask
			}
		}
		info.Gateway = nmcli.Field(dev, "IP4.GATEWAY")
		info.DNS = nmcli.CollectIndexed(dev, "IP4.DNS")
		if v6 := nmcli.Field(dev, "IP6.ADDRESS[1]"); v6 != "" {
			addr, _, _ := strings.Cut(v6, "/")
			info.IPv6Address = addr
		}
		if info.MACAddress == "" {
			info.MACAddress = nmcli.Field(dev, "GENERAL.HWADDR")
		}
		info.State = nmcli.Field(dev, "GENERAL.STATE")
		info.LinkSpeedMbps = nmcli.ParseUintDigits(nmcli.Field(dev, "GENERAL.SPEED"))
		info.DHCPLeaseSeconds = nmcli.DHCPLeaseSeconds(dev)

		// The active profile name can differ from the SSID; re-read it
		// for identity fields the first profile lookup missed.
		if name := nmcli.Field(dev, "GENERAL.CONNECTION"); name != "" &&
			(info.UUID == "" || info.ConnectionType == "" || info.MACAddress == "") {
			if active := m.profileFields(ctx, name); active != nil {
				if info.UUID == "" {
					info.UUID = nmcli.Field(active, "connection.uuid")
				}
				if info.ConnectionType == "" {
					info.ConnectionType = nmcli.Field(active, "connection.type")
				}
				if info.MACAddress == "" {
					info.MACAddress = profileMAC(active)
				}
			}
		}
	}

	return info, nil
}

// profileMAC extracts the hardware address a profile knows: the saved BSSID
// list outranks the pinned mac-address setting.
func profileMAC(profile map[string]string) string {
	if bssids := nmcli.Field(profile, "802-11-wireless.seen-bssids"); bssids != "" {
		first, _, _ := strings.Cut(bssids, ",")
		return strings.TrimSpace(first)
	}
	return nmcli.Field(profile, "802-11-wireless.mac-address")
}

// Active summarises the currently-up wireless and wired connections.
func (m *InfoManager) Active(ctx context.Context) (models.ActiveConnections, error) {
	var active models.ActiveConnections

	out, err := m.nm.Run(ctx, "-t", "-f", "ACTIVE,SSID", "dev", "wifi", "list")
	if err != nil {
		return active, err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		flag, ssid, ok := strings.Cut(line, ":")
		if ok && flag == "yes" && ssid != "" {
			active.WifiSSID = ssid
			break
		}
	}

	wired, err := m.ActiveWired(ctx)
	if err != nil {
		return active, err
	}
	active.WiredConnection = wired
	return active, nil
}

// ActiveWired returns the name of the fully-connected ethernet connection,
// or empty. Devices still activating do not count; a connected device with
// no profile name gets a generic placeholder.
func (m *InfoManager) ActiveWired(ctx context.Context) (string, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "TYPE,STATE,CONNECTION", "dev", "status")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		if parts[0] != "ethernet" || parts[1] != "connected" {
			continue
		}
		name := strings.TrimSpace(parts[2])
		if name == "" || name == "--" {
			name = "Wired connection"
		}
		return name, nil
	}
	return "", nil
}

// SavedConnections lists known wireless profiles, excluding the reserved
// hotspot profile.
func (m *InfoManager) SavedConnections(ctx context.Context) ([]models.SavedConnection, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "NAME,UUID,TYPE", "connection", "show")
	if err != nil {
		return nil, err
	}
	var saved []models.SavedConnection
	for _, line := range strings.Split(out.Stdout, "\n") {
		fields := nmcli.SplitFieldsRight(line, 3)
		if fields == nil {
			continue
		}
		name, id, connType := fields[0], fields[1], fields[2]
		if connType != "802-11-wireless" || name == HotspotProfileName {
			continue
		}
		saved = append(saved, models.SavedConnection{UUID: id, SSID: name})
	}
	return saved, nil
}

// IsSaved reports whether a wireless profile exists for ssid.
func (m *InfoManager) IsSaved(ctx context.Context, ssid string) (bool, error) {
	saved, err := m.SavedConnections(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range saved {
		if s.SSID == ssid {
			return true, nil
		}
	}
	return false, nil
}

// Autoconnect reports whether the profile reconnects automatically.
func (m *InfoManager) Autoconnect(ctx context.Context, ssid string) (bool, error) {
	out, err := m.nm.Run(ctx, "-t", "-g", "connection.autoconnect", "connection", "show", ssid)
	if err != nil {
		return false, err
	}
	if !out.OK() {
		return false, cliError(out.Message())
	}
	return strings.TrimSpace(out.Stdout) == "yes", nil
}

// SetAutoconnect toggles automatic reconnection for the profile.
func (m *InfoManager) SetAutoconnect(ctx context.Context, ssid string, enabled bool) error {
	value := "no"
	if enabled {
		value = "yes"
	}
	out, err := m.nm.Run(ctx, "connection", "modify", ssid, "connection.autoconnect", value)
	if err != nil {
		return err
	}
	if !out.OK() {
		return cliError(out.Message())
	}
	return nil
}

// SavedPassword returns the stored pre-shared key for a saved network.
// Requires the caller to be privileged enough for nmcli to reveal secrets.
func (m *InfoManager) SavedPassword(ctx context.Context, ssid string) (string, error) {
	out, err := m.nm.Run(ctx, "--show-secrets", "-g", "802-11-wireless-security.psk", "connection", "show", ssid)
	if err != nil {
		return "", err
	}
	if !out.OK() {
		return "", cliError(out.Message())
	}
	psk := strings.TrimSpace(out.Stdout)
	if psk == "" {
		return "", fmt.Errorf("no stored password for %s", ssid)
	}
	return psk, nil
}

// Forget deletes the profile for ssid.
func (m *InfoManager) Forget(ctx context.Context, ssid string) error {
	out, err := m.nm.Run(ctx, "connection", "delete", ssid)
	if err != nil {
		return err
	}
	if !out.OK() {
		return cliError(out.Message())
	}
	return nil
}

// =============================================================================
// Network profile groups
// =============================================================================

// EligibleConnections lists the wifi and ethernet profiles a network profile
// group may include, active ones first.
func (m *InfoManager) EligibleConnections(ctx context.Context) ([]models.Connection, error) {
	out, err := m.nm.Run(ctx, "-t", "-f", "NAME,UUID,TYPE,ACTIVE", "connection", "show")
	if err != nil {
		return nil, err
	}
	var conns []models.Connection
	for _, line := range strings.Split(out.Stdout, "\n") {
		fields := nmcli.SplitFieldsRight(line, 4)
		if fields == nil {
			continue
		}
		name, id, connType, activeFlag := fields[0], fields[1], fields[2], fields[3]
		if name == HotspotProfileName {
			continue
		}
		if !strings.Contains(connType, "wireless") && !strings.Contains(connType, "ethernet") {
			continue
		}
		conns = append(conns, models.Connection{
			Name:   name,
			UUID:   id,
			Type:   connType,
			Active: activeFlag == "yes",
		})
	}
	sort.SliceStable(conns, func(i, j int) bool {
		if conns[i].Active != conns[j].Active {
			return conns[i].Active
		}
		return conns[i].Name < conns[j].Name
	})
	return conns, nil
}

// ApplyProfile enables autoconnect for the profile group's members and
// disables it for every other eligible connection. Members are also tagged
// with a firewall zone derived from the group name so zone policy follows the
// group.
func (m *InfoManager) ApplyProfile(ctx context.Context, profile models.NetworkProfile) error {
	members := make(map[string]bool, len(profile.Connections))
	for _, id := range profile.Connections {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("invalid connection uuid %q: %w", id, err)
		}
		members[id] = true
	}

	eligible, err := m.EligibleConnections(ctx)
	if err != nil {
		return err
	}

	zone := slugify(profile.Name)
	for _, conn := range eligible {
		if members[conn.UUID] {
			out, err := m.nm.Run(ctx, "connection", "modify", conn.UUID, "connection.autoconnect", "yes")
			if err != nil {
				return err
			}
			if !out.OK() {
				return cliError(out.Message())
			}
			// Zone tagging is best-effort; an unsupported zone must not
			// undo the autoconnect selection.
			if zoneOut, err := m.nm.Run(ctx, "connection", "modify", conn.UUID, "connection.zone", zone); err != nil || !zoneOut.OK() {
				m.log.Warn().Str("uuid", conn.UUID).Str("zone", zone).Msg("failed to set connection zone")
			}
			continue
		}
		out, err := m.nm.Run(ctx, "connection", "modify", conn.UUID, "connection.autoconnect", "no")
		if err != nil {
			return err
		}
		if !out.OK() {
			return cliError(out.Message())
		}
	}

	m.log.Info().Str("profile", profile.Name).Int("members", len(members)).Msg("applied network profile")
	return nil
}

// slugify reduces a profile name to a zone-safe identifier.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "default"
	}
	return slug
}

// =============================================================================
// Host interfaces
// =============================================================================

// Interfaces inventories host network interfaces with traffic counters.
func (m *InfoManager) Interfaces(ctx context.Context) ([]models.InterfaceInfo, error) {
	stats, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	counters, err := psnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("reading interface counters: %w", err)
	}
	byName := make(map[string]psnet.IOCountersStat, len(counters))
	for _, c := range counters {
		byName[c.Name] = c
	}

	infos := make([]models.InterfaceInfo, 0, len(stats))
	for _, s := range stats {
		info := models.InterfaceInfo{
			Name: s.Name,
			MAC:  s.HardwareAddr,
			MTU:  s.MTU,
		}
		for _, flag := range s.Flags {
			if flag == "up" {
				info.Up = true
			}
		}
		for _, addr := range s.Addrs {
			ip, _, _ := strings.Cut(addr.Addr, "/")
			if strings.Contains(ip, ":") {
				if info.IPv6 == "" {
					info.IPv6 = ip
				}
			} else if info.IPv4 == "" {
				info.IPv4 = ip
			}
		}
		if c, ok := byName[s.Name]; ok {
			info.RxBytes = c.BytesRecv
			info.TxBytes = c.BytesSent
			info.RxPackets = c.PacketsRecv
			info.TxPackets = c.PacketsSent
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// =============================================================================
// Internals
// =============================================================================

// profileFields reads a profile's settings map, or nil if nmcli fails.
func (m *InfoManager) profileFields(ctx context.Context, name string) map[string]string {
	out, err := m.nm.Run(ctx, "-t", "connection", "show", name)
	if err != nil || !out.OK() {
		return nil
	}
	return nmcli.KeyValueMap(out.Stdout)
}

// deviceForSSID finds the device carrying the active connection for ssid.
func (m *InfoManager) deviceForSSID(ctx context.Context, ssid string) (string, error) {
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
