package managers

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vishvananda/netlink"

	"netctld/internal/config"
	"netctld/internal/models"
)

// DeviceManager discovers clients attached to the hotspot subnet. The kernel
// neighbor table is the primary source; dnsmasq lease files fill in hostnames
// and lease expiry, and serve as a fallback when the neighbor table is empty.
type DeviceManager struct {
	cfg *config.Settings
	log zerolog.Logger

	neighbors func(iface string) ([]neighborEntry, error)
	lookup    func(ctx context.Context, ip string) string
}

// neighborEntry is one row from the kernel ARP/NDP table.
type neighborEntry struct {
	IP  string
	MAC string
}

// NewDeviceManager creates a new DeviceManager.
func NewDeviceManager(cfg *config.Settings) *DeviceManager {
	return &DeviceManager{
		cfg:       cfg,
		log:       log.With().Str("component", "devices").Logger(),
		neighbors: kernelNeighbors,
		lookup:    reverseLookup,
	}
}

// Devices returns the clients currently attached to iface. The neighbor
// table and the lease files are alternative sources, not merged ones: the
// neighbor table is authoritative whenever it yields anything (it reflects
// who is actually on the link right now), and lease data then only annotates
// those entries with hostname and expiry. Lease files carry the list
// themselves only when the neighbor table is empty; a departed client's
// stale lease must never re-enter the list.
func (m *DeviceManager) Devices(ctx context.Context, iface string) ([]models.ConnectedDevice, error) {
	var devices []models.ConnectedDevice

	neigh, err := m.neighbors(iface)
	if err != nil {
		m.log.Warn().Err(err).Str("iface", iface).Msg("neighbor table read failed, relying on lease files")
	}
	for _, n := range neigh {
		if excludedClientIP(n.IP) {
			continue
		}
		devices = append(devices, models.ConnectedDevice{IP: n.IP, MAC: n.MAC})
	}

	if len(devices) > 0 {
		leaseByIP := make(map[string]leaseEntry)
		for _, lease := range m.readLeases() {
			leaseByIP[lease.IP] = lease
		}
		for i := range devices {
			if lease, ok := leaseByIP[devices[i].IP]; ok {
				devices[i].Hostname = lease.Hostname
				devices[i].LeaseExpiry = lease.Expiry
			}
		}
	} else {
		for _, lease := range m.readLeases() {
			if excludedClientIP(lease.IP) {
				continue
			}
			devices = append(devices, models.ConnectedDevice{
				IP:          lease.IP,
				MAC:         lease.MAC,
				Hostname:    lease.Hostname,
				LeaseExpiry: lease.Expiry,
			})
		}
	}

	for i := range devices {
		if devices[i].Hostname == "" {
			devices[i].Hostname = m.lookup(ctx, devices[i].IP)
		}
		devices[i].Kind = classifyDevice(devices[i].Hostname, devices[i].MAC)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].IP < devices[j].IP })
	return devices, nil
}

// Count returns the number of attached clients.
func (m *DeviceManager) Count(ctx context.Context, iface string) (int, error) {
	devices, err := m.Devices(ctx, iface)
	if err != nil {
		return 0, err
	}
	return len(devices), nil
}

// kernelNeighbors reads the IPv4 neighbor table for iface. Rows without a
// link-layer address are half-resolved and skipped.
func kernelNeighbors(iface string) ([]neighborEntry, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", iface, err)
	}
	neighs, err := netlink.NeighList(link.Attrs().Index, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("neighbor list for %s: %w", iface, err)
	}

	var entries []neighborEntry
	for _, n := range neighs {
		if n.IP == nil || len(n.HardwareAddr) == 0 {
			continue
		}
		if n.State&(netlink.NUD_FAILED|netlink.NUD_INCOMPLETE) != 0 {
			continue
		}
		entries = append(entries, neighborEntry{
			IP:  n.IP.String(),
			MAC: n.HardwareAddr.String(),
		})
	}
	return entries, nil
}

// excludedClientIP filters addresses that are never real clients: the network
// address, the gateway itself, and link-local IPv6.
func excludedClientIP(ip string) bool {
	if strings.HasPrefix(ip, "fe80") {
		return true
	}
	return strings.HasSuffix(ip, ".0") || strings.HasSuffix(ip, ".1")
}

type leaseEntry struct {
	Expiry   int64
	MAC      string
	IP       string
	Hostname string
}

// readLeases tries lease files in priority order: NetworkManager-spawned
// dnsmasq instances first, then the standalone dnsmasq locations. Exactly
// one file is authoritative; the first one that yields any entries wins and
// the rest are not consulted.
func (m *DeviceManager) readLeases() []leaseEntry {
	var paths []string
	if matches, err := filepath.Glob(filepath.Join(m.cfg.NMLeaseDir, "dnsmasq-*.leases")); err == nil {
		paths = append(paths, matches...)
	}
	paths = append(paths, m.cfg.LeaseFallbacks...)

	for _, path := range paths {
		if entries := parseLeaseFile(path); len(entries) > 0 {
			return entries
		}
	}
	return nil
}

// parseLeaseFile reads one dnsmasq lease file. Lines are
// "expiry mac ip hostname clientid"; a hostname of "*" means none.
// An unreadable file yields nothing.
func parseLeaseFile(path string) []leaseEntry {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var entries []leaseEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		expiry, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		hostname := fields[3]
		if hostname == "*" {
			hostname = ""
		}
		entries = append(entries, leaseEntry{
			Expiry:   expiry,
			MAC:      strings.ToLower(fields[1]),
			IP:       fields[2],
			Hostname: hostname,
		})
	}
	return entries
}

// reverseLookup resolves a PTR record for ip with a short deadline so a dead
// resolver cannot stall the device list.
func reverseLookup(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	names, err := net.DefaultResolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return ""
	}
	return strings.TrimSuffix(names[0], ".")
}

// =============================================================================
// Classification
// =============================================================================

var hostnameKindKeywords = []struct {
	kind     models.DeviceKind
	keywords []string
}{
	{models.DevicePhone, []string{"phone", "android", "iphone", "ipad", "pixel", "galaxy", "mobile", "tablet"}},
	{models.DeviceTv, []string{"tv", "roku", "chromecast", "firetv", "fire-tv", "bravia", "shield"}},
	{models.DeviceComputer, []string{"laptop", "desktop", "macbook", "imac", "thinkpad", "surface", "-pc", "pc-"}},
	{models.DeviceIot, []string{"echo", "alexa", "nest", "homepod", "sonos", "ring-", "hue-", "esp32", "esp8266", "tasmota", "shelly"}},
}

var vendorKindKeywords = []struct {
	kind     models.DeviceKind
	keywords []string
}{
	{models.DeviceTv, []string{"roku", "vizio", "hisense", "tcl", "lg electronics", "panasonic", "sharp", "toshiba", "philips"}},
	{models.DevicePhone, []string{"samsung", "huawei", "xiaomi", "oneplus", "oppo", "vivo", "motorola", "nokia", "htc"}},
	{models.DeviceComputer, []string{"dell", "lenovo", "asus", "acer", "hewlett", "intel", "micro-star", "gigabyte", "framework"}},
	{models.DeviceIot, []string{"amazon", "ring", "nest", "sonos", "bose", "espressif", "tuya", "ubiquiti"}},
}

// classifyDevice guesses a device kind for display. Hostname keywords are the
// strongest signal, then the MAC's registered vendor. A locally-administered
// MAC with no other signal is almost always a phone with address
// randomization enabled.
func classifyDevice(hostname, mac string) models.DeviceKind {
	lower := strings.ToLower(hostname)
	if lower != "" {
		for _, set := range hostnameKindKeywords {
			for _, kw := range set.keywords {
				if strings.Contains(lower, kw) {
					return set.kind
				}
			}
		}
	}

	if vendor := strings.ToLower(vendorLookup(mac)); vendor != "" {
		for _, set := range vendorKindKeywords {
			for _, kw := range set.keywords {
				if strings.Contains(vendor, kw) {
					return set.kind
				}
			}
		}
		// Apple makes phones, tablets and laptops alike; the hostname
		// already failed to disambiguate, so default to phone.
		if strings.Contains(vendor, "apple") {
			return models.DevicePhone
		}
		return models.DeviceUnknown
	}

	if locallyAdministeredMAC(mac) {
		return models.DevicePhone
	}
	return models.DeviceUnknown
}

// locallyAdministeredMAC reports whether the second-least-significant bit of
// the first octet is set.
func locallyAdministeredMAC(mac string) bool {
	first, _, ok := strings.Cut(mac, ":")
	if !ok || len(first) != 2 {
		return false
	}
	octet, err := strconv.ParseUint(first, 16, 8)
	if err != nil {
		return false
	}
	return octet&0x02 != 0
}

// =============================================================================
// OUI vendor database
// =============================================================================

var (
	ouiOnce  sync.Once
	ouiTable map[string]string

	vendorLookup = vendorForMAC
)

// vendorForMAC resolves the registered vendor of a MAC address from the
// system OUI database. The table loads once per process; hosts without any
// database get an empty table and every lookup misses.
func vendorForMAC(mac string) string {
	ouiOnce.Do(func() {
		ouiTable = loadOUITable(config.Get().OUIPaths)
	})
	prefix := normalizeOUIPrefix(mac)
	if prefix == "" {
		return ""
	}
	return ouiTable[prefix]
}

// loadOUITable parses the first readable IEEE oui.txt candidate. Both the
// "AA-BB-CC   (hex)    Vendor" and "AABBCC     (base 16)   Vendor" line
// formats are accepted.
func loadOUITable(paths []string) map[string]string {
	table := make(map[string]string)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Text()
			var marker string
			switch {
			case strings.Contains(line, "(hex)"):
				marker = "(hex)"
			case strings.Contains(line, "(base 16)"):
				marker = "(base 16)"
			default:
				continue
			}
			prefixPart, vendor, _ := strings.Cut(line, marker)
			prefix := normalizeOUIPrefix(strings.TrimSpace(prefixPart))
			vendor = strings.TrimSpace(vendor)
			if prefix == "" || vendor == "" {
				continue
			}
			if _, dup := table[prefix]; !dup {
				table[prefix] = vendor
			}
		}
		f.Close()
		if len(table) > 0 {
			break
		}
	}
	return table
}

// normalizeOUIPrefix reduces a MAC or OUI string to its first six hex digits,
// uppercased, ignoring separators.
func normalizeOUIPrefix(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F') {
			b.WriteRune(r)
			if b.Len() == 6 {
				return b.String()
			}
		} else if r != ':' && r != '-' && r != '.' {
			break
		}
	}
	return ""
}

// FormatLeaseRemaining renders the time until a lease expires for display.
func FormatLeaseRemaining(expiry int64, now time.Time) string {
	remaining := time.Unix(expiry, 0).Sub(now)
	if remaining <= 0 {
		return "expired"
	}
	minutes := int64((remaining + time.Minute - 1) / time.Minute)
	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	mins := minutes % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
