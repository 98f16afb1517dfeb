package nmcli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SplitFieldsRight splits one terse (-t) nmcli record into exactly n fields,
// splitting from the right. The rightmost n-1 fields never contain colons;
// the leftmost remainder is the free-form name (an SSID may itself contain
// colons). Returns nil when fewer than n fields are present.
func SplitFieldsRight(line string, n int) []string {
	fields := make([]string, n)
	rest := line
	for i := n - 1; i > 0; i-- {
		idx := strings.LastIndexByte(rest, ':')
		if idx < 0 {
			return nil
		}
		fields[i] = rest[idx+1:]
		rest = rest[:idx]
	}
	fields[0] = rest
	return fields
}

// KeyValueMap parses multi-line "KEY: VALUE" or "KEY:VALUE" output into a map.
// Malformed lines are skipped; the caller tolerates absent keys.
func KeyValueMap(out string) map[string]string {
	m := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		m[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return m
}

// CollectIndexed gathers values of array-indexed keys such as IP4.DNS[1],
// IP4.DNS[2] in ascending index order, dropping empty and "--" placeholders.
func CollectIndexed(m map[string]string, prefix string) []string {
	type entry struct {
		idx int
		val string
	}
	var entries []entry
	for k, v := range m {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || v == "--" {
			continue
		}
		idx := 0
		if _, rest, ok := strings.Cut(k, "["); ok {
			if num, _, ok := strings.Cut(rest, "]"); ok {
				if parsed, err := strconv.Atoi(num); err == nil {
					idx = parsed
				}
			}
		}
		entries = append(entries, entry{idx: idx, val: v})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })
	values := make([]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.val)
	}
	return values
}

// ParseIPv4CIDR decomposes "ip/prefix" into the address and a dotted-decimal
// subnet mask. Prefixes above 32 yield no result.
func ParseIPv4CIDR(cidr string) (ip, mask string, ok bool) {
	ip, prefixStr, found := strings.Cut(strings.TrimSpace(cidr), "/")
	if !found {
		return "", "", false
	}
	prefix, err := strconv.Atoi(prefixStr)
	if err != nil || prefix < 0 || prefix > 32 {
		return "", "", false
	}
	var bits uint32
	if prefix > 0 {
		bits = ^uint32(0) << (32 - prefix)
	}
	mask = fmt.Sprintf("%d.%d.%d.%d", bits>>24&0xff, bits>>16&0xff, bits>>8&0xff, bits&0xff)
	return ip, mask, true
}

// ParseUintDigits extracts the ASCII digits from a value like "2412 MHz" and
// parses them, degrading to 0 on failure rather than erroring.
func ParseUintDigits(value string) int {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

// Field returns a map value with empty and "--" placeholders normalised away.
func Field(m map[string]string, key string) string {
	v := strings.TrimSpace(m[key])
	if v == "--" {
		return ""
	}
	return v
}

// DHCPLeaseSeconds scans DHCP4.OPTION[n] entries for "dhcp_lease_time = N".
func DHCPLeaseSeconds(m map[string]string) int {
	for k, v := range m {
		if !strings.HasPrefix(k, "DHCP4.OPTION") {
			continue
		}
		left, right, _ := strings.Cut(v, "=")
		if strings.TrimSpace(left) != "dhcp_lease_time" {
			continue
		}
		if secs, err := strconv.Atoi(strings.TrimSpace(right)); err == nil {
			return secs
		}
	}
	return 0
}
