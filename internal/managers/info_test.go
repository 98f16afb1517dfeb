package managers

import (
	"context"
	"strings"
	"testing"

	"netctld/internal/models"
	"netctld/internal/nmcli"
)

func TestNetworkInfoMergesProfileAndDeviceState(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		switch {
		case line == "-t connection show HomeNet":
			return nmcli.Output{Stdout: "connection.uuid:6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f\nconnection.type:802-11-wireless\n802-11-wireless.mac-address:--\n"}
		case strings.HasPrefix(line, "-t -f SSID,DEVICE,ACTIVE"):
			return nmcli.Output{Stdout: "OtherNet:wlan0:no\nHomeNet:wlan0:yes\n"}
		case strings.HasPrefix(line, "-t -f GENERAL,IP4,IP6,DHCP4 device show wlan0"):
			return nmcli.Output{Stdout: strings.Join([]string{
				"GENERAL.HWADDR:AA:BB:CC:DD:EE:FF",
				"GENERAL.STATE:100 (connected)",
				"GENERAL.SPEED:270 Mb/s",
				"GENERAL.CONNECTION:HomeNet",
				"IP4.ADDRESS[1]:192.168.1.42/24",
				"IP4.GATEWAY:192.168.1.1",
				"IP4.DNS[1]:192.168.1.1",
				"IP4.DNS[2]:8.8.8.8",
				"IP6.ADDRESS[1]:fe80::1234/64",
				"DHCP4.OPTION[1]:dhcp_lease_time = 43200",
			}, "\n")}
		default:
			return nmcli.Output{}
		}
	}}
	m := NewInfoManager(fake)

	info, err := m.NetworkInfo(context.Background(), "HomeNet")
	if err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}

	if info.UUID != "6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f" {
		t.Errorf("UUID = %q", info.UUID)
	}
	if info.ConnectionType != "802-11-wireless" {
		t.Errorf("ConnectionType = %q", info.ConnectionType)
	}
	if info.IPAddress != "192.168.1.42" || info.SubnetMask != "255.255.255.0" {
		t.Errorf("address = %q/%q", info.IPAddress, info.SubnetMask)
	}
	if info.Gateway != "192.168.1.1" {
		t.Errorf("Gateway = %q", info.Gateway)
	}
	if len(info.DNS) != 2 || info.DNS[1] != "8.8.8.8" {
		t.Errorf("DNS = %v", info.DNS)
	}
	if info.IPv6Address != "fe80::1234" {
		t.Errorf("IPv6Address = %q", info.IPv6Address)
	}
	// The placeholder profile MAC must not mask the live hardware address.
	if info.MACAddress != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("MACAddress = %q", info.MACAddress)
	}
	if info.Interface != "wlan0" || info.State != "100 (connected)" {
		t.Errorf("Interface/State = %q/%q", info.Interface, info.State)
	}
	if info.DHCPLeaseSeconds != 43200 {
		t.Errorf("DHCPLeaseSeconds = %d", info.DHCPLeaseSeconds)
	}
	if info.LinkSpeedMbps != 270 {
		t.Errorf("LinkSpeedMbps = %d, want GENERAL.SPEED from the device map", info.LinkSpeedMbps)
	}
}

func TestNetworkInfoPrefersSeenBSSIDsForMAC(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		switch {
		case line == "-t connection show HomeNet":
			return nmcli.Output{Stdout: strings.Join([]string{
				"connection.uuid:6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f",
				"connection.type:802-11-wireless",
				"802-11-wireless.mac-address:11:22:33:44:55:66",
				"802-11-wireless.seen-bssids:AA:BB:CC:DD:EE:01,AA:BB:CC:DD:EE:02",
			}, "\n")}
		case strings.HasPrefix(line, "-t -f SSID,DEVICE,ACTIVE"):
			return nmcli.Output{Stdout: "HomeNet:wlan0:no\n"}
		default:
			return nmcli.Output{}
		}
	}}
	m := NewInfoManager(fake)

	info, err := m.NetworkInfo(context.Background(), "HomeNet")
	if err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}
	if info.MACAddress != "AA:BB:CC:DD:EE:01" {
		t.Errorf("MACAddress = %q, want first saved BSSID over mac-address", info.MACAddress)
	}
}

func TestNetworkInfoInactiveNetworkKeepsProfileView(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		switch {
		case line == "-t connection show SavedNet":
			return nmcli.Output{Stdout: "connection.uuid:1b671a64-40d5-491e-99b0-da01ff1f3341\nconnection.type:802-11-wireless\nconnection.interface-name:wlan0\n"}
		case strings.HasPrefix(line, "-t -f SSID,DEVICE,ACTIVE"):
			return nmcli.Output{Stdout: "SavedNet:wlan0:no\n"}
		default:
			return nmcli.Output{}
		}
	}}
	m := NewInfoManager(fake)

	info, err := m.NetworkInfo(context.Background(), "SavedNet")
	if err != nil {
		t.Fatalf("NetworkInfo: %v", err)
	}
	if info.UUID == "" || info.IPAddress != "" {
		t.Errorf("inactive network info = %+v, want profile fields only", info)
	}
	if info.Interface != "wlan0" {
		t.Errorf("Interface = %q, want the profile's interface-name for an inactive network", info.Interface)
	}
}

func TestActiveWired(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{"named connection", "wifi:connected:HomeNet\nethernet:connected:Office LAN\n", "Office LAN"},
		{"still activating is skipped", "ethernet:connecting (getting IP configuration):Office LAN\n", ""},
		{"placeholder for missing name", "ethernet:connected:--\n", "Wired connection"},
		{"no ethernet", "wifi:connected:HomeNet\nloopback:unmanaged:--\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeRunner{respond: func(args []string) nmcli.Output {
				return nmcli.Output{Stdout: tt.stdout}
			}}
			m := NewInfoManager(fake)

			got, err := m.ActiveWired(context.Background())
			if err != nil {
				t.Fatalf("ActiveWired: %v", err)
			}
			if got != tt.want {
				t.Errorf("ActiveWired = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSavedConnectionsFiltersTypeAndHotspot(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stdout: strings.Join([]string{
			"HomeNet:6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f:802-11-wireless",
			"Wired connection 1:1b671a64-40d5-491e-99b0-da01ff1f3341:802-3-ethernet",
			"Hotspot:9a1bfa10-52dd-4d43-b2ce-89f2a37d3c29:802-11-wireless",
			"cafe:guest:44e3c2d1-a94b-44b5-bb33-cf1f00b9a415:802-11-wireless",
		}, "\n")}
	}}
	m := NewInfoManager(fake)

	saved, err := m.SavedConnections(context.Background())
	if err != nil {
		t.Fatalf("SavedConnections: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("got %d saved, want 2: %+v", len(saved), saved)
	}
	if saved[0].SSID != "HomeNet" {
		t.Errorf("saved[0] = %+v", saved[0])
	}
	if saved[1].SSID != "cafe:guest" {
		t.Errorf("saved[1].SSID = %q, want colon name preserved", saved[1].SSID)
	}
}

func TestEligibleConnectionsActiveFirst(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stdout: strings.Join([]string{
			"Zeta:44e3c2d1-a94b-44b5-bb33-cf1f00b9a415:802-11-wireless:no",
			"Alpha:6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f:802-11-wireless:no",
			"Wired:1b671a64-40d5-491e-99b0-da01ff1f3341:802-3-ethernet:yes",
			"lo:9a1bfa10-52dd-4d43-b2ce-89f2a37d3c29:loopback:yes",
		}, "\n")}
	}}
	m := NewInfoManager(fake)

	conns, err := m.EligibleConnections(context.Background())
	if err != nil {
		t.Fatalf("EligibleConnections: %v", err)
	}
	if len(conns) != 3 {
		t.Fatalf("got %d connections, want 3 (loopback excluded): %+v", len(conns), conns)
	}
	if !conns[0].Active || conns[0].Name != "Wired" {
		t.Errorf("conns[0] = %+v, want active Wired first", conns[0])
	}
	if conns[1].Name != "Alpha" || conns[2].Name != "Zeta" {
		t.Errorf("inactive ordering = %q, %q, want name order", conns[1].Name, conns[2].Name)
	}
}

func TestApplyProfileRejectsInvalidUUID(t *testing.T) {
	fake := &fakeRunner{}
	m := NewInfoManager(fake)

	err := m.ApplyProfile(context.Background(), models.NetworkProfile{
		Name:        "Home",
		Connections: []string{"not-a-uuid"},
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(fake.calls) != 0 {
		t.Errorf("invalid profile ran %d nmcli commands, want 0", len(fake.calls))
	}
}

func TestApplyProfileTogglesAutoconnect(t *testing.T) {
	member := "6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f"
	other := "1b671a64-40d5-491e-99b0-da01ff1f3341"
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		if strings.HasPrefix(strings.Join(args, " "), "-t -f NAME,UUID,TYPE,ACTIVE") {
			return nmcli.Output{Stdout: "HomeNet:" + member + ":802-11-wireless:yes\nCafeNet:" + other + ":802-11-wireless:no\n"}
		}
		return nmcli.Output{}
	}}
	m := NewInfoManager(fake)

	err := m.ApplyProfile(context.Background(), models.NetworkProfile{
		Name:        "Home Base",
		Connections: []string{member},
	})
	if err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	if !hasCall(fake, "connection modify "+member+" connection.autoconnect yes") {
		t.Errorf("member not enabled, calls: %v", fake.callLines())
	}
	if !hasCall(fake, "connection modify "+member+" connection.zone home-base") {
		t.Errorf("member zone not set, calls: %v", fake.callLines())
	}
	if !hasCall(fake, "connection modify "+other+" connection.autoconnect no") {
		t.Errorf("non-member not disabled, calls: %v", fake.callLines())
	}
}

func TestApplyProfileZoneFailureDoesNotAbort(t *testing.T) {
	member := "6fcfa66d-0e1b-4a9f-8bf0-1b1fe1be0e3f"
	other := "1b671a64-40d5-491e-99b0-da01ff1f3341"
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		if strings.HasPrefix(line, "-t -f NAME,UUID,TYPE,ACTIVE") {
			return nmcli.Output{Stdout: "HomeNet:" + member + ":802-11-wireless:yes\nCafeNet:" + other + ":802-11-wireless:no\n"}
		}
		if strings.Contains(line, "connection.zone") {
			return nmcli.Output{Code: 2, Stderr: "Error: invalid property: connection.zone"}
		}
		return nmcli.Output{}
	}}
	m := NewInfoManager(fake)

	err := m.ApplyProfile(context.Background(), models.NetworkProfile{
		Name:        "Home Base",
		Connections: []string{member},
	})
	if err != nil {
		t.Fatalf("ApplyProfile: %v", err)
	}
	if !hasCall(fake, "connection modify "+other+" connection.autoconnect no") {
		t.Errorf("zone failure stopped the autoconnect pass, calls: %v", fake.callLines())
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Home Base", "home-base"},
		{"Office", "office"},
		{"  --weird__name--  ", "weird--name"},
		{"!!!", "default"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSavedPasswordEmptyIsError(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stdout: "\n"}
	}}
	m := NewInfoManager(fake)

	if _, err := m.SavedPassword(context.Background(), "HomeNet"); err == nil {
		t.Error("expected error for empty stored password")
	}
}
