package managers

import (
	"context"
	"strings"
	"testing"

	"netctld/internal/models"
	"netctld/internal/nmcli"
)

// fakeRunner records every nmcli invocation and answers via a respond
// function. A nil respond answers everything with success and no output.
type fakeRunner struct {
	calls   [][]string
	respond func(args []string) nmcli.Output
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (nmcli.Output, error) {
	f.calls = append(f.calls, args)
	if f.respond != nil {
		return f.respond(args), nil
	}
	return nmcli.Output{}, nil
}

func (f *fakeRunner) callLines() []string {
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = strings.Join(c, " ")
	}
	return lines
}

func hasCall(f *fakeRunner, substr string) bool {
	for _, line := range f.callLines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func TestReconcileScanDeduplicates(t *testing.T) {
	raw := strings.Join([]string{
		"HomeNet:60:WPA2:no:6:2437 MHz",
		"HomeNet:82:WPA2:no:11:2462 MHz",  // same band, stronger
		"HomeNet:55:WPA2:no:36:5180 MHz",  // different band, kept separately
		"CafeNet:40:WPA2 WPA3:yes:1:2412 MHz",
		"CafeNet:90:WPA2 WPA3:no:1:2412 MHz", // connected duplicate must win despite weaker signal
		":99::no:1:2412 MHz",                 // hidden ssid dropped
	}, "\n")

	networks := reconcileScan(raw)
	if len(networks) != 3 {
		t.Fatalf("got %d networks, want 3: %+v", len(networks), networks)
	}

	// Connected entry sorts first regardless of signal.
	first := networks[0]
	if first.SSID != "CafeNet" || !first.Connected || first.Signal != 40 {
		t.Errorf("first = %+v, want connected CafeNet signal 40", first)
	}
	if first.SecurityType != "WPA3" {
		t.Errorf("SecurityType = %q, want WPA3 precedence", first.SecurityType)
	}

	second := networks[1]
	if second.SSID != "HomeNet" || second.Signal != 82 || second.Band != models.Band24GHz {
		t.Errorf("second = %+v, want HomeNet 82 on 2.4 GHz", second)
	}

	third := networks[2]
	if third.Band != models.Band5GHz || third.Signal != 55 {
		t.Errorf("third = %+v, want HomeNet 55 on 5 GHz", third)
	}
}

func TestReconcileScanSSIDWithColons(t *testing.T) {
	networks := reconcileScan("my:odd:ssid:73:WPA2:no:44:5220 MHz")
	if len(networks) != 1 {
		t.Fatalf("got %d networks, want 1", len(networks))
	}
	n := networks[0]
	if n.SSID != "my:odd:ssid" {
		t.Errorf("SSID = %q, want colons preserved", n.SSID)
	}
	if n.Signal != 73 || n.Channel != 44 || n.FreqMHz != 5220 {
		t.Errorf("parsed fields wrong: %+v", n)
	}
}

func TestBandForFreq(t *testing.T) {
	tests := []struct {
		freq int
		want string
	}{
		{2412, models.Band24GHz},
		{2484, models.Band24GHz},
		{5180, models.Band5GHz},
		{5825, models.Band5GHz},
		{5955, models.Band6GHz},
		{7115, models.Band6GHz},
		{0, models.BandUnknown},
		{900, models.BandUnknown},
	}
	for _, tt := range tests {
		if got := bandForFreq(tt.freq); got != tt.want {
			t.Errorf("bandForFreq(%d) = %q, want %q", tt.freq, got, tt.want)
		}
	}
}

func TestSecurityTypeFor(t *testing.T) {
	tests := []struct {
		security string
		secured  bool
		want     string
	}{
		{"WPA2 WPA3", true, "WPA3"},
		{"WPA1 WPA2", true, "WPA2"},
		{"WPA", true, "WPA"},
		{"WEP", true, "WEP"},
		{"OWE", true, "Secured"},
		{"", false, "Open"},
	}
	for _, tt := range tests {
		if got := securityTypeFor(tt.security, tt.secured); got != tt.want {
			t.Errorf("securityTypeFor(%q) = %q, want %q", tt.security, got, tt.want)
		}
	}
}

func TestConnectOpenQueued(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stderr: "Error: Connection activation was enqueued.", Code: 10}
	}}
	m := NewWifiManager(fake)

	status, err := m.ConnectOpen(context.Background(), "HomeNet")
	if err != nil {
		t.Fatalf("ConnectOpen: %v", err)
	}
	if status != models.StatusQueued {
		t.Errorf("status = %q, want queued", status)
	}
	if len(fake.calls) != 1 {
		t.Errorf("got %d calls, want 1 (queued is not retried)", len(fake.calls))
	}
}

func TestConnectOpenRetriesOnceAfterNotFound(t *testing.T) {
	attempt := 0
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		if strings.Contains(line, "rescan") {
			return nmcli.Output{}
		}
		attempt++
		if attempt == 1 {
			return nmcli.Output{Stderr: "Error: No network with SSID 'HomeNet' found.", Code: 10}
		}
		return nmcli.Output{}
	}}
	m := NewWifiManager(fake)

	status, err := m.ConnectOpen(context.Background(), "HomeNet")
	if err != nil {
		t.Fatalf("ConnectOpen: %v", err)
	}
	if status != models.StatusConnected {
		t.Errorf("status = %q, want connected", status)
	}
	if attempt != 2 {
		t.Errorf("got %d connect attempts, want 2", attempt)
	}
	if !hasCall(fake, "device wifi rescan") {
		t.Error("expected a rescan between attempts")
	}
}

func TestConnectOpenFatalErrorNotRetried(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stderr: "Error: Secrets were required, but not provided.", Code: 10}
	}}
	m := NewWifiManager(fake)

	_, err := m.ConnectOpen(context.Background(), "HomeNet")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fake.calls) != 1 {
		t.Errorf("got %d calls, want 1 (fatal errors take no retry)", len(fake.calls))
	}
	if !strings.Contains(err.Error(), "Secrets were required") {
		t.Errorf("error should carry the nmcli message, got %v", err)
	}
}

func TestConnectSecuredKeyMgmtFallback(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		switch {
		case strings.HasPrefix(line, "device wifi connect"):
			return nmcli.Output{Stderr: "Error: 802-11-wireless-security.key-mgmt: property is missing.", Code: 10}
		case strings.HasPrefix(line, "-t -f DEVICE,TYPE,STATE device"):
			return nmcli.Output{Stdout: "lo:loopback:unmanaged\nwlan0:wifi:disconnected\n"}
		default:
			return nmcli.Output{}
		}
	}}
	m := NewWifiManager(fake)

	status, err := m.ConnectSecured(context.Background(), "SaeNet", "hunter22", "WPA3")
	if err != nil {
		t.Fatalf("ConnectSecured: %v", err)
	}
	if status != models.StatusConnected {
		t.Errorf("status = %q, want connected", status)
	}
	if !hasCall(fake, "connection add type wifi ifname wlan0 con-name SaeNet ssid SaeNet") {
		t.Errorf("expected explicit profile creation, calls: %v", fake.callLines())
	}
	if !hasCall(fake, "wifi-sec.key-mgmt sae") {
		t.Errorf("expected sae key-mgmt for WPA3, calls: %v", fake.callLines())
	}
	if !hasCall(fake, "connection up SaeNet") {
		t.Error("expected activation of the created profile")
	}
}

func TestConnectSecuredWEPUsesWepKey(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		switch {
		case strings.HasPrefix(line, "device wifi connect"):
			return nmcli.Output{Stderr: "Error: 802-11-wireless-security.key-mgmt: property is missing.", Code: 10}
		case strings.HasPrefix(line, "-t -f DEVICE,TYPE,STATE device"):
			return nmcli.Output{Stdout: "wlan0:wifi:disconnected\n"}
		default:
			return nmcli.Output{}
		}
	}}
	m := NewWifiManager(fake)

	if _, err := m.ConnectSecured(context.Background(), "OldNet", "abcde", "WEP"); err != nil {
		t.Fatalf("ConnectSecured: %v", err)
	}
	if !hasCall(fake, "wifi-sec.key-mgmt none wifi-sec.wep-key0 abcde") {
		t.Errorf("expected WEP key handling, calls: %v", fake.callLines())
	}
}

func TestKeyMgmtForSecurity(t *testing.T) {
	tests := []struct {
		hint string
		want string
	}{
		{"WPA3", "sae"},
		{"wpa3 transition", "sae"},
		{"WEP", "none"},
		{"WPA2", "wpa-psk"},
		{"", "wpa-psk"},
	}
	for _, tt := range tests {
		if got := keyMgmtForSecurity(tt.hint); got != tt.want {
			t.Errorf("keyMgmtForSecurity(%q) = %q, want %q", tt.hint, got, tt.want)
		}
	}
}

func TestActivateSavedQueued(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stderr: "Connection activation was enqueued", Code: 10}
	}}
	m := NewWifiManager(fake)

	status, err := m.ActivateSaved(context.Background(), "HomeNet")
	if err != nil {
		t.Fatalf("ActivateSaved: %v", err)
	}
	if status != models.StatusQueued {
		t.Errorf("status = %q, want queued", status)
	}
}

func TestActivateSavedRetriesOnInterrupted(t *testing.T) {
	attempt := 0
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		if !strings.HasPrefix(line, "connection up") {
			return nmcli.Output{}
		}
		attempt++
		if attempt == 1 {
			return nmcli.Output{Stderr: "Error: Connection activation failed: The base network connection was interrupted.", Code: 10}
		}
		return nmcli.Output{}
	}}
	m := NewWifiManager(fake)

	status, err := m.ActivateSaved(context.Background(), "HomeNet")
	if err != nil {
		t.Fatalf("ActivateSaved: %v", err)
	}
	if status != models.StatusConnected || attempt != 2 {
		t.Errorf("status = %q after %d attempts, want connected after 2", status, attempt)
	}
}

func TestDisconnectFallsBackToDevice(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		line := strings.Join(args, " ")
		switch {
		case strings.HasPrefix(line, "connection down"):
			return nmcli.Output{Stderr: "Error: unknown connection 'HomeNet'.", Code: 10}
		case strings.HasPrefix(line, "-t -f SSID,DEVICE,ACTIVE"):
			return nmcli.Output{Stdout: "OtherNet:wlan0:no\nHomeNet:wlan0:yes\n"}
		default:
			return nmcli.Output{}
		}
	}}
	m := NewWifiManager(fake)

	if err := m.Disconnect(context.Background(), "HomeNet"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !hasCall(fake, "device disconnect wlan0") {
		t.Errorf("expected device-level fallback, calls: %v", fake.callLines())
	}
}

func TestActiveSSID(t *testing.T) {
	fake := &fakeRunner{respond: func(args []string) nmcli.Output {
		return nmcli.Output{Stdout: "no:OtherNet\nyes:Home:Net\nno:Third\n"}
	}}
	m := NewWifiManager(fake)

	ssid, err := m.ActiveSSID(context.Background())
	if err != nil {
		t.Fatalf("ActiveSSID: %v", err)
	}
	if ssid != "Home:Net" {
		t.Errorf("ssid = %q, want Home:Net (colons preserved)", ssid)
	}
}
