package models

import "fmt"

// HotspotConfig describes the software access point. It is validated before
// every read and write; an invalid config is never applied to the system.
type HotspotConfig struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
	Band     string `json:"band"`
	Channel  string `json:"channel"`
	Hidden   bool   `json:"hidden"`
}

// DefaultHotspotConfig returns an open hotspot named after the reserved
// profile, auto band and channel.
func DefaultHotspotConfig() HotspotConfig {
	return HotspotConfig{
		SSID:    "Hotspot",
		Band:    BandAuto,
		Channel: "Auto",
	}
}

// ValidateSSID checks the 802.11 SSID constraints: 1-32 printable ASCII.
func (c HotspotConfig) ValidateSSID() error {
	if len(c.SSID) == 0 || len(c.SSID) > 32 {
		return fmt.Errorf("SSID must be 1-32 characters")
	}
	if !isPrintableASCII(c.SSID) {
		return fmt.Errorf("SSID contains invalid characters")
	}
	return nil
}

// ValidatePassword checks WPA-PSK passphrase constraints: empty for an open
// network, otherwise 8-63 printable ASCII.
func (c HotspotConfig) ValidatePassword() error {
	if c.Password != "" && (len(c.Password) < 8 || len(c.Password) > 63) {
		return fmt.Errorf("password must be 8-63 characters or empty for open network")
	}
	if !isPrintableASCII(c.Password) {
		return fmt.Errorf("password contains invalid characters")
	}
	return nil
}

// Validate checks both SSID and password.
func (c HotspotConfig) Validate() error {
	if err := c.ValidateSSID(); err != nil {
		return err
	}
	return c.ValidatePassword()
}

func isPrintableASCII(s string) bool {
	for _, r := range s {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}
