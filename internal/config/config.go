// Package config provides application configuration from environment variables.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds all application configuration.
type Settings struct {
	// Application metadata
	Version  string `envconfig:"VERSION" default:"0.1.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// API server settings
	APIHost string `envconfig:"API_HOST" default:"127.0.0.1"`
	APIPort int    `envconfig:"API_PORT" default:"9020"`

	// Auth settings. Auth is disabled when the secret is empty (local use).
	JWTSecret         string        `envconfig:"JWT_SECRET" default:""`
	AccessTokenExpiry time.Duration `envconfig:"ACCESS_TOKEN_EXPIRY" default:"15m"`

	// NetworkManager CLI
	NmcliBin string `envconfig:"NMCLI_BIN" default:"nmcli"`

	// Hotspot settings
	APInterface string `envconfig:"AP_INTERFACE" default:"wlan0"`

	// DHCP lease sources, in lookup priority order
	NMLeaseDir     string   `envconfig:"NM_LEASE_DIR" default:"/var/lib/NetworkManager"`
	LeaseFallbacks []string `envconfig:"LEASE_FALLBACKS" default:"/var/lib/dnsmasq/dnsmasq.leases,/var/lib/misc/dnsmasq.leases,/var/db/dnsmasq.leases,/tmp/dnsmasq.leases"`

	// IEEE OUI vendor database candidates, in lookup priority order
	OUIPaths []string `envconfig:"OUI_PATHS" default:"/usr/share/hwdata/oui.txt,/usr/share/misc/oui.txt,/usr/share/ieee-data/oui.txt,/var/lib/ieee-data/oui.txt"`
}

// ListenAddr returns the address string for the HTTP server to bind to.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.APIHost, s.APIPort)
}

var (
	cfg  *Settings
	once sync.Once
)

// Get returns the singleton Settings instance.
func Get() *Settings {
	once.Do(func() {
		cfg = &Settings{}
		if err := envconfig.Process("NETCTLD", cfg); err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return cfg
}

// Load creates a new Settings instance from environment variables.
func Load() (*Settings, error) {
	s := &Settings{}
	if err := envconfig.Process("NETCTLD", s); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return s, nil
}
