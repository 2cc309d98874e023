package discovery

import (
	"fmt"
)

// Config holds service discovery and registration configuration.
type Config struct {
	// Enabled controls whether the discovery component is active.
	Enabled bool `mapstructure:"enabled"`

	// Provider selects the discovery backend: "mdns", "static", or "k8s".
	Provider string `mapstructure:"provider"`

	// MDNSInterface restricts multicast advertisement/browsing to a single
	// network interface. Empty means all interfaces.
	MDNSInterface string `mapstructure:"mdns_interface"`

	// MDNSDomain is the mDNS domain suffix (defaults to "local.").
	MDNSDomain string `mapstructure:"mdns_domain"`

	// --- Registration (self) ---

	// ServiceName is the name used when registering this service.
	ServiceName string `mapstructure:"service_name"`

	// ServiceID is the unique instance ID; defaults to ServiceName if empty.
	ServiceID string `mapstructure:"service_id"`

	// ServiceAddress is the address advertised to other services.
	ServiceAddress string `mapstructure:"service_address"`

	// ServicePort is the port advertised to other services.
	ServicePort int `mapstructure:"service_port"`

	// Tags are metadata tags attached to the service registration.
	Tags []string `mapstructure:"tags"`

	// Metadata is arbitrary key-value metadata for the service.
	Metadata map[string]string `mapstructure:"metadata"`

	// StaticEndpoints provides endpoints for the static provider or as fallback.
	StaticEndpoints []StaticEndpoint `mapstructure:"static_endpoints"`
}

// StaticEndpoint describes a statically configured service endpoint.
type StaticEndpoint struct {
	Name     string            `mapstructure:"name"`
	Address  string            `mapstructure:"address"`
	Port     int               `mapstructure:"port"`
	Protocol string            `mapstructure:"protocol"`
	Tags     []string          `mapstructure:"tags"`
	Metadata map[string]string `mapstructure:"metadata"`
	Weight   int               `mapstructure:"weight"`
	Healthy  bool              `mapstructure:"healthy"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "static"
	}
	if c.MDNSDomain == "" {
		c.MDNSDomain = "local."
	}
	if c.ServiceID == "" {
		c.ServiceID = c.ServiceName
	}
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Provider {
	case "mdns", "static", "k8s":
	default:
		return fmt.Errorf("unsupported discovery provider %q", c.Provider)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.ServicePort <= 0 {
		return fmt.Errorf("service_port must be > 0")
	}
	return nil
}
