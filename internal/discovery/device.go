package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Agent represents a discovered wifiprov agent on the network
type Agent struct {
	// Instance is the advertised instance name (e.g., "bench-pi")
	Instance string

	// Hostname is the mDNS hostname without the trailing dot
	Hostname string

	// IP is the preferred address, IPv4 when one was advertised
	IP string

	// Port is the API port
	Port int

	// Metadata contains the TXT record data
	// Common fields: "version=1.2.0", "driver=sim", "path=/api"
	Metadata map[string]string

	// DiscoveredAt is when the agent was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the agent
func (a *Agent) String() string {
	return fmt.Sprintf("%s (%s) at %s", a.Instance, a.Hostname, a.Address())
}

// Address returns host:port, bracketing IPv6 addresses.
func (a *Agent) Address() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// BaseURL returns the HTTP base URL for the agent
func (a *Agent) BaseURL() string {
	return "http://" + a.Address()
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (a *Agent) GetMetadata(key string) string {
	if a.Metadata == nil {
		return ""
	}
	return a.Metadata[key]
}

// Version returns the advertised agent version, if any.
func (a *Agent) Version() string {
	return a.GetMetadata(TxtVersion)
}

// Driver returns the advertised driver name, if any.
func (a *Agent) Driver() string {
	return a.GetMetadata(TxtDriver)
}
