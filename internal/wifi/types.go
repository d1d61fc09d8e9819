package wifi

import "fmt"

// STAConfig is a station (client) configuration. The same shape is used for
// the active configuration and for the candidate under test.
type STAConfig struct {
	Enable       bool   `yaml:"enable" json:"enable"`
	SSID         string `yaml:"ssid" json:"ssid"`
	Pass         string `yaml:"pass" json:"pass,omitempty"`
	User         string `yaml:"user" json:"user,omitempty"`                   // EAP identity
	AnonIdentity string `yaml:"anon_identity" json:"anon_identity,omitempty"` // EAP outer identity
	Cert         string `yaml:"cert" json:"cert,omitempty"`                   // client certificate (PEM or path)
	Key          string `yaml:"key" json:"key,omitempty"`                     // client key (PEM or path)
	CACert       string `yaml:"ca_cert" json:"ca_cert,omitempty"`
	IP           string `yaml:"ip" json:"ip,omitempty"` // static IPv4; empty means DHCP
	Netmask      string `yaml:"netmask" json:"netmask,omitempty"`
	GW           string `yaml:"gw" json:"gw,omitempty"`
	Nameserver   string `yaml:"nameserver" json:"nameserver,omitempty"`
	DHCPHostname string `yaml:"dhcp_hostname" json:"dhcp_hostname,omitempty"`
}

// IsStatic reports whether the configuration uses a static IPv4 address.
func (c STAConfig) IsStatic() bool {
	return c.IP != ""
}

// IsOpen reports whether the network needs no credentials at all.
func (c STAConfig) IsOpen() bool {
	return c.Pass == "" && c.User == "" && c.Cert == ""
}

// Redacted returns a copy safe to log or return over the API.
func (c STAConfig) Redacted() STAConfig {
	if c.Pass != "" {
		c.Pass = "********"
	}
	if c.Key != "" {
		c.Key = "********"
	}
	return c
}

// Status is the station state as reported by a driver.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusIPAcquired
)

// String returns a human-readable status name
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusIPAcquired:
		return "got ip"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Associated reports whether the station is connecting to or attached to
// some network.
func (s Status) Associated() bool {
	return s == StatusConnecting || s == StatusConnected || s == StatusIPAcquired
}

// EventType identifies a station lifecycle notification.
type EventType int

const (
	EventDisconnected EventType = iota
	EventConnecting
	EventConnected
	EventIPAcquired
)

// String returns a human-readable event name
func (e EventType) String() string {
	switch e {
	case EventDisconnected:
		return "disconnected"
	case EventConnecting:
		return "connecting"
	case EventConnected:
		return "connected"
	case EventIPAcquired:
		return "ip_acquired"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event is a single station lifecycle notification. SSID carries the
// associated network name when the source knows it.
type Event struct {
	Type EventType `json:"type"`
	SSID string    `json:"ssid,omitempty"`
	IP   string    `json:"ip,omitempty"`
}

// String returns a compact description used in logs.
func (e Event) String() string {
	if e.SSID == "" {
		return e.Type.String()
	}
	return fmt.Sprintf("%s(%s)", e.Type, e.SSID)
}

// EventForStatus maps a driver status to the event announcing entry into it.
func EventForStatus(s Status) EventType {
	switch s {
	case StatusConnecting:
		return EventConnecting
	case StatusConnected:
		return EventConnected
	case StatusIPAcquired:
		return EventIPAcquired
	default:
		return EventDisconnected
	}
}

// Driver is the station control surface of a WiFi stack. Implementations
// report lifecycle changes separately, through an event publisher.
//
// A driver must not publish EventConnecting for association attempts
// started by Connect; the caller accounts for those itself.
type Driver interface {
	// SetupSTA applies a station configuration without connecting.
	SetupSTA(cfg STAConfig) error
	// Connect starts associating with the configured network.
	Connect() error
	// Disconnect drops the current association and stops reconnecting.
	Disconnect() error
	// Status returns the current station state.
	Status() Status
	// ConnectedSSID returns the SSID of the associated network, if any.
	ConnectedSSID() (string, bool)
}

// Publisher receives events emitted by drivers.
type Publisher interface {
	Publish(ev Event)
}
