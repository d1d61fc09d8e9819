package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/wifiprov/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type agents advertise
	ServiceType = "_wifiprov._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for agent discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an advertisement carries no port
	DefaultPort = 8470
)

// TXT record keys published by agents.
const (
	TxtVersion = "version"
	TxtDriver  = "driver"
	TxtPath    = "path"
)

// Advertisement describes the service an agent publishes.
type Advertisement struct {
	Instance string // instance name, usually the host name
	Port     int
	Version  string
	Driver   string // "sim" or "rpc"
}

// Text renders the TXT records for the advertisement.
func (a Advertisement) Text() []string {
	txt := []string{TxtPath + "=/api"}
	if a.Version != "" {
		txt = append(txt, TxtVersion+"="+a.Version)
	}
	if a.Driver != "" {
		txt = append(txt, TxtDriver+"="+a.Driver)
	}
	return txt
}

// Advertiser keeps an agent registered on mDNS until Shutdown.
type Advertiser struct {
	server *zeroconf.Server
	once   sync.Once
}

// Advertise registers the agent. Errors usually mean no multicast-capable
// interface is up.
func Advertise(ad Advertisement) (*Advertiser, error) {
	if ad.Instance == "" {
		return nil, fmt.Errorf("advertisement needs an instance name")
	}
	if ad.Port <= 0 {
		ad.Port = DefaultPort
	}

	server, err := zeroconf.Register(ad.Instance, ServiceType, ServiceDomain, ad.Port, ad.Text(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising agent over mDNS",
		zap.String("instance", ad.Instance),
		zap.String("service", ServiceType),
		zap.Int("port", ad.Port),
	)
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.once.Do(func() {
		a.server.Shutdown()
		logging.Debug("mDNS advertisement withdrawn")
	})
}

// Scanner handles mDNS agent discovery
type Scanner struct {
	// Timeout is the maximum time to wait for agent discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers all agents on the local network until the timeout.
func (s *Scanner) Scan(ctx context.Context) ([]*Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	var agents []*Agent
	seen := make(map[string]bool)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			agent := parseServiceEntry(entry)
			if agent == nil || seen[agent.Instance] {
				continue
			}
			seen[agent.Instance] = true
			logging.Debug("Discovered agent", zap.String("agent", agent.String()))
			agents = append(agents, agent)
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once ctx is done.
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return agents, nil
}

// Find waits for the agent with the given instance name.
func (s *Scanner) Find(ctx context.Context, instance string) (*Agent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Agent, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			agent := parseServiceEntry(entry)
			if agent != nil && strings.EqualFold(agent.Instance, instance) {
				found <- agent
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case agent := <-found:
		return agent, nil
	case <-ctx.Done():
		select {
		case agent := <-found:
			return agent, nil
		default:
		}
		return nil, fmt.Errorf("agent %q not found within %s", instance, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to an Agent.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Agent {
	if entry == nil {
		return nil
	}

	// Prefer IPv4
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Agent{
		Instance:     entry.Instance,
		Hostname:     strings.TrimSuffix(entry.HostName, "."),
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
