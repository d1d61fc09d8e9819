// Package sim implements wifi.Driver over an in-process simulated radio.
//
// The simulated radio knows a fixed set of networks. Connecting to one of
// them takes AssociateDelay, then DHCPDelay to obtain an address; unknown
// networks, wrong passphrases and configured failures end in a disconnect
// after AssociateDelay. Timing runs on dispatch timers, so a fake clock
// drives it deterministically in tests.
//
// Like a real station, the radio only publishes what it observes: explicit
// Disconnect calls and Connect requests are silent.
package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/wifiprov/internal/dispatch"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/wifi"
	"go.uber.org/zap"
)

// Default timings.
const (
	DefaultAssociateDelay = 2 * time.Second
	DefaultDHCPDelay      = time.Second
)

// ErrNotConfigured is returned by Connect before SetupSTA.
var ErrNotConfigured = errors.New("sim: station not configured")

// Network is a simulated access point.
type Network struct {
	SSID string `yaml:"ssid"`
	Pass string `yaml:"pass"`
	// FailFirst makes the first N association attempts fail.
	FailFirst int `yaml:"fail_first"`
	// NoDHCP associates but never hands out an address.
	NoDHCP bool `yaml:"no_dhcp"`
}

// Timers is the timer service the radio schedules on.
type Timers interface {
	Arm(d time.Duration, fn func()) dispatch.TimerID
	Cancel(id dispatch.TimerID)
}

// Options configures a Driver.
type Options struct {
	Publisher      wifi.Publisher
	Timers         Timers
	Networks       []Network
	AssociateDelay time.Duration
	DHCPDelay      time.Duration
}

// Driver is a simulated station.
type Driver struct {
	pub            wifi.Publisher
	timers         Timers
	associateDelay time.Duration
	dhcpDelay      time.Duration

	mu         sync.Mutex
	networks   map[string]*Network
	tries      map[string]int
	cfg        wifi.STAConfig
	configured bool
	status     wifi.Status
	ssid       string
	ip         string
	leases     int
	pending    dispatch.TimerID
}

// New creates a simulated station.
func New(opts Options) *Driver {
	d := &Driver{
		pub:            opts.Publisher,
		timers:         opts.Timers,
		associateDelay: opts.AssociateDelay,
		dhcpDelay:      opts.DHCPDelay,
		networks:       make(map[string]*Network),
		tries:          make(map[string]int),
	}
	if d.associateDelay <= 0 {
		d.associateDelay = DefaultAssociateDelay
	}
	if d.dhcpDelay <= 0 {
		d.dhcpDelay = DefaultDHCPDelay
	}
	for _, n := range opts.Networks {
		d.AddNetwork(n)
	}
	return d
}

// AddNetwork adds or replaces a simulated access point.
func (d *Driver) AddNetwork(n Network) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n2 := n
	d.networks[n.SSID] = &n2
	delete(d.tries, n.SSID)
}

// SetupSTA stores the station configuration and drops any association.
func (d *Driver) SetupSTA(cfg wifi.STAConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.SSID == "" {
		return fmt.Errorf("sim: ssid required")
	}
	d.resetLocked()
	d.cfg = cfg
	d.configured = true
	logging.Debug("Sim station configured", zap.String("ssid", cfg.SSID))
	return nil
}

// Connect starts associating with the configured network.
func (d *Driver) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.configured {
		return ErrNotConfigured
	}
	d.resetLocked()
	d.status = wifi.StatusConnecting
	target := d.cfg
	d.pending = d.timers.Arm(d.associateDelay, func() { d.associate(target) })
	return nil
}

// Disconnect drops the association without publishing an event.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	return nil
}

// Status returns the simulated station state.
func (d *Driver) Status() wifi.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// ConnectedSSID returns the associated network, if any.
func (d *Driver) ConnectedSSID() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status == wifi.StatusConnected || d.status == wifi.StatusIPAcquired {
		return d.ssid, true
	}
	return "", false
}

// IP returns the leased address, if any.
func (d *Driver) IP() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ip
}

// Drop simulates losing the link, publishing a disconnect if associated.
func (d *Driver) Drop() {
	d.mu.Lock()
	was := d.status
	d.resetLocked()
	d.mu.Unlock()

	if was != wifi.StatusDisconnected {
		d.publish(wifi.Event{Type: wifi.EventDisconnected})
	}
}

// Restart simulates a device reboot: the radio loses its association and
// its configuration.
func (d *Driver) Restart(reason string) {
	logging.Warn("Sim station restart", zap.String("reason", reason))
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resetLocked()
	d.configured = false
	d.cfg = wifi.STAConfig{}
}

func (d *Driver) resetLocked() {
	d.timers.Cancel(d.pending)
	d.pending = 0
	d.status = wifi.StatusDisconnected
	d.ssid = ""
	d.ip = ""
}

func (d *Driver) associate(target wifi.STAConfig) {
	d.mu.Lock()
	d.pending = 0

	n, known := d.networks[target.SSID]
	reason := ""
	switch {
	case !known:
		reason = "network not found"
	case n.Pass != target.Pass:
		reason = "authentication failed"
	case d.tries[target.SSID] < n.FailFirst:
		d.tries[target.SSID]++
		reason = "association rejected"
	}

	if reason != "" {
		d.status = wifi.StatusDisconnected
		d.mu.Unlock()
		logging.Debug("Sim association failed", zap.String("ssid", target.SSID), zap.String("reason", reason))
		d.publish(wifi.Event{Type: wifi.EventDisconnected, SSID: target.SSID})
		return
	}

	d.status = wifi.StatusConnected
	d.ssid = target.SSID
	if !n.NoDHCP {
		d.pending = d.timers.Arm(d.dhcpDelay, func() { d.lease(target) })
	}
	d.mu.Unlock()

	d.publish(wifi.Event{Type: wifi.EventConnected, SSID: target.SSID})
}

func (d *Driver) lease(target wifi.STAConfig) {
	d.mu.Lock()
	d.pending = 0
	if d.status != wifi.StatusConnected || d.ssid != target.SSID {
		d.mu.Unlock()
		return
	}

	if target.IsStatic() {
		d.ip = target.IP
	} else {
		d.leases++
		d.ip = fmt.Sprintf("192.168.4.%d", 10+d.leases%240)
	}
	d.status = wifi.StatusIPAcquired
	ip := d.ip
	d.mu.Unlock()

	d.publish(wifi.Event{Type: wifi.EventIPAcquired, SSID: target.SSID, IP: ip})
}

func (d *Driver) publish(ev wifi.Event) {
	if d.pub != nil {
		d.pub.Publish(ev)
	}
}
