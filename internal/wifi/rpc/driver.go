package rpc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/muurk/wifiprov/internal/clock"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/wifi"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is how often Run queries WiFi.GetStatus.
	DefaultPollInterval = time.Second
	// DefaultConnectGrace ignores "disconnected" reports this long after a
	// Connect, while the device has not started associating yet.
	DefaultConnectGrace = 3 * time.Second
)

// ErrEnterpriseUnsupported is returned by SetupSTA for EAP configurations.
var ErrEnterpriseUnsupported = errors.New("rpc: device does not support enterprise (EAP) station settings")

// Options configures a Driver.
type Options struct {
	Client       *Client
	Publisher    wifi.Publisher
	Clock        clock.Clock
	PollInterval time.Duration
	ConnectGrace time.Duration
	RebootDelay  time.Duration
}

// Driver controls the station of a remote device over JSON-RPC. The device
// has no push channel, so Run polls WiFi.GetStatus and publishes an event
// for each observed transition.
type Driver struct {
	client   *Client
	pub      wifi.Publisher
	clock    clock.Clock
	interval time.Duration
	grace    time.Duration
	reboot   time.Duration

	mu          sync.Mutex
	last        wifi.Status
	ssid        string
	ip          string
	connectedAt time.Time
}

// New creates a driver for the device behind opts.Client.
func New(opts Options) *Driver {
	d := &Driver{
		client:   opts.Client,
		pub:      opts.Publisher,
		clock:    opts.Clock,
		interval: opts.PollInterval,
		grace:    opts.ConnectGrace,
		reboot:   opts.RebootDelay,
	}
	if d.clock == nil {
		d.clock = clock.Real()
	}
	if d.interval <= 0 {
		d.interval = DefaultPollInterval
	}
	if d.grace <= 0 {
		d.grace = DefaultConnectGrace
	}
	return d
}

func (d *Driver) call(method string, params, result any) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout*time.Duration(d.client.MaxRetries+1))
	defer cancel()
	return d.client.Call(ctx, method, params, result)
}

// SetupSTA writes the station configuration with the station disabled.
func (d *Driver) SetupSTA(cfg wifi.STAConfig) error {
	if cfg.User != "" || cfg.Cert != "" {
		return ErrEnterpriseUnsupported
	}

	params := SetConfigParams{Config: Config{STA: staFromConfig(cfg, false)}}
	var res SetConfigResult
	if err := d.call(MethodSetConfig, params, &res); err != nil {
		return err
	}
	if res.RestartRequired {
		logging.Warn("Device reports restart required for station settings")
	}

	d.mu.Lock()
	d.last = wifi.StatusDisconnected
	d.ssid, d.ip = "", ""
	d.mu.Unlock()
	return nil
}

// Connect enables the station. The resulting transitions are reported by
// the poller.
func (d *Driver) Connect() error {
	params := SetConfigParams{Config: Config{STA: &STA{Enable: boolPtr(true)}}}
	if err := d.call(MethodSetConfig, params, nil); err != nil {
		return err
	}

	d.mu.Lock()
	d.last = wifi.StatusConnecting
	d.connectedAt = d.clock.Now()
	d.mu.Unlock()
	return nil
}

// Disconnect disables the station.
func (d *Driver) Disconnect() error {
	params := SetConfigParams{Config: Config{STA: &STA{Enable: boolPtr(false)}}}
	if err := d.call(MethodSetConfig, params, nil); err != nil {
		return err
	}

	d.mu.Lock()
	d.last = wifi.StatusDisconnected
	d.ssid, d.ip = "", ""
	d.mu.Unlock()
	return nil
}

// Status queries the device. On error it returns the last observed status.
func (d *Driver) Status() wifi.Status {
	res, err := d.getStatus()
	if err != nil {
		logging.Debug("WiFi.GetStatus failed, using last observed status", zap.Error(err))
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.last
	}
	return res.StationStatus()
}

// ConnectedSSID queries the device for the associated network.
func (d *Driver) ConnectedSSID() (string, bool) {
	res, err := d.getStatus()
	if err != nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.ssid, d.ssid != ""
	}
	st := res.StationStatus()
	if (st == wifi.StatusConnected || st == wifi.StatusIPAcquired) && res.SSID != nil {
		return *res.SSID, true
	}
	return "", false
}

func (d *Driver) getStatus() (GetStatusResult, error) {
	var res GetStatusResult
	err := d.call(MethodGetStatus, nil, &res)
	return res, err
}

// Restart asks the device to reboot.
func (d *Driver) Restart(reason string) {
	logging.Warn("Rebooting device", zap.String("reason", reason), zap.String("device", d.client.BaseURL))
	params := RebootParams{DelayMS: int(d.reboot / time.Millisecond)}
	if err := d.call(MethodReboot, params, nil); err != nil {
		logging.Error("Device reboot failed", zap.Error(err))
	}
}

// Run polls the device until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.Poll(ctx); err != nil {
			logging.Debug("WiFi status poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll performs one status query and publishes the transition, if any.
func (d *Driver) Poll(ctx context.Context) error {
	var res GetStatusResult
	if err := d.client.Call(ctx, MethodGetStatus, nil, &res); err != nil {
		return err
	}
	if ev, ok := d.observe(res); ok && d.pub != nil {
		d.pub.Publish(ev)
	}
	return nil
}

func (d *Driver) observe(res GetStatusResult) (wifi.Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := res.StationStatus()
	ssid, ip := "", ""
	if res.SSID != nil {
		ssid = *res.SSID
	}
	if res.StaIP != nil {
		ip = *res.StaIP
	}

	switch {
	case next == d.last:
		d.ssid, d.ip = ssid, ip
		return wifi.Event{}, false
	case next == wifi.StatusConnecting:
		// Connect reports attempts; the poller only sees their outcome.
		d.last = next
		return wifi.Event{}, false
	case next == wifi.StatusDisconnected && d.last == wifi.StatusConnecting &&
		d.clock.Now().Sub(d.connectedAt) < d.grace:
		return wifi.Event{}, false
	}

	d.last = next
	d.ssid, d.ip = ssid, ip
	return wifi.Event{Type: wifi.EventForStatus(next), SSID: ssid, IP: ip}, true
}
