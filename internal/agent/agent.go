package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/muurk/wifiprov/internal/api"
	"github.com/muurk/wifiprov/internal/clock"
	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/discovery"
	"github.com/muurk/wifiprov/internal/dispatch"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/provision"
	"github.com/muurk/wifiprov/internal/version"
	"github.com/muurk/wifiprov/internal/wifi"
	"github.com/muurk/wifiprov/internal/wifi/rpc"
	"github.com/muurk/wifiprov/internal/wifi/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Driver names accepted in Options.Driver.
const (
	DriverSim = "sim"
	DriverRPC = "rpc"
)

const (
	// DefaultListen is the API listen address.
	DefaultListen = ":8470"

	// DefaultRebootSettle is how long the agent waits after asking a
	// remote device to reboot before bringing its station back up.
	DefaultRebootSettle = 15 * time.Second
)

// Options configures an Agent.
type Options struct {
	Store  *config.Store
	Driver string // DriverSim or DriverRPC
	Listen string // defaults to DefaultListen

	// Remote device, for DriverRPC.
	Device     string
	DeviceUser string
	DevicePass string

	// Simulated radio, for DriverSim.
	Networks       []sim.Network
	AssociateDelay time.Duration
	DHCPDelay      time.Duration

	// Advertise registers the agent on mDNS as Instance (the host name
	// when empty).
	Advertise bool
	Instance  string

	RebootSettle time.Duration
	SettleDelay  time.Duration // passed to the controller
}

// Agent owns the dispatch loop, the station driver, the provisioning
// controller and the API server of one wifiprov-agent process.
type Agent struct {
	opts   Options
	store  *config.Store
	loop   *dispatch.Loop
	timers *dispatch.Timers
	bus    *dispatch.Bus
	ctrl   *provision.Controller
	server *api.Server

	sim *sim.Driver
	rpc *rpc.Driver
}

// New wires an agent. Nothing runs until Run.
func New(opts Options) (*Agent, error) {
	if opts.Store == nil {
		return nil, errors.New("agent: Store is required")
	}
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.RebootSettle <= 0 {
		opts.RebootSettle = DefaultRebootSettle
	}

	a := &Agent{opts: opts, store: opts.Store}
	a.loop = dispatch.NewLoop()
	a.timers = dispatch.NewTimers(a.loop, clock.Real())
	a.bus = dispatch.NewBus(a.loop)

	var driver wifi.Driver
	switch opts.Driver {
	case DriverSim, "":
		a.opts.Driver = DriverSim
		a.sim = sim.New(sim.Options{
			Publisher:      a.bus,
			Timers:         a.timers,
			Networks:       opts.Networks,
			AssociateDelay: opts.AssociateDelay,
			DHCPDelay:      opts.DHCPDelay,
		})
		driver = a.sim
	case DriverRPC:
		if opts.Device == "" {
			return nil, errors.New("agent: the rpc driver needs a device address")
		}
		client := rpc.NewClient(opts.Device)
		client.UserAgent = version.UserAgent("wifiprov-agent")
		if opts.DeviceUser != "" {
			client.SetAuth(opts.DeviceUser, opts.DevicePass)
		}
		a.rpc = rpc.New(rpc.Options{Client: client, Publisher: a.bus})
		driver = a.rpc
	default:
		return nil, fmt.Errorf("agent: unknown driver %q (want %s or %s)", opts.Driver, DriverSim, DriverRPC)
	}

	ctrl, err := provision.New(provision.Options{
		Driver:      driver,
		Store:       a.store,
		Timers:      a.timers,
		Events:      a.bus,
		Restarter:   provision.RestartFunc(a.restart),
		SettleDelay: opts.SettleDelay,
		OnResult:    a.publishResult,
	})
	if err != nil {
		return nil, err
	}
	a.ctrl = ctrl

	server, err := api.New(api.Config{
		Addr:        opts.Listen,
		Provisioner: ctrl,
		Events:      a.bus,
	})
	if err != nil {
		return nil, err
	}
	a.server = server

	return a, nil
}

// Controller returns the provisioning controller.
func (a *Agent) Controller() *provision.Controller {
	return a.ctrl
}

// Addr returns the API listener address once Run has started serving.
func (a *Agent) Addr() net.Addr {
	return a.server.Addr()
}

// Run brings the station up, runs the boot test if enabled and serves the
// API until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	logging.Info("Starting wifiprov agent",
		zap.String("version", version.Version),
		zap.String("driver", a.opts.Driver),
		zap.String("listen", a.opts.Listen),
		zap.String("config", a.store.Path()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(a.loop.Run(ctx)) })
	g.Go(func() error { return a.server.Start(ctx) })
	if a.rpc != nil {
		g.Go(func() error { return ignoreCanceled(a.rpc.Run(ctx)) })
	}

	if a.opts.Advertise {
		if adv := a.advertise(); adv != nil {
			defer adv.Shutdown()
		}
	}

	a.loop.Post(a.startup)

	err := g.Wait()
	logging.Info("wifiprov agent stopped")
	return err
}

// startup does what a device does at power-on: join the active network
// if it is enabled, then hand over to the boot test.
func (a *Agent) startup() {
	active := a.store.Active()
	if active.Enable && active.SSID != "" {
		if err := a.ctrl.SetupSTA(active); err != nil {
			logging.Warn("Active station not started", zap.Error(err))
		}
	}
	if err := a.ctrl.Boot(); err != nil {
		logging.Error("Boot test failed to start", zap.Error(err))
	}
}

// restart reboots the device. The simulated radio comes back at once; a
// remote device is given RebootSettle before its station is set up again.
func (a *Agent) restart(reason string) {
	if a.sim != nil {
		a.sim.Restart(reason)
		a.loop.Post(a.startup)
		return
	}
	a.rpc.Restart(reason)
	a.timers.Arm(a.opts.RebootSettle, a.startup)
}

func (a *Agent) publishResult(r provision.Result) {
	a.server.Hub().PublishResult(r)
}

func (a *Agent) advertise() *discovery.Advertiser {
	instance := a.opts.Instance
	if instance == "" {
		h, err := os.Hostname()
		if err != nil {
			logging.Warn("mDNS disabled: no instance name", zap.Error(err))
			return nil
		}
		instance = h
	}

	_, portStr, err := net.SplitHostPort(a.opts.Listen)
	port, _ := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		logging.Warn("mDNS disabled: listen address has no fixed port", zap.String("listen", a.opts.Listen))
		return nil
	}

	adv, err := discovery.Advertise(discovery.Advertisement{
		Instance: instance,
		Port:     port,
		Version:  version.Version,
		Driver:   a.opts.Driver,
	})
	if err != nil {
		logging.Warn("mDNS advertisement failed", zap.Error(err))
		return nil
	}
	return adv
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
