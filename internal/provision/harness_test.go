package provision

import (
	"errors"
	"testing"
	"time"

	"github.com/muurk/wifiprov/internal/clock"
	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/dispatch"
	"github.com/muurk/wifiprov/internal/wifi"
)

// fakeDriver records every driver call. It never publishes events; tests
// publish them on the bus directly.
type fakeDriver struct {
	status     wifi.Status
	ssid       string
	connectErr error
	setupErr   error
	calls      []string
	setups     []wifi.STAConfig
}

func (d *fakeDriver) SetupSTA(cfg wifi.STAConfig) error {
	d.calls = append(d.calls, "setup:"+cfg.SSID)
	if d.setupErr != nil {
		return d.setupErr
	}
	d.setups = append(d.setups, cfg)
	return nil
}

func (d *fakeDriver) Connect() error {
	d.calls = append(d.calls, "connect")
	return d.connectErr
}

func (d *fakeDriver) Disconnect() error {
	d.calls = append(d.calls, "disconnect")
	return nil
}

func (d *fakeDriver) Status() wifi.Status { return d.status }

func (d *fakeDriver) ConnectedSSID() (string, bool) { return d.ssid, d.ssid != "" }

// recordingStore logs the order of result capture and candidate clearing.
type recordingStore struct {
	*config.Store
	log []string
}

func (s *recordingStore) SetResult(success bool, ssid string) {
	s.log = append(s.log, "result:"+ssid)
	s.Store.SetResult(success, ssid)
}

func (s *recordingStore) ClearCandidate() {
	s.log = append(s.log, "clear")
	s.Store.ClearCandidate()
}

type failingStore struct {
	*config.Store
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Save() error { return errDiskFull }

type harness struct {
	t        *testing.T
	loop     *dispatch.Loop
	clk      *clock.FakeClock
	timers   *dispatch.Timers
	bus      *dispatch.Bus
	cfg      *config.Store
	driver   *fakeDriver
	ctl      *Controller
	results  []Result
	restarts []string
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	doc    func(*config.Document)
	store  func(*config.Store) Store
	driver func(*fakeDriver) wifi.Driver
}

func withDoc(fn func(*config.Document)) harnessOption {
	return func(hc *harnessConfig) { hc.doc = fn }
}

func withStore(fn func(*config.Store) Store) harnessOption {
	return func(hc *harnessConfig) { hc.store = fn }
}

func withDriver(fn func(*fakeDriver) wifi.Driver) harnessOption {
	return func(hc *harnessConfig) { hc.driver = fn }
}

// newHarness builds a controller over the real dispatch loop, bus and
// timers driven by a fake clock. The candidate is Office-5G with 3 attempts
// and a 10s timeout; the active station is Home.
func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	var hc harnessConfig
	for _, o := range opts {
		o(&hc)
	}

	doc := config.NewDocument()
	doc.WiFi.STA = wifi.STAConfig{Enable: true, SSID: "Home", Pass: "hunter2hunter2"}
	doc.Provision.WiFi.STA = wifi.STAConfig{Enable: true, SSID: "Office-5G", Pass: "correct-horse"}
	doc.Provision.WiFi.Attempts = 3
	doc.Provision.WiFi.Timeout = 10
	if hc.doc != nil {
		hc.doc(doc)
	}

	h := &harness{
		t:      t,
		loop:   dispatch.NewLoop(),
		clk:    clock.Fake(time.Unix(0, 0)),
		cfg:    config.NewStore("", doc),
		driver: &fakeDriver{},
	}
	h.timers = dispatch.NewTimers(h.loop, h.clk)
	h.bus = dispatch.NewBus(h.loop)

	var store Store = h.cfg
	if hc.store != nil {
		store = hc.store(h.cfg)
	}

	var driver wifi.Driver = h.driver
	if hc.driver != nil {
		driver = hc.driver(h.driver)
	}

	ctl, err := New(Options{
		Driver:    driver,
		Store:     store,
		Timers:    h.timers,
		Events:    h.bus,
		Clock:     h.clk,
		Restarter: RestartFunc(func(reason string) { h.restarts = append(h.restarts, reason) }),
		OnResult:  func(r Result) { h.results = append(h.results, r) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.ctl = ctl
	return h
}

func (h *harness) start() {
	h.t.Helper()
	if err := h.ctl.RunTest(); err != nil {
		h.t.Fatalf("RunTest() error = %v", err)
	}
}

// publish delivers events through the bus and runs the loop.
func (h *harness) publish(evs ...wifi.Event) {
	for _, ev := range evs {
		h.bus.Publish(ev)
		h.loop.Drain()
	}
}

func (h *harness) advance(d time.Duration) {
	h.clk.Advance(d)
	h.loop.Drain()
}

func (h *harness) attempts() int {
	return h.ctl.Status().Attempts
}

func (h *harness) onlyResult() Result {
	h.t.Helper()
	if len(h.results) != 1 {
		h.t.Fatalf("got %d results, want 1: %+v", len(h.results), h.results)
	}
	return h.results[0]
}

var (
	evConnecting   = wifi.Event{Type: wifi.EventConnecting}
	evConnected    = wifi.Event{Type: wifi.EventConnected}
	evDisconnected = wifi.Event{Type: wifi.EventDisconnected}
)

func evIP(ssid string) wifi.Event {
	return wifi.Event{Type: wifi.EventIPAcquired, SSID: ssid}
}
