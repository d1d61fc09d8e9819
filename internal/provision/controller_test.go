package provision

import (
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/dispatch"
	"github.com/muurk/wifiprov/internal/wifi"
)

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New(Options{}) error = nil, want error")
	}
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	h := newHarness(t)
	h.start()

	if h.attempts() != 1 {
		t.Fatalf("attempts after start = %d, want 1", h.attempts())
	}
	if h.timers.Armed() != 1 {
		t.Fatalf("Armed() = %d, want 1", h.timers.Armed())
	}
	calls := len(h.driver.calls)

	if err := h.ctl.RunTest(); !IsConcurrentStart(err) {
		t.Errorf("second RunTest() error = %v, want concurrent start", err)
	}
	err := h.ctl.TestWithCredentials("Other", "otherpassword", nil)
	if !IsConcurrentStart(err) || !errors.Is(err, ErrTestRunning) {
		t.Errorf("TestWithCredentials() error = %v, want concurrent start", err)
	}

	if h.attempts() != 1 {
		t.Errorf("attempts = %d, want 1", h.attempts())
	}
	if h.timers.Armed() != 1 {
		t.Errorf("Armed() = %d, want 1", h.timers.Armed())
	}
	if got := h.cfg.Candidate().SSID; got != "Office-5G" {
		t.Errorf("candidate ssid = %q, want Office-5G", got)
	}
	if len(h.driver.calls) != calls {
		t.Errorf("rejected start touched the driver: %v", h.driver.calls[calls:])
	}
	if !h.ctl.IsTestRunning() {
		t.Error("IsTestRunning() = false, want true")
	}
}

func TestAttemptsIncreaseByOne(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.Attempts = 10
	}))
	h.start()

	for want := 2; want <= 5; want++ {
		h.publish(evConnecting)
		if got := h.attempts(); got != want {
			t.Fatalf("attempts = %d, want %d", got, want)
		}
	}

	h.publish(evIP("Office-5G"))
	if h.attempts() != 0 {
		t.Errorf("attempts after teardown = %d, want 0", h.attempts())
	}

	h.start()
	if h.attempts() != 1 {
		t.Errorf("attempts in new session = %d, want 1", h.attempts())
	}
}

func TestTimeoutPreemptsSuccess(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.publish(evConnected)

	h.advance(9 * time.Second)
	if !h.ctl.IsTestRunning() {
		t.Fatal("session ended before the timeout")
	}

	h.advance(time.Second)
	r := h.onlyResult()
	if r.Success || r.Reason != ReasonTimeout {
		t.Errorf("result = %+v, want timeout failure", r)
	}
	if h.ctl.IsTestRunning() {
		t.Error("session still running after timeout")
	}

	h.publish(evIP("Office-5G"))
	if len(h.results) != 1 {
		t.Errorf("ip_acquired after timeout produced another result: %+v", h.results)
	}
}

func TestTimeoutDisabled(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.Timeout = 0
	}))
	h.start()

	if h.timers.Armed() != 0 {
		t.Errorf("Armed() = %d, want 0 with timeout disabled", h.timers.Armed())
	}
	h.advance(time.Hour)
	if !h.ctl.IsTestRunning() {
		t.Error("session ended without a timeout")
	}
}

func TestIPAcquiredNameGate(t *testing.T) {
	tests := []struct {
		name        string
		driverSSID  string
		event       wifi.Event
		wantSuccess bool
	}{
		{"OtherNetwork", "", evIP("Guest"), false},
		{"Matching", "", evIP("Office-5G"), true},
		{"FallbackToDriver", "Office-5G", evIP(""), true},
		{"FallbackOtherNetwork", "Guest", evIP(""), false},
		{"UnknownSSID", "", evIP(""), false},
		{"ConnectedIsNotEnough", "Office-5G", wifi.Event{Type: wifi.EventConnected, SSID: "Office-5G"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.start()
			h.driver.ssid = tt.driverSSID

			h.publish(tt.event)

			if tt.wantSuccess {
				r := h.onlyResult()
				if !r.Success || r.SSID != "Office-5G" || r.Reason != ReasonMatched {
					t.Errorf("result = %+v", r)
				}
				// Later events are no-ops after teardown.
				h.publish(tt.event, evDisconnected)
				if len(h.results) != 1 {
					t.Errorf("got %d results, want exactly 1", len(h.results))
				}
				return
			}
			if len(h.results) != 0 || !h.ctl.IsTestRunning() {
				t.Errorf("session ended on %v: %+v", tt.event, h.results)
			}
		})
	}
}

func TestResultRecordedBeforeClear(t *testing.T) {
	tests := []struct {
		name   string
		events []wifi.Event
	}{
		{"Success", []wifi.Event{evIP("Office-5G")}},
		{"Failure", []wifi.Event{evDisconnected, evDisconnected, evDisconnected}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *recordingStore
			h := newHarness(t,
				withDoc(func(d *config.Document) {
					d.Provision.WiFi.Success.Clear = true
					d.Provision.WiFi.Fail.Clear = true
				}),
				withStore(func(s *config.Store) Store {
					rec = &recordingStore{Store: s}
					return rec
				}),
			)
			h.start()
			h.publish(tt.events...)

			want := []string{"result:Office-5G", "clear"}
			if !reflect.DeepEqual(rec.log, want) {
				t.Errorf("store writes = %v, want %v", rec.log, want)
			}
			if got := h.cfg.Result().SSID; got != "Office-5G" {
				t.Errorf("persisted result ssid = %q", got)
			}
			if got := h.cfg.Candidate().SSID; got != "" {
				t.Errorf("candidate ssid = %q, want cleared", got)
			}
			if got := h.onlyResult().SSID; got != "Office-5G" {
				t.Errorf("notified ssid = %q", got)
			}
		})
	}
}

func TestReconnectPreviousGating(t *testing.T) {
	tests := []struct {
		name        string
		prior       wifi.Status
		reconnect   bool
		failReboot  bool
		wantCalls   []string
		wantRestart bool
	}{
		{"Reconnects", wifi.StatusIPAcquired, true, false, []string{"disconnect", "setup:Home", "connect"}, false},
		{"PriorConnecting", wifi.StatusConnecting, true, false, []string{"disconnect", "setup:Home", "connect"}, false},
		{"RebootWins", wifi.StatusConnected, true, true, nil, true},
		{"FlagOff", wifi.StatusConnected, false, false, nil, false},
		{"NoPriorConnection", wifi.StatusDisconnected, true, false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, withDoc(func(d *config.Document) {
				d.Provision.WiFi.Reconnect = tt.reconnect
				d.Provision.WiFi.Fail.Reboot = tt.failReboot
			}))
			h.driver.status = tt.prior
			h.start()
			h.publish(evDisconnected, evDisconnected)

			h.driver.calls = nil
			h.publish(evDisconnected)

			r := h.onlyResult()
			if r.Success || r.Reason != ReasonAttemptsExhausted {
				t.Fatalf("result = %+v", r)
			}
			if !reflect.DeepEqual(h.driver.calls, tt.wantCalls) {
				t.Errorf("driver calls after failure = %v, want %v", h.driver.calls, tt.wantCalls)
			}
			if (len(h.restarts) == 1) != tt.wantRestart {
				t.Errorf("restarts = %v, want restart %v", h.restarts, tt.wantRestart)
			}
		})
	}
}

func TestSettleDelayOnlyAfterPriorConnection(t *testing.T) {
	tests := []struct {
		prior wifi.Status
		want  time.Duration
	}{
		{wifi.StatusDisconnected, 0},
		{wifi.StatusConnecting, time.Second},
		{wifi.StatusConnected, time.Second},
		{wifi.StatusIPAcquired, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.prior.String(), func(t *testing.T) {
			h := newHarness(t)
			h.driver.status = tt.prior
			h.start()
			if h.clk.Slept() != tt.want {
				t.Errorf("slept %v, want %v", h.clk.Slept(), tt.want)
			}
		})
	}
}

func TestScenarioSuccessOnSecondAttempt(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.publish(evDisconnected)
	if h.attempts() != 2 {
		t.Fatalf("attempts after reconnect = %d, want 2", h.attempts())
	}
	h.publish(evConnected, evIP("Office-5G"))

	r := h.onlyResult()
	want := Result{Success: true, SSID: "Office-5G", Reason: ReasonMatched, Attempts: 2}
	if r != want {
		t.Errorf("result = %+v, want %+v", r, want)
	}
	if got := h.ctl.LastTestResult(); got != want {
		t.Errorf("LastTestResult() = %+v, want %+v", got, want)
	}
	if res := h.cfg.Result(); !res.Success || res.SSID != "Office-5G" {
		t.Errorf("persisted result = %+v", res)
	}
	if h.ctl.IsTestRunning() {
		t.Error("session still active")
	}
	if h.timers.Armed() != 0 {
		t.Errorf("Armed() = %d, want 0", h.timers.Armed())
	}
	if h.bus.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", h.bus.Subscribers())
	}
}

func TestScenarioAttemptsExhausted(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.Boot.Enable = true
		d.Provision.WiFi.Fail.Clear = true
	}))
	h.start()

	h.publish(evDisconnected, evDisconnected)
	if !h.ctl.IsTestRunning() {
		t.Fatal("session ended before the third disconnect")
	}
	h.publish(evDisconnected)

	r := h.onlyResult()
	want := Result{Success: false, SSID: "Office-5G", Reason: ReasonAttemptsExhausted, Attempts: 3}
	if r != want {
		t.Errorf("result = %+v, want %+v", r, want)
	}
	if h.cfg.Policy().BootEnable {
		t.Error("boot test still enabled after failure")
	}
	if h.cfg.Candidate().SSID != "" {
		t.Error("candidate not cleared")
	}
	if res := h.cfg.Result(); res.Success || res.SSID != "Office-5G" {
		t.Errorf("persisted result = %+v", res)
	}
}

func TestConnectRejectedIsConfigError(t *testing.T) {
	h := newHarness(t)
	h.driver.connectErr = errors.New("radio busy")

	err := h.ctl.RunTest()
	if !IsConfigurationError(err) {
		t.Fatalf("RunTest() error = %v, want configuration error", err)
	}

	r := h.onlyResult()
	if r.Success || r.Reason != ReasonConfigError {
		t.Errorf("result = %+v", r)
	}
	if h.ctl.IsTestRunning() || h.bus.Subscribers() != 0 || h.timers.Armed() != 0 {
		t.Error("session resources not released")
	}
	if h.ctl.Status().ShouldReconnect {
		t.Error("ShouldReconnect = true after rejected connect")
	}
}

func TestInvalidCandidateNeverReachesDriver(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.STA.SSID = ""
	}))

	err := h.ctl.RunTest()
	if !IsConfigurationError(err) {
		t.Fatalf("RunTest() error = %v, want configuration error", err)
	}
	if len(h.driver.setups) != 0 {
		t.Errorf("SetupSTA called with %+v", h.driver.setups)
	}
	if h.onlyResult().Reason != ReasonConfigError {
		t.Error("want config-error outcome")
	}
}

func TestRetryConnectRejected(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.driver.connectErr = errors.New("radio busy")
	h.publish(evDisconnected)

	if r := h.onlyResult(); r.Reason != ReasonConfigError {
		t.Errorf("result = %+v, want config-error", r)
	}
}

func TestCompletionHandler(t *testing.T) {
	h := newHarness(t)

	calls := 0
	var running bool
	err := h.ctl.Test(func(r Result) {
		calls++
		// The lock is released before handlers run.
		running = h.ctl.IsTestRunning()
		if err := h.ctl.RunTest(); err != nil {
			t.Errorf("RunTest() from handler error = %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	h.publish(evIP("Office-5G"))
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if running {
		t.Error("handler observed an active session")
	}
	if !h.ctl.IsTestRunning() {
		t.Error("test started from the handler is not running")
	}

	h.publish(evIP("Office-5G"))
	if calls != 1 {
		t.Errorf("first session handler called again: %d", calls)
	}
	if len(h.results) != 2 {
		t.Errorf("observer saw %d results, want 2", len(h.results))
	}
}

func TestTestWithCredentials(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.TestWithCredentials("", "x", nil); !IsConfigurationError(err) {
		t.Errorf("empty ssid error = %v, want configuration error", err)
	}

	if err := h.ctl.TestWithCredentials("Lab", "labpassword", nil); err != nil {
		t.Fatalf("TestWithCredentials() error = %v", err)
	}
	cand := h.cfg.Candidate()
	if cand.SSID != "Lab" || cand.Pass != "labpassword" {
		t.Errorf("candidate = %+v", cand)
	}
	last := h.driver.setups[len(h.driver.setups)-1]
	if last.SSID != "Lab" {
		t.Errorf("driver configured with %q, want Lab", last.SSID)
	}
}

type leakyTimers struct {
	fns []func()
}

func (l *leakyTimers) Arm(_ time.Duration, fn func()) dispatch.TimerID {
	l.fns = append(l.fns, fn)
	return dispatch.TimerID(len(l.fns))
}

func (l *leakyTimers) Cancel(dispatch.TimerID) {}

func TestStaleTimeoutIgnored(t *testing.T) {
	h := newHarness(t)
	timers := &leakyTimers{}
	ctl, err := New(Options{
		Driver: h.driver,
		Store:  h.cfg,
		Timers: timers,
		Events: h.bus,
		Clock:  h.clk,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := ctl.RunTest(); err != nil {
		t.Fatal(err)
	}
	ctl.HandleEvent(evIP("Office-5G"))
	if err := ctl.RunTest(); err != nil {
		t.Fatal(err)
	}
	if len(timers.fns) != 2 {
		t.Fatalf("armed %d timers, want 2", len(timers.fns))
	}

	// The first session's timer fires late, during the second session.
	timers.fns[0]()
	if !ctl.IsTestRunning() {
		t.Error("stale timer ended the second session")
	}

	timers.fns[1]()
	if ctl.IsTestRunning() {
		t.Error("current timer did not end the session")
	}
	if r := ctl.LastTestResult(); r.Reason != ReasonTimeout {
		t.Errorf("LastTestResult() = %+v", r)
	}
}

func TestEventsIgnoredWhenIdle(t *testing.T) {
	h := newHarness(t)

	h.ctl.HandleEvent(evDisconnected)
	h.ctl.HandleEvent(evIP("Office-5G"))

	if len(h.driver.calls) != 0 || len(h.results) != 0 {
		t.Errorf("idle controller reacted: calls=%v results=%v", h.driver.calls, h.results)
	}
}

func TestSuccessPolicy(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.Success = config.SuccessPolicy{
			Copy: true, Disconnect: true, Clear: true, Reboot: true, Enable: false,
		}
		d.Provision.WiFi.STA.DHCPHostname = "sensor-1"
	}))

	var order []string
	h.ctl.onResult = func(Result) { order = append(order, "notify") }
	h.ctl.restarter = RestartFunc(func(string) { order = append(order, "restart") })

	h.start()
	h.driver.calls = nil
	h.publish(evIP("Office-5G"))

	active := h.cfg.Active()
	if active.SSID != "Office-5G" || active.DHCPHostname != "sensor-1" {
		t.Errorf("active = %+v, want candidate copy", active)
	}
	if active.Enable {
		t.Error("active enable should follow success.enable (false)")
	}
	if !reflect.DeepEqual(h.driver.calls, []string{"disconnect"}) {
		t.Errorf("driver calls = %v, want [disconnect]", h.driver.calls)
	}
	if !reflect.DeepEqual(order, []string{"notify", "restart"}) {
		t.Errorf("order = %v, want notify then restart", order)
	}
	if h.ctl.Status().ShouldReconnect {
		t.Error("ShouldReconnect = true after success disconnect")
	}
}

func TestCopyCandidateToActive(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.CopyCandidateToActive(); err != nil {
		t.Fatalf("CopyCandidateToActive() error = %v", err)
	}
	if got := h.cfg.Active(); got.SSID != "Office-5G" || !got.Enable {
		t.Errorf("active = %+v", got)
	}

	h.cfg.SetCandidate(wifi.STAConfig{SSID: "Bad", Pass: "short"})
	if err := h.ctl.CopyCandidateToActive(); !IsConfigurationError(err) {
		t.Errorf("invalid copy error = %v, want configuration error", err)
	}
	if got := h.cfg.Active().SSID; got != "Office-5G" {
		t.Errorf("active changed by invalid copy: %q", got)
	}
}

func TestBootTestToggles(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.EnableBootTest(); err != nil {
		t.Fatal(err)
	}
	if !h.cfg.Policy().BootEnable {
		t.Error("EnableBootTest() left boot disabled")
	}
	if err := h.ctl.DisableBootTest(); err != nil {
		t.Fatal(err)
	}
	if h.cfg.Policy().BootEnable {
		t.Error("DisableBootTest() left boot enabled")
	}
}

func TestPersistenceErrorKeepsMemoryChange(t *testing.T) {
	h := newHarness(t, withStore(func(s *config.Store) Store {
		return &failingStore{Store: s}
	}))

	err := h.ctl.ClearCandidate()
	if !IsPersistenceError(err) || !errors.Is(err, errDiskFull) {
		t.Fatalf("ClearCandidate() error = %v, want persistence error", err)
	}
	if h.cfg.Candidate().SSID != "" {
		t.Error("in-memory clear was rolled back")
	}
}

func TestFailedSaveDoesNotStopOutcome(t *testing.T) {
	h := newHarness(t, withStore(func(s *config.Store) Store {
		return &failingStore{Store: s}
	}))
	h.start()
	h.publish(evIP("Office-5G"))

	if !h.onlyResult().Success {
		t.Error("want success despite save failures")
	}
}

func TestDisconnectAndConnectSTA(t *testing.T) {
	h := newHarness(t)

	if err := h.ctl.ConnectSTA(); err != nil {
		t.Fatal(err)
	}
	if !h.ctl.Status().ShouldReconnect {
		t.Error("ShouldReconnect = false after accepted connect")
	}
	if h.timers.Armed() != 0 {
		t.Error("ConnectSTA outside a test armed a timer")
	}
	if err := h.ctl.DisconnectSTA(); err != nil {
		t.Fatal(err)
	}
	if h.ctl.Status().ShouldReconnect {
		t.Error("ShouldReconnect = true after DisconnectSTA")
	}

	if err := h.ctl.SetupSTA(wifi.STAConfig{SSID: ""}); !IsConfigurationError(err) {
		t.Errorf("SetupSTA(invalid) error = %v", err)
	}
	if err := h.ctl.SetupSTA(wifi.STAConfig{SSID: "Lab"}); err != nil {
		t.Errorf("SetupSTA() error = %v", err)
	}
	want := []string{"connect", "disconnect", "disconnect", "setup:Lab", "connect"}
	if !reflect.DeepEqual(h.driver.calls, want) {
		t.Errorf("driver calls = %v, want %v", h.driver.calls, want)
	}
}

func TestLastTestResultFallsBackToStore(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.Results = config.Results{Success: true, SSID: "Earlier"}
	}))

	got := h.ctl.LastTestResult()
	if !got.Success || got.SSID != "Earlier" || got.Reason != "" {
		t.Errorf("LastTestResult() = %+v", got)
	}
}

func TestEventQueuedBeforeStartIsIgnored(t *testing.T) {
	h := newHarness(t, withDoc(func(d *config.Document) {
		d.Provision.WiFi.Attempts = 1
	}))

	// A disconnect from the previous association is still queued when the
	// test subscribes.
	h.bus.Publish(evDisconnected)
	h.start()
	h.loop.Drain()

	if !h.ctl.IsTestRunning() {
		t.Fatalf("session ended by an earlier event: %+v", h.results)
	}
	if got := h.attempts(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
	if len(h.results) != 0 {
		t.Errorf("results = %+v, want none", h.results)
	}
	connects := 0
	for _, c := range h.driver.calls {
		if c == "connect" {
			connects++
		}
	}
	if connects != 1 {
		t.Errorf("connects = %d, want 1 (calls %v)", connects, h.driver.calls)
	}

	h.publish(evIP("Office-5G"))
	if r := h.onlyResult(); !r.Success {
		t.Errorf("result = %+v, want success", r)
	}
}

// slowStatusDriver blocks Status once armed, like a remote driver waiting
// on the network.
type slowStatusDriver struct {
	*fakeDriver
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (d *slowStatusDriver) Status() wifi.Status {
	if !d.armed.Load() {
		return d.fakeDriver.Status()
	}
	d.entered <- struct{}{}
	<-d.release
	return wifi.StatusConnecting
}

func TestStatusDoesNotHoldLockDuringDriverQuery(t *testing.T) {
	slow := &slowStatusDriver{entered: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, withDriver(func(fd *fakeDriver) wifi.Driver {
		slow.fakeDriver = fd
		return slow
	}))
	h.start()
	slow.armed.Store(true)

	done := make(chan Status, 1)
	go func() { done <- h.ctl.Status() }()
	<-slow.entered

	// The timeout must be handled while Status waits on the driver.
	h.advance(10 * time.Second)
	if r := h.onlyResult(); r.Reason != ReasonTimeout {
		t.Errorf("result = %+v, want timeout", r)
	}

	close(slow.release)
	st := <-done
	if !st.Running || st.Station != wifi.StatusConnecting {
		t.Errorf("Status() = %+v, want the running snapshot taken before the driver query", st)
	}
}
