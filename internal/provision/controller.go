package provision

import (
	"errors"
	"sync"
	"time"

	"github.com/muurk/wifiprov/internal/clock"
	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/dispatch"
	"github.com/muurk/wifiprov/internal/logging"
	"github.com/muurk/wifiprov/internal/wifi"
	"go.uber.org/zap"
)

// DefaultSettleDelay is how long StartTest waits after dropping an existing
// association before applying the candidate.
const DefaultSettleDelay = time.Second

// Store is the persisted configuration the controller reads and mutates.
// Setters change memory only; Save persists.
type Store interface {
	Candidate() wifi.STAConfig
	SetCandidate(cfg wifi.STAConfig)
	SetCandidateCredentials(ssid, pass string)
	ClearCandidate()
	Active() wifi.STAConfig
	SetActive(cfg wifi.STAConfig)
	Policy() config.Policy
	SetBootEnable(enable bool)
	Result() config.Results
	SetResult(success bool, ssid string)
	Save() error
}

// Timers arms one-shot callbacks. Cancel must accept unknown ids.
type Timers interface {
	Arm(d time.Duration, fn func()) dispatch.TimerID
	Cancel(id dispatch.TimerID)
}

// EventSource delivers station events to scoped subscriptions.
type EventSource interface {
	Subscribe(handler func(wifi.Event)) *dispatch.Subscription
	Unsubscribe(sub *dispatch.Subscription) bool
}

// Restarter restarts the device. Restart may not return.
type Restarter interface {
	Restart(reason string)
}

// RestartFunc adapts a function to the Restarter interface.
type RestartFunc func(reason string)

// Restart calls f(reason).
func (f RestartFunc) Restart(reason string) { f(reason) }

// CompletionFunc receives the result of one test session.
type CompletionFunc func(Result)

// Options configures a Controller. Driver, Store, Timers and Events are
// required.
type Options struct {
	Driver    wifi.Driver
	Store     Store
	Timers    Timers
	Events    EventSource
	Restarter Restarter   // nil disables restart actions
	Clock     clock.Clock // defaults to clock.Real()

	// SettleDelay overrides DefaultSettleDelay. Negative means no delay.
	SettleDelay time.Duration

	// OnResult observes every completed session, after the session's own
	// completion handler.
	OnResult func(Result)
}

// session is the state of one test, from StartTest until teardown.
type session struct {
	active             bool
	generation         uint64
	attempts           int
	timer              dispatch.TimerID
	hadPriorConnection bool
	candidate          wifi.STAConfig
	policy             config.Policy
	onComplete         CompletionFunc
	sub                *dispatch.Subscription
}

// Status is a point-in-time view of the controller.
type Status struct {
	Running         bool        `json:"running"`
	Attempts        int         `json:"attempts"`
	MaxAttempts     int         `json:"max_attempts"`
	Candidate       string      `json:"candidate,omitempty"`
	ShouldReconnect bool        `json:"should_reconnect"`
	Station         wifi.Status `json:"-"`
	StationState    string      `json:"station"`
	StationSSID     string      `json:"station_ssid,omitempty"`
	BootTestPending bool        `json:"boot_test_pending"`
}

// Controller runs candidate station tests.
//
// Every exported method takes the controller lock. Completion handlers and
// restarts queued while the lock is held run after it is released, on the
// same goroutine and in plan order, so a handler may start another test.
type Controller struct {
	driver    wifi.Driver
	store     Store
	timers    Timers
	events    EventSource
	restarter Restarter
	clock     clock.Clock
	settle    time.Duration
	onResult  func(Result)

	mu              sync.Mutex
	sess            session
	shouldReconnect bool
	bootTimer       dispatch.TimerID
	last            *Result
	pending         []func()
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Driver == nil || opts.Store == nil || opts.Timers == nil || opts.Events == nil {
		return nil, errors.New("provision: driver, store, timers and events are required")
	}

	c := &Controller{
		driver:    opts.Driver,
		store:     opts.Store,
		timers:    opts.Timers,
		events:    opts.Events,
		restarter: opts.Restarter,
		clock:     opts.Clock,
		settle:    opts.SettleDelay,
		onResult:  opts.OnResult,
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	switch {
	case c.settle == 0:
		c.settle = DefaultSettleDelay
	case c.settle < 0:
		c.settle = 0
	}
	return c, nil
}

// unlock releases the lock and then runs deferred notifications.
func (c *Controller) unlock() {
	work := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, fn := range work {
		fn()
	}
}

// RunTest starts a test with no completion handler.
func (c *Controller) RunTest() error {
	return c.start("run", nil)
}

// Test starts a test and calls cb exactly once when it ends. It returns a
// concurrent-start error, without touching the running session, if a test
// is already active.
func (c *Controller) Test(cb CompletionFunc) error {
	return c.start("test", cb)
}

// TestWithCredentials stores ssid and pass as the candidate credentials and
// then behaves like Test.
func (c *Controller) TestWithCredentials(ssid, pass string, cb CompletionFunc) error {
	const op = "test-credentials"
	if ssid == "" {
		logging.Error("Provision WiFi test rejected, SSID is missing")
		return configError(op, "ssid is required", nil)
	}

	c.mu.Lock()
	defer c.unlock()

	if c.sess.active {
		logging.Error("Provision WiFi test rejected, test already running")
		return concurrentStartError(op)
	}

	c.store.SetCandidateCredentials(ssid, pass)
	if err := c.store.Save(); err != nil {
		logging.Error("Provision WiFi candidate save failed", zap.Error(err))
	}
	logging.Info("Provision WiFi testing credentials",
		zap.String("ssid", ssid),
		zap.String("pass", logging.Redact(pass)),
	)
	return c.startLocked(cb)
}

func (c *Controller) start(op string, cb CompletionFunc) error {
	c.mu.Lock()
	defer c.unlock()

	if c.sess.active {
		logging.Error("Provision WiFi test rejected, test already running",
			zap.String("candidate", c.sess.candidate.SSID),
			zap.Int("attempts", c.sess.attempts),
		)
		return concurrentStartError(op)
	}
	return c.startLocked(cb)
}

func (c *Controller) startLocked(cb CompletionFunc) error {
	c.timers.Cancel(c.bootTimer)
	c.bootTimer = 0

	c.sess = session{
		active:     true,
		generation: c.sess.generation + 1,
		candidate:  c.store.Candidate(),
		policy:     c.store.Policy(),
		onComplete: cb,
	}
	logging.Info("Provision WiFi test starting",
		zap.String("ssid", c.sess.candidate.SSID),
		zap.Int("max_attempts", c.sess.policy.Attempts),
		zap.Duration("timeout", c.sess.policy.Timeout),
	)

	c.sess.hadPriorConnection = c.disconnectExistingLocked()

	gen := c.sess.generation
	c.sess.sub = c.events.Subscribe(func(ev wifi.Event) {
		c.handleSessionEvent(gen, ev)
	})

	if err := c.setupLocked("start", c.sess.candidate); err != nil {
		logging.Error("Provision WiFi STA config error while attempting to run test", zap.Error(err))
		c.endLocked(OutcomeFailure, ReasonConfigError)
		return err
	}
	return nil
}

// disconnectExistingLocked drops any association present before the test
// and reports whether there was one.
func (c *Controller) disconnectExistingLocked() bool {
	status := c.driver.Status()
	if !status.Associated() {
		logging.Info("Provision WiFi not currently connected to any STA")
		return false
	}

	ssid, _ := c.driver.ConnectedSSID()
	logging.Info("Provision WiFi disconnecting existing STA",
		zap.Stringer("status", status),
		zap.String("ssid", ssid),
	)
	if err := c.driver.Disconnect(); err != nil {
		logging.Warn("Provision WiFi disconnect of existing STA failed", zap.Error(err))
	}
	if c.settle > 0 {
		c.clock.Sleep(c.settle)
	}
	return true
}

// setupLocked validates cfg, re-initializes the station with it and
// connects.
func (c *Controller) setupLocked(op string, cfg wifi.STAConfig) error {
	if err := cfg.Validate(); err != nil {
		return configError(op, "invalid station configuration", err)
	}

	if err := c.driver.Disconnect(); err != nil {
		logging.Debug("Provision WiFi disconnect before setup failed", zap.Error(err))
	}
	if err := c.driver.SetupSTA(cfg); err != nil {
		return configError(op, "driver rejected station configuration", err)
	}

	logging.Info("Provision WiFi setup STA, connecting", zap.String("ssid", cfg.SSID))
	return c.connectLocked(op)
}

// connectLocked asks the driver to connect. An accepted connect during a
// test counts as one attempt and arms the timeout if none is armed.
func (c *Controller) connectLocked(op string) error {
	err := c.driver.Connect()
	c.shouldReconnect = err == nil
	logging.Debug("Provision WiFi connect", zap.Bool("should_reconnect", c.shouldReconnect))
	if err != nil {
		return configError(op, "driver rejected connect", err)
	}

	if c.sess.active {
		c.handleEventLocked(wifi.Event{Type: wifi.EventConnecting})
		c.armTimeoutLocked()
	}
	return nil
}

func (c *Controller) armTimeoutLocked() {
	if !c.sess.active || c.sess.policy.Timeout <= 0 || c.sess.timer != 0 {
		return
	}
	gen := c.sess.generation
	c.sess.timer = c.timers.Arm(c.sess.policy.Timeout, func() {
		c.onTimeout(gen)
	})
}

func (c *Controller) onTimeout(gen uint64) {
	c.mu.Lock()
	defer c.unlock()

	if !c.sess.active || c.sess.generation != gen {
		return
	}
	logging.Error("Provision WiFi STA connect timeout",
		zap.String("ssid", c.sess.candidate.SSID),
		zap.Int("attempts", c.sess.attempts),
	)
	c.sess.timer = 0
	c.endLocked(OutcomeFailure, ReasonTimeout)
}

// HandleEvent feeds one station event to the running test. Events are
// ignored when no test is active.
func (c *Controller) HandleEvent(ev wifi.Event) {
	c.mu.Lock()
	defer c.unlock()
	c.handleEventLocked(ev)
}

func (c *Controller) handleSessionEvent(gen uint64, ev wifi.Event) {
	c.mu.Lock()
	defer c.unlock()

	if c.sess.generation != gen {
		return
	}
	c.handleEventLocked(ev)
}

func (c *Controller) handleEventLocked(ev wifi.Event) {
	if !c.sess.active {
		return
	}
	maxAttempts := c.sess.policy.Attempts

	switch ev.Type {
	case wifi.EventDisconnected:
		logging.LogNetEvent(ev.Type.String(), ev.SSID, c.sess.attempts, maxAttempts)
		if c.sess.attempts >= maxAttempts {
			logging.Error("Provision WiFi STA failed, attempts exhausted",
				zap.Int("attempts", c.sess.attempts),
				zap.Int("max_attempts", maxAttempts),
			)
			c.endLocked(OutcomeFailure, ReasonAttemptsExhausted)
			return
		}
		if err := c.connectLocked("reconnect"); err != nil {
			logging.Error("Provision WiFi reconnect rejected", zap.Error(err))
			c.endLocked(OutcomeFailure, ReasonConfigError)
		}

	case wifi.EventConnecting:
		c.sess.attempts++
		logging.LogNetEvent(ev.Type.String(), ev.SSID, c.sess.attempts, maxAttempts)

	case wifi.EventConnected:
		logging.LogNetEvent(ev.Type.String(), ev.SSID, c.sess.attempts, maxAttempts)

	case wifi.EventIPAcquired:
		ssid := ev.SSID
		if ssid == "" {
			ssid, _ = c.driver.ConnectedSSID()
		}
		logging.LogNetEvent(ev.Type.String(), ssid, c.sess.attempts, maxAttempts)
		if ssid != "" && ssid == c.sess.candidate.SSID {
			c.endLocked(OutcomeSuccess, ReasonMatched)
			return
		}
		logging.Info("Provision WiFi STA got ip on a different network",
			zap.String("ssid", ssid),
			zap.String("candidate", c.sess.candidate.SSID),
		)
	}
}

// endLocked is the only teardown path. It releases the timer and the
// subscription, resets the session and executes the outcome plan.
func (c *Controller) endLocked(outcome Outcome, reason Reason) {
	s := c.sess
	if !s.active {
		return
	}

	c.timers.Cancel(s.timer)
	c.events.Unsubscribe(s.sub)
	c.sess = session{generation: s.generation}

	result := Result{
		Success:  outcome == OutcomeSuccess,
		SSID:     s.candidate.SSID,
		Reason:   reason,
		Attempts: s.attempts,
	}
	c.last = &result
	logging.LogOutcome(result.Success, result.SSID, string(reason), result.Attempts)

	for _, action := range Plan(outcome, s.policy, s.hadPriorConnection) {
		c.applyLocked(action, result, s)
	}
}

func (c *Controller) applyLocked(action Action, result Result, s session) {
	logging.Debug("Provision WiFi outcome action", zap.Stringer("action", action))

	switch action {
	case ActionCopyCandidate:
		if err := c.copyCandidateLocked(); err != nil {
			logging.Error("Provision WiFi copy of candidate failed", zap.Error(err))
		}

	case ActionDisconnect:
		logging.Info("Provision WiFi connection success, disconnecting")
		if err := c.disconnectLocked(); err != nil {
			logging.Warn("Provision WiFi disconnect failed", zap.Error(err))
		}

	case ActionRecordResult:
		c.store.SetResult(result.Success, result.SSID)
		c.saveLogged("record-result")

	case ActionDisableBoot:
		c.setBootLocked(false)
		c.saveLogged("disable-boot")

	case ActionClearCandidate:
		c.store.ClearCandidate()
		c.saveLogged("clear")

	case ActionNotify:
		cb, observer := s.onComplete, c.onResult
		c.pending = append(c.pending, func() {
			if cb != nil {
				cb(result)
			}
			if observer != nil {
				observer(result)
			}
		})

	case ActionRestart:
		restarter := c.restarter
		if restarter == nil {
			logging.Warn("Provision WiFi restart requested but no restarter is configured")
			return
		}
		reason := "provision " + boolToOutcome(result.Success).String()
		c.pending = append(c.pending, func() {
			restarter.Restart(reason)
		})

	case ActionReconnectPrevious:
		c.reconnectPreviousLocked()
	}
}

func boolToOutcome(success bool) Outcome {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

func (c *Controller) reconnectPreviousLocked() {
	logging.Info("Provision WiFi attempting previous STA connection")

	if err := c.driver.Disconnect(); err != nil {
		logging.Warn("Provision WiFi disconnect before reconnect failed", zap.Error(err))
	}
	active := c.store.Active()
	if err := c.driver.SetupSTA(active); err != nil {
		logging.Error("Provision WiFi previous STA setup failed", zap.Error(err))
		return
	}
	if !active.Enable {
		logging.Info("Provision WiFi previous STA is disabled, not connecting")
		return
	}
	if err := c.driver.Connect(); err != nil {
		logging.Error("Provision WiFi previous STA connect failed", zap.Error(err))
	}
}

func (c *Controller) saveLogged(op string) {
	if err := c.store.Save(); err != nil {
		logging.Error("Provision WiFi save config error", zap.String("op", op), zap.Error(err))
	}
}

func (c *Controller) save(op string) error {
	if err := c.store.Save(); err != nil {
		logging.Error("Provision WiFi save config error", zap.String("op", op), zap.Error(err))
		return persistenceError(op, err)
	}
	return nil
}

// ConnectSTA asks the driver to connect with its current configuration.
func (c *Controller) ConnectSTA() error {
	c.mu.Lock()
	defer c.unlock()
	return c.connectLocked("connect")
}

// DisconnectSTA drops the association and clears the reconnect intent.
func (c *Controller) DisconnectSTA() error {
	c.mu.Lock()
	defer c.unlock()
	return c.disconnectLocked()
}

func (c *Controller) disconnectLocked() error {
	logging.Info("Provision WiFi disconnect")
	c.shouldReconnect = false
	if err := c.driver.Disconnect(); err != nil {
		return driverError("disconnect", "driver disconnect failed", err)
	}
	return nil
}

// SetupSTA validates cfg, re-initializes the station with it and connects.
// It does not start a test.
func (c *Controller) SetupSTA(cfg wifi.STAConfig) error {
	c.mu.Lock()
	defer c.unlock()
	return c.setupLocked("setup", cfg)
}

// CopyCandidateToActive validates the candidate and copies it into the
// active station configuration. An invalid candidate leaves the active
// configuration untouched.
func (c *Controller) CopyCandidateToActive() error {
	c.mu.Lock()
	defer c.unlock()
	return c.copyCandidateLocked()
}

func (c *Controller) copyCandidateLocked() error {
	logging.Info("Provision WiFi copy test STA values")

	cand := c.store.Candidate()
	if err := cand.Validate(); err != nil {
		return configError("copy", "candidate failed validation", err)
	}
	cand.Enable = c.store.Policy().Success.Enable
	c.store.SetActive(cand)
	return c.save("copy")
}

// ClearCandidate blanks the candidate fields.
func (c *Controller) ClearCandidate() error {
	c.mu.Lock()
	defer c.unlock()

	logging.Info("Provision WiFi clear test STA values")
	c.store.ClearCandidate()
	return c.save("clear")
}

// EnableBootTest makes the next Boot run a test.
func (c *Controller) EnableBootTest() error {
	c.mu.Lock()
	defer c.unlock()

	c.setBootLocked(true)
	return c.save("enable-boot")
}

// DisableBootTest stops Boot from running a test.
func (c *Controller) DisableBootTest() error {
	c.mu.Lock()
	defer c.unlock()

	c.setBootLocked(false)
	return c.save("disable-boot")
}

func (c *Controller) setBootLocked(enable bool) {
	if enable {
		logging.Info("Enabling Provision WiFi testing on boot")
	} else {
		logging.Info("Disabling Provision WiFi testing on boot")
	}
	c.store.SetBootEnable(enable)
}

// IsTestRunning reports whether a test session is active.
func (c *Controller) IsTestRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.active
}

// LastTestResult returns the most recent result. Before any test has ended
// in this process it falls back to the persisted result, which carries no
// reason or attempt count.
func (c *Controller) LastTestResult() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil {
		return *c.last
	}
	r := c.store.Result()
	return Result{Success: r.Success, SSID: r.SSID}
}

// Status returns a snapshot of the controller and the station. The driver
// is queried after the lock is released, since a remote driver may block on
// the network.
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{
		Running:         c.sess.active,
		Attempts:        c.sess.attempts,
		ShouldReconnect: c.shouldReconnect,
		BootTestPending: c.bootTimer != 0,
	}
	if c.sess.active {
		st.MaxAttempts = c.sess.policy.Attempts
		st.Candidate = c.sess.candidate.SSID
	} else {
		st.MaxAttempts = c.store.Policy().Attempts
	}
	c.mu.Unlock()

	st.Station = c.driver.Status()
	st.StationState = st.Station.String()
	if ssid, ok := c.driver.ConnectedSSID(); ok {
		st.StationSSID = ssid
	}
	return st
}
