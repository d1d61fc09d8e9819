package provision

import (
	"github.com/muurk/wifiprov/internal/logging"
	"go.uber.org/zap"
)

// Boot runs the start-of-day test when boot testing is enabled.
//
// If the active station is also enabled and a boot delay is configured, the
// test is deferred by that delay so it does not race the station's own
// startup connection. Otherwise the test starts immediately and any start
// error is returned.
func (c *Controller) Boot() error {
	policy := c.store.Policy()
	if !policy.BootEnable {
		logging.Debug("Provision WiFi boot test disabled")
		return nil
	}

	if c.store.Active().Enable && policy.BootDelay > 0 {
		c.mu.Lock()
		defer c.unlock()

		c.timers.Cancel(c.bootTimer)
		c.bootTimer = c.timers.Arm(policy.BootDelay, c.runBootTest)
		logging.Info("Provision WiFi boot test scheduled", zap.Duration("delay", policy.BootDelay))
		return nil
	}

	logging.Info("Provision WiFi boot test starting")
	return c.RunTest()
}

func (c *Controller) runBootTest() {
	c.mu.Lock()
	c.bootTimer = 0
	c.mu.Unlock()

	logging.Info("Provision WiFi boot delay elapsed")
	if err := c.RunTest(); err != nil {
		logging.Error("Provision WiFi boot test did not start", zap.Error(err))
	}
}
