package config

import (
	"time"

	"github.com/muurk/wifiprov/internal/wifi"
)

// CurrentVersion is the only document version this package reads.
const CurrentVersion = 1

// Default provisioning parameters.
const (
	DefaultAttempts = 3
	DefaultTimeout  = 30 // seconds
)

// Document represents the entire persisted configuration file.
type Document struct {
	Version   int       `yaml:"version"`
	WiFi      WiFi      `yaml:"wifi"`
	Provision Provision `yaml:"provision"`
}

// WiFi holds the active network configuration.
type WiFi struct {
	STA wifi.STAConfig `yaml:"sta"` // Active station; what the device uses outside a test
}

// Provision groups provisioning settings by subsystem.
type Provision struct {
	WiFi ProvisionWiFi `yaml:"wifi"`
}

// ProvisionWiFi holds the candidate station, outcome policy and last result.
type ProvisionWiFi struct {
	STA       wifi.STAConfig `yaml:"sta"`       // Candidate under test; enable always reads true
	Success   SuccessPolicy  `yaml:"success"`   // Applied when the candidate gets an IP
	Fail      FailPolicy     `yaml:"fail"`      // Applied on exhausted attempts, timeout or config error
	Reconnect bool           `yaml:"reconnect"` // Restore the previous station on failure (ignored when fail.reboot)
	Attempts  int            `yaml:"attempts"`  // Connection attempts before failing, >= 1
	Timeout   int            `yaml:"timeout"`   // Seconds, 0 disables the timeout
	Boot      BootSettings   `yaml:"boot"`
	Results   Results        `yaml:"results"`
}

// SuccessPolicy selects the side effects of a successful test.
type SuccessPolicy struct {
	Copy       bool `yaml:"copy"`       // Copy candidate into the active station
	Disconnect bool `yaml:"disconnect"` // Drop the candidate association afterwards
	Clear      bool `yaml:"clear"`      // Blank the candidate fields
	Reboot     bool `yaml:"reboot"`     // Restart the device last
	Enable     bool `yaml:"enable"`     // Value written to wifi.sta.enable on copy
}

// FailPolicy selects the side effects of a failed test.
type FailPolicy struct {
	Clear  bool `yaml:"clear"`
	Reboot bool `yaml:"reboot"`
}

// BootSettings controls the automatic test at agent start.
type BootSettings struct {
	Enable bool `yaml:"enable"`
	Delay  int  `yaml:"delay"` // Seconds, applied only when the active station is enabled
}

// Results is the last completed test.
type Results struct {
	Success bool   `yaml:"success"`
	SSID    string `yaml:"ssid"`
}

// Policy is the read-only view of the outcome flags and limits used by the
// provisioning controller.
type Policy struct {
	Success    SuccessPolicy
	Fail       FailPolicy
	Reconnect  bool
	Attempts   int
	Timeout    time.Duration
	BootEnable bool
	BootDelay  time.Duration
}

// NewDocument creates a Document with default values.
func NewDocument() *Document {
	return &Document{
		Version: CurrentVersion,
		Provision: Provision{
			WiFi: ProvisionWiFi{
				STA: wifi.STAConfig{Enable: true},
				Success: SuccessPolicy{
					Copy:   true,
					Clear:  true,
					Enable: true,
				},
				Fail: FailPolicy{
					Clear: true,
				},
				Reconnect: true,
				Attempts:  DefaultAttempts,
				Timeout:   DefaultTimeout,
			},
		},
	}
}

// Policy returns the outcome policy view of the document.
func (d *Document) Policy() Policy {
	p := d.Provision.WiFi
	return Policy{
		Success:    p.Success,
		Fail:       p.Fail,
		Reconnect:  p.Reconnect,
		Attempts:   p.Attempts,
		Timeout:    time.Duration(p.Timeout) * time.Second,
		BootEnable: p.Boot.Enable,
		BootDelay:  time.Duration(p.Boot.Delay) * time.Second,
	}
}
