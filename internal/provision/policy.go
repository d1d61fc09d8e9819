package provision

import (
	"fmt"

	"github.com/muurk/wifiprov/internal/config"
)

// Outcome is the terminal state of a test session.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
)

// String returns a human-readable outcome name
func (o Outcome) String() string {
	if o == OutcomeSuccess {
		return "success"
	}
	return "failure"
}

// Reason explains why a session ended.
type Reason string

const (
	ReasonMatched           Reason = "matched"            // ip acquired on the candidate SSID
	ReasonAttemptsExhausted Reason = "attempts-exhausted" // disconnected with no attempts left
	ReasonTimeout           Reason = "timeout"
	ReasonConfigError       Reason = "config-error" // candidate invalid or rejected by the driver
)

// Result is the value delivered to completion handlers.
type Result struct {
	Success  bool   `json:"success"`
	SSID     string `json:"ssid"`
	Reason   Reason `json:"reason,omitempty"`
	Attempts int    `json:"attempts"`
}

// Action is one side effect chosen by Plan.
type Action int

const (
	ActionCopyCandidate Action = iota
	ActionDisconnect
	ActionRecordResult
	ActionDisableBoot
	ActionClearCandidate
	ActionNotify
	ActionRestart
	ActionReconnectPrevious
)

// String returns a human-readable action name
func (a Action) String() string {
	switch a {
	case ActionCopyCandidate:
		return "copy-candidate"
	case ActionDisconnect:
		return "disconnect"
	case ActionRecordResult:
		return "record-result"
	case ActionDisableBoot:
		return "disable-boot"
	case ActionClearCandidate:
		return "clear-candidate"
	case ActionNotify:
		return "notify"
	case ActionRestart:
		return "restart"
	case ActionReconnectPrevious:
		return "reconnect-previous"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Plan maps an outcome and the configured flags to the ordered side effects
// of ending a session. It has no side effects of its own.
//
// The result is always recorded before the candidate is cleared, and a
// restart is always last. On failure a restart replaces reconnecting to the
// previous station.
func Plan(outcome Outcome, p config.Policy, hadPriorConnection bool) []Action {
	var actions []Action

	if outcome == OutcomeSuccess {
		if p.Success.Copy {
			actions = append(actions, ActionCopyCandidate)
		}
		if p.Success.Disconnect {
			actions = append(actions, ActionDisconnect)
		}
		actions = append(actions, ActionRecordResult, ActionDisableBoot)
		if p.Success.Clear {
			actions = append(actions, ActionClearCandidate)
		}
		actions = append(actions, ActionNotify)
		if p.Success.Reboot {
			actions = append(actions, ActionRestart)
		}
		return actions
	}

	actions = append(actions, ActionDisableBoot, ActionRecordResult)
	if p.Fail.Clear {
		actions = append(actions, ActionClearCandidate)
	}
	actions = append(actions, ActionNotify)

	switch {
	case p.Fail.Reboot:
		actions = append(actions, ActionRestart)
	case hadPriorConnection && p.Reconnect:
		actions = append(actions, ActionReconnectPrevious)
	}
	return actions
}
