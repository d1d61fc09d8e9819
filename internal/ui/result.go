package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/wifiprov/internal/provision"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Detail is one key/value line of a result box.
type Detail struct {
	Key   string
	Value string
}

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType // Success, failure, or warning
	Title           string     // e.g., "Candidate network verified"
	Details         []Detail   // Shown in order
	Error           error      // Error (for failure results)
	Troubleshooting []string   // Troubleshooting tips (for failure results)
	Width           int        // Terminal width
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string) *Result {
	return &Result{Type: ResultWarning, Title: title, Width: GetTerminalWidth()}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail appends a detail line
func (r *Result) AddDetail(key, value string) *Result {
	r.Details = append(r.Details, Detail{Key: key, Value: value})
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	var title string
	var color lipgloss.TerminalColor
	switch r.Type {
	case ResultFailure:
		title = ErrorTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", FailureMarker, r.Title))
		color = ErrorColor
	case ResultWarning:
		title = WarningTitleStyle.Render(fmt.Sprintf("   ⚠  WARNING  ─  %s", r.Title))
		color = WarningColor
	default:
		title = SuccessTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", SuccessMarker, r.Title))
		color = SuccessColor
	}

	lines := []string{"", title, ""}

	if r.Error != nil {
		lines = append(lines, ErrorMessageStyle.Render("   Error: "+r.Error.Error()), "")
	}

	for _, d := range r.Details {
		lines = append(lines, ResultKeyStyle.Render("   "+d.Key+":")+" "+ResultValueStyle.Render(d.Value))
	}
	if len(r.Details) > 0 {
		lines = append(lines, "")
	}

	if len(r.Troubleshooting) > 0 {
		tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
		for _, tip := range r.Troubleshooting {
			tips = append(tips, TroubleshootingItemStyle.Render("  • "+tip))
		}
		lines = append(lines, TroubleshootingBoxStyle(width).Render(strings.Join(tips, "\n")), "")
	}

	return resultBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// troubleshooting returns tips for a failed test by reason.
func troubleshooting(reason provision.Reason) []string {
	switch reason {
	case provision.ReasonAttemptsExhausted:
		return []string{
			"Check the passphrase for the candidate network",
			"Confirm the access point is in range and accepting new clients",
			"Raise provision.wifi.attempts if the network is slow to associate",
		}
	case provision.ReasonTimeout:
		return []string{
			"The station associated but never obtained an address",
			"Check that the network's DHCP server has free leases",
			"For a static address, verify ip, netmask and gw",
			"Raise provision.wifi.timeout for slow networks",
		}
	case provision.ReasonConfigError:
		return []string{
			"The candidate configuration was rejected before connecting",
			"Check the SSID length and passphrase (8 to 63 characters)",
			"Run 'wifiprov status' to see the agent's current candidate",
		}
	default:
		return nil
	}
}

// TestResult builds the result box for a finished provisioning test.
func TestResult(r provision.Result) *Result {
	var box *Result
	if r.Success {
		box = NewSuccessResult("Candidate network verified")
	} else {
		box = NewFailureResult("Candidate network test failed", nil, troubleshooting(r.Reason))
	}
	box.AddDetail("SSID", orDash(r.SSID))
	if r.Reason != "" {
		box.AddDetail("Reason", string(r.Reason))
	}
	if r.Attempts > 0 {
		box.AddDetail("Attempts", strconv.Itoa(r.Attempts))
	}
	return box
}

// StatusResult builds the box for a controller status snapshot. A running
// test shows as a warning so it stands out.
func StatusResult(st provision.Status) *Result {
	var box *Result
	if st.Running {
		box = NewWarningResult("Test in progress")
		box.AddDetail("Candidate", orDash(st.Candidate))
		box.AddDetail("Attempt", fmt.Sprintf("%d of %d", st.Attempts, st.MaxAttempts))
	} else {
		box = NewSuccessResult("Idle")
		box.AddDetail("Max attempts", strconv.Itoa(st.MaxAttempts))
	}
	box.AddDetail("Station", orDash(st.StationState))
	box.AddDetail("Station SSID", orDash(st.StationSSID))
	box.AddDetail("Reconnect", strconv.FormatBool(st.ShouldReconnect))
	box.AddDetail("Boot test armed", strconv.FormatBool(st.BootTestPending))
	return box
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
