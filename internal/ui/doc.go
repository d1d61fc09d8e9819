// Package ui provides terminal UI components for the wifiprov CLI.
//
// Most commands follow a "run once and exit" pattern: a Header naming the
// command and agent, then a Result box with the outcome. Lipgloss renders
// both. The watch command is the exception; it runs a Bubble Tea program
// (WatchModel) that follows the agent's event stream until the user quits.
//
// # Components
//
//   - Header: command banner with the agent address and parameters
//   - Result: success, failure or warning box with ordered details and
//     troubleshooting tips
//   - Printer: writes components to an io.Writer, plus the agent table
//   - Confirm: warning box with a y/N prompt for destructive actions
//   - WatchModel: live view of the current test and station events
//
// # Logging Integration
//
// Logging is controlled via the WIFIPROV_LOG_LEVEL environment variable. When
// unset, zap logging is silent so the curated UI output is displayed cleanly.
package ui
