// Package logging provides structured logging for the wifiprov agent and CLI.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the project, plus a few helpers specific to
// station provisioning (network events, test outcomes, API requests).
//
// # Log Levels
//
//   - Debug: API requests, poller transitions, timer arming
//   - Info: Test lifecycle, network events, persisted changes
//   - Warn: Failed tests, rejected starts, recoverable driver errors
//   - Error: Persistence failures, invalid candidate configuration
//
// # Structured Logging
//
//	logging.Info("Candidate applied",
//	    zap.String("ssid", "Office-5G"),
//	    zap.Int("timeout_s", 30),
//	)
//
// # Configuration
//
// Logging is silent unless a level is given explicitly or through the
// WIFIPROV_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Secrets such as station passwords must be passed through Redact before
// being attached to a log entry.
package logging
