// Package config provides the persisted provisioning configuration.
//
// The configuration is a single YAML document holding the active station
// (wifi.sta), the candidate station under test (provision.wifi.sta), the
// outcome policy flags, attempt/timeout/boot parameters and the last test
// result. It follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/wifiprov/config.yaml or $HOME/.config/wifiprov/config.yaml
//   - macOS: $HOME/.config/wifiprov/config.yaml
//   - Windows: %LOCALAPPDATA%\wifiprov\config.yaml
//
// # Example
//
//	version: 1
//	wifi:
//	  sta: {enable: true, ssid: Home, pass: hunter2hunter2}
//	provision:
//	  wifi:
//	    sta: {ssid: Office-5G, pass: correct-horse}
//	    success: {copy: true, clear: true, enable: true}
//	    fail: {clear: true}
//	    reconnect: true
//	    attempts: 3
//	    timeout: 30
//	    boot: {enable: false, delay: 0}
//
// # Thread Safety
//
// Store accessors take an internal mutex. Save writes a temporary file and
// renames it over the target, so a crash never leaves a partial document.
package config
