// Package rpc drives the WiFi station of a remote device that exposes a
// Gen2-style JSON-RPC API over HTTP (POST /rpc).
//
// Methods used:
//   - WiFi.SetConfig: apply station settings, enable or disable the station
//   - WiFi.GetStatus: poll association state ("disconnected", "connecting",
//     "connected", "got ip")
//   - Shelly.Reboot: restart the device
//
// Requests are retried with exponential backoff when the failure is
// transient (timeouts, refused connections, 5xx responses).
package rpc
