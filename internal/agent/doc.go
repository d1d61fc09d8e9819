// Package agent assembles a wifiprov agent: one dispatch loop carrying the
// timers and the station event bus, a station driver (simulated radio or a
// remote device over JSON-RPC), the provisioning controller, the HTTP API
// and an optional mDNS advertisement.
//
// Restart actions are honored in-process. The simulated radio is reset and
// the startup sequence (active station, then boot test) runs again at once;
// a remote device is rebooted and set up again after a settle delay.
package agent
