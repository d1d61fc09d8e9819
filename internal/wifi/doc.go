// Package wifi defines the station (STA) vocabulary shared by the
// provisioning core and the concrete drivers: configuration, status,
// lifecycle events, and the Driver interface.
//
// Two drivers live in subpackages:
//   - sim: an in-process simulated radio for benches, demos and tests
//   - rpc: a remote device's WiFi component driven over HTTP JSON-RPC
//
// Drivers report state changes by publishing Events. A driver never
// publishes EventConnecting for attempts started through Connect, because
// the provisioning controller records those attempts itself.
package wifi
