// Package api exposes the provisioning controller over HTTP.
//
// Routes:
//
//	GET  /api/status           controller and station snapshot
//	GET  /api/result           last test result
//	POST /api/test             start a test; body {"ssid","pass"} optional, ?wait=true blocks
//	POST /api/sta/connect      connect the station
//	POST /api/sta/disconnect   disconnect the station
//	POST /api/sta/copy         copy the candidate into the active configuration
//	POST /api/sta/clear        clear the candidate
//	POST /api/boot/enable      run a test on next boot
//	POST /api/boot/disable     cancel the boot test
//	GET  /api/ws               WebSocket stream of station events and results
//
// Errors are JSON {"error","type"}. A second test while one is running is
// 409 Conflict, an invalid candidate is 400 and a driver failure is 502.
//
// Client wraps the same routes for the wifiprov CLI.
package api
