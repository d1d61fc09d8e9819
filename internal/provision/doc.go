// Package provision tries a candidate WiFi station configuration without
// losing a working one.
//
// A Controller applies the candidate, counts connection attempts and waits,
// bounded by an attempt limit and a timeout, for an IP on the candidate's
// SSID. It then runs the outcome plan produced by Plan: commit the candidate
// on success, or roll back to the previous station on failure, recording the
// result and optionally restarting the device.
//
// # Execution model
//
// Timer callbacks and station events reach the controller through a
// dispatch.Loop. Exported methods may also be called from other goroutines
// (API handlers); a single mutex serializes them. Completion handlers run
// after the mutex is released.
//
// # Sessions
//
// At most one test runs at a time. A session ends exactly once, through a
// single teardown that cancels the timeout, releases the event subscription
// and executes the plan. There is no abort operation: a session ends on a
// matching IP, exhausted attempts or the timeout.
package provision
