// Package dispatch provides the agent's single-threaded execution model: a
// Loop that runs queued callbacks one at a time, a Timers service for
// cancelable one-shot timers, and a Bus that delivers station events to
// scoped subscriptions.
//
// Anything that mutates provisioning state reaches it through the Loop, so
// timer expiry and event delivery never interleave with each other.
package dispatch
