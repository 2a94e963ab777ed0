// Package daemon coordinates the long-running srmsync process.
//
// It owns the single-instance lock, clears launch markers at start and stop,
// turns library snapshot changes into sync
// sessions (at most one follow-up is queued while a session runs), routes
// launch URIs and host events to the lifecycle tracker, and serves the
// optional HTTP status API.
package daemon
