// Package notifications publishes sync and lifecycle events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Each event family can be switched off in the [notifications] config
// section; callers always Publish and let the service decide.
package notifications
