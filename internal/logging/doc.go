// Package logging assembles the slog loggers used by the CLI and daemon.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// context helpers that tag records with session, game, and step identifiers.
// WarnWithContext and ErrorWithContext keep warnings actionable by always
// carrying an event type, a hint, and an impact. NewNop serves tests and
// wiring code that has no logger yet.
package logging
