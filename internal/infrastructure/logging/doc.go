// Package logging provides structured logging for the Ember bridge.
//
// It wraps the standard library's log/slog with configuration-driven level,
// format, and output selection, and stamps every record with the service
// name and version. Components derive their own loggers via With so that
// records carry a component field (ownership, session, mediator, ...).
package logging
