// Package log provides structured protocol event logging.
//
// Every send, delivery, state change and failure on a connection can be
// captured as an Event and handed to a Logger. Events are compact CBOR
// records (integer map keys) suitable for writing to disk and replaying
// later with Reader.
//
// Loggers:
//   - NoopLogger discards everything (the default).
//   - FileLogger appends CBOR events to a file.
//   - SlogAdapter bridges events into a log/slog logger for development.
//   - MultiLogger fans out to several loggers at once.
package log
