// Package logging builds the process logger.
//
// Text output uses a colorized handler (timestamp, three-letter level, message,
// key=value attributes). JSON output uses slog's JSON handler. Components get
// child loggers with a "component" attribute.
package logging
