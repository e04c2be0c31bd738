package logging

import "log/slog"

// EnableTrace turns on high-volume trace logs. Off by default because the
// dispatch and broadcast paths would otherwise flood the DEBUG level.
var EnableTrace = false

// Trace logs at DEBUG level when EnableTrace is set.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}

// TraceDefault logs to the default logger when EnableTrace is set.
func TraceDefault(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
