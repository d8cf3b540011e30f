// Package logger wraps zerolog behind a small Logger interface.
//
// Console output is pretty-printed to stderr; with a log file configured the
// same events are also appended there. Packages take a Logger in their
// constructors; the global logger (Initialize/GetLogger) exists for the CLI.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("theme", "zine")
//	log.Info("Searching theme")
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
