// Package logging provides structured logging with per-module log levels.
//
// Every subsystem asks for its own logger once and keeps it:
//
//	logger := logging.GetLogger("camera").With("camera_id", id)
//	logger.Info("Connected", "uri", cfg.Redacted())
//
// Loggers obtained before [Initialize] is called start at info level and pick
// up the configured level and format when [Initialize] runs.
//
// Output goes to stdout in text or JSON format. With Journal enabled and
// journald reachable, records are also sent to the journal under the
// identifier "camrelay":
//
//	journalctl -t camrelay MODULE=camera CAMERA_ID=front -f
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	journal = true
//
//	[logging.modules]
//	camera = "debug"
//	http = "warn"
package logging
