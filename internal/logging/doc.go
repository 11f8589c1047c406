// Package logging provides structured logging with per-module log levels.
//
// Records go to stdout (text or json) when it is connected, to the systemd
// journal when journald is running, and to an in-memory ring buffer served
// by the status API.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"decode": "debug",
//			"http":   "warn",
//		},
//	})
//
// Then get a logger per module:
//
//	logger := logging.GetLogger("driver")
//	logger.Info("Playback started", "cameras", 8)
//
// Loggers obtained before Initialize keep working and adopt the configured
// level. Levels can be changed at runtime with SetModuleLevel.
//
// Journal entries are tagged with the identifier viewsynth:
//
//	journalctl -t viewsynth -f
//	journalctl -t viewsynth MODULE=decode
package logging
