// Package logging provides structured logging for paramsync.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("serial connected", "port", "/dev/ttyUSB0")
//	logger.With("component", "peer").Warn("peer dropped", "error", err)
//
// *Logger satisfies the small Logger interfaces declared by the esp32, peer,
// router and bridge packages.
package logging
