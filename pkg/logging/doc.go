// Package logging builds the structured loggers used across stubd.
//
// It is a thin layer over log/slog so every component logs the same way:
// the server, the matcher, the store engine and deferred write flushing.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("resources loaded", "count", 12)
//	logger.Warn("deferred write failed", "store", "orders", "error", err)
//
// # Integration
//
// Components accept a *slog.Logger through an option or setter and fall back
// to Nop() when none is given. Component loggers are derived with
// For(logger, "store") so every record carries a "component" attribute, and
// ForExchange tags the records of one request/response exchange.
package logging
