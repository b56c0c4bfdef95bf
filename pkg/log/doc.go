// Package log provides Logos' structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Components derive their own logger with
// With and a Component field so every line carries its origin.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("ingest"))
//	l.Info("entry committed", log.Uint64("seq", 42))
//
// # Configuration
//
// NewFromConfig builds a logger from a declarative Config (level, text or
// JSON format, optional log file). Outputs are pluggable: console, file and
// null implementations ship with the package. RedirectStdLog routes
// standard-library log output (Pebble and friends) through the same
// pipeline.
package log
