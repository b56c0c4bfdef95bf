package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config is the logging section of the service configuration.
type Config struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`
	// Format is "text" or "json".
	Format string `json:"format" yaml:"format"`
	// File, when set, appends a copy of the log to this path in
	// addition to stderr.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// NewFromConfig builds a logger from a Config, applying defaults for empty
// fields (info level, text format).
func NewFromConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	options := []LoggerOption{WithLevel(level), WithFormatter(formatter)}
	if cfg.File != "" {
		fileOut, err := NewFileOutput(cfg.File)
		if err != nil {
			return nil, err
		}
		options = append(options, WithOutput(NewConsoleOutput()), WithOutput(fileOut))
	}
	return NewLogger(options...), nil
}

// RedirectStdLog routes the standard library's global logger through the
// given Logger at info level, so output from dependencies lands in one
// stream.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(stdLogWriter{logger: logger})
}

type stdLogWriter struct {
	logger Logger
}

func (w stdLogWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		w.logger.Info(msg)
	}
	return len(p), nil
}
