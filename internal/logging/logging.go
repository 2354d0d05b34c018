// Package logging builds the CLI logger from configuration.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/storekit/internal/config"
)

// New creates a logger writing to w with the configured level and format.
func New(w io.Writer, cfg config.LogConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	formatter, err := parseFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}

	return log.NewWithOptions(w, log.Options{
		Prefix:          "storekit",
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: cfg.Timestamps,
		TimeFormat:      time.RFC3339,
	}), nil
}

func parseFormatter(name string) (log.Formatter, error) {
	switch name {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", name)
	}
}

// Component returns a child logger tagged with a component name.
func Component(l *log.Logger, name string) *log.Logger {
	return l.WithPrefix(l.GetPrefix() + "/" + name)
}
