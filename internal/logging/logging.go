// Package logging configures structured logging for the command-line tools.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Environment variables that override the configured settings.
const (
	EnvLevel   = "DUPLEX_LOG_LEVEL"   // a zerolog level name, e.g. "debug"
	EnvNoColor = "DUPLEX_LOG_NOCOLOR" // if non-empty, disable colored output
)

// Config describes how to set up a logger.
type Config struct {
	App     string    // attached to each log event as "app"
	Level   string    // minimum level; default "info"
	NoColor bool      // disable colored console output
	Out     io.Writer // default os.Stderr
}

// New constructs a console logger as described by cfg, with overrides from
// the environment, and installs it as the global zerolog logger.
func New(cfg Config) (zerolog.Logger, error) {
	level := cfg.Level
	if v := os.Getenv(EnvLevel); v != "" {
		level = v
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	w := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor || os.Getenv(EnvNoColor) != "",
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Str("app", cfg.App).Logger()
	log.Logger = logger
	return logger, nil
}
