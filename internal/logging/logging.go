// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds a logger at the named level writing to w and installs it as the global
// logger. Unless asJSON is set, output goes through a console writer.
func Init(level string, asJSON bool, w io.Writer) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := w
	if !asJSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !isTerminal(w)}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

// ParseLevel accepts zerolog level names; an empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", level)
	}
	return lvl, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}
