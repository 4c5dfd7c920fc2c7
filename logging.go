package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// newLogger writes plain console lines to path. The terminal belongs to
// the UI, so without a path nothing is logged.
func newLogger(path, level string) (zerolog.Logger, io.Closer, error) {
	if path == "" {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, errors.Wrap(err, "failed to open log file")
	}

	output := zerolog.ConsoleWriter{
		Out:        f,
		NoColor:    true,
		TimeFormat: "15:04:05",
	}
	log := zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	return log, f, nil
}
