// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger writing to out, or a console logger when
// environment is "local".
func New(out io.Writer, environment, level string) (zerolog.Logger, error) {
	parsedLevel, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse LOG_LEVEL=%q: %w", level, err)
	}

	writer := out
	if strings.EqualFold(strings.TrimSpace(environment), "local") {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(writer).
		Level(parsedLevel).
		With().
		Timestamp().
		Str("service", "loresmith").
		Logger()

	return logger, nil
}
