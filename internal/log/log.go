// Package log is the module-wide structured log sink: a single
// zerolog.Logger every backend and the model façade write through,
// tagged with a facility (model, storage, parser, query) instead of
// routing through per-package loggers.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// SetOutput redirects the sink to w, e.g. ioutil.Discard to silence it
// entirely or a test's io.Writer to assert on log content.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	log = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel changes the minimum severity the sink emits.
func SetLevel(lvl zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(lvl)
}

// For returns a logger tagged with facility, e.g. log.For("storage").
func For(facility string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Str("facility", facility).Logger()
}

// Warn logs a warning line under facility without building an
// intermediate zerolog.Logger at call sites that only need one line.
func Warn(facility, msg string) {
	For(facility).Warn().Msg(msg)
}

// Error logs an error line under facility, wrapping err.
func Error(facility string, err error, msg string) {
	For(facility).Error().Err(err).Msg(msg)
}
