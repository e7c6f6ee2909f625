package mcqstudio

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	verboseMode atomic.Bool
	logger      atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// SetVerbose sets the global verbose mode
func SetVerbose(verbose bool) {
	verboseMode.Store(verbose)
}

// SetLogger replaces the package logger. A nil logger discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

// Logger returns the package logger
func Logger() *slog.Logger {
	return logger.Load()
}

// VerboseLog logs only when verbose mode is enabled
func VerboseLog(msg string, args ...any) {
	if verboseMode.Load() {
		Logger().Info(msg, args...)
	}
}
