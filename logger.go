package blockfs

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with blockfs-specific helpers so operations log
// with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is nil,
// a text handler to stderr at info level is used.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithFile adds a filename field to the logger.
func (l *Logger) WithFile(name string) *Logger {
	return &Logger{Logger: l.Logger.With("file", name)}
}

// LogMount logs a mount attempt.
func (l *Logger) LogMount(blocks int, err error) {
	if err != nil {
		l.Error("mount failed", "blocks", blocks, "error", err)
	} else {
		l.Info("volume mounted", "blocks", blocks)
	}
}

// LogUnmount logs an unmount attempt.
func (l *Logger) LogUnmount(err error) {
	if err != nil {
		l.Error("unmount failed", "error", err)
	} else {
		l.Info("volume unmounted")
	}
}

// LogIO logs a read or write operation.
func (l *Logger) LogIO(op string, fd, n int, err error) {
	if err != nil {
		l.Error(op+" failed", "fd", fd, "bytes", n, "error", err)
	} else {
		l.Debug(op+" completed", "fd", fd, "bytes", n)
	}
}
