package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level defaults to info;
// set QCALL_LOG_LEVEL=debug for verbose call tracing.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("QCALL_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
