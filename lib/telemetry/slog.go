package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog replaces the default logger. Verbose mode turns on debug
// level logging everywhere, including the resty instrumentation.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
