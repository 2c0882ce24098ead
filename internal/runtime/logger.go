package runtime

import (
	"log/slog"
	"os"
)

// DefaultLogger returns the shared text logger the commands use.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
