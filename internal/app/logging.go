package app

import (
	"log/slog"
	"os"

	"github.com/relabs-tech/flight_computer/internal/config"
)

// SetupLogging installs a JSON slog handler on stdout as the default
// logger. Unknown levels fall back to info.
func SetupLogging(level string) *slog.Logger {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("unknown LOG_LEVEL, using info", "value", level)
	}
	return logger
}
