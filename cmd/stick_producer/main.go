package main

import (
	"log/slog"
	"os"

	"github.com/relabs-tech/flight_computer/internal/app"
	"github.com/relabs-tech/flight_computer/internal/config"
)

func main() {
	// Load configuration
	if err := config.InitGlobal("flight_config.txt"); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.SetupLogging(config.Get().LogLevel)
	slog.Info("starting flight stick producer (serial $PSTK → MQTT)")

	if err := app.RunStickProducer(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
