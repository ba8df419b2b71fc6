// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

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
	slog.Info("starting flight pilot (software-in-the-loop, MQTT telemetry)")

	if err := app.RunPilot(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
