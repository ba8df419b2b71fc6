// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/relabs-tech/flight_computer/internal/app"
	"github.com/relabs-tech/flight_computer/internal/config"
)

// Usage: headless [scenario ...]
// Runs every built-in scenario when none are named. No broker needed.
func main() {
	level := "warn"
	if err := config.InitGlobal("flight_config.txt"); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	} else {
		level = config.Get().LogLevel
	}
	app.SetupLogging(level)

	if err := app.RunScenario(os.Stdout, os.Args[1:]...); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
