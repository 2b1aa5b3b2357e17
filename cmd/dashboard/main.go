// Command dashboard serves the pharmacy stock request dashboard API.
//
// Configuration comes from an optional config.yaml and PHARMSTOCK_* environment
// variables; PHARMSTOCK_DATASET_PATH selects the export to serve. The process
// exits with status 1 if the export cannot be loaded at startup.
package main

import (
	"log/slog"
	"os"

	"pharmstock/internal/app"
	"pharmstock/internal/infrastructure"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
		_ = infrastructure.CloseLogFile()
		os.Exit(1)
	}
	_ = infrastructure.CloseLogFile()
}
