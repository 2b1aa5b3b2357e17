// Package app wires the stock dashboard together and manages its lifecycle.
//
// # Initialization Flow
//
//  1. Load configuration from defaults, an optional YAML file and PHARMSTOCK_* variables
//  2. Initialize logging and OpenTelemetry
//  3. Create the dataset repository, dashboard service and websocket hub
//  4. Build the chi router and its middleware chain
//  5. Load the dataset once; a source that cannot be read stops startup
//  6. Start the websocket hub and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then shuts the server down, closes
// websocket clients and flushes telemetry. The package never calls os.Exit;
// the exit code is left to main.
package app
