// Package app wires the CasePulse dashboard together and owns its lifecycle.
//
// # Initialization Flow
//
//  1. Initialize logging and OpenTelemetry
//  2. Create the case file loader, the dataset store and the websocket hub
//  3. Load the case file once; a failure leaves the store empty
//  4. Initialize services and HTTP handlers
//  5. Configure the router, its middleware and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run stops on SIGINT or SIGTERM. In-flight requests are drained within
// Server.ShutdownTimeout, websocket clients are closed by the hub, the file
// watcher stops and telemetry is flushed.
//
// The app package does not call os.Exit; the caller decides the exit code.
package app
