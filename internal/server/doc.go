// Package server provides the HTTP server for PlayerPulse.
//
// This package is internal to PlayerPulse and handles all HTTP concerns:
//
//   - Health check: "/health" reports uptime for container probes
//   - REST API: JSON endpoint at "/api/status" for the current status snapshot
//   - Server-Sent Events: Snapshot stream at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the playerpulse library should not need to interact with this
// package directly. The server is started automatically by
// [playerpulse.PlayerPulse.Start] unless the health port is 0.
package server
