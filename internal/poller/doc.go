// Package poller provides periodic status polling for PlayerPulse.
//
// This package is internal to PlayerPulse and handles fetching server status
// documents, caching them, and turning them into store updates.
//
// The main components are:
//
//   - [Client]: HTTP client for the status API with rate limiting and size limits
//   - [StatusResponse]: Validated status document
//   - [StatusClient]: Cached online-count and roster projections
//   - [Scheduler]: Ticker-driven poll loop with a worker pool
//
// Users of the playerpulse library should not need to interact with this
// package directly. Configuration is done through the main playerpulse package.
package poller
