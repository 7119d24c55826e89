// Package store provides storage and pub/sub functionality for server statuses.
//
// This package is internal to PlayerPulse and manages the in-memory table of
// per-server status records. It implements a publish-subscribe pattern in
// which an update is broadcast only when it changes the stored record.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [ServerStatus]: Latest known state of one server
//   - [Changed]: The change-detection rule used by Update
//
// Subscribers receive whole snapshots sorted by server, starting with the
// snapshot current at subscription time.
package store
