// Package cache provides the per-server response cache used by the poller.
//
// The cache is generic over the cached value and keyed by server address.
// Entries become stale once their age reaches the TTL; a failed refresh
// falls back to the stale value when there is one.
package cache
