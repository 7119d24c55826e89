package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// subscriberBuffer is the capacity of each subscription channel.
const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// Records are kept sorted by server. Update compares the incoming status with
// the stored one and publishes only on a real change, which keeps unchanged
// polls from producing notifications.
//
// Snapshots are delivered without blocking the writer. When a subscriber's
// buffer is full, its oldest pending snapshot is discarded to make room for
// the newest one; since every snapshot is the whole collection, a slow
// subscriber skips intermediate states but never misses the latest.
type MemoryStore struct {
	mu          sync.RWMutex
	statuses    []ServerStatus
	subscribers map[chan []ServerStatus]struct{}
	logger      *slog.Logger
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// If logger is nil, [slog.Default] is used.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		subscribers: make(map[chan []ServerStatus]struct{}),
		logger:      logger,
	}
}

// Update stores status and notifies subscribers if it changed.
//
// Change detection and publish happen under the same lock, so two updates
// are never interleaved and snapshots reach subscribers in update order.
func (m *MemoryStore) Update(status ServerStatus) bool {
	status = status.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, found := m.indexOf(status.Server)
	switch {
	case !found:
		m.statuses = append(m.statuses, ServerStatus{})
		copy(m.statuses[idx+1:], m.statuses[idx:])
		m.statuses[idx] = status
	case Changed(m.statuses[idx], status):
		m.statuses[idx] = status
	default:
		return false
	}

	m.logger.Debug("server status changed",
		"server", status.Server,
		"online", status.Online,
	)
	m.publishLocked()
	return true
}

// GetStatus returns the stored record for server.
func (m *MemoryStore) GetStatus(server string) (ServerStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, found := m.indexOf(server)
	if !found {
		return ServerStatus{}, false
	}
	return m.statuses[idx].Clone(), true
}

// GetAll returns a snapshot of all records sorted by server.
//
// The returned slice is a copy; modifications do not affect the store.
func (m *MemoryStore) GetAll() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe creates a new subscription.
//
// The current snapshot is queued on the returned channel before Subscribe
// returns, so a new subscriber always starts from the latest state.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan []ServerStatus {
	ch := make(chan []ServerStatus, subscriberBuffer)

	m.mu.Lock()
	ch <- m.snapshotLocked()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan []ServerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// indexOf finds server in the sorted collection. If it is absent, the
// returned index is its insertion point.
func (m *MemoryStore) indexOf(server string) (int, bool) {
	idx := sort.Search(len(m.statuses), func(i int) bool {
		return strings.Compare(m.statuses[i].Server, server) >= 0
	})
	return idx, idx < len(m.statuses) && m.statuses[idx].Server == server
}

func (m *MemoryStore) snapshotLocked() []ServerStatus {
	snapshot := make([]ServerStatus, len(m.statuses))
	for i, s := range m.statuses {
		snapshot[i] = s.Clone()
	}
	return snapshot
}

// publishLocked sends the current snapshot to every subscriber. Must be
// called with m.mu held for writing.
func (m *MemoryStore) publishLocked() {
	for ch := range m.subscribers {
		snapshot := m.snapshotLocked()
		for !trySend(ch, snapshot) {
			// full: drop the oldest pending snapshot
			select {
			case <-ch:
			default:
			}
		}
	}
}

func trySend(ch chan []ServerStatus, snapshot []ServerStatus) bool {
	select {
	case ch <- snapshot:
		return true
	default:
		return false
	}
}
