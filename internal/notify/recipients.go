package notify

import "sync"

// Recipients is a concurrency-safe set of recipient IDs that remembers
// insertion order.
type Recipients struct {
	mu  sync.RWMutex
	ids []string
	set map[string]struct{}
}

// NewRecipients returns a set holding ids, minus duplicates and empty IDs.
func NewRecipients(ids ...string) *Recipients {
	r := &Recipients{set: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		r.Add(id)
	}
	return r
}

// Add inserts id and reports whether it was new.
func (r *Recipients) Add(id string) bool {
	if id == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.set[id]; ok {
		return false
	}
	r.set[id] = struct{}{}
	r.ids = append(r.ids, id)
	return true
}

// List returns a copy of all IDs in insertion order.
func (r *Recipients) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}
