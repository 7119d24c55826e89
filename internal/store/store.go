package store

import (
	"slices"
	"strings"
)

// Player is a single player listed in a server's roster.
//
// Players are identified by UUID; Name is the display name.
type Player struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ServerStatus is the latest known state of one Minecraft server.
//
// Players is nil when the roster is unknown (the status API did not list
// players) and empty when the roster is known to be empty.
type ServerStatus struct {
	// Server is the address the status was fetched for; it is the store key.
	Server string `json:"server"`

	// Online is the number of players currently online.
	Online int `json:"online"`

	// Players is the roster, or nil if unknown.
	Players []Player `json:"players"`
}

// Clone returns a deep copy of s.
func (s ServerStatus) Clone() ServerStatus {
	if s.Players != nil {
		s.Players = slices.Clone(s.Players)
	}
	return s
}

// Changed reports whether next differs from prev in a way worth publishing.
//
// A change is a different online count, a roster appearing or disappearing,
// or a different set of players when both rosters are known. Roster order
// does not matter.
func Changed(prev, next ServerStatus) bool {
	if prev.Online != next.Online {
		return true
	}
	if (prev.Players == nil) != (next.Players == nil) {
		return true
	}
	if prev.Players == nil {
		return false
	}
	return !slices.Equal(SortedByUUID(prev.Players), SortedByUUID(next.Players))
}

// SortedByUUID returns a copy of players ordered by UUID.
func SortedByUUID(players []Player) []Player {
	sorted := slices.Clone(players)
	slices.SortFunc(sorted, func(a, b Player) int {
		if c := strings.Compare(a.UUID, b.UUID); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return sorted
}

// Store defines the interface for storing and subscribing to server statuses.
//
// Store implementations must be safe for concurrent access. Subscribers
// receive whole snapshots of the collection, sorted by server.
type Store interface {
	// Update stores status if it differs from the stored record for the same
	// server and publishes a new snapshot. Returns true if it published.
	Update(status ServerStatus) bool

	// GetStatus returns the stored record for server.
	GetStatus(server string) (ServerStatus, bool)

	// GetAll returns a snapshot of all records sorted by server.
	GetAll() []ServerStatus

	// Subscribe returns a channel that immediately receives the current
	// snapshot and then one snapshot per publish.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan []ServerStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan []ServerStatus)
}
