package poller

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jpalmerr/playerpulse/internal/store"
)

// ErrInvalidStatus is returned when a status document does not have the
// expected shape.
var ErrInvalidStatus = errors.New("invalid status document")

// StatusResponse is a validated status document for one server.
//
// It mirrors the subset of the mcsrvstat.us v3 response that PlayerPulse
// uses. Players.List is nil when the document did not include a roster.
type StatusResponse struct {
	Online   bool          `json:"online"`
	Hostname string        `json:"hostname,omitempty"`
	Version  string        `json:"version,omitempty"`
	Players  StatusPlayers `json:"players"`
}

// StatusPlayers is the players section of a [StatusResponse].
type StatusPlayers struct {
	Online int            `json:"online"`
	Max    int            `json:"max"`
	List   []store.Player `json:"list,omitempty"`
}

// rawStatus uses pointers so absent fields can be told apart from zero values.
type rawStatus struct {
	Online   bool   `json:"online"`
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Players  *struct {
		Online *int           `json:"online"`
		Max    int            `json:"max"`
		List   []store.Player `json:"list"`
	} `json:"players"`
}

// ParseStatus decodes and validates a status document.
//
// The document must contain players.online; players.list is optional.
// An offline server without a players section is reported as zero players
// with no roster. Any other shape violation returns an error wrapping
// [ErrInvalidStatus].
func ParseStatus(body []byte) (*StatusResponse, error) {
	var raw rawStatus
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	if raw.Players == nil {
		if !raw.Online {
			// offline servers are reported without a players section
			return &StatusResponse{Hostname: raw.Hostname}, nil
		}
		return nil, fmt.Errorf("%w: missing players", ErrInvalidStatus)
	}
	if raw.Players.Online == nil {
		return nil, fmt.Errorf("%w: missing players.online", ErrInvalidStatus)
	}

	resp := &StatusResponse{
		Online:   raw.Online,
		Hostname: raw.Hostname,
		Version:  raw.Version,
		Players: StatusPlayers{
			Online: *raw.Players.Online,
			Max:    raw.Players.Max,
			List:   raw.Players.List,
		},
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Validate checks the invariants of an already decoded response.
func (r *StatusResponse) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrInvalidStatus)
	}
	if r.Players.Online < 0 {
		return fmt.Errorf("%w: players.online is negative (%d)", ErrInvalidStatus, r.Players.Online)
	}
	for i, p := range r.Players.List {
		if p.UUID == "" {
			return fmt.Errorf("%w: players.list[%d] has no uuid", ErrInvalidStatus, i)
		}
	}
	return nil
}
