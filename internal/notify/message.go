package notify

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/jpalmerr/playerpulse/internal/store"
)

// fingerprintKey keys the HMAC used for message IDs. It only needs to be
// stable, not secret.
const fingerprintKey = "notasecret"

// Message is an outbound notification waiting to be delivered.
//
// ID is a fingerprint of the message's logical content: two messages for the
// same recipient and the same server state share an ID, which is what the
// [Dispatcher] deduplicates on.
type Message struct {
	ID          string
	RecipientID string
	Body        string
}

// NewMessage builds the notification telling recipientID about status.
func NewMessage(recipientID string, status store.ServerStatus) Message {
	return Message{
		ID:          Fingerprint(recipientID, status),
		RecipientID: recipientID,
		Body:        FormatBody(status),
	}
}

// Fingerprint returns a stable hex digest of (recipientID, server, online,
// roster). Roster order does not affect the result; an unknown roster hashes
// differently from an empty one.
func Fingerprint(recipientID string, status store.ServerStatus) string {
	var b strings.Builder
	b.WriteString(recipientID)
	b.WriteByte(';')
	b.WriteString(status.Server)
	b.WriteByte(';')
	b.WriteString(strconv.Itoa(status.Online))
	b.WriteByte(';')
	if status.Players == nil {
		b.WriteByte('?')
	} else {
		for i, p := range store.SortedByUUID(status.Players) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(p.UUID)
		}
	}
	b.WriteByte(';')

	mac := hmac.New(md5.New, []byte(fingerprintKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// FormatBody renders the human-readable notification text for status.
func FormatBody(status store.ServerStatus) string {
	if status.Online == 0 {
		return "No players on server " + status.Server
	}
	body := fmt.Sprintf("%d player(s) 🚶 on server %s", status.Online, status.Server)
	if len(status.Players) == 0 {
		return body
	}
	names := make([]string, len(status.Players))
	for i, p := range status.Players {
		names[i] = p.Name
	}
	return body + ": " + strings.Join(names, ", ")
}

// Greeting is the text sent to a newly registered recipient.
func Greeting(name string) string {
	return fmt.Sprintf("Hello %s 👋! I will notify you if new players join the MC servers 👍", name)
}
