package notify

import (
	"context"
	"log/slog"

	"github.com/jpalmerr/playerpulse/internal/store"
)

// Source is the publish side of a status store. [store.Store] satisfies it.
type Source interface {
	Subscribe() <-chan []store.ServerStatus
	Unsubscribe(ch <-chan []store.ServerStatus)
}

// Enqueuer accepts outbound messages. [Dispatcher] satisfies it.
type Enqueuer interface {
	Enqueue(msg Message) bool
}

// Notifier turns store snapshots into messages for every recipient.
//
// Each snapshot holds all servers, so the Notifier remembers the fingerprint
// of the last status it announced per server and only enqueues statuses that
// differ from it.
type Notifier struct {
	source     Source
	out        Enqueuer
	recipients *Recipients
	logger     *slog.Logger

	announced map[string]string
}

// NewNotifier creates a [Notifier]. If logger is nil, [slog.Default] is used.
func NewNotifier(source Source, out Enqueuer, recipients *Recipients, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		source:     source,
		out:        out,
		recipients: recipients,
		logger:     logger,
		announced:  make(map[string]string),
	}
}

// Run consumes snapshots until ctx is cancelled or the subscription closes.
func (n *Notifier) Run(ctx context.Context) error {
	ch := n.source.Subscribe()
	defer n.source.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-ch:
			if !ok {
				return nil
			}
			n.handle(snapshot)
		}
	}
}

// handle enqueues one message per recipient for each changed status.
func (n *Notifier) handle(snapshot []store.ServerStatus) {
	for _, status := range snapshot {
		fp := Fingerprint("", status)
		if n.announced[status.Server] == fp {
			continue
		}
		n.announced[status.Server] = fp

		recipients := n.recipients.List()
		queued := 0
		for _, id := range recipients {
			if n.out.Enqueue(NewMessage(id, status)) {
				queued++
			}
		}
		n.logger.Debug("status announced", "server", status.Server, "online", status.Online, "queued", queued)
	}
}

// Greeter registers new recipients from inbound direct messages.
type Greeter struct {
	messenger  Messenger
	recipients *Recipients
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewGreeter creates a [Greeter]. If logger is nil, [slog.Default] is used.
func NewGreeter(messenger Messenger, recipients *Recipients, retry RetryPolicy, logger *slog.Logger) *Greeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Greeter{
		messenger:  messenger,
		recipients: recipients,
		retry:      retry,
		logger:     logger,
	}
}

// Register adds the sender of in to the recipients and greets them.
// It returns false if the sender was already registered. The greeting is
// sent directly, bypassing the [Dispatcher].
func (g *Greeter) Register(ctx context.Context, in InboundMessage) bool {
	if !g.recipients.Add(in.SenderID) {
		return false
	}
	g.logger.Info("recipient registered", "recipient", in.SenderID, "name", in.SenderName)

	name := in.SenderName
	if name == "" {
		name = in.SenderID
	}
	err := g.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		address, err := g.messenger.ResolveRecipient(ctx, in.SenderID)
		if err != nil {
			return err
		}
		return g.messenger.Send(ctx, address, Greeting(name))
	})
	if err != nil {
		g.logger.Error("could not greet recipient", "recipient", in.SenderID, "error", err)
	}
	return true
}
