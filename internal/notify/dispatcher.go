package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = time.Second

// Dispatcher is a debounced, deduplicating outbound message queue.
//
// Enqueued messages are held in a pending set keyed by [Message.ID]; a
// message whose ID is already pending is dropped. Once no new message has
// been enqueued for the debounce window, the whole pending set is flushed as
// one batch: every message is resolved and sent under the [RetryPolicy] and
// removed from the set only after it was delivered. Messages enqueued while a
// batch is in flight wait for the next quiet period.
type Dispatcher struct {
	messenger Messenger
	debounce  time.Duration
	retry     RetryPolicy
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]Message
	order   []string

	kick chan struct{}
}

// NewDispatcher creates a [Dispatcher] delivering through messenger.
//
// A non-positive debounce uses [DefaultDebounce]. If logger is nil,
// [slog.Default] is used.
func NewDispatcher(messenger Messenger, debounce time.Duration, retry RetryPolicy, logger *slog.Logger) *Dispatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		messenger: messenger,
		debounce:  debounce,
		retry:     retry,
		logger:    logger,
		pending:   make(map[string]Message),
		kick:      make(chan struct{}, 1),
	}
}

// Enqueue adds msg to the pending set and restarts the debounce window.
// It returns false, and does nothing, if a message with the same ID is
// already pending. Enqueue never blocks.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.Lock()
	if _, ok := d.pending[msg.ID]; ok {
		d.mu.Unlock()
		d.logger.Debug("duplicate message dropped", "message_id", msg.ID, "recipient", msg.RecipientID)
		return false
	}
	d.pending[msg.ID] = msg
	d.order = append(d.order, msg.ID)
	d.mu.Unlock()

	select {
	case d.kick <- struct{}{}:
	default:
	}
	return true
}

// Pending returns the number of messages not yet delivered.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Run flushes batches until ctx is cancelled. It returns nil on cancellation;
// undelivered messages stay pending.
func (d *Dispatcher) Run(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time // nil while no flush is scheduled
	arm := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(d.debounce)
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.kick:
			arm()
		case <-fire:
			fire = nil
			d.flush(ctx)
			// leftovers: messages that gave up, or arrived during the flush
			if ctx.Err() == nil && d.Pending() > 0 {
				arm()
			}
		}
	}
}

// flush delivers a snapshot of the pending set and waits for every delivery.
func (d *Dispatcher) flush(ctx context.Context) {
	batch := d.snapshot()
	if len(batch) == 0 {
		return
	}

	batchID := uuid.NewString()
	d.logger.Info("flushing messages", "batch_id", batchID, "count", len(batch))

	var wg sync.WaitGroup
	for _, msg := range batch {
		wg.Add(1)
		go func(msg Message) {
			defer wg.Done()
			if d.deliver(ctx, batchID, msg) {
				d.remove(msg.ID)
			}
		}(msg)
	}
	wg.Wait()
}

// deliver resolves the recipient and sends msg, retrying each step.
func (d *Dispatcher) deliver(ctx context.Context, batchID string, msg Message) bool {
	logger := d.logger.With("batch_id", batchID, "message_id", msg.ID, "recipient", msg.RecipientID)

	var address string
	err := d.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		a, err := d.messenger.ResolveRecipient(ctx, msg.RecipientID)
		if err != nil {
			logger.Error("could not resolve recipient", "attempt", attempt, "error", err)
			return err
		}
		address = a
		return nil
	})
	if err != nil {
		logger.Error("recipient resolution abandoned", "error", err)
		return false
	}
	logger.Info("recipient resolved", "address", address)

	err = d.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := d.messenger.Send(ctx, address, msg.Body); err != nil {
			logger.Error("could not send message", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		logger.Error("message delivery abandoned", "error", err)
		return false
	}
	logger.Info("message delivered")
	return true
}

func (d *Dispatcher) snapshot() []Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	batch := make([]Message, 0, len(d.order))
	for _, id := range d.order {
		batch = append(batch, d.pending[id])
	}
	return batch
}

func (d *Dispatcher) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[id]; !ok {
		return
	}
	delete(d.pending, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}
