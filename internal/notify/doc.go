// Package notify delivers player notifications to chat recipients.
//
// The main components are:
//
//   - [Message]: An outbound notification with a content fingerprint as its ID
//   - [Dispatcher]: Debounced, deduplicating queue that retries delivery
//   - [RetryPolicy]: Bounded or unbounded retry pacing
//   - [Notifier]: Bridges store snapshots to the dispatcher
//   - [Greeter]: Registers recipients from inbound direct messages
//   - [Messenger]: The chat platform, implemented by the discord and feishu packages
package notify
