package service

// Channel event names carried by the push transport. Payloads are JSON with
// at least a user_id field plus the domain fields of the event.
const (
	EventMessageSent     = "message.sent"
	EventTypingStarted   = "typing.started"
	EventTypingStopped   = "typing.stopped"
	EventPresenceChanged = "presence.changed"
)

// EventHandler receives the raw JSON payload of one channel event.
type EventHandler func(payload []byte)

// ChannelHandle is one live subscription on a named channel.
type ChannelHandle interface {
	// On registers a handler for an event name. Registering again for the
	// same event replaces the previous handler.
	On(event string, fn EventHandler)

	// Channel returns the channel name this handle is bound to.
	Channel() string
}

// ChannelService is the named-channel publish/subscribe transport. One client
// instance is shared process-wide and carries many rebindable subscriptions;
// it is constructed explicitly and injected, never reached through ambient
// lookup.
type ChannelService interface {
	// Subscribe opens a subscription on a channel. Handles from before the
	// last Reset are dead and must not be reused.
	Subscribe(channel string) (ChannelHandle, error)

	// Unsubscribe closes the subscription on a channel. Safe to call for a
	// channel that is not subscribed.
	Unsubscribe(channel string) error

	// Reset forcibly drops the underlying connection and reconnects. All
	// previous subscriptions are invalid afterwards and must be rebound.
	Reset() error

	// Dispose tears the client down for good.
	Dispose() error
}
