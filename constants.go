package channels

// Protocol version sent in the connection URL query string.
const protocolVersion = "7"

// clientName identifies this library to the server.
const clientName = "relayforge-channels-go"

// libraryVersion is reported in the connection URL query string.
const libraryVersion = "1.0.0"

// defaultHost is dialled when no host or cluster is configured.
const defaultHost = "ws.pusherapp.com"

// Channel name prefixes. The prefix encodes the channel type and therefore
// the authorization requirements.
const (
	presencePrefix         = "presence"
	privatePrefix          = "private"
	privateEncryptedPrefix = "private-encrypted"
)

// Event name namespaces. Events in the "pusher" and "pusher_internal"
// namespaces are system events and are never encrypted; events whose first
// dash-delimited segment is "client" are routed through client-event framing.
const (
	pusherEventType         = "pusher"
	pusherInternalEventType = "pusher_internal"
	clientEventType         = "client"
)

// Event names a consumer can bind to.
const (
	// EventSubscriptionSucceeded fires on a channel when its subscription
	// completes.
	EventSubscriptionSucceeded = "pusher:subscription_succeeded"
	// EventSubscriptionError fires on a channel when its authorization or
	// subscription fails.
	EventSubscriptionError = "pusher:subscription_error"
	// EventError fires on global bindings when the server reports a
	// protocol error.
	EventError = "pusher:error"
)

// Protocol event names.
const (
	pusherConnectionEstablished = "pusher:connection_established"
	pusherError                 = "pusher:error"
	pusherSubscribe             = "pusher:subscribe"
	pusherUnsubscribe           = "pusher:unsubscribe"
	pusherPing                  = "pusher:ping"
	pusherPong                  = "pusher:pong"
	pusherSubscriptionError     = "pusher:subscription_error"
	pusherSubscriptionSucceeded = "pusher:subscription_succeeded"

	pusherInternalMemberAdded           = "pusher_internal:member_added"
	pusherInternalMemberRemoved         = "pusher_internal:member_removed"
	pusherInternalSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
)

// JSON keys used in protocol frames and auth responses.
const (
	jsonKeyActivityTimeout = "activity_timeout"
	jsonKeyAuth            = "auth"
	jsonKeyChannel         = "channel"
	jsonKeyChannelData     = "channel_data"
	jsonKeyCode            = "code"
	jsonKeyData            = "data"
	jsonKeyEvent           = "event"
	jsonKeyHash            = "hash"
	jsonKeyMessage         = "message"
	jsonKeyPresence        = "presence"
	jsonKeySharedSecret    = "shared_secret"
	jsonKeySocketID        = "socket_id"
	jsonKeyUserID          = "user_id"
	jsonKeyUserInfo        = "user_info"
)
