package channels

import "fmt"

// ProtocolError is a "pusher:error" frame received from the server.
type ProtocolError struct {
	// Code is the error code, or nil when the server omitted one.
	Code *int
	// Message is the human-readable error description.
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != nil {
		return fmt.Sprintf("channels error %d: %s", *e.Code, e.Message)
	}
	return "channels error: " + e.Message
}

// protocolErrorFromFrame extracts a ProtocolError from a parsed
// "pusher:error" frame, or nil when the frame has no usable data object.
func protocolErrorFromFrame(frame map[string]interface{}) *ProtocolError {
	data, ok := frame[jsonKeyData].(map[string]interface{})
	if !ok {
		return nil
	}
	perr := &ProtocolError{}
	if msg, ok := data[jsonKeyMessage].(string); ok {
		perr.Message = msg
	}
	if code, ok := data[jsonKeyCode].(float64); ok {
		c := int(code)
		perr.Code = &c
	}
	return perr
}

// ConnectionDelegate receives connection lifecycle notifications. All
// methods are invoked on the connection's single callback goroutine. Embed
// NoopConnectionDelegate to implement only the methods you care about.
type ConnectionDelegate interface {
	// ChangedConnectionState is called on every state transition.
	ChangedConnectionState(old, new ConnectionState)

	// SubscribedToChannel is called when the server confirms a
	// subscription.
	SubscribedToChannel(name string)

	// FailedToSubscribeToChannel is called when authorization for a
	// subscription fails. err is an *AuthError carrying the raw failure
	// detail.
	FailedToSubscribeToChannel(name string, err error)

	// FailedToDecryptEvent is called when an event on an encrypted channel
	// could not be decrypted, after the single key-reload retry.
	FailedToDecryptEvent(eventName, channelName, data string)

	// ReceivedError is called for "pusher:error" frames.
	ReceivedError(err *ProtocolError)
}

// NoopConnectionDelegate implements ConnectionDelegate with no-ops, for
// embedding.
type NoopConnectionDelegate struct{}

// ChangedConnectionState implements ConnectionDelegate.
func (NoopConnectionDelegate) ChangedConnectionState(old, new ConnectionState) {}

// SubscribedToChannel implements ConnectionDelegate.
func (NoopConnectionDelegate) SubscribedToChannel(name string) {}

// FailedToSubscribeToChannel implements ConnectionDelegate.
func (NoopConnectionDelegate) FailedToSubscribeToChannel(name string, err error) {}

// FailedToDecryptEvent implements ConnectionDelegate.
func (NoopConnectionDelegate) FailedToDecryptEvent(eventName, channelName, data string) {}

// ReceivedError implements ConnectionDelegate.
func (NoopConnectionDelegate) ReceivedError(err *ProtocolError) {}
