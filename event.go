package channels

import "encoding/json"

// Event is an immutable value representing one event received over the
// websocket connection. According to the Channels protocol there is always an
// event name; the remaining fields are optional.
type Event struct {
	// EventName is the name of the event.
	EventName string

	// ChannelName is the name of the channel that the event was triggered
	// on. Empty for events without an associated channel, e.g. "pusher:error"
	// events relating to the connection.
	ChannelName string

	// Data is the string payload that was passed when the event was
	// triggered. Empty if the payload was absent or could not be decrypted.
	Data string

	// UserID is the id of the user who triggered the event. Only present in
	// client events on presence channels.
	UserID string

	// raw is the decoded JSON frame the event was built from.
	raw map[string]interface{}
}

// Property returns a raw top-level field of the websocket frame. Values
// returned here are not part of the stable protocol surface; prefer the
// exported fields where they exist.
func (e *Event) Property(key string) (interface{}, bool) {
	v, ok := e.raw[key]
	return v, ok
}

// DataToJSON decodes the event payload into v. Payloads are JSON-encoded
// strings on the wire, so this saves callers a second unmarshal.
func (e *Event) DataToJSON(v interface{}) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// copyWithEventName returns a copy of the event under a new name. Used when
// translating "pusher_internal:" events to their public "pusher:" names.
func (e *Event) copyWithEventName(name string) *Event {
	raw := make(map[string]interface{}, len(e.raw))
	for k, v := range e.raw {
		raw[k] = v
	}
	raw[jsonKeyEvent] = name
	return &Event{
		EventName:   name,
		ChannelName: e.ChannelName,
		Data:        e.Data,
		UserID:      e.UserID,
		raw:         raw,
	}
}
