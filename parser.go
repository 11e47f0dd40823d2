package channels

import (
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"
)

// errNotAnObject reports a frame whose top level JSON value is not an object.
var errNotAnObject = errors.New("frame is not a JSON object")

// parseFrame decodes a raw websocket text frame into a map. The top-level
// value must be a JSON object; anything else is an error. Callers drop
// unparseable frames after logging, they are not surfaced to callbacks.
func parseFrame(text string) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	frame, ok := v.(map[string]interface{})
	if !ok {
		return nil, errNotAnObject
	}
	return frame, nil
}

// serializeEvent produces the minimal JSON object {event, data, [channel]}
// for sending. Returns the empty string if the value cannot be marshalled;
// this mirrors the best-effort contract of the wire protocol rather than
// surfacing an error to the send path.
func serializeEvent(event string, data interface{}, channel string) string {
	frame := map[string]interface{}{
		jsonKeyEvent: event,
		jsonKeyData:  data,
	}
	if channel != "" {
		frame[jsonKeyChannel] = channel
	}
	b, err := json.Marshal(frame)
	if err != nil {
		log.WithFields(log.Fields{"event": event, "error": err}).Warn("could not serialize event")
		return ""
	}
	return string(b)
}

// dataToString renders a frame's data field as the string payload callers
// see. Payloads normally arrive as JSON-encoded strings; structured values
// (e.g. in "pusher:error" frames) are re-marshalled to their JSON text.
func dataToString(data interface{}) string {
	switch d := data.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
