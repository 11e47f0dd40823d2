package channels

import (
	"errors"
	"strings"

	"github.com/relayforge/channels/internal/crypto"
)

// The closed set of event resolution errors.
var (
	// ErrInvalidFormat reports a frame with no event name.
	ErrInvalidFormat = errors.New("invalid event format")

	// ErrInvalidDecryptionKey reports a decryption failure caused by the
	// channel's key (missing, undecodable, or failing authentication).
	ErrInvalidDecryptionKey = crypto.ErrInvalidDecryptionKey

	// ErrInvalidEncryptedData reports a malformed encrypted payload.
	ErrInvalidEncryptedData = crypto.ErrInvalidEncryptedData
)

// makeEvent resolves a parsed frame into an Event, decrypting the payload
// when the channel/event naming rules require it. decryptionKey may be empty
// when no key is held for the channel.
func makeEvent(frame map[string]interface{}, decryptionKey string) (*Event, error) {
	eventName, ok := frame[jsonKeyEvent].(string)
	if !ok {
		return nil, ErrInvalidFormat
	}

	channelName, _ := frame[jsonKeyChannel].(string)
	userID, _ := frame[jsonKeyUserID].(string)

	data, err := eventData(frame, eventName, channelName, decryptionKey)
	if err != nil {
		return nil, err
	}

	return &Event{
		EventName:   eventName,
		ChannelName: channelName,
		Data:        data,
		UserID:      userID,
		raw:         frame,
	}, nil
}

func eventData(frame map[string]interface{}, eventName, channelName, decryptionKey string) (string, error) {
	raw, present := frame[jsonKeyData]
	if !shouldDecrypt(channelName, eventName) {
		return dataToString(raw), nil
	}
	if !present {
		return "", nil
	}
	return crypto.Decrypt(dataToString(raw), decryptionKey)
}

// shouldDecrypt is true iff the channel is a private-encrypted channel and
// the event is not a system event. System events are never encrypted, and
// payloads on other channels pass through untouched even if they happen to
// look like encrypted data.
func shouldDecrypt(channelName, eventName string) bool {
	return isEncryptedChannel(channelName) && !isSystemEvent(eventName)
}

func isEncryptedChannel(channelName string) bool {
	return strings.HasPrefix(channelName, privateEncryptedPrefix+"-")
}

func isSystemEvent(eventName string) bool {
	return strings.HasPrefix(eventName, pusherEventType+":") ||
		strings.HasPrefix(eventName, pusherInternalEventType+":")
}
