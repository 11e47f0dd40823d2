package channels

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/nacl/secretbox"
)

// sealPayload encrypts plaintext the way the server does for
// private-encrypted channels.
func sealPayload(t *testing.T, plaintext string, key [32]byte) string {
	var nonce [24]byte
	_, err := rand.Read(nonce[:])
	assert.NoError(t, err)

	ciphertext := secretbox.Seal(nil, []byte(plaintext), &nonce, &key)

	payload, err := json.Marshal(map[string]string{
		"nonce":      base64.StdEncoding.EncodeToString(nonce[:]),
		"ciphertext": base64.StdEncoding.EncodeToString(ciphertext),
	})
	assert.NoError(t, err)
	return string(payload)
}

func TestMakeEventPlain(t *testing.T) {

	frame, err := parseFrame(`{"event":"test-event","channel":"my-channel","data":"{\"a\":1}","user_id":"u1"}`)
	assert.NoError(t, err)

	event, err := makeEvent(frame, "")
	assert.NoError(t, err)
	assert.Equal(t, "test-event", event.EventName)
	assert.Equal(t, "my-channel", event.ChannelName)
	assert.Equal(t, `{"a":1}`, event.Data)
	assert.Equal(t, "u1", event.UserID)
}

func TestMakeEventStructuredData(t *testing.T) {

	// data fields that arrive as objects are rendered back to JSON text
	frame, err := parseFrame(`{"event":"test-event","data":{"a":1}}`)
	assert.NoError(t, err)

	event, err := makeEvent(frame, "")
	assert.NoError(t, err)
	assert.Equal(t, `{"a":1}`, event.Data)

	var decoded map[string]interface{}
	assert.NoError(t, event.DataToJSON(&decoded))
	assert.Equal(t, float64(1), decoded["a"])
}

func TestMakeEventMissingName(t *testing.T) {

	frame, err := parseFrame(`{"channel":"my-channel","data":"{}"}`)
	assert.NoError(t, err)

	_, err = makeEvent(frame, "")
	assert.Equal(t, ErrInvalidFormat, err)
}

func TestMakeEventDecryptsEncryptedChannel(t *testing.T) {

	var key [32]byte
	_, err := rand.Read(key[:])
	assert.NoError(t, err)

	plaintext := `{"message":"hello"}`
	frame := map[string]interface{}{
		"event":   "my-event",
		"channel": "private-encrypted-chat",
		"data":    sealPayload(t, plaintext, key),
	}

	event, err := makeEvent(frame, base64.StdEncoding.EncodeToString(key[:]))
	assert.NoError(t, err)
	assert.Equal(t, plaintext, event.Data)
}

func TestMakeEventDecryptsFixedVector(t *testing.T) {

	// a whole frame sealed by another secretbox implementation, fed
	// through the factory end to end
	frame, err := parseFrame(`{"event":"user-event","channel":"private-encrypted-channel","data":"{\"nonce\":\"Ew2lLeGzSefk8fyVPbwL1yV+8HMyIBrm\",\"ciphertext\":\"ig9HfL7OKJ9TL97WFRG0xpuk9w0DXUJhLQlQbGf+ID9S3h15vb/fgDfsnsGxQNQDxw+i\"}"}`)
	assert.NoError(t, err)

	event, err := makeEvent(frame, "EOWC/ked3NtBDvEs9gFwk7x4oZEbH9I0Lz2qkopBxxs=")
	assert.NoError(t, err)
	assert.Equal(t, "user-event", event.EventName)
	assert.Equal(t, "private-encrypted-channel", event.ChannelName)
	assert.Equal(t, `{"name":"freddy","message":"hello"}`, event.Data)
}

func TestMakeEventEncryptedChannelWrongKey(t *testing.T) {

	var key, other [32]byte
	_, err := rand.Read(key[:])
	assert.NoError(t, err)
	_, err = rand.Read(other[:])
	assert.NoError(t, err)

	frame := map[string]interface{}{
		"event":   "my-event",
		"channel": "private-encrypted-chat",
		"data":    sealPayload(t, "secret", key),
	}

	_, err = makeEvent(frame, base64.StdEncoding.EncodeToString(other[:]))
	assert.Equal(t, ErrInvalidDecryptionKey, err)

	_, err = makeEvent(frame, "")
	assert.Equal(t, ErrInvalidDecryptionKey, err)
}

func TestMakeEventEncryptedChannelBadPayload(t *testing.T) {

	var key [32]byte
	frame := map[string]interface{}{
		"event":   "my-event",
		"channel": "private-encrypted-chat",
		"data":    "not an encrypted payload",
	}

	_, err := makeEvent(frame, base64.StdEncoding.EncodeToString(key[:]))
	assert.Equal(t, ErrInvalidEncryptedData, err)
}

func TestSystemEventsAreNeverDecrypted(t *testing.T) {

	// system events on encrypted channels pass through even though the
	// channel is encrypted and no key is held
	frame := map[string]interface{}{
		"event":   "pusher_internal:subscription_succeeded",
		"channel": "private-encrypted-chat",
		"data":    "{}",
	}

	event, err := makeEvent(frame, "")
	assert.NoError(t, err)
	assert.Equal(t, "{}", event.Data)
}

func TestShouldDecrypt(t *testing.T) {

	assert.True(t, shouldDecrypt("private-encrypted-chat", "my-event"))
	assert.False(t, shouldDecrypt("private-encrypted-chat", "pusher:ping"))
	assert.False(t, shouldDecrypt("private-encrypted-chat", "pusher_internal:member_added"))
	assert.False(t, shouldDecrypt("private-chat", "my-event"))
	assert.False(t, shouldDecrypt("my-channel", "my-event"))
	assert.False(t, shouldDecrypt("", "my-event"))

	// the prefix must be a complete dash-delimited match
	assert.False(t, shouldDecrypt("private-encryptedchat", "my-event"))
}

func TestEventCopyWithEventName(t *testing.T) {

	frame, err := parseFrame(`{"event":"pusher_internal:subscription_succeeded","channel":"my-channel","data":"{}"}`)
	assert.NoError(t, err)

	event, err := makeEvent(frame, "")
	assert.NoError(t, err)

	public := event.copyWithEventName("pusher:subscription_succeeded")
	assert.Equal(t, "pusher:subscription_succeeded", public.EventName)
	assert.Equal(t, event.ChannelName, public.ChannelName)
	assert.Equal(t, event.Data, public.Data)

	// the original is untouched
	assert.Equal(t, "pusher_internal:subscription_succeeded", event.EventName)
	name, ok := event.Property("event")
	assert.True(t, ok)
	assert.Equal(t, "pusher_internal:subscription_succeeded", name)

	name, ok = public.Property("event")
	assert.True(t, ok)
	assert.Equal(t, "pusher:subscription_succeeded", name)
}
