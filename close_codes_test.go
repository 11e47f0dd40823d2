package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyForCloseCode(t *testing.T) {

	cases := []struct {
		code int
		want reconnectionStrategy
	}{
		{CloseCodeSSLOnly, doNotReconnectUnchanged},
		{CloseCodeUnauthorized, doNotReconnectUnchanged},
		{4099, doNotReconnectUnchanged},
		{CloseCodeOverCapacity, reconnectAfterBackingOff},
		{4199, reconnectAfterBackingOff},
		{CloseCodeGenericReconnectNow, reconnectImmediately},
		{CloseCodePongReplyNotReceived, reconnectImmediately},
		{4299, reconnectImmediately},
		{4300, reconnectAfterBackingOff},
		{4399, reconnectAfterBackingOff},
		{4400, unknownStrategy},
		{4999, unknownStrategy},
		{1000, unknownStrategy},
		{1006, unknownStrategy},
		{0, unknownStrategy},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, strategyForCloseCode(c.code), "code: %d", c.code)
	}
}

func TestProtocolMandatesReconnectHandling(t *testing.T) {

	assert.True(t, protocolMandatesReconnectHandling(4000))
	assert.True(t, protocolMandatesReconnectHandling(4201))
	assert.True(t, protocolMandatesReconnectHandling(4999))
	assert.False(t, protocolMandatesReconnectHandling(3999))
	assert.False(t, protocolMandatesReconnectHandling(5000))
	assert.False(t, protocolMandatesReconnectHandling(1000))
	assert.False(t, protocolMandatesReconnectHandling(0))
}
