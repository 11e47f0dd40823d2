package channels

// Close codes in the 4000-4999 range are reserved by the Channels protocol
// and determine the reconnection strategy. Codes outside that range (normal
// websocket closures, or no code at all) fall through to the default
// reconnect-after-backing-off behaviour, subject to the AutoReconnect
// option.
const (
	// 4000 - 4099: connection closed by the server, reconnecting with the
	// same parameters will not succeed.
	CloseCodeSSLOnly              = 4000
	CloseCodeAppDoesNotExist      = 4001
	CloseCodeAppDisabled          = 4003
	CloseCodeOverConnectionQuota  = 4004
	CloseCodePathNotFound         = 4005
	CloseCodeInvalidVersionString = 4006
	CloseCodeUnsupportedProtocol  = 4007
	CloseCodeNoProtocolVersion    = 4008
	CloseCodeUnauthorized         = 4009

	// 4100 - 4199: reconnect after backing off.
	CloseCodeOverCapacity = 4100

	// 4200 - 4299: reconnect immediately.
	CloseCodeGenericReconnectNow   = 4200
	CloseCodePongReplyNotReceived  = 4201
	CloseCodeClosedAfterInactivity = 4202
)

// reconnectionStrategy describes what the client should do after an
// unplanned closure.
type reconnectionStrategy int

const (
	// doNotReconnectUnchanged means reconnecting with the same parameters
	// cannot succeed; no attempt is made.
	doNotReconnectUnchanged reconnectionStrategy = iota
	// reconnectAfterBackingOff waits delay = min(attempts^2, maxGap).
	reconnectAfterBackingOff
	// reconnectImmediately retries with no delay.
	reconnectImmediately
	// unknownStrategy covers codes outside the reserved ranges; treated as
	// backing off, but the AutoReconnect option applies.
	unknownStrategy
)

func strategyForCloseCode(code int) reconnectionStrategy {
	switch {
	case code >= 4000 && code <= 4099:
		return doNotReconnectUnchanged
	case code >= 4100 && code <= 4199:
		return reconnectAfterBackingOff
	case code >= 4200 && code <= 4299:
		return reconnectImmediately
	case code >= 4300 && code <= 4399:
		return reconnectAfterBackingOff
	default:
		return unknownStrategy
	}
}

// protocolMandatesReconnectHandling is true for codes in the reserved range,
// which bypass the AutoReconnect option entirely.
func protocolMandatesReconnectHandling(code int) bool {
	return code >= 4000 && code <= 4999
}
