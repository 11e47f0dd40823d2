package channels

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/relayforge/channels/internal/chanstats"
	"github.com/relayforge/channels/internal/crypto"
)

// ConnectionState is the connection lifecycle state. Exactly one value is
// current at any time; transitions are internal and notify the delegate
// with (old, new).
type ConnectionState int

const (
	// Disconnected is the initial state, and the state after any closure.
	Disconnected ConnectionState = iota
	// Connecting means the transport is dialling.
	Connecting
	// Connected means the transport is open and the protocol handshake has
	// completed.
	Connected
	// Disconnecting means an intentional disconnect is in progress.
	Disconnecting
	// Reconnecting means a reconnect attempt is scheduled.
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// connectionEstablishedData is the payload of the handshake frame. The data
// field arrives as a JSON-encoded string, so it is unmarshalled separately.
type connectionEstablishedData struct {
	SocketID        string  `json:"socket_id"`
	ActivityTimeout float64 `json:"activity_timeout"`
}

// callbackQueue is an unbounded FIFO feeding the callback goroutine. A
// push never blocks, so state changes can notify the delegate while the
// connection mutex is held without stalling behind a slow consumer.
type callbackQueue struct {
	mu      sync.Mutex
	ready   *sync.Cond
	pending []func()
}

func newCallbackQueue() *callbackQueue {
	q := &callbackQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

func (q *callbackQueue) push(f func()) {
	q.mu.Lock()
	q.pending = append(q.pending, f)
	q.mu.Unlock()
	q.ready.Signal()
}

func (q *callbackQueue) next() func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 {
		q.ready.Wait()
	}
	f := q.pending[0]
	q.pending = q.pending[1:]
	return f
}

// Connection owns the websocket, the channel registry and the event queue,
// and drives the five-state lifecycle. Application callbacks (channel and
// global bindings, delegate notifications) are delivered on a single
// callback goroutine so callers get a serial, non-reentrant contract.
type Connection struct {
	key     string
	url     string
	options ClientOptions
	socket  WebsocketConnection
	id      string

	httpClient *http.Client

	// UserDataFetcher supplies the member identity used for inline
	// presence auth. When nil, the socket id stands in as the user id.
	UserDataFetcher func() Member

	channels *Channels
	global   *globalChannel
	queue    *eventQueue
	stats    *chanstats.ChanStats

	callbacks *callbackQueue

	mu                    sync.Mutex
	delegate              ConnectionDelegate
	state                 ConnectionState
	socketID              string
	socketConnected       bool
	establishedReceived   bool
	intentionalDisconnect bool
	forcedCloseCode       int
	reconnectAttempts     int
	activityTimeout       time.Duration
	activityTimer         *time.Timer
	activityGen           int
	pongTimer             *time.Timer
	pongGen               int
	reconnectTimer        *time.Timer
}

// NewConnection wires a connection to a transport. The transport's delegate
// is installed here; Connect starts the lifecycle.
func NewConnection(key string, socket WebsocketConnection, url string, options ClientOptions) *Connection {
	if options.PongTimeout == 0 {
		options.PongTimeout = defaultPongTimeout
	}
	if options.MaxReconnectGap == 0 {
		options.MaxReconnectGap = defaultMaxReconnectGap
	}

	activityTimeout := options.ActivityTimeout
	if activityTimeout == 0 {
		activityTimeout = defaultActivityTimeout
	}

	c := &Connection{
		key:             key,
		url:             url,
		options:         options,
		socket:          socket,
		id:              uuid.New().String()[0:6],
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		channels:        newChannels(),
		global:          newGlobalChannel(),
		stats:           chanstats.New(),
		callbacks:       newCallbackQueue(),
		delegate:        NoopConnectionDelegate{},
		state:           Disconnected,
		activityTimeout: activityTimeout,
	}
	c.queue = newEventQueue(c.channels, c, c.id)
	socket.SetDelegate(c)
	go c.runCallbacks()
	return c
}

// SetDelegate installs the lifecycle delegate. Pass nil to remove it.
func (c *Connection) SetDelegate(d ConnectionDelegate) {
	c.mu.Lock()
	if d == nil {
		d = NoopConnectionDelegate{}
	}
	c.delegate = d
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SocketID returns the server-assigned socket id, or "" when there is no
// established connection.
func (c *Connection) SocketID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketID
}

// ReconnectAttempts returns the current reconnect attempt count. Reset to
// zero each time the handshake completes.
func (c *Connection) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempts
}

// StatsReport summarises the connection's traffic statistics.
func (c *Connection) StatsReport() *chanstats.Report {
	return c.stats.NewReport()
}

// runCallbacks is the single application-facing callback goroutine.
func (c *Connection) runCallbacks() {
	for {
		c.callbacks.next()()
	}
}

// dispatch schedules f on the callback goroutine. Never blocks; safe to
// call with c.mu held.
func (c *Connection) dispatch(f func()) {
	c.callbacks.push(f)
}

func (c *Connection) currentDelegate() ConnectionDelegate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate
}

// updateStateLocked transitions state and notifies the delegate. Callers
// hold c.mu.
func (c *Connection) updateStateLocked(new ConnectionState) {
	old := c.state
	c.state = new
	d := c.delegate
	log.WithFields(log.Fields{"from": old.String(), "to": new.String()}).Debugf("connection(%s): state change", c.id)
	c.dispatch(func() { d.ChangedConnectionState(old, new) })
}

// Connect establishes the websocket connection. A no-op when already
// connected. Clears the intentional-disconnect flag so that a previous
// Disconnect does not suppress future reconnection.
func (c *Connection) Connect() {
	c.mu.Lock()
	c.intentionalDisconnect = false
	c.forcedCloseCode = 0
	if c.state == Connected {
		c.mu.Unlock()
		return
	}
	c.updateStateLocked(Connecting)
	c.mu.Unlock()

	c.socket.Connect()
}

// Disconnect closes the connection intentionally. Only effective while
// connected; no reconnect is attempted afterwards.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.intentionalDisconnect = true
	c.updateStateLocked(Disconnecting)
	c.mu.Unlock()

	c.socket.Disconnect(1000)
}

// subscribe registers (or returns) the named channel and, when connected,
// starts the authorization flow. The channel handle is always returned
// immediately; authorization failures surface through subscription-error
// events and the delegate.
func (c *Connection) subscribe(name string, auth *Auth) *Channel {
	ch := c.channels.Add(name, c, auth)
	if c.State() != Connected {
		return ch
	}
	c.dispatch(func() { c.authorize(ch) })
	return ch
}

// unsubscribe sends an unsubscribe frame when the channel is subscribed,
// and removes it from the registry regardless.
func (c *Connection) unsubscribe(name string) {
	if ch := c.channels.Find(name); ch != nil && ch.Subscribed() {
		c.sendEvent(pusherUnsubscribe, map[string]interface{}{jsonKeyChannel: name}, nil)
	}
	c.channels.Remove(name)
}

// unsubscribeAll unsubscribes every registered channel.
func (c *Connection) unsubscribeAll() {
	for _, ch := range c.channels.All() {
		c.unsubscribe(ch.Name)
	}
}

// sendEvent serializes and sends an event, routing names whose first
// dash-delimited segment is "client" through client-event framing.
func (c *Connection) sendEvent(event string, data interface{}, channel *Channel) {
	if strings.Split(event, "-")[0] == clientEventType {
		c.sendClientEvent(event, data, channel)
		return
	}
	c.send(serializeEvent(event, data, ""))
}

// sendClientEvent sends a client event, which must name its channel and is
// only permitted on private and presence channels.
func (c *Connection) sendClientEvent(event string, data interface{}, channel *Channel) {
	if channel == nil {
		return
	}
	if !channel.Type.requiresAuth() {
		log.WithField("channel", channel.Name).Warn("client events require a private or presence channel")
		return
	}
	c.send(serializeEvent(event, data, channel.Name))
}

func (c *Connection) send(frame string) {
	if frame == "" {
		return
	}
	log.Tracef("connection(%s): sending %s", c.id, frame)
	c.stats.RecordTx(len(frame))
	c.resetActivityTimer()
	c.socket.Send(frame)
}

// --- transport delegate ---

// WebsocketDidConnect implements WebsocketDelegate.
func (c *Connection) WebsocketDidConnect() {
	c.mu.Lock()
	c.socketConnected = true
	c.evaluateConnectedLocked()
	c.mu.Unlock()
}

// WebsocketDidReceiveMessage implements WebsocketDelegate. Frames are
// parsed here and routed either inline (protocol errors) or through the
// serialized event queue.
func (c *Connection) WebsocketDidReceiveMessage(msg string) {
	c.stats.RecordRx(len(msg))
	c.resetActivityTimer()

	frame, err := parseFrame(msg)
	if err != nil {
		log.WithField("error", err).Debugf("connection(%s): dropping unparseable frame", c.id)
		return
	}
	name, ok := frame[jsonKeyEvent].(string)
	if !ok {
		log.Debugf("connection(%s): dropping frame without event name", c.id)
		return
	}

	if name == pusherError {
		c.dispatch(func() { c.handleError(frame) })
		return
	}
	c.queue.enqueue(frame)
}

// WebsocketDidReceivePong implements WebsocketDelegate.
func (c *Connection) WebsocketDidReceivePong() {
	log.Tracef("connection(%s): pong received", c.id)
	c.mu.Lock()
	c.stopPongTimerLocked()
	c.mu.Unlock()
	c.resetActivityTimer()
}

// WebsocketDidError implements WebsocketDelegate. Transport errors are
// logged; the disconnect callback drives any reconnection.
func (c *Connection) WebsocketDidError(err error) {
	log.WithField("error", err).Warnf("connection(%s): websocket error", c.id)
}

// WebsocketDidDisconnect implements WebsocketDelegate. A closure initiated
// by the pong-timeout reset arrives here without its close code (the
// transport was closed locally), so it is re-attributed from the pending
// forced close.
func (c *Connection) WebsocketDidDisconnect(code int, reason string) {
	c.mu.Lock()
	if c.forcedCloseCode != 0 {
		code = c.forcedCloseCode
		reason = "pong reply not received"
		c.forcedCloseCode = 0
	}
	c.mu.Unlock()
	c.handleDisconnection(code, reason)
}

// handleDisconnection resets connection state and, for unintentional
// closures, drives the reconnection strategy for the close code.
func (c *Connection) handleDisconnection(code int, reason string) {
	log.WithFields(log.Fields{"code": code, "reason": reason}).Debugf("connection(%s): disconnected", c.id)

	c.mu.Lock()
	wasIntentional := c.intentionalDisconnect
	if c.state != Disconnected {
		c.updateStateLocked(Disconnected)
	}
	c.socketConnected = false
	c.establishedReceived = false
	c.socketID = ""
	c.stopActivityTimersLocked()
	c.mu.Unlock()

	for _, ch := range c.channels.All() {
		ch.setSubscribed(false)
	}

	if wasIntentional {
		log.Debugf("connection(%s): intentional disconnection, not reconnecting", c.id)
		return
	}

	// the AutoReconnect option is ignored for closure codes in the
	// protocol's reserved range
	if !protocolMandatesReconnectHandling(code) && !c.options.AutoReconnect {
		return
	}

	c.attemptReconnect(code)
}

// attemptReconnect schedules the next connection attempt according to the
// close code's strategy. The reconnect timer is single-outstanding: a new
// attempt replaces any pending one.
func (c *Connection) attemptReconnect(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Connected {
		return
	}
	if c.options.MaxReconnectAttempts > 0 && c.reconnectAttempts >= c.options.MaxReconnectAttempts {
		log.Debugf("connection(%s): max reconnect attempts reached", c.id)
		return
	}

	strategy := strategyForCloseCode(code)
	if strategy == doNotReconnectUnchanged {
		log.WithField("code", code).Debugf("connection(%s): not reconnecting, changed parameters required", c.id)
		return
	}

	if c.state != Reconnecting {
		c.updateStateLocked(Reconnecting)
	}

	delay := c.reconnectDelayLocked(strategy)
	log.WithFields(log.Fields{
		"delay":   delay.String(),
		"attempt": c.reconnectAttempts + 1,
	}).Debugf("connection(%s): reconnecting", c.id)

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, c.Connect)
	c.reconnectAttempts++
}

// reconnectDelayLocked computes the backoff: min(attempts^2, maxGap), with
// the attempt count taken before incrementing, and zero for the
// reconnect-immediately strategy.
func (c *Connection) reconnectDelayLocked(strategy reconnectionStrategy) time.Duration {
	if strategy == reconnectImmediately {
		return 0
	}
	delay := time.Duration(c.reconnectAttempts*c.reconnectAttempts) * time.Second
	if delay > c.options.MaxReconnectGap {
		delay = c.options.MaxReconnectGap
	}
	return delay
}

// evaluateConnectedLocked transitions to Connected once both the transport
// is open and the protocol handshake frame has arrived, in either order,
// then attempts pending subscriptions.
func (c *Connection) evaluateConnectedLocked() {
	if !c.socketConnected || !c.establishedReceived || c.state == Connected {
		return
	}
	c.updateStateLocked(Connected)
	c.stats.Reconnected()
	c.dispatch(c.attemptSubscriptions)
}

// attemptSubscriptions starts the authorization flow for every registered
// channel not yet subscribed. Covers channels created before connecting
// and channels whose earlier attempt was interrupted.
func (c *Connection) attemptSubscriptions() {
	for _, ch := range c.channels.All() {
		if !ch.Subscribed() {
			c.authorize(ch)
		}
	}
}

// --- inbound event handling (callback goroutine) ---

// handleEvent routes a resolved event: protocol control events are handled
// internally, everything else goes to global and per-channel callbacks.
func (c *Connection) handleEvent(event *Event) {
	switch event.EventName {
	case pusherInternalSubscriptionSucceeded:
		c.handleSubscriptionSucceeded(event)
	case pusherConnectionEstablished:
		c.handleConnectionEstablished(event)
	case pusherInternalMemberAdded:
		c.handleMemberAdded(event)
	case pusherInternalMemberRemoved:
		c.handleMemberRemoved(event)
	default:
		c.global.handleEvent(event)
		if event.ChannelName != "" {
			if ch := c.channels.Find(event.ChannelName); ch != nil {
				ch.handleEvent(event)
			}
		}
	}
}

func (c *Connection) handleConnectionEstablished(event *Event) {
	var data connectionEstablishedData
	if err := json.Unmarshal([]byte(event.Data), &data); err != nil || data.SocketID == "" {
		log.WithField("error", err).Debugf("connection(%s): bad connection_established payload", c.id)
		return
	}

	log.WithField("socket_id", data.SocketID).Debugf("connection(%s): established", c.id)

	c.mu.Lock()
	c.socketID = data.SocketID
	c.reconnectAttempts = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.options.ActivityTimeout == 0 && data.ActivityTimeout > 0 {
		c.activityTimeout = time.Duration(data.ActivityTimeout * float64(time.Second))
	}
	c.establishedReceived = true
	c.evaluateConnectedLocked()
	c.mu.Unlock()
}

func (c *Connection) handleSubscriptionSucceeded(event *Event) {
	ch := c.channels.Find(event.ChannelName)
	if ch == nil {
		return
	}
	ch.setSubscribed(true)

	if p, ok := ch.Presence(); ok {
		if hash := presenceHash(event.Data); hash != nil {
			p.addExistingMembers(hash)
		}
	}

	// the internal event is re-delivered under its public name
	public := event.copyWithEventName(pusherSubscriptionSucceeded)
	c.global.handleEvent(public)
	ch.handleEvent(public)

	c.currentDelegate().SubscribedToChannel(ch.Name)

	ch.clearPendingAuth()

	// flush events queued while unsubscribed, most recently queued first
	for {
		ev, ok := ch.popUnsent()
		if !ok {
			break
		}
		ch.Trigger(ev.name, ev.data)
	}
}

// presenceHash extracts the member hash from a subscription-succeeded
// payload: {"presence":{"hash":{...}}}.
func presenceHash(data string) map[string]interface{} {
	parsed, err := parseFrame(data)
	if err != nil {
		return nil
	}
	presence, ok := parsed[jsonKeyPresence].(map[string]interface{})
	if !ok {
		return nil
	}
	hash, ok := presence[jsonKeyHash].(map[string]interface{})
	if !ok {
		return nil
	}
	return hash
}

func (c *Connection) handleMemberAdded(event *Event) {
	p, ok := c.channels.FindPresence(event.ChannelName)
	if !ok {
		return
	}
	member, err := parseFrame(event.Data)
	if err != nil {
		log.Debugf("connection(%s): unable to parse member_added payload", c.id)
		return
	}
	p.addMember(member)
}

func (c *Connection) handleMemberRemoved(event *Event) {
	p, ok := c.channels.FindPresence(event.ChannelName)
	if !ok {
		return
	}
	member, err := parseFrame(event.Data)
	if err != nil {
		log.Debugf("connection(%s): unable to parse member_removed payload", c.id)
		return
	}
	p.removeMember(member)
}

// handleError surfaces a "pusher:error" frame to the delegate and to the
// global callbacks.
func (c *Connection) handleError(frame map[string]interface{}) {
	perr := protocolErrorFromFrame(frame)
	if perr == nil {
		log.Debugf("connection(%s): unable to handle incoming error frame", c.id)
		return
	}
	log.WithField("message", perr.Message).Debugf("connection(%s): received error", c.id)
	c.currentDelegate().ReceivedError(perr)
	c.global.handleEvent(&Event{
		EventName: pusherError,
		Data:      dataToString(frame[jsonKeyData]),
		raw:       frame,
	})
}

// --- authorization ---

// authorize runs the subscription flow for a channel: manual auth short
// circuit, plain subscribe for public channels, or the configured auth
// method. Failures become subscription-error events rather than returned
// errors.
func (c *Connection) authorize(ch *Channel) {
	if auth := ch.pendingAuth(); auth != nil {
		if ch.Type == ChannelTypePresence && auth.ChannelData == "" {
			log.WithField("channel", ch.Name).Warn("presence channel auth supplied without channel_data; not subscribing")
			return
		}
		c.handleAuthInfo(ch, auth)
		return
	}

	if !ch.Type.requiresAuth() {
		c.sendSubscribe(ch, "", "")
		return
	}

	c.requestAuthValue(ch, func(auth *Auth, authErr *AuthError) {
		c.dispatch(func() {
			if authErr != nil {
				c.handleAuthorizationError(ch, authErr)
				return
			}
			c.handleAuthInfo(ch, auth)
		})
	})
}

// requestAuthValue resolves an Auth for the channel through the configured
// method. completion is invoked exactly once, possibly on another
// goroutine.
func (c *Connection) requestAuthValue(ch *Channel, completion func(*Auth, *AuthError)) {
	socketID := c.SocketID()
	if socketID == "" {
		completion(nil, &AuthError{
			Kind:    AuthErrorNotConnected,
			Message: "no socket id; you may not be connected",
		})
		return
	}

	m := c.options.AuthMethod
	switch m.kind {
	case authMethodNone:
		completion(nil, &AuthError{
			Kind:    AuthErrorNoMethod,
			Message: "authentication method required for private / presence channels but none provided",
		})
	case authMethodInline:
		completion(c.inlineAuth(ch, socketID, m.secret), nil)
	case authMethodEndpoint:
		req, err := buildAuthRequest(m.endpoint, socketID, ch.Name)
		if err != nil {
			completion(nil, &AuthError{
				Kind:    AuthErrorCouldNotBuildRequest,
				Message: "could not build authorization request",
				Err:     err,
			})
			return
		}
		go c.performAuthRequest(req, ch, completion)
	case authMethodRequestBuilder:
		req, err := m.builder.RequestFor(socketID, ch.Name)
		if err != nil || req == nil {
			completion(nil, &AuthError{
				Kind:    AuthErrorCouldNotBuildRequest,
				Message: "authentication request could not be built",
				Err:     err,
			})
			return
		}
		go c.performAuthRequest(req, ch, completion)
	case authMethodAuthorizer:
		m.authorizer.FetchAuthValue(socketID, ch.Name, func(auth *Auth, err error) {
			if err != nil || auth == nil {
				completion(nil, &AuthError{
					Kind:    AuthErrorRequestFailure,
					Message: "authorizer did not supply an auth value",
					Err:     err,
				})
				return
			}
			completion(auth, nil)
		})
	}
}

func (c *Connection) performAuthRequest(req *http.Request, ch *Channel, completion func(*Auth, *AuthError)) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		completion(nil, &AuthError{
			Kind:    AuthErrorRequestFailure,
			Message: "error authorizing channel [" + ch.Name + "]",
			Err:     err,
		})
		return
	}
	defer resp.Body.Close()

	auth, authErr := parseAuthResponse(ch.Name, resp)
	if authErr != nil {
		completion(nil, authErr)
		return
	}
	completion(auth, nil)
}

// inlineAuth signs the subscription locally. The message is
// "{socketId}:{channelName}" for private channels and
// "{socketId}:{channelName}:{channelData}" for presence channels.
func (c *Connection) inlineAuth(ch *Channel, socketID, secret string) *Auth {
	msg := socketID + ":" + ch.Name
	channelData := ""
	if ch.Type == ChannelTypePresence {
		channelData = c.userDataJSON(socketID)
		msg = msg + ":" + channelData
	}
	signature := crypto.HMACSHA256Hex(secret, msg)
	return &Auth{
		Auth:        strings.ToLower(c.key + ":" + signature),
		ChannelData: channelData,
	}
}

// userDataJSON renders the channel_data for inline presence auth: the
// configured UserDataFetcher's member, or the socket id standing in as the
// user id.
func (c *Connection) userDataJSON(socketID string) string {
	if c.UserDataFetcher != nil {
		member := c.UserDataFetcher()
		data := map[string]interface{}{jsonKeyUserID: member.UserID}
		if member.UserInfo != nil {
			data[jsonKeyUserInfo] = member.UserInfo
		}
		return dataToString(data)
	}
	return dataToString(map[string]interface{}{jsonKeyUserID: socketID})
}

// handleAuthInfo stores any shared secret as the channel's decryption key
// and sends the subscribe frame. Auth results arriving after a disconnect
// or unsubscribe are discarded.
func (c *Connection) handleAuthInfo(ch *Channel, auth *Auth) {
	if auth.SharedSecret != "" {
		ch.setDecryptionKey(auth.SharedSecret)
	}

	if c.State() != Connected || c.channels.Find(ch.Name) != ch {
		log.WithField("channel", ch.Name).Tracef("connection(%s): discarding stale auth result", c.id)
		return
	}

	if auth.ChannelData != "" {
		if p, ok := ch.Presence(); ok {
			p.setMyUserID(auth.ChannelData)
		}
		c.sendSubscribe(ch, auth.Auth, auth.ChannelData)
		return
	}
	c.sendSubscribe(ch, auth.Auth, "")
}

func (c *Connection) sendSubscribe(ch *Channel, auth, channelData string) {
	data := map[string]interface{}{jsonKeyChannel: ch.Name}
	if auth != "" {
		data[jsonKeyAuth] = auth
	}
	if channelData != "" {
		data[jsonKeyChannelData] = channelData
	}
	c.sendEvent(pusherSubscribe, data, nil)
}

// handleAuthorizationError synthesizes a subscription-error event for the
// channel and global callbacks, and notifies the delegate with the raw
// failure detail.
func (c *Connection) handleAuthorizationError(ch *Channel, authErr *AuthError) {
	log.WithFields(log.Fields{"channel": ch.Name, "error": authErr.Error()}).Warnf("connection(%s): authorization failed", c.id)

	detail := authErr.Body
	if detail == "" {
		detail = authErr.Message
	}
	raw := map[string]interface{}{
		jsonKeyEvent:   pusherSubscriptionError,
		jsonKeyChannel: ch.Name,
		jsonKeyData:    detail,
	}
	event := &Event{
		EventName:   pusherSubscriptionError,
		ChannelName: ch.Name,
		Data:        detail,
		raw:         raw,
	}
	c.global.handleEvent(event)
	ch.handleEvent(event)
	c.currentDelegate().FailedToSubscribeToChannel(ch.Name, authErr)
}

// --- event queue delegate ---

func (c *Connection) eventQueueDidReceiveEvent(event *Event, channelName string) {
	c.dispatch(func() { c.handleEvent(event) })
}

func (c *Connection) eventQueueDidFailToDecryptEvent(payload map[string]interface{}, channelName string) {
	c.dispatch(func() {
		eventName, _ := payload[jsonKeyEvent].(string)
		data := dataToString(payload[jsonKeyData])
		log.WithField("channel", channelName).Debugf("connection(%s): skipping event that could not be decrypted", c.id)
		c.currentDelegate().FailedToDecryptEvent(eventName, channelName, data)
	})
}

func (c *Connection) eventQueueDidReceiveInvalidEvent(payload map[string]interface{}) {
	c.dispatch(func() {
		log.WithField("payload", payload).Debugf("connection(%s): unable to handle incoming event", c.id)
	})
}

// eventQueueReloadDecryptionKeySync refreshes the channel's decryption key
// through the auth method and blocks the queue worker until the key is in
// place. The auth request is scheduled on the callback goroutine; invoking
// this from the callback goroutine itself would therefore deadlock, which
// is why decryption outcomes are only ever delivered from the queue worker.
func (c *Connection) eventQueueReloadDecryptionKeySync(channel *Channel) {
	done := make(chan struct{})
	c.dispatch(func() {
		c.requestAuthValue(channel, func(auth *Auth, authErr *AuthError) {
			if authErr == nil && auth != nil && auth.SharedSecret != "" {
				channel.setDecryptionKey(auth.SharedSecret)
			} else {
				channel.setDecryptionKey("")
			}
			// release the queue worker to continue processing
			close(done)
		})
	})
	<-done
}

// --- liveness supervision ---

// resetActivityTimer restarts the quiet-period timer. Called for every
// inbound and outbound frame.
func (c *Connection) resetActivityTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopActivityTimersLocked()
	c.activityGen++
	gen := c.activityGen
	c.activityTimer = time.AfterFunc(c.activityTimeout, func() { c.activityTimeoutFired(gen) })
}

// stopActivityTimersLocked cancels both supervision timers. Bumping the
// generations makes racing fires no-ops.
func (c *Connection) stopActivityTimersLocked() {
	c.activityGen++
	c.pongGen++
	if c.activityTimer != nil {
		c.activityTimer.Stop()
		c.activityTimer = nil
	}
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
}

func (c *Connection) stopPongTimerLocked() {
	c.pongGen++
	if c.pongTimer != nil {
		c.pongTimer.Stop()
		c.pongTimer = nil
	}
}

// activityTimeoutFired sends a ping and starts the pong timer.
func (c *Connection) activityTimeoutFired(gen int) {
	c.mu.Lock()
	if gen != c.activityGen || c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.pongGen++
	pongGen := c.pongGen
	c.pongTimer = time.AfterFunc(c.options.PongTimeout, func() { c.pongTimeoutFired(pongGen) })
	c.mu.Unlock()

	log.Tracef("connection(%s): no activity for %s, pinging", c.id, c.activityTimeout)
	c.socket.Ping()
}

// pongTimeoutFired closes a connection that failed to answer a ping. The
// closure is tagged so that the transport's disconnect callback carries the
// pong-timeout code instead of the local-close one, and every transport
// disconnect is handled exactly once.
func (c *Connection) pongTimeoutFired(gen int) {
	c.mu.Lock()
	if gen != c.pongGen || c.state != Connected {
		c.mu.Unlock()
		return
	}
	c.forcedCloseCode = CloseCodePongReplyNotReceived
	c.mu.Unlock()

	log.Debugf("connection(%s): no pong reply, resetting connection", c.id)
	c.socket.Disconnect(CloseCodePongReplyNotReceived)
}

// --- global bindings ---

// bindGlobal registers a callback invoked for every received event.
func (c *Connection) bindGlobal(callback func(*Event)) string {
	return c.global.bind(callback)
}

func (c *Connection) unbindGlobal(callbackID string) {
	c.global.unbind(callbackID)
}

func (c *Connection) unbindAllGlobal() {
	c.global.unbindAll()
}
