package channels

// Client is the public entry point: a convenience facade over a Connection
// and its channel registry. All methods are safe for concurrent use.
type Client struct {
	Key        string
	Connection *Connection
}

// New creates a client for the given application key with default options.
func New(key string) *Client {
	return NewWithOptions(key, DefaultOptions())
}

// NewWithOptions creates a client with explicit options.
func NewWithOptions(key string, options ClientOptions) *Client {
	url := connectionURL(key, options)
	ws := NewWebsocket(url)
	return &Client{
		Key:        key,
		Connection: NewConnection(key, ws, url, options),
	}
}

// Connect establishes the websocket connection. Channels subscribed before
// connecting are subscribed once the connection is established.
func (c *Client) Connect() {
	c.Connection.Connect()
}

// Disconnect closes the connection intentionally. Subscriptions are kept
// registered and resume on the next Connect.
func (c *Client) Disconnect() {
	c.Connection.Disconnect()
}

// SetDelegate installs the connection lifecycle delegate.
func (c *Client) SetDelegate(d ConnectionDelegate) {
	c.Connection.SetDelegate(d)
}

// ConnectionState returns the current lifecycle state.
func (c *Client) ConnectionState() ConnectionState {
	return c.Connection.State()
}

// SocketID returns the server-assigned socket id, or "" when not connected.
func (c *Client) SocketID() string {
	return c.Connection.SocketID()
}

// Subscribe registers the named channel and subscribes when connected. The
// returned handle is live immediately: events may be bound and client
// events triggered before the subscription completes.
func (c *Client) Subscribe(channelName string) *Channel {
	return c.Connection.subscribe(channelName, nil)
}

// SubscribeWithAuth registers the named channel using a pre-computed auth
// value instead of the configured auth method. Presence channels require
// auth.ChannelData to be set.
func (c *Client) SubscribeWithAuth(channelName string, auth *Auth) *Channel {
	return c.Connection.subscribe(channelName, auth)
}

// SubscribePresence subscribes to a presence channel and returns the
// presence accessor. Returns false when channelName is not a presence
// channel name.
func (c *Client) SubscribePresence(channelName string) (*PresenceChannel, bool) {
	return c.Connection.subscribe(channelName, nil).Presence()
}

// SubscribePresenceWithAuth is SubscribePresence with a pre-computed auth
// value. auth.ChannelData must be set or the subscription is refused.
func (c *Client) SubscribePresenceWithAuth(channelName string, auth *Auth) (*PresenceChannel, bool) {
	return c.Connection.subscribe(channelName, auth).Presence()
}

// Unsubscribe unsubscribes from the named channel and forgets it. Unlike
// Disconnect, the channel does not resume on reconnection.
func (c *Client) Unsubscribe(channelName string) {
	c.Connection.unsubscribe(channelName)
}

// UnsubscribeAll unsubscribes from every channel.
func (c *Client) UnsubscribeAll() {
	c.Connection.unsubscribeAll()
}

// Channel returns the registered channel with the given name, or nil.
func (c *Client) Channel(channelName string) *Channel {
	return c.Connection.channels.Find(channelName)
}

// Bind registers a global callback invoked for every event received on any
// channel, returning an id for Unbind.
func (c *Client) Bind(callback func(*Event)) string {
	return c.Connection.bindGlobal(callback)
}

// Unbind removes a global callback by id.
func (c *Client) Unbind(callbackID string) {
	c.Connection.unbindGlobal(callbackID)
}

// UnbindAll removes all global callbacks.
func (c *Client) UnbindAll() {
	c.Connection.unbindAllGlobal()
}
